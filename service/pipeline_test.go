package service

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/berthwatch/backend/config"
	"github.com/berthwatch/backend/pkg/metrics"
	"github.com/berthwatch/backend/pkg/pdftable"
	"github.com/berthwatch/backend/pkg/pdftable/pdftest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rowsOf(cells [][]string, tail error) iter.Seq2[pdftable.Row, error] {
	return func(yield func(pdftable.Row, error) bool) {
		for i, c := range cells {
			if !yield(pdftable.Row{Page: 1, Index: i, Cells: c}, nil) {
				return
			}
		}
		if tail != nil {
			yield(pdftable.Row{}, tail)
		}
	}
}

func TestPipelineFilter(t *testing.T) {
	p := NewPipeline(config.Default(), nil)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := rowsOf([][]string{
		scheduleRow("", "RORO", "mundra", "MV ONE"),
		scheduleRow("", "BULK CARRIER", "Mundra", "MV BULK"),
		{"too", "short"},
		scheduleRow("", "RORO", "Colombo", "MV AWAY"),
		scheduleRow("", "roro", "Deendayal", "MV TWO"),
	}, nil)

	records, stats, err := p.Filter(context.Background(), rows, now)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "MV ONE", records[0].VesselName)
	assert.Equal(t, 0, records[0].Position)
	assert.Equal(t, "MV TWO", records[1].VesselName)
	assert.Equal(t, 1, records[1].Position)
	for _, r := range records {
		assert.True(t, r.Timestamp.Equal(now), "records share the run instant")
		assert.Empty(t, r.BatchID)
	}

	assert.Equal(t, Stats{Rows: 5, Accepted: 2, Malformed: 1, RejectedCategory: 1, RejectedPort: 1}, stats)
}

func TestPipelineFilterStopsOnError(t *testing.T) {
	p := NewPipeline(config.Default(), nil)
	pageErr := errors.Join(pdftable.ErrParse, errors.New("page 2"))

	rows := rowsOf([][]string{scheduleRow("", "RORO", "Mundra", "MV ONE")}, pageErr)
	records, stats, err := p.Filter(context.Background(), rows, time.Now())
	assert.ErrorIs(t, err, ErrParse)
	assert.Nil(t, records)
	assert.Equal(t, 1, stats.Accepted)
}

func TestPipelineFilterCancelled(t *testing.T) {
	p := NewPipeline(config.Default(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := p.Filter(ctx, rowsOf([][]string{scheduleRow("", "RORO", "Mundra", "MV")}, nil), time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipelineRunRejectsGarbage(t *testing.T) {
	m := metrics.NewRegistry()
	p := NewPipeline(config.Default(), m)

	_, _, err := p.Run(context.Background(), []byte("definitely not a pdf"))
	assert.ErrorIs(t, err, ErrParse)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Extractions.WithLabelValues("error")))
}

func TestNewPipelineOptions(t *testing.T) {
	cfg := config.Default()
	lenient := false
	cfg.Extract.StrictHeader = &lenient
	cfg.Extract.HeaderRows = 3
	cfg.Extract.MinColumns = 12

	p := NewPipeline(cfg, nil)
	assert.False(t, p.opts.StrictHeader)
	assert.Equal(t, 3, p.opts.HeaderRows)
	assert.Equal(t, 12, p.opts.MinColumns)
}

func TestPipelineRunDocument(t *testing.T) {
	for _, ruling := range []pdftest.Ruling{pdftest.Rects, pdftest.Paths, pdftest.None} {
		first := pdftest.ScheduleTable(ruling, 16, append(pdftest.ScheduleHeader(),
			pdftest.ScheduleRow("01/05-1200", "RORO", "mundra", "ALPHA"),
			pdftest.ScheduleRow("02/05-0800", "BULK", "Mundra", "BETA"),
		))
		second := pdftest.ScheduleTable(ruling, 16, [][]string{
			pdftest.ScheduleRow("03/05-1800", "RORO", "Pipavav", "GAMMA"),
		})
		second.Scale = 0.5
		data := pdftest.New().AddPage(first.Content()).AddPage(second.Content()).Bytes()

		m := metrics.NewRegistry()
		records, stats, err := NewPipeline(config.Default(), m).Run(context.Background(), data)
		require.NoError(t, err)
		require.Len(t, records, 2)

		assert.Equal(t, "ALPHA", records[0].VesselName)
		assert.Equal(t, "Mundra", records[0].LastPort)
		assert.Equal(t, "GAMMA", records[1].VesselName)
		assert.Equal(t, "BERTH3", records[1].Remarks)
		assert.Equal(t, Stats{Rows: 3, Accepted: 2, RejectedCategory: 1}, stats)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Extractions.WithLabelValues("ok")))
	}
}
