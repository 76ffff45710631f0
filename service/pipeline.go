package service

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/berthwatch/backend/config"
	"github.com/berthwatch/backend/model"
	"github.com/berthwatch/backend/pkg/logger"
	"github.com/berthwatch/backend/pkg/metrics"
	"github.com/berthwatch/backend/pkg/pdftable"
)

// Stats counts how the rows of one extraction run were classified
type Stats struct {
	Rows             int `json:"rows"`
	Accepted         int `json:"accepted"`
	Malformed        int `json:"malformed"`
	RejectedCategory int `json:"rejected_category"`
	RejectedPort     int `json:"rejected_port"`
	RejectedETA      int `json:"rejected_eta"`
}

func (s *Stats) add(v Verdict) {
	s.Rows++
	switch v {
	case Accepted:
		s.Accepted++
	case Malformed:
		s.Malformed++
	case RejectedCategory:
		s.RejectedCategory++
	case RejectedPort:
		s.RejectedPort++
	case RejectedETA:
		s.RejectedETA++
	}
}

// Pipeline runs table extraction and row normalization over one document
type Pipeline struct {
	opts       pdftable.Options
	normalizer *Normalizer
	metrics    *metrics.Registry
	now        func() time.Time
}

func NewPipeline(cfg *config.Config, m *metrics.Registry) *Pipeline {
	opts := pdftable.DefaultOptions()
	opts.HeaderRows = cfg.Extract.HeaderRows
	opts.MinColumns = cfg.Extract.MinColumns
	if cfg.Extract.StrictHeader != nil {
		opts.StrictHeader = *cfg.Extract.StrictHeader
	}

	return &Pipeline{
		opts:       opts,
		normalizer: NewNormalizer(&cfg.Filter),
		metrics:    m,
		now:        time.Now,
	}
}

// Run extracts the accepted records of a PDF. All records share one run
// instant as their timestamp and are numbered in acceptance order.
func (p *Pipeline) Run(ctx context.Context, data []byte) ([]model.VesselRecord, Stats, error) {
	start := time.Now()

	doc, err := pdftable.Open(data, p.opts)
	if err != nil {
		p.metrics.ObserveExtraction("error", time.Since(start))
		return nil, Stats{}, err
	}

	records, stats, err := p.Filter(ctx, doc.Rows(), p.now())
	if err != nil {
		p.metrics.ObserveExtraction("error", time.Since(start))
		return nil, stats, err
	}

	if stats.Rows == 0 {
		logger.Warn(ctx, "no table rows found in document", "pages", doc.NumPages())
	}

	p.metrics.ObserveExtraction("ok", time.Since(start))
	p.metrics.ObserveRows(metrics.RowAccepted, stats.Accepted)
	p.metrics.ObserveRows(metrics.RowMalformed, stats.Malformed)
	p.metrics.ObserveRows(metrics.RowRejectedCategory, stats.RejectedCategory)
	p.metrics.ObserveRows(metrics.RowRejectedPort, stats.RejectedPort)
	p.metrics.ObserveRows(metrics.RowRejectedETA, stats.RejectedETA)

	logger.Info(ctx, "extraction finished",
		"pages", doc.NumPages(),
		"rows", stats.Rows,
		"accepted", stats.Accepted,
		"malformed", stats.Malformed,
		"rejected_category", stats.RejectedCategory,
		"rejected_port", stats.RejectedPort,
		"rejected_eta", stats.RejectedETA,
		"duration", time.Since(start),
	)
	return records, stats, nil
}

// Filter normalizes a row sequence. Extraction errors stop the run.
func (p *Pipeline) Filter(ctx context.Context, rows iter.Seq2[pdftable.Row, error], now time.Time) ([]model.VesselRecord, Stats, error) {
	var (
		records []model.VesselRecord
		stats   Stats
	)
	for row, err := range rows {
		if err != nil {
			return nil, stats, err
		}
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("extraction cancelled: %w", err)
		}

		rec, verdict := p.normalizer.Classify(row.Cells, now)
		stats.add(verdict)
		if verdict == Malformed {
			logger.Debug(ctx, "skipping malformed row",
				"page", row.Page, "table", row.Table, "row", row.Index, "cells", len(row.Cells))
		}
		if verdict != Accepted {
			continue
		}

		rec.Position = len(records)
		records = append(records, rec)
	}
	return records, stats, nil
}
