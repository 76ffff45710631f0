package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/berthwatch/backend/model"
	"github.com/berthwatch/backend/pkg/metrics"
	"github.com/berthwatch/backend/repository"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingRepo struct{}

func (failingRepo) InsertBatch(context.Context, *model.Batch) error {
	return errors.New("connection reset")
}

func (failingRepo) LatestBatch(context.Context) (*model.Batch, error) {
	return nil, errors.New("connection reset")
}

func records(names ...string) []model.VesselRecord {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out := make([]model.VesselRecord, len(names))
	for i, n := range names {
		out[i] = model.VesselRecord{VesselName: n, LastPort: "Mundra", Position: i, Timestamp: now}
	}
	return out
}

func TestBatchServiceAppend(t *testing.T) {
	m := metrics.NewRegistry()
	svc := NewBatchService(repository.NewMemoryStore(0), m)
	ctx := context.Background()

	batch, err := svc.Append(ctx, "CQYB.pdf", records("MV ONE", "MV TWO"))
	require.NoError(t, err)

	_, err = uuid.Parse(batch.BatchID)
	assert.NoError(t, err, "batch id is a UUID")
	assert.Equal(t, "CQYB.pdf", batch.Source)
	for _, r := range batch.Records {
		assert.Equal(t, batch.BatchID, r.BatchID)
		assert.NotEmpty(t, r.ID)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesStored))

	latest, err := svc.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, batch.BatchID, latest.BatchID)
	assert.Len(t, latest.Records, 2)
}

func TestBatchServiceFreshIDs(t *testing.T) {
	svc := NewBatchService(repository.NewMemoryStore(0), nil)
	ctx := context.Background()

	first, err := svc.Append(ctx, "", records("A"))
	require.NoError(t, err)
	second, err := svc.Append(ctx, "", records("A"))
	require.NoError(t, err)
	assert.NotEqual(t, first.BatchID, second.BatchID)
}

func TestBatchServiceEmpty(t *testing.T) {
	store := repository.NewMemoryStore(0)
	svc := NewBatchService(store, nil)

	_, err := svc.Append(context.Background(), "", nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)
	assert.Equal(t, 0, store.Count())

	_, err = svc.Latest(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBatchServicePersistenceFailure(t *testing.T) {
	svc := NewBatchService(failingRepo{}, nil)

	_, err := svc.Append(context.Background(), "", records("A"))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "connection reset")

	_, err = svc.Latest(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrNotFound)
}
