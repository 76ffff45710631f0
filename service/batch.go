package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/berthwatch/backend/model"
	"github.com/berthwatch/backend/pkg/logger"
	"github.com/berthwatch/backend/pkg/metrics"
	"github.com/berthwatch/backend/repository"
	"github.com/google/uuid"
)

// BatchService versions extraction runs as immutable batches
type BatchService struct {
	repo    repository.VesselRepository
	metrics *metrics.Registry
	now     func() time.Time
}

func NewBatchService(repo repository.VesselRepository, m *metrics.Registry) *BatchService {
	return &BatchService{repo: repo, metrics: m, now: time.Now}
}

// Append stores records as one new batch. The records are stamped with
// the fresh batch id in place.
func (s *BatchService) Append(ctx context.Context, source string, records []model.VesselRecord) (*model.Batch, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}

	batch := &model.Batch{
		BatchID:   uuid.New().String(),
		Source:    source,
		Records:   records,
		CreatedAt: s.now(),
	}
	for i := range batch.Records {
		batch.Records[i].BatchID = batch.BatchID
	}

	ctx = logger.WithBatchID(ctx, batch.BatchID)
	if err := s.repo.InsertBatch(ctx, batch); err != nil {
		logger.Error(ctx, "failed to store batch", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.metrics.ObserveBatch(len(batch.Records))
	logger.Info(ctx, "batch stored", "records", len(batch.Records), "source", source)
	return batch, nil
}

// Latest returns the most recent complete batch
func (s *BatchService) Latest(ctx context.Context) (*model.Batch, error) {
	batch, err := s.repo.LatestBatch(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return batch, nil
}
