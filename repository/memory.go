package repository

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/berthwatch/backend/model"
	"github.com/google/uuid"
)

// MemoryStore keeps batches and orders in process memory.
// It backs tests and single-node deployments without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	batches     []*storedBatch // commit order
	orders      []model.OrderRecord
	keepBatches int // Maximum batches to keep, 0 = unlimited
}

type storedBatch struct {
	batch  model.Batch
	latest int64 // max record timestamp, unix nanos
}

// NewMemoryStore creates an empty store keeping at most keepBatches batches
func NewMemoryStore(keepBatches int) *MemoryStore {
	if keepBatches < 0 {
		keepBatches = 0
	}
	slog.Info("memory store initialized", "keep_batches", keepBatches)
	return &MemoryStore{keepBatches: keepBatches}
}

func (s *MemoryStore) InsertBatch(_ context.Context, batch *model.Batch) error {
	stored := &storedBatch{batch: *batch}
	stored.batch.Records = make([]model.VesselRecord, len(batch.Records))
	for i := range batch.Records {
		batch.Records[i].ID = uuid.New().String()
		stored.batch.Records[i] = batch.Records[i]
		if ts := batch.Records[i].Timestamp.UnixNano(); i == 0 || ts > stored.latest {
			stored.latest = ts
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = append(s.batches, stored)
	s.cleanupIfNeeded()
	return nil
}

func (s *MemoryStore) LatestBatch(_ context.Context) (*model.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *storedBatch
	for _, b := range s.batches {
		if len(b.batch.Records) == 0 {
			continue
		}
		// later commits win ties
		if latest == nil || b.latest >= latest.latest {
			latest = b
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}

	out := latest.batch
	out.Records = append([]model.VesselRecord(nil), latest.batch.Records...)
	SortRecords(out.Records)
	return &out, nil
}

func (s *MemoryStore) InsertOrder(_ context.Context, order *model.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order.ID = uuid.New().String()
	s.orders = append(s.orders, *order)
	return nil
}

func (s *MemoryStore) ListOrders(_ context.Context) ([]model.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.OrderRecord(nil), s.orders...), nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}

// Count returns the number of batches in the store
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.batches)
}

// cleanupIfNeeded removes the oldest batches if the store exceeds keepBatches
// Must be called with lock held
func (s *MemoryStore) cleanupIfNeeded() {
	if s.keepBatches <= 0 || len(s.batches) <= s.keepBatches {
		return
	}

	removeCount := len(s.batches) - s.keepBatches
	for _, b := range s.batches[:removeCount] {
		slog.Info("auto-cleaning old batch",
			"batch_id", b.batch.BatchID,
			"created_at", b.batch.CreatedAt,
		)
	}
	s.batches = append([]*storedBatch(nil), s.batches[removeCount:]...)
}

// SortRecords orders records by timestamp, then by position
func SortRecords(records []model.VesselRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.Before(records[j].Timestamp)
		}
		return records[i].Position < records[j].Position
	})
}
