// Package repository persists vessel batches and delivery orders.
//
// Every backend makes a batch visible all at once: a reader of
// LatestBatch sees either every record of a batch or none of them.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/berthwatch/backend/config"
	"github.com/berthwatch/backend/model"
)

// ErrNotFound is returned when a query has nothing to return
var ErrNotFound = errors.New("not found")

// VesselRepository stores vessel record batches
type VesselRepository interface {
	// InsertBatch persists every record of batch as one unit and fills in
	// the record ids.
	InsertBatch(ctx context.Context, batch *model.Batch) error
	// LatestBatch returns the most recent complete batch with its records
	// ordered by timestamp, then position.
	LatestBatch(ctx context.Context) (*model.Batch, error)
}

// OrderRepository stores delivery orders
type OrderRepository interface {
	InsertOrder(ctx context.Context, order *model.OrderRecord) error
	ListOrders(ctx context.Context) ([]model.OrderRecord, error)
}

// Store is a storage backend opened once at startup
type Store interface {
	VesselRepository
	OrderRepository
	Close(ctx context.Context) error
}

// Open connects the backend selected by cfg.Store.Driver
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return NewMemoryStore(cfg.Store.KeepBatches), nil
	case config.DriverMongo:
		return OpenMongo(ctx, &cfg.Mongo)
	case config.DriverPostgres:
		return OpenPostgres(ctx, &cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
