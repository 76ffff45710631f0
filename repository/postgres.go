package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/berthwatch/backend/config"
	"github.com/berthwatch/backend/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresStore keeps records in PostgreSQL. A batch row and all of its
// record rows are created in one transaction.
type PostgresStore struct {
	db *gorm.DB
}

type vesselRow struct {
	ID         uint      `gorm:"column:id;primaryKey"`
	BatchID    string    `gorm:"column:batch_id;type:varchar(36);index:idx_vessel_batch_order,priority:1"`
	VesselName string    `gorm:"column:vessel_name;type:text"`
	ETA        string    `gorm:"column:eta;type:text"`
	LastPort   string    `gorm:"column:last_port;type:varchar(64)"`
	NextPort   string    `gorm:"column:next_port;type:text"`
	Discharge  string    `gorm:"column:discharge;type:text"`
	Loading    string    `gorm:"column:loading;type:text"`
	Remarks    string    `gorm:"column:remarks;type:text"`
	Position   int       `gorm:"column:position;index:idx_vessel_batch_order,priority:3"`
	Timestamp  time.Time `gorm:"column:timestamp;index:idx_vessel_batch_order,priority:2"`
}

func (vesselRow) TableName() string { return "vessel_records" }

type batchRow struct {
	BatchID         string    `gorm:"column:batch_id;primaryKey;type:varchar(36)"`
	Source          string    `gorm:"column:source;type:text"`
	RecordCount     int       `gorm:"column:record_count"`
	LatestTimestamp time.Time `gorm:"column:latest_timestamp;index"`
	CreatedAt       time.Time `gorm:"column:created_at"`
}

func (batchRow) TableName() string { return "batches" }

type orderRow struct {
	ID             uint      `gorm:"column:id;primaryKey"`
	WhatsAppNumber string    `gorm:"column:whatsapp_number;type:varchar(32)"`
	OrderDate      time.Time `gorm:"column:order_date;type:date"`
	CalledDate     time.Time `gorm:"column:called_date;type:date"`
	Colour         string    `gorm:"column:colour;type:varchar(64);index"`
	Timestamp      time.Time `gorm:"column:timestamp"`
}

func (orderRow) TableName() string { return "orders" }

// OpenPostgres connects to PostgreSQL and migrates the schema
func OpenPostgres(ctx context.Context, cfg *config.PostgresConfig) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&batchRow{}, &vesselRow{}, &orderRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	slog.Info("postgres store initialized")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) InsertBatch(ctx context.Context, batch *model.Batch) error {
	rows := make([]vesselRow, len(batch.Records))
	for i, r := range batch.Records {
		rows[i] = toVesselRow(r)
	}
	marker := batchRow{
		BatchID:     batch.BatchID,
		Source:      batch.Source,
		RecordCount: len(rows),
		CreatedAt:   batch.CreatedAt,
	}
	for _, r := range rows {
		if r.Timestamp.After(marker.LatestTimestamp) {
			marker.LatestTimestamp = r.Timestamp
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&marker).Error; err != nil {
			return err
		}
		return tx.CreateInBatches(&rows, 500).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	for i := range rows {
		batch.Records[i].ID = strconv.FormatUint(uint64(rows[i].ID), 10)
	}
	return nil
}

func (s *PostgresStore) LatestBatch(ctx context.Context) (*model.Batch, error) {
	db := s.db.WithContext(ctx)

	var marker batchRow
	err := db.Order("latest_timestamp DESC").Order("created_at DESC").First(&marker).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest batch: %w", err)
	}

	var rows []vesselRow
	if err := db.Where("batch_id = ?", marker.BatchID).
		Order("timestamp ASC").Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}

	batch := &model.Batch{
		BatchID:   marker.BatchID,
		Source:    marker.Source,
		CreatedAt: marker.CreatedAt,
		Records:   make([]model.VesselRecord, len(rows)),
	}
	for i, r := range rows {
		batch.Records[i] = fromVesselRow(r)
	}
	return batch, nil
}

func (s *PostgresStore) InsertOrder(ctx context.Context, order *model.OrderRecord) error {
	row := orderRow{
		WhatsAppNumber: order.WhatsAppNumber,
		OrderDate:      order.OrderDate,
		CalledDate:     order.CalledDate,
		Colour:         order.Colour,
		Timestamp:      order.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	order.ID = strconv.FormatUint(uint64(row.ID), 10)
	return nil
}

func (s *PostgresStore) ListOrders(ctx context.Context) ([]model.OrderRecord, error) {
	var rows []orderRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}

	orders := make([]model.OrderRecord, len(rows))
	for i, r := range rows {
		orders[i] = model.OrderRecord{
			ID:             strconv.FormatUint(uint64(r.ID), 10),
			WhatsAppNumber: r.WhatsAppNumber,
			OrderDate:      r.OrderDate,
			CalledDate:     r.CalledDate,
			Colour:         r.Colour,
			Timestamp:      r.Timestamp,
		}
	}
	return orders, nil
}

func (s *PostgresStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toVesselRow(r model.VesselRecord) vesselRow {
	return vesselRow{
		BatchID:    r.BatchID,
		VesselName: r.VesselName,
		ETA:        r.ETA,
		LastPort:   r.LastPort,
		NextPort:   r.NextPort,
		Discharge:  r.Discharge,
		Loading:    r.Loading,
		Remarks:    r.Remarks,
		Position:   r.Position,
		Timestamp:  r.Timestamp,
	}
}

func fromVesselRow(r vesselRow) model.VesselRecord {
	return model.VesselRecord{
		ID:         strconv.FormatUint(uint64(r.ID), 10),
		BatchID:    r.BatchID,
		VesselName: r.VesselName,
		ETA:        r.ETA,
		LastPort:   r.LastPort,
		NextPort:   r.NextPort,
		Discharge:  r.Discharge,
		Loading:    r.Loading,
		Remarks:    r.Remarks,
		Position:   r.Position,
		Timestamp:  r.Timestamp,
	}
}
