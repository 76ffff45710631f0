package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/berthwatch/backend/config"
	"github.com/berthwatch/backend/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	vesselCollection = "vessel_records"
	batchCollection  = "batches"
	orderCollection  = "orders"
)

// MongoStore keeps records in MongoDB. Records of a batch are written with
// a single InsertMany and only become visible once the batch marker
// document is written after them.
type MongoStore struct {
	client  *mongo.Client
	vessels *mongo.Collection
	batches *mongo.Collection
	orders  *mongo.Collection
}

type vesselDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	BatchID    string             `bson:"batch_id"`
	VesselName string             `bson:"vessel_name"`
	ETA        string             `bson:"eta"`
	LastPort   string             `bson:"last_port"`
	NextPort   string             `bson:"next_port"`
	Discharge  string             `bson:"discharge"`
	Loading    string             `bson:"loading"`
	Remarks    string             `bson:"remarks"`
	Position   int                `bson:"position"`
	Timestamp  time.Time          `bson:"timestamp"`
}

type batchDoc struct {
	BatchID         string    `bson:"_id"`
	Source          string    `bson:"source,omitempty"`
	Count           int       `bson:"count"`
	LatestTimestamp time.Time `bson:"latest_timestamp"`
	CreatedAt       time.Time `bson:"created_at"`
}

type orderDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	WhatsAppNumber string             `bson:"whatsapp_number"`
	OrderDate      time.Time          `bson:"order_date"`
	CalledDate     time.Time          `bson:"called_date"`
	Colour         string             `bson:"colour"`
	Timestamp      time.Time          `bson:"timestamp"`
}

// OpenMongo connects to MongoDB and ensures the indexes exist
func OpenMongo(ctx context.Context, cfg *config.MongoConfig) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:  client,
		vessels: db.Collection(vesselCollection),
		batches: db.Collection(batchCollection),
		orders:  db.Collection(orderCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	slog.Info("mongo store initialized", "database", cfg.Database)
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.vessels.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "batch_id", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "position", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create record index: %w", err)
	}
	_, err = s.batches.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "latest_timestamp", Value: -1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create batch index: %w", err)
	}
	return nil
}

func (s *MongoStore) InsertBatch(ctx context.Context, batch *model.Batch) error {
	docs := make([]interface{}, len(batch.Records))
	for i := range batch.Records {
		docs[i] = toVesselDoc(batch.Records[i])
	}

	res, err := s.vessels.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err != nil {
		s.discard(batch.BatchID)
		return fmt.Errorf("failed to insert records: %w", err)
	}

	if _, err := s.batches.InsertOne(ctx, newBatchDoc(batch)); err != nil {
		s.discard(batch.BatchID)
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	for i, id := range res.InsertedIDs {
		if oid, ok := id.(primitive.ObjectID); ok && i < len(batch.Records) {
			batch.Records[i].ID = oid.Hex()
		}
	}
	return nil
}

// discard removes the records of an uncommitted batch
func (s *MongoStore) discard(batchID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.vessels.DeleteMany(ctx, bson.M{"batch_id": batchID}); err != nil {
		slog.Warn("failed to discard partial batch", "batch_id", batchID, "error", err)
	}
}

func (s *MongoStore) LatestBatch(ctx context.Context) (*model.Batch, error) {
	var marker batchDoc
	err := s.batches.FindOne(ctx, bson.M{},
		options.FindOne().SetSort(bson.D{{Key: "latest_timestamp", Value: -1}, {Key: "created_at", Value: -1}}),
	).Decode(&marker)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest batch: %w", err)
	}

	cur, err := s.vessels.Find(ctx, bson.M{"batch_id": marker.BatchID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "position", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	var docs []vesselDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	batch := &model.Batch{
		BatchID:   marker.BatchID,
		Source:    marker.Source,
		CreatedAt: marker.CreatedAt,
		Records:   make([]model.VesselRecord, len(docs)),
	}
	for i, d := range docs {
		batch.Records[i] = fromVesselDoc(d)
	}
	return batch, nil
}

func (s *MongoStore) InsertOrder(ctx context.Context, order *model.OrderRecord) error {
	res, err := s.orders.InsertOne(ctx, toOrderDoc(*order))
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = oid.Hex()
	}
	return nil
}

func (s *MongoStore) ListOrders(ctx context.Context) ([]model.OrderRecord, error) {
	cur, err := s.orders.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}

	orders := make([]model.OrderRecord, len(docs))
	for i, d := range docs {
		orders[i] = fromOrderDoc(d)
	}
	return orders, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func newBatchDoc(batch *model.Batch) batchDoc {
	doc := batchDoc{
		BatchID:   batch.BatchID,
		Source:    batch.Source,
		Count:     len(batch.Records),
		CreatedAt: batch.CreatedAt,
	}
	for _, r := range batch.Records {
		if r.Timestamp.After(doc.LatestTimestamp) {
			doc.LatestTimestamp = r.Timestamp
		}
	}
	return doc
}

func toVesselDoc(r model.VesselRecord) vesselDoc {
	return vesselDoc{
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

func fromVesselDoc(d vesselDoc) model.VesselRecord {
	return model.VesselRecord{
		ID:         d.ID.Hex(),
		BatchID:    d.BatchID,
		VesselName: d.VesselName,
		ETA:        d.ETA,
		LastPort:   d.LastPort,
		NextPort:   d.NextPort,
		Discharge:  d.Discharge,
		Loading:    d.Loading,
		Remarks:    d.Remarks,
		Position:   d.Position,
		Timestamp:  d.Timestamp,
	}
}

func toOrderDoc(o model.OrderRecord) orderDoc {
	return orderDoc{
		WhatsAppNumber: o.WhatsAppNumber,
		OrderDate:      o.OrderDate,
		CalledDate:     o.CalledDate,
		Colour:         o.Colour,
		Timestamp:      o.Timestamp,
	}
}

func fromOrderDoc(d orderDoc) model.OrderRecord {
	return model.OrderRecord{
		ID:             d.ID.Hex(),
		WhatsAppNumber: d.WhatsAppNumber,
		OrderDate:      d.OrderDate,
		CalledDate:     d.CalledDate,
		Colour:         d.Colour,
		Timestamp:      d.Timestamp,
	}
}
