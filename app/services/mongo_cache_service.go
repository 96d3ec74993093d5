package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// romanizationEntry is one cached romanization
type romanizationEntry struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoCacheService stores romanizations in a MongoDB collection
type MongoCacheService struct {
	collection *mongo.Collection
	logger     *zap.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMongoCacheService uses the romanization_cache collection of db
func NewMongoCacheService(db *mongo.Database, logger *zap.Logger) (*MongoCacheService, error) {
	collection := db.Collection("romanization_cache")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{bson.E{Key: "created_at", Value: 1}},
	})
	if err != nil {
		logger.Warn("Could not create romanization_cache index", zap.Error(err))
	}

	return &MongoCacheService{collection: collection, logger: logger}, nil
}

// GetMany looks all keys up with one $in query
func (mcs *MongoCacheService) GetMany(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	cursor, err := mcs.collection.Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, fmt.Errorf("query romanization cache: %w", err)
	}
	var entries []romanizationEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode romanization cache: %w", err)
	}
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	mcs.hits.Add(int64(len(out)))
	mcs.misses.Add(int64(len(keys) - len(out)))
	return out, nil
}

// SetMany upserts all entries in one unordered bulk write
func (mcs *MongoCacheService) SetMany(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now()
	writes := make([]mongo.WriteModel, 0, len(entries))
	for k, v := range entries {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": k}).
			SetReplacement(romanizationEntry{Key: k, Value: v, CreatedAt: now}).
			SetUpsert(true))
	}

	_, err := mcs.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		mcs.logger.Error("Romanization cache bulk write failed", zap.Error(err), zap.Int("entries", len(entries)))
		return fmt.Errorf("store romanizations: %w", err)
	}
	return nil
}

// GetStats counts stored entries
func (mcs *MongoCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	items, err := mcs.collection.EstimatedDocumentCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("count romanization cache: %w", err)
	}
	return newCacheStats(mcs.hits.Load(), mcs.misses.Load(), items), nil
}

// Close is a no-op; the client is owned by the caller
func (mcs *MongoCacheService) Close() error {
	return nil
}
