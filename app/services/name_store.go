package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/paranames/app/models"
)

// LanguageCount is the number of documents of one language
type LanguageCount struct {
	Language string `bson:"_id" json:"language"`
	Count    int64  `bson:"count" json:"count"`
}

// MongoNameStore reads input rows from and writes tagged results to MongoDB
type MongoNameStore struct {
	names   *mongo.Collection
	results *mongo.Collection
	logger  *zap.Logger
}

// NewMongoNameStore uses the given collections of db and creates the
// result index
func NewMongoNameStore(db *mongo.Database, namesCollection, resultsCollection string, logger *zap.Logger) *MongoNameStore {
	if namesCollection == "" {
		namesCollection = "names"
	}
	if resultsCollection == "" {
		resultsCollection = "name_results"
	}
	s := &MongoNameStore{
		names:   db.Collection(namesCollection),
		results: db.Collection(resultsCollection),
		logger:  logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				bson.E{Key: "run_id", Value: 1},
				bson.E{Key: "language", Value: 1},
				bson.E{Key: "wikidata_id", Value: 1},
				bson.E{Key: "alias", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{bson.E{Key: "anomalous", Value: 1}},
		},
	}
	if _, err := s.results.Indexes().CreateMany(ctx, indexModels); err != nil {
		logger.Warn("Could not create indexes for results", zap.Error(err))
	}
	return s
}

// FindRows loads the rows of the given languages, all rows when none given
func (s *MongoNameStore) FindRows(ctx context.Context, languages []string) ([]models.NameRow, error) {
	filter := bson.M{}
	if len(languages) > 0 {
		filter["language"] = bson.M{"$in": languages}
	}

	cursor, err := s.names.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query names: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.NameRow
	for cursor.Next(ctx) {
		var row models.NameRow
		if err := cursor.Decode(&row); err != nil {
			s.logger.Warn("Skipping undecodable name document", zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	if err := cursor.Err(); err != nil {
		return rows, fmt.Errorf("iterate names: %w", err)
	}
	return rows, nil
}

// SaveResults upserts results keyed by run, language, entity and alias
func (s *MongoNameStore) SaveResults(ctx context.Context, results []models.NameResult) (int64, error) {
	if len(results) == 0 {
		return 0, nil
	}
	writes := make([]mongo.WriteModel, 0, len(results))
	for _, r := range results {
		filter := bson.M{
			"run_id":      r.RunID,
			"language":    r.Language,
			"wikidata_id": r.WikidataID,
			"alias":       r.Alias,
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(filter).
			SetReplacement(r).
			SetUpsert(true))
	}

	res, err := s.results.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("save results: %w", err)
	}
	written := res.UpsertedCount + res.ModifiedCount
	s.logger.Debug("Saved results",
		zap.Int("results", len(results)),
		zap.Int64("written", written))
	return written, nil
}

// CountByLanguage groups the name documents by language, largest first
func (s *MongoNameStore) CountByLanguage(ctx context.Context) ([]LanguageCount, error) {
	pipeline := mongo.Pipeline{
		bson.D{bson.E{Key: "$group", Value: bson.D{
			bson.E{Key: "_id", Value: "$language"},
			bson.E{Key: "count", Value: bson.D{bson.E{Key: "$sum", Value: 1}}},
		}}},
		bson.D{bson.E{Key: "$sort", Value: bson.D{
			bson.E{Key: "count", Value: -1},
			bson.E{Key: "_id", Value: 1},
		}}},
	}

	cursor, err := s.names.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate language counts: %w", err)
	}
	var counts []LanguageCount
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("decode language counts: %w", err)
	}
	return counts, nil
}

// NewNameResult converts a tagged name for storage
func NewNameResult(n *models.TransliteratedName, runID string, now time.Time) models.NameResult {
	return models.NameResult{
		WikidataID:      n.EntityID,
		Language:        n.Language,
		Type:            n.EntityType,
		Alias:           n.Text,
		OriginalText:    n.OriginalText,
		IsUnchanged:     n.IsUnchanged,
		MostCommonBlock: n.MostCommonBlock(),
		Anomalous:       n.Anomalous.String(),
		CrossingLinks:   n.Alignment().CrossingLinks(),
		RunID:           runID,
		UpdatedAt:       now,
	}
}
