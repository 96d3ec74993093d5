// Package search pushes filtered names to a Meilisearch index for manual review.
package search

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	ms "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"

	"github.com/paranames/app/models"
)

// DefaultBatchSize is the number of documents sent per request
const DefaultBatchSize = 1000

// documentNamespace scopes the deterministic document ids
var documentNamespace = uuid.MustParse("6f1c9a52-3b8e-4d57-9a0e-2c7b51f0d4a1")

// ReviewConfig configures the review index
type ReviewConfig struct {
	Host      string `mapstructure:"host" yaml:"host"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	IndexName string `mapstructure:"index" yaml:"index"`
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"`
}

// ReviewDocument is one name as stored in the index
type ReviewDocument struct {
	ID              string `json:"id"`
	WikidataID      string `json:"wikidata_id"`
	Language        string `json:"language"`
	Type            string `json:"type,omitempty"`
	Alias           string `json:"alias"`
	OriginalText    string `json:"original_text"`
	MostCommonBlock string `json:"most_common_unicode_block"`
	Anomalous       string `json:"anomalous"`
	RunID           string `json:"run_id"`
}

// DocumentID is stable for a run, entity, language and alias
func DocumentID(runID string, n *models.TransliteratedName) string {
	key := runID + "\x00" + n.EntityID + "\x00" + n.Language + "\x00" + n.Text
	return uuid.NewSHA1(documentNamespace, []byte(key)).String()
}

// NewReviewDocument converts a tagged name
func NewReviewDocument(runID string, n *models.TransliteratedName) ReviewDocument {
	return ReviewDocument{
		ID:              DocumentID(runID, n),
		WikidataID:      n.EntityID,
		Language:        n.Language,
		Type:            n.EntityType,
		Alias:           n.Text,
		OriginalText:    n.OriginalText,
		MostCommonBlock: n.MostCommonBlock(),
		Anomalous:       n.Anomalous.String(),
		RunID:           runID,
	}
}

// ReviewIndex writes names to one Meilisearch index
type ReviewIndex struct {
	cli       ms.ServiceManager
	indexName string
	batchSize int
	logger    *zap.Logger
}

// NewReviewIndex connects and checks the server health
func NewReviewIndex(cfg ReviewConfig, logger *zap.Logger) (*ReviewIndex, error) {
	if cfg.IndexName == "" {
		cfg.IndexName = "name_review"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	client := ms.New(cfg.Host, ms.WithAPIKey(cfg.APIKey))
	if _, err := client.Health(); err != nil {
		return nil, fmt.Errorf("connect meilisearch: %w", err)
	}
	return &ReviewIndex{
		cli:       client,
		indexName: cfg.IndexName,
		batchSize: cfg.BatchSize,
		logger:    logger,
	}, nil
}

// Configure sets the searchable and filterable attributes
func (r *ReviewIndex) Configure() error {
	task, err := r.cli.Index(r.indexName).UpdateSettings(&ms.Settings{
		SearchableAttributes: []string{"alias", "original_text", "wikidata_id"},
		FilterableAttributes: []string{"language", "run_id", "anomalous", "most_common_unicode_block", "type"},
		SortableAttributes:   []string{"alias"},
	})
	if err != nil {
		return fmt.Errorf("configure review index: %w", err)
	}
	r.logger.Info("Configured review index",
		zap.String("index", r.indexName),
		zap.Int64("task_uid", task.TaskUID))
	return nil
}

// Push adds the names in batches and returns the number sent
func (r *ReviewIndex) Push(ctx context.Context, runID string, names []*models.TransliteratedName) (int, error) {
	index := r.cli.Index(r.indexName)
	sent := 0
	for i := 0; i < len(names); i += r.batchSize {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		end := i + r.batchSize
		if end > len(names) {
			end = len(names)
		}

		batch := make([]ReviewDocument, 0, end-i)
		for _, n := range names[i:end] {
			batch = append(batch, NewReviewDocument(runID, n))
		}
		task, err := index.AddDocuments(batch, "id")
		if err != nil {
			return sent, fmt.Errorf("add documents %d-%d: %w", i, end, err)
		}
		sent += len(batch)
		r.logger.Debug("Pushed review batch",
			zap.Int("from", i),
			zap.Int("to", end),
			zap.Int64("task_uid", task.TaskUID))
	}
	return sent, nil
}

// Count returns the estimated number of documents of a language in a run
func (r *ReviewIndex) Count(language, runID string) (int64, error) {
	res, err := r.cli.Index(r.indexName).Search("", &ms.SearchRequest{
		Limit:  1,
		Filter: Filter(language, runID),
	})
	if err != nil {
		return 0, fmt.Errorf("count review documents: %w", err)
	}
	return res.EstimatedTotalHits, nil
}

// Filter builds the filter expression for a language and run; empty
// arguments are left out.
func Filter(language, runID string) string {
	switch {
	case language != "" && runID != "":
		return fmt.Sprintf("language = %q AND run_id = %q", language, runID)
	case language != "":
		return fmt.Sprintf("language = %q", language)
	case runID != "":
		return fmt.Sprintf("run_id = %q", runID)
	}
	return ""
}
