package services

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/paranames/app/config"
	"github.com/paranames/app/models"
	"github.com/paranames/internal/input"
)

// LoadRows reads the input rows from the configured source, keeping only
// the configured languages
func LoadRows(ctx context.Context, cfg *config.PipelineCfg, store *MongoNameStore, logger *zap.Logger) ([]models.NameRow, error) {
	if cfg.Input.Source == "mongo" {
		if store == nil {
			return nil, errors.New("mongo input needs a document store")
		}
		rows, err := store.FindRows(ctx, cfg.Input.Languages)
		if err != nil {
			return nil, err
		}
		logger.Info("Loaded rows from document store", zap.Int("rows", len(rows)))
		return rows, nil
	}

	format := cfg.Input.Format
	if format == "" {
		format = input.FormatFromPath(cfg.Input.Path)
	}
	reader, err := input.NewReader(format, cfg.Input.Columns)
	if err != nil {
		return nil, err
	}
	rows, stats, err := reader.ReadFile(cfg.Input.Path)
	if err != nil {
		return nil, err
	}

	logger.Info("Read input",
		zap.String("path", cfg.Input.Path),
		zap.String("format", format),
		zap.Int("decoded", stats.Decoded),
		zap.Int("skipped", stats.Skipped))
	reasons := make([]string, 0, len(stats.Reasons))
	for r := range stats.Reasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		logger.Warn("Skipped malformed rows", zap.String("reason", r), zap.Int("rows", stats.Reasons[r]))
	}

	return FilterLanguages(rows, cfg.Input.Languages), nil
}

// FilterLanguages keeps the rows of the given languages, all rows when none
// are given
func FilterLanguages(rows []models.NameRow, languages []string) []models.NameRow {
	if len(languages) == 0 {
		return rows
	}
	keep := make(map[string]bool, len(languages))
	for _, l := range languages {
		keep[l] = true
	}
	out := make([]models.NameRow, 0, len(rows))
	for _, r := range rows {
		if keep[r.Language] {
			out = append(out, r)
		}
	}
	return out
}
