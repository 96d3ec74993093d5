package services

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// CacheStats summarizes cache usage
type CacheStats struct {
	HitRate    float64 `json:"hit_rate"`
	TotalHits  int64   `json:"total_hits"`
	TotalMiss  int64   `json:"total_miss"`
	TotalItems int64   `json:"total_items"`
}

func newCacheStats(hits, misses, items int64) *CacheStats {
	s := &CacheStats{TotalHits: hits, TotalMiss: misses, TotalItems: items}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// IRomanizationStore is the second-level store of romanized strings, shared
// across runs. Keys are built with CacheKey.
type IRomanizationStore interface {
	// GetMany returns the values found; missing keys are absent from the map
	GetMany(ctx context.Context, keys []string) (map[string]string, error)

	// SetMany stores all entries
	SetMany(ctx context.Context, entries map[string]string) error

	// GetStats reports hits, misses and stored items
	GetStats(ctx context.Context) (*CacheStats, error)

	// Close releases the connection, if any
	Close() error
}

// CacheKey scopes a text to the romanizer that produced its value
func CacheKey(backend, text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%x", backend, hash)
}
