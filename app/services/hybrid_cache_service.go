package services

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/paranames/internal/external"
)

// RomanizationCacheService wraps a Romanizer with an in-memory LRU (L1) and
// an optional shared store (L2). Only texts missing from both are sent to
// the wrapped romanizer, each distinct text once.
type RomanizationCacheService struct {
	inner   external.Romanizer
	backend string
	l1      *lru.Cache[string, string]
	l2      IRomanizationStore
	logger  *zap.Logger

	l1Hits atomic.Int64
	l2Hits atomic.Int64
	misses atomic.Int64
}

// NewRomanizationCacheService builds the cache. backend names the wrapped
// romanizer so that stores shared between backends do not mix values.
// l2 may be nil.
func NewRomanizationCacheService(inner external.Romanizer, backend string, l1Size int, l2 IRomanizationStore, logger *zap.Logger) (*RomanizationCacheService, error) {
	if l1Size <= 0 {
		l1Size = 100000
	}
	l1, err := lru.New[string, string](l1Size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &RomanizationCacheService{
		inner:   inner,
		backend: backend,
		l1:      l1,
		l2:      l2,
		logger:  logger,
	}, nil
}

// Romanize returns one romanization per text, in order
func (s *RomanizationCacheService) Romanize(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, len(texts))
	positions := make(map[string][]int)
	var pending []string
	textOf := make(map[string]string)

	for i, t := range texts {
		key := CacheKey(s.backend, t)
		if v, ok := s.l1.Get(key); ok {
			s.l1Hits.Add(1)
			out[i] = v
			continue
		}
		if _, seen := positions[key]; !seen {
			pending = append(pending, key)
			textOf[key] = t
		}
		positions[key] = append(positions[key], i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	if s.l2 != nil {
		found, err := s.l2.GetMany(ctx, pending)
		if err != nil {
			s.logger.Warn("L2 romanization cache unavailable, falling back to romanizer", zap.Error(err))
			found = nil
		}
		if len(found) > 0 {
			rest := pending[:0]
			for _, key := range pending {
				v, ok := found[key]
				if !ok {
					rest = append(rest, key)
					continue
				}
				s.l2Hits.Add(int64(len(positions[key])))
				s.fill(out, positions[key], key, v)
			}
			pending = rest
		}
	}
	if len(pending) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(pending))
	for i, key := range pending {
		missTexts[i] = textOf[key]
	}
	romanized, err := s.inner.Romanize(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(romanized) != len(missTexts) {
		return nil, fmt.Errorf("%w: sent %d texts, got %d", external.ErrCountMismatch, len(missTexts), len(romanized))
	}

	entries := make(map[string]string, len(pending))
	for i, key := range pending {
		s.misses.Add(int64(len(positions[key])))
		s.fill(out, positions[key], key, romanized[i])
		entries[key] = romanized[i]
	}
	if s.l2 != nil {
		if err := s.l2.SetMany(ctx, entries); err != nil {
			s.logger.Warn("Could not store romanizations in L2 cache", zap.Error(err))
		}
	}

	s.logger.Debug("Romanized texts",
		zap.Int("texts", len(texts)),
		zap.Int("sent", len(missTexts)))
	return out, nil
}

func (s *RomanizationCacheService) fill(out []string, positions []int, key, value string) {
	for _, p := range positions {
		out[p] = value
	}
	s.l1.Add(key, value)
}

// GetStats combines L1 and L2 hits; misses are texts sent to the romanizer
func (s *RomanizationCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	items := int64(s.l1.Len())
	if s.l2 != nil {
		l2Stats, err := s.l2.GetStats(ctx)
		if err != nil {
			s.logger.Warn("Could not read L2 cache stats", zap.Error(err))
		} else {
			items = l2Stats.TotalItems
		}
	}
	return newCacheStats(s.l1Hits.Load()+s.l2Hits.Load(), s.misses.Load(), items), nil
}

// Close closes the L2 store
func (s *RomanizationCacheService) Close() error {
	if s.l2 == nil {
		return nil
	}
	return s.l2.Close()
}
