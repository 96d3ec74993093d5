package services

import (
	"context"
	"sync"
	"time"
)

// CacheService is an in-process IRomanizationStore with a TTL, used when no
// shared store is configured.
type CacheService struct {
	cache      map[string]string
	timestamps map[string]time.Time
	mu         sync.RWMutex
	ttl        time.Duration

	hits   int64
	misses int64
}

// NewCacheService creates an empty store. A zero ttl never expires entries.
func NewCacheService(ttl time.Duration) *CacheService {
	return &CacheService{
		cache:      make(map[string]string),
		timestamps: make(map[string]time.Time),
		ttl:        ttl,
	}
}

// GetMany returns the live entries among keys
func (cs *CacheService) GetMany(ctx context.Context, keys []string) (map[string]string, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	out := make(map[string]string, len(keys))
	for _, key := range keys {
		val, ok := cs.cache[key]
		if !ok || cs.isExpired(key) {
			cs.misses++
			continue
		}
		cs.hits++
		out[key] = val
	}
	return out, nil
}

// SetMany stores all entries
func (cs *CacheService) SetMany(ctx context.Context, entries map[string]string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := time.Now()
	for k, v := range entries {
		cs.cache[k] = v
		cs.timestamps[k] = now
	}
	return nil
}

// Size is the number of stored entries, expired ones included
func (cs *CacheService) Size() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.cache)
}

// GetStats reports hits, misses and stored entries
func (cs *CacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return newCacheStats(cs.hits, cs.misses, int64(len(cs.cache))), nil
}

// CleanupExpired removes expired entries
func (cs *CacheService) CleanupExpired() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for key := range cs.cache {
		if cs.isExpired(key) {
			delete(cs.cache, key)
			delete(cs.timestamps, key)
		}
	}
}

// StartCleanupWorker runs CleanupExpired every interval until ctx is done
func (cs *CacheService) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs.CleanupExpired()
			}
		}
	}()
}

func (cs *CacheService) isExpired(key string) bool {
	if cs.ttl <= 0 {
		return false
	}
	timestamp, exists := cs.timestamps[key]
	if !exists {
		return true
	}
	return time.Since(timestamp) > cs.ttl
}

// Close is a no-op
func (cs *CacheService) Close() error {
	return nil
}
