package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCacheService stores romanizations in Redis
type RedisCacheService struct {
	client *redis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRedisCacheService connects to redisURL and pings the server
func NewRedisCacheService(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisCacheService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &RedisCacheService{
		client: client,
		logger: logger,
		prefix: "paranames:romanized:",
		ttl:    ttl,
	}, nil
}

// GetMany reads all keys with one MGET
func (rcs *RedisCacheService) GetMany(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	vals, err := rcs.client.MGet(ctx, rcs.prefixed(keys)...).Result()
	if err != nil {
		rcs.logger.Error("Redis MGET failed", zap.Error(err), zap.Int("keys", len(keys)))
		return nil, err
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			rcs.misses.Add(1)
			continue
		}
		rcs.hits.Add(1)
		out[keys[i]] = s
	}
	return out, nil
}

// SetMany writes all entries in one pipeline
func (rcs *RedisCacheService) SetMany(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := rcs.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range entries {
			p.Set(ctx, rcs.prefix+k, v, rcs.ttl)
		}
		return nil
	})
	if err != nil {
		rcs.logger.Error("Redis pipeline SET failed", zap.Error(err), zap.Int("entries", len(entries)))
		return fmt.Errorf("store romanizations: %w", err)
	}
	return nil
}

// GetStats counts stored keys with SCAN
func (rcs *RedisCacheService) GetStats(ctx context.Context) (*CacheStats, error) {
	var items int64
	iter := rcs.client.Scan(ctx, 0, rcs.prefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		items++
	}
	if err := iter.Err(); err != nil {
		rcs.logger.Warn("Redis SCAN failed", zap.Error(err))
	}
	return newCacheStats(rcs.hits.Load(), rcs.misses.Load(), items), nil
}

// Close closes the client
func (rcs *RedisCacheService) Close() error {
	return rcs.client.Close()
}

func (rcs *RedisCacheService) prefixed(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = rcs.prefix + k
	}
	return out
}
