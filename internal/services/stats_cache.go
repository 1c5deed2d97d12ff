package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"
)

const statsCacheKey = "matching-income:admin:stats"

// StatsCache caches the admin dashboard aggregate in Redis.
// A nil client disables caching; every method is then a no-op.
type StatsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache creates a stats cache
func NewStatsCache(client *redis.Client, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, ttl: ttl}
}

// Enabled reports whether a Redis client is configured
func (c *StatsCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached stats, if any
func (c *StatsCache) Get(ctx context.Context) (*models.IncomeStats, bool) {
	if !c.Enabled() {
		return nil, false
	}
	raw, err := c.client.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("stats cache read failed", "error", err)
		}
		return nil, false
	}
	var stats models.IncomeStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		logger.Warn("stats cache entry is corrupt", "error", err)
		return nil, false
	}
	return &stats, true
}

// Set stores stats for the configured TTL
func (c *StatsCache) Set(ctx context.Context, stats *models.IncomeStats) {
	if !c.Enabled() {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		logger.Warn("failed to encode stats for cache", "error", err)
		return
	}
	if err := c.client.Set(ctx, statsCacheKey, raw, c.ttl).Err(); err != nil {
		logger.Warn("stats cache write failed", "error", err)
	}
}

// Invalidate drops the cached stats after income records change
func (c *StatsCache) Invalidate(ctx context.Context) {
	if !c.Enabled() {
		return
	}
	if err := c.client.Del(ctx, statsCacheKey).Err(); err != nil {
		logger.Warn("stats cache invalidation failed", "error", err)
	}
}
