// internal/cache/reliability.go

// Package cache provides the Redis-backed source reliability lookup. A
// missing or unreachable cache never fails a score computation; callers
// always get a usable rating back.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zarzn/dealbot-be-sub000/internal/common/logger"
)

const reliabilityKeyPrefix = "reliability:"

// ReliabilityCache resolves per-source reliability ratings in [0,1].
type ReliabilityCache struct {
	client       *redis.Client
	defaultValue float64
	ttl          time.Duration
	logger       logger.Logger
}

func NewReliabilityCache(client *redis.Client, defaultValue float64, ttl time.Duration, log logger.Logger) *ReliabilityCache {
	return &ReliabilityCache{
		client:       client,
		defaultValue: defaultValue,
		ttl:          ttl,
		logger:       log.WithFields(map[string]interface{}{"component": "cache.reliability"}),
	}
}

// Reliability returns the cached rating for source, or the configured
// default on a miss, a parse failure, or any Redis error. The returned
// value is always clamped to [0,1].
func (c *ReliabilityCache) Reliability(ctx context.Context, source string) float64 {
	if c.client == nil || source == "" {
		return c.defaultValue
	}

	raw, err := c.client.Get(ctx, reliabilityKeyPrefix+source).Result()
	if err == redis.Nil {
		return c.defaultValue
	}
	if err != nil {
		c.logger.WithError(err).Warn("reliability lookup failed, using default", map[string]interface{}{
			"source": source,
		})
		return c.defaultValue
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.logger.Warn("reliability value unparsable, using default", map[string]interface{}{
			"source": source,
			"value":  raw,
		})
		return c.defaultValue
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Set stores a source rating, clamped to [0,1], with the cache TTL.
func (c *ReliabilityCache) Set(ctx context.Context, source string, value float64) error {
	if c.client == nil {
		return nil
	}
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	return c.client.Set(ctx, reliabilityKeyPrefix+source, fmt.Sprintf("%.4f", value), c.ttl).Err()
}
