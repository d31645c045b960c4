package alignment

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache fronts the computed report. Invalidate must be idempotent: the
// executor fires it at-least-once after every commit.
type Cache interface {
	Get(ctx context.Context) (*Report, bool)
	Set(ctx context.Context, report *Report) error
	Invalidate(ctx context.Context) error
}

// NopCache disables caching; every read recomputes.
type NopCache struct{}

func (NopCache) Get(context.Context) (*Report, bool) { return nil, false }
func (NopCache) Set(context.Context, *Report) error  { return nil }
func (NopCache) Invalidate(context.Context) error    { return nil }

const (
	redisReportKey = "keel:alignment:report"
	redisReportTTL = 5 * time.Minute
)

// RedisCache stores the serialized report under a single key with a TTL
// backstop, so even a lost invalidation converges.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context) (*Report, bool) {
	raw, err := c.client.Get(ctx, redisReportKey).Bytes()
	if err != nil {
		// redis.Nil is a plain miss; anything else degrades to a miss too.
		return nil, false
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, false
	}
	return &report, true
}

func (c *RedisCache) Set(ctx context.Context, report *Report) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, redisReportKey, raw, redisReportTTL).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	err := c.client.Del(ctx, redisReportKey).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
