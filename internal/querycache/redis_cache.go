package querycache

import (
	"context"
	"errors"
	"time"

	"ai-docquery-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisCache backs the query cache with Redis. The client is the long-lived
// process-wide connection handed in by the container.
type RedisCache struct {
	rdb *redis.Client
	log logger.ILogger
}

var _ Cache = &RedisCache{}

func NewRedisCache(rdb *redis.Client, log logger.ILogger) *RedisCache {
	return &RedisCache{rdb: rdb, log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("querycache", "cache read failed, treating as miss", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
		return nil, false
	}
	return payload, true
}

func (c *RedisCache) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.log.Warn("querycache", "cache write failed, skipping", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
