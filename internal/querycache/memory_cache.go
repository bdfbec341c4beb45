package querycache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache is the in-process fallback backend, used when no Redis URL is
// configured and in tests. go-cache checks expiry on read, so a stale entry
// is a miss even before the janitor purges it.
type MemoryCache struct {
	cache *gocache.Cache
}

var _ Cache = &MemoryCache{}

func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(defaultTTL, 10*time.Minute),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	if x, found := c.cache.Get(key); found {
		return x.([]byte), true
	}
	return nil, false
}

func (c *MemoryCache) Put(_ context.Context, key string, payload []byte, ttl time.Duration) {
	c.cache.Set(key, payload, ttl)
}
