package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/karlseguin/ccache/v3"
	"github.com/redis/go-redis/v9"
)

// Cache stores raw tile bytes by key.
type Cache interface {
	// Get returns the bytes for key and whether they were present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key for ttl. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// DefaultMemoryEntries bounds a MemoryCache created with a non-positive
// size.
const DefaultMemoryEntries = 512

// noExpiry stands in for a zero ttl, which ccache would treat as already
// expired.
const noExpiry = 100 * 365 * 24 * time.Hour

// MemoryCache is an in-process LRU Cache safe for concurrent use.
//
// Expired entries read as misses and are replaced by the next Set. When the
// cache is full the least recently used entries are pruned.
type MemoryCache struct {
	cache *ccache.Cache[[]byte]
}

// NewMemoryCache creates an empty cache holding at most maxEntries tiles.
// maxEntries <= 0 means DefaultMemoryEntries.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	prune := maxEntries / 20
	if prune < 1 {
		prune = 1
	}
	return &MemoryCache{
		cache: ccache.New(ccache.Configure[[]byte]().
			MaxSize(int64(maxEntries)).
			ItemsToPrune(uint32(prune)).
			GetsPerPromote(1)),
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := c.cache.Get(key)
	if item == nil || item.Expired() {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = noExpiry
	}
	c.cache.Set(key, data, ttl)
	return nil
}

// Len returns the number of stored entries, expired or not, once pending
// promotions and pruning have been applied.
func (c *MemoryCache) Len() int {
	c.cache.SyncUpdates()
	return c.cache.ItemCount()
}

// Evict removes one key. Missing keys are ignored.
func (c *MemoryCache) Evict(key string) {
	c.cache.Delete(key)
}

// Clear removes every entry.
func (c *MemoryCache) Clear() {
	c.cache.Clear()
}

// Stop releases the cache's background worker. The cache must not be used
// afterwards.
func (c *MemoryCache) Stop() {
	c.cache.Stop()
}

// RedisCache stores tiles in Redis under Prefix+key.
type RedisCache struct {
	Client *redis.Client
	Prefix string
}

// OpenRedis connects to addr. It returns nil when addr is empty so callers
// can fall back to a MemoryCache.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	if db < 0 {
		db = 0
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewRedisCache wraps client with the default "footprint:tile:" prefix.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{Client: client, Prefix: "footprint:tile:"}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.Client == nil {
		return nil, false, nil
	}
	data, err := c.Client.Get(ctx, c.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if c.Client == nil {
		return nil
	}
	if err := c.Client.Set(ctx, c.Prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
