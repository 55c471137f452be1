package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/leveledu/pkg/cache"
	"github.com/dmitrymomot/leveledu/pkg/logger"
)

// Cache stores resolved tenants between requests.
type Cache interface {
	Get(ctx context.Context, key string) (*Info, bool)
	Set(ctx context.Context, key string, info *Info, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	Close() error
}

// CacheKeys returns every key the tenant may be cached under.
func CacheKeys(info *Info) []string {
	if info == nil {
		return nil
	}
	keys := []string{Lookup{Subdomain: info.Subdomain}.cacheKey()}
	if !info.ID.IsZero() {
		keys = append(keys, Lookup{ID: info.ID}.cacheKey())
	}
	return keys
}

// DefaultCacheSize is the default number of tenants kept in memory.
const DefaultCacheSize = 1000

// MemoryCache keeps tenants in a process-local LRU. A background goroutine
// drops expired entries until Close is called.
type MemoryCache struct {
	lru       *cache.LRU[string, Info]
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryCache creates an in-memory cache sweeping expired entries every
// interval. A non-positive size uses DefaultCacheSize.
func NewMemoryCache(size int, interval time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if interval <= 0 {
		interval = time.Minute
	}
	c := &MemoryCache{
		lru:  cache.NewLRU[string, Info](size),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go c.sweep(interval)
	return c
}

func (c *MemoryCache) sweep(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.lru.Prune()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Info, bool) {
	info, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return &info, true
}

func (c *MemoryCache) Set(_ context.Context, key string, info *Info, ttl time.Duration) {
	if info == nil {
		return
	}
	c.lru.Set(key, *info, ttl)
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) {
	for _, k := range keys {
		c.lru.Delete(k)
	}
}

// Close stops the sweeper. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		<-c.done
		c.lru.Purge()
	})
	return nil
}

// RedisCache shares resolved tenants between instances. Redis failures are
// logged and treated as cache misses.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	log    *slog.Logger
}

// NewRedisCache creates a cache storing JSON documents under prefix.
func NewRedisCache(client redis.UniversalClient, prefix string, log *slog.Logger) *RedisCache {
	if prefix == "" {
		prefix = "tenant:"
	}
	if log == nil {
		log = logger.Discard()
	}
	return &RedisCache{client: client, prefix: prefix, log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Info, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.WarnContext(ctx, "tenant cache read failed", logger.Component("tenant_cache"), logger.Error(err))
		}
		return nil, false
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		c.log.WarnContext(ctx, "tenant cache entry corrupted", logger.Component("tenant_cache"), logger.Error(err))
		return nil, false
	}
	return &info, true
}

func (c *RedisCache) Set(ctx context.Context, key string, info *Info, ttl time.Duration) {
	if info == nil {
		return
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		c.log.WarnContext(ctx, "tenant cache write failed", logger.Component("tenant_cache"), logger.Error(err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		c.log.WarnContext(ctx, "tenant cache invalidation failed", logger.Component("tenant_cache"), logger.Error(err))
	}
}

// Close is a no-op; the client is owned by the caller.
func (*RedisCache) Close() error { return nil }

// NopCache never stores anything. It stands in when caching is disabled.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*Info, bool)         { return nil, false }
func (NopCache) Set(context.Context, string, *Info, time.Duration) {}
func (NopCache) Delete(context.Context, ...string)                 {}
func (NopCache) Close() error                                      { return nil }
