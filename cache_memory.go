package odatatable

import (
	"context"
	"errors"
	"time"

	"github.com/Velocidex/ttlcache/v2"
)

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	lru    *ttlcache.Cache
	config CacheConfig
}

func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithConfig(DefaultCacheConfig())
}

// NewMemoryCacheWithConfig starts the cache's expiry goroutine; Close stops it.
func NewMemoryCacheWithConfig(config CacheConfig) *MemoryCache {
	lru := ttlcache.NewCache()
	// stale times count from the fetch, not from the last read
	lru.SkipTTLExtensionOnHit(true)
	return &MemoryCache{lru: lru, config: config}
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, err := m.lru.Get(m.config.Prefix + key)
	if errors.Is(err, ttlcache.ErrNotFound) {
		return nil, ErrCacheMiss{Key: key}
	}
	if err != nil {
		return nil, err
	}
	data, ok := value.([]byte)
	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}
	return data, nil
}

// Set stores value; a zero ttl uses the default, a negative one never expires.
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	if ttl < 0 {
		ttl = 0
	}
	return m.lru.SetWithTTL(m.config.Prefix+key, value, ttl)
}

func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.lru.Remove(m.config.Prefix + key)
	if errors.Is(err, ttlcache.ErrNotFound) {
		return nil
	}
	return err
}

func (m *MemoryCache) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.lru.Purge()
}

// Len counts the live entries.
func (m *MemoryCache) Len() int {
	return m.lru.Count()
}

// Close stops the expiry goroutine; the cache is unusable afterwards.
func (m *MemoryCache) Close() error {
	return m.lru.Close()
}
