package odatatable

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// QueryKey identifies a cached query, most general part first.
type QueryKey []string

// Append returns a new key; the receiver is never modified.
func (k QueryKey) Append(parts ...string) QueryKey {
	out := make(QueryKey, 0, len(k)+len(parts))
	out = append(out, k...)
	return append(out, parts...)
}

func (k QueryKey) String() string {
	return strings.Join(k, "/")
}

// Hash returns a compact cache key for k.
func (k QueryKey) Hash() string {
	hash := sha256.Sum256([]byte(strings.Join(k, "\x00")))
	return "query:" + hex.EncodeToString(hash[:16])
}

// QueryFunc produces the bytes for a cache miss.
type QueryFunc func(ctx context.Context) ([]byte, error)

// QueryClient serves keyed queries from a cache and collapses concurrent
// fetches of the same key into one.
type QueryClient struct {
	cache    Cache
	owned    bool
	group    singleflight.Group
	logger   *zap.SugaredLogger
	fetching int32
}

// NewQueryClient uses an in-memory cache when cache is nil. That cache
// belongs to the client and is released by Close.
func NewQueryClient(cache Cache, logger *zap.SugaredLogger) *QueryClient {
	owned := false
	if cache == nil {
		cache = NewMemoryCache()
		owned = true
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &QueryClient{cache: cache, owned: owned, logger: logger}
}

// Close releases the cache when the client created it. A cache passed to
// NewQueryClient is left to its owner.
func (c *QueryClient) Close() error {
	if !c.owned {
		return nil
	}
	if closer, ok := c.cache.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Fetch returns the cached value for key or runs fn and caches its result
// for staleTime. A negative staleTime bypasses the cache.
//
// Callers of one key share a single run of fn. It runs under a context that
// keeps the first caller's values but not its cancellation, so a caller
// that gives up returns ctx.Err() without failing the others.
func (c *QueryClient) Fetch(ctx context.Context, key QueryKey, staleTime time.Duration, fn QueryFunc) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hashed := key.Hash()
	if staleTime >= 0 {
		data, err := c.cache.Get(ctx, hashed)
		if err == nil {
			c.logger.Debugf("query %s served from cache", key)
			return data, nil
		}
		if !IsCacheMiss(err) {
			c.logger.Warnf("cache read for %s: %s", key, err.Error())
		}
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(hashed, func() (interface{}, error) {
		atomic.AddInt32(&c.fetching, 1)
		defer atomic.AddInt32(&c.fetching, -1)

		data, err := fn(fetchCtx)
		if err != nil {
			return nil, err
		}
		if staleTime >= 0 {
			if err := c.cache.Set(fetchCtx, hashed, data, staleTime); err != nil {
				c.logger.Warnf("cache write for %s: %s", key, err.Error())
			}
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		c.logger.Debugf("query %s abandoned: %s", key, ctx.Err().Error())
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debugf("query %s shared an in-flight fetch", key)
		}
		return res.Val.([]byte), nil
	}
}

// Invalidate drops the cached value for key.
func (c *QueryClient) Invalidate(ctx context.Context, key QueryKey) error {
	return c.cache.Delete(ctx, key.Hash())
}

// IsFetching reports whether any query is currently running.
func (c *QueryClient) IsFetching() bool {
	return atomic.LoadInt32(&c.fetching) > 0
}
