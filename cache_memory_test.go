package odatatable

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheGetSet(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	_, err := cache.Get(ctx, "missing")
	assert.True(t, IsCacheMiss(err))

	require.NoError(t, cache.Set(ctx, "key", []byte("value"), time.Minute))
	got, err := cache.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	require.NoError(t, cache.Delete(ctx, "key"))
	_, err = cache.Get(ctx, "key")
	assert.True(t, IsCacheMiss(err))
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCacheWithConfig(CacheConfig{DefaultTTL: 20 * time.Millisecond})
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "default", []byte("a"), 0))
	require.NoError(t, cache.Set(ctx, "forever", []byte("b"), -1))
	time.Sleep(50 * time.Millisecond)

	_, err := cache.Get(ctx, "default")
	assert.True(t, IsCacheMiss(err))
	got, err := cache.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)
}

func TestMemoryCacheClear(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, cache.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, cache.Clear(ctx))

	_, err := cache.Get(ctx, "a")
	assert.True(t, IsCacheMiss(err))
}

func TestMemoryCacheCancelledContext(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, cache.Set(ctx, "a", nil, 0), context.Canceled)
}

func TestMemoryCachePrefixAndLen(t *testing.T) {
	cache := NewMemoryCacheWithConfig(CacheConfig{DefaultTTL: time.Minute, Prefix: "odatatable:"})
	defer cache.Close()
	ctx := context.Background()

	require.NoError(t, cache.Delete(ctx, "never-set"))
	require.NoError(t, cache.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, cache.Set(ctx, "b", []byte("2"), 0))
	assert.Equal(t, 2, cache.Len())

	got, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
}
