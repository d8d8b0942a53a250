package cachesvc

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/investiga/core"
)

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCache(&core.Config{Redis: core.RedisConfig{Address: mr.Addr()}})
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	_, err := c.Get(ctx, "missing")
	assert.Equal(t, core.ErrCacheMiss, err)

	require.NoError(t, c.Set(ctx, "session:revoked:abc", "1", time.Minute))
	val, err := c.Get(ctx, "session:revoked:abc")
	require.NoError(t, err)
	assert.Equal(t, "1", val)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "session:revoked:abc")
	assert.Equal(t, core.ErrCacheMiss, err)

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	require.NoError(t, c.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
	require.NoError(t, c.Delete(ctx))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Set(ctx, "forever", "v", 0))

	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "k")
	assert.Equal(t, core.ErrCacheMiss, err)

	now = now.Add(24 * time.Hour)
	_, err = c.Get(ctx, "forever")
	assert.NoError(t, err)

	require.NoError(t, c.Delete(ctx, "forever"))
	_, err = c.Get(ctx, "forever")
	assert.Equal(t, core.ErrCacheMiss, err)
}

func TestMemoryCache_SweepsOnSet(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "session:revoked:a", "1", time.Minute))
	require.NoError(t, c.Set(ctx, "session:revoked:b", "1", time.Hour))

	now = now.Add(30 * time.Second)
	require.NoError(t, c.Set(ctx, "session:revoked:c", "1", time.Second))
	now = now.Add(time.Second)
	require.NoError(t, c.Set(ctx, "session:revoked:d", "1", time.Hour))
	assert.Len(t, c.entries, 4, "no sweep within the interval")

	now = now.Add(2 * time.Minute)
	require.NoError(t, c.Set(ctx, "session:revoked:e", "1", time.Hour))
	assert.Len(t, c.entries, 3)
	assert.NotContains(t, c.entries, "session:revoked:a")
	assert.NotContains(t, c.entries, "session:revoked:c")
}
