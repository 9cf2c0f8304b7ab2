package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/DeliveryTrack/internal/cache"
)

var (
	_ cache.BytesCache = (*RedisCache)(nil)
	_ cache.Limiter    = (*RateLimiter)(nil)
)

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(NewClient(mr.Addr()))

	ctx := context.Background()
	_, ok, err := c.Get(ctx, cache.TrackingKey("D1"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, cache.TrackingKey("D1"), []byte("v"), time.Minute))

	b, ok, err := c.Get(ctx, cache.TrackingKey("D1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), b)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, cache.TrackingKey("D1"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	require.False(t, ok)
	require.NoError(t, c.Ping(ctx))
}

func TestRedisCache_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(NewClient(mr.Addr()))
	mr.Close()

	_, _, err := c.Get(context.Background(), "k")
	require.Error(t, err)
}

func TestRateLimiter_AllowN(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(NewClient(mr.Addr()), 2, time.Minute)

	ctx := context.Background()
	ok, n, err := rl.AllowN(ctx, "rl:test", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(1), n)

	ok, n, _ = rl.AllowN(ctx, "rl:test", 2, time.Minute)
	require.True(t, ok)
	require.Equal(t, int64(2), n)

	ok, n, _ = rl.AllowN(ctx, "rl:test", 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, int64(3), n)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	mr := miniredis.RunT(t)
	rl := NewRateLimiter(NewClient(mr.Addr()), 1, time.Second)
	ctx := context.Background()
	key := cache.RateKey("location", "D1")

	ok, err := rl.Allow(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	ok, _ = rl.Allow(ctx, key)
	require.False(t, ok)

	mr.FastForward(2 * time.Second)
	ok, _ = rl.Allow(ctx, key)
	require.True(t, ok)
}
