package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kagenti-labs/x402-gateway/internal/storage/redisstore"
)

func TestRateLimiterAllow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := redisstore.NewRateLimiter(client)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		res, err := limiter.Allow(ctx, "0xpayer", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, res.Allowed)
		require.Equal(t, 3-i, res.Remaining)
	}

	res, err := limiter.Allow(ctx, "0xpayer", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, res.Allowed)
}

func TestRateLimiterResetsAfterWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := redisstore.NewRateLimiter(client)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "0xpayer2", 1, time.Minute)
	require.NoError(t, err)
	blocked, err := limiter.Allow(ctx, "0xpayer2", 1, time.Minute)
	require.NoError(t, err)
	require.False(t, blocked.Allowed)

	mr.FastForward(61 * time.Second)

	allowed, err := limiter.Allow(ctx, "0xpayer2", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed.Allowed)
}

func TestBlacklist(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	bl := redisstore.NewBlacklist(client)
	ctx := context.Background()

	listed, err := bl.IsBlacklisted(ctx, "0xbad")
	require.NoError(t, err)
	require.False(t, listed)

	require.NoError(t, bl.Add(ctx, "0xbad"))
	listed, err = bl.IsBlacklisted(ctx, "0xbad")
	require.NoError(t, err)
	require.True(t, listed)

	require.NoError(t, bl.Remove(ctx, "0xbad"))
	listed, err = bl.IsBlacklisted(ctx, "0xbad")
	require.NoError(t, err)
	require.False(t, listed)
}

func TestIdempotencyCacheReserveAndComplete(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache := redisstore.NewIdempotencyCache(client, time.Minute)
	ctx := context.Background()
	key := redisstore.EnvelopeKey("some-header-value")

	require.NoError(t, cache.Reserve(ctx, key))
	err := cache.Reserve(ctx, key)
	require.ErrorIs(t, err, redisstore.ErrInFlight)

	_, found, err := cache.Lookup(ctx, key)
	require.NoError(t, err)
	require.False(t, found, "a pending reservation must not look like a completed result")

	require.NoError(t, cache.Complete(ctx, key, map[string]string{"txHash": "0xabc"}))
	body, found, err := cache.Lookup(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, string(body), "0xabc")
}
