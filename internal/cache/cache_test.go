package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLimiterAllowsUpToBurstThenBlocks(t *testing.T) {
	client := newTestClient(t)
	limiter := NewRedisLimiter(client, "")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "peer-a", 3, 1)
		require.NoError(t, err)
		require.True(t, allowed, "request %d should be allowed within burst", i)
	}

	allowed, err := limiter.Allow(ctx, "peer-a", 3, 1)
	require.NoError(t, err)
	require.False(t, allowed, "fourth request should exceed burst")
}

func TestRedisLimiterKeysAreIndependent(t *testing.T) {
	client := newTestClient(t)
	limiter := NewRedisLimiter(client, "")
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "peer-a", 1, 1)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "peer-b", 1, 1)
	require.NoError(t, err)
	require.True(t, allowed, "separate key should have its own bucket")
}

func TestRevocationCacheRoundTrip(t *testing.T) {
	client := newTestClient(t)
	rc := NewRevocationCache(client, time.Minute)
	ctx := context.Background()

	revoked, err := rc.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, rc.Revoke(ctx, "jti-1"))

	revoked, err = rc.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)
}

func TestCatalogInvalidatorBumpsGeneration(t *testing.T) {
	client := newTestClient(t)
	inv := NewCatalogInvalidator(client)
	ctx := context.Background()

	gen, err := inv.Generation(ctx, "tool")
	require.NoError(t, err)
	require.Equal(t, int64(0), gen)

	require.NoError(t, inv.Bump(ctx, "tool"))
	gen, err = inv.Generation(ctx, "tool")
	require.NoError(t, err)
	require.Equal(t, int64(1), gen)
}
