package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newLockClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	return mini, client
}

func TestLockMutualExclusion(t *testing.T) {
	_, client := newLockClient(t)
	ctx := context.Background()

	first := NewLock(client, WarmupLockKey, 30*time.Second)
	second := NewLock(client, WarmupLockKey, 30*time.Second)

	granted, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, granted)

	granted, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, granted)

	require.NoError(t, first.Release(ctx))

	granted, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, granted)
}

func TestLockSelfExpires(t *testing.T) {
	mini, client := newLockClient(t)
	ctx := context.Background()

	lock := NewLock(client, DistributeLockKey, 30*time.Second)

	granted, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, granted)

	// A crashed holder never releases; the TTL bounds the blast radius
	mini.FastForward(31 * time.Second)

	granted, err = lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, granted)
}

func TestLockNamesAreIndependent(t *testing.T) {
	_, client := newLockClient(t)
	ctx := context.Background()

	warmup := NewLock(client, WarmupLockKey, 30*time.Second)
	distribute := NewLock(client, DistributeLockKey, 30*time.Second)

	granted, err := warmup.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, granted)

	granted, err = distribute.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, granted)
}

func TestLockReleaseIsIdempotent(t *testing.T) {
	_, client := newLockClient(t)
	ctx := context.Background()

	lock := NewLock(client, WarmupLockKey, 30*time.Second)
	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Release(ctx))
}
