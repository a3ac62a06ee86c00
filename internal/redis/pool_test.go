package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRewardPool(t *testing.T) {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	ctx := context.Background()

	pool := NewRewardPool(client)

	// Absent key reads as zero
	value, err := pool.Value(ctx)
	require.NoError(t, err)
	require.Zero(t, value)

	require.NoError(t, pool.Add(ctx, 100*0.02))
	require.NoError(t, pool.Add(ctx, 50*0.02))

	value, err = pool.Value(ctx)
	require.NoError(t, err)
	require.InDelta(t, 3.0, value, 1e-9)

	require.NoError(t, pool.Reset(ctx))

	value, err = pool.Value(ctx)
	require.NoError(t, err)
	require.Zero(t, value)
}
