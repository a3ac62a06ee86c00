package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	ctx := context.Background()

	limiter := NewRateLimiter(client, 5, 10*time.Second)

	for i := 0; i < 5; i++ {
		allowed, err := limiter.Allow(ctx, "rate_limit:player_rank:42")
		require.NoError(t, err)
		require.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "rate_limit:player_rank:42")
	require.NoError(t, err)
	require.False(t, allowed, "6th request within the window must be denied")

	// Another identifier has its own window
	allowed, err = limiter.Allow(ctx, "rate_limit:player_rank:43")
	require.NoError(t, err)
	require.True(t, allowed)

	// The window expires relative to the first request
	mini.FastForward(11 * time.Second)

	allowed, err = limiter.Allow(ctx, "rate_limit:player_rank:42")
	require.NoError(t, err)
	require.True(t, allowed)
}
