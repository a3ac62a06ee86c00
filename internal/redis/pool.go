package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// poolKey holds the un-distributed reward mass
const poolKey = "leaderboard:reward_pool"

// RewardPool is the durable reward accumulator. It only grows between
// distributions and is reset to zero by the distribution job. An absent
// key reads as zero.
type RewardPool struct {
	client *redis.Client
}

// NewRewardPool creates a reward pool over the given client
func NewRewardPool(client *redis.Client) *RewardPool {
	return &RewardPool{client: client}
}

// Add increments the pool by amount
func (p *RewardPool) Add(ctx context.Context, amount float64) error {
	if err := p.client.IncrByFloat(ctx, poolKey, amount).Err(); err != nil {
		return fmt.Errorf("incrementing reward pool: %w", err)
	}
	return nil
}

// Value returns the current pool value, zero when absent
func (p *RewardPool) Value(ctx context.Context) (float64, error) {
	raw, err := p.client.Get(ctx, poolKey).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading reward pool: %w", err)
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing reward pool value %q: %w", raw, err)
	}
	return value, nil
}

// Reset clears the pool, ending the accumulation cycle
func (p *RewardPool) Reset(ctx context.Context) error {
	if err := p.client.Del(ctx, poolKey).Err(); err != nil {
		return fmt.Errorf("resetting reward pool: %w", err)
	}
	return nil
}
