package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock names for the two critical sections. The locks are independent;
// holding one never blocks the other.
const (
	WarmupLockKey     = "leaderboard:lock:warmup"
	DistributeLockKey = "leaderboard:lock:distribute"
)

// Lock is a named, time-boxed exclusive lock. At most one holder per
// name at any instant; the token self-expires after the TTL so a
// crashed holder cannot wedge the system. There is no queue and no
// fairness: a caller that fails to acquire simply skips its attempt.
type Lock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewLock creates a lock with the given name and TTL
func NewLock(client *redis.Client, key string, ttl time.Duration) *Lock {
	return &Lock{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// Acquire attempts to take the lock, returning whether this caller now
// holds it. The token is created only if absent, atomically, with the
// configured expiry.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, "locked", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquiring lock %s: %w", l.key, err)
	}
	return ok, nil
}

// Release unconditionally deletes the token. Idempotent.
func (l *Lock) Release(ctx context.Context) error {
	if err := l.client.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.key, err)
	}
	return nil
}
