package tickcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL bounds how long a crashed finisher can hold the lock.
const DefaultLockTTL = 30 * time.Second

// Lock is the per-timer finish lock: acquire-if-absent with bounded
// auto-expiry. Losing the acquisition race is a signal, not an error.
type Lock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLock creates a finish lock with the given TTL (DefaultLockTTL when
// zero).
func NewLock(client *redis.Client, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Lock{client: client, ttl: ttl}
}

// Acquire attempts to take the finish lock for a timer. It returns false
// when another worker already owns the transition.
func (l *Lock) Acquire(ctx context.Context, timerID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, finishLockKey(timerID), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("finish lock acquire: %w", err)
	}
	return ok, nil
}

// Release drops the lock. Releasing an already expired lock is harmless:
// a later acquisition re-checks the durable status, which is idempotent.
func (l *Lock) Release(ctx context.Context, timerID string) error {
	if err := l.client.Del(ctx, finishLockKey(timerID)).Err(); err != nil {
		return fmt.Errorf("finish lock release: %w", err)
	}
	return nil
}
