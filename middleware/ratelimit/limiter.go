// Package ratelimit provides a Redis-backed fixed-window rate limiter
// and its Fiber middleware, keyed by authenticated user and route scope.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts requests per key in fixed windows using INCR + EXPIRE.
type Limiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewLimiter creates a limiter on the given Redis client. Keys are
// namespaced under keyPrefix.
func NewLimiter(client *redis.Client, keyPrefix string) *Limiter {
	return &Limiter{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Result describes the outcome of one rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	RetryIn   time.Duration
}

// Allow counts one request against the key's current window and reports
// whether it fits within the token budget.
func (l *Limiter) Allow(ctx context.Context, key string, tokens int, period time.Duration) (*Result, error) {
	redisKey := l.keyPrefix + key

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	current := incr.Val()
	remaining := ttl.Val()

	// A key without an expiry is a fresh window (or one left over from
	// a crashed EXPIRE); start its clock now.
	if remaining < 0 {
		if err := l.client.Expire(ctx, redisKey, period).Err(); err != nil {
			return nil, fmt.Errorf("rate limit expire: %w", err)
		}
		remaining = period
	}

	if current > int64(tokens) {
		return &Result{
			Allowed: false,
			RetryIn: remaining,
		}, nil
	}
	return &Result{
		Allowed:   true,
		Remaining: tokens - int(current),
		RetryIn:   remaining,
	}, nil
}

// Reset clears the window for a key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.keyPrefix+key).Err()
}
