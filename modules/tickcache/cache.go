// Package tickcache provides the Redis-backed coordination layer for
// timers: a short-TTL tick state cache, the finish lock, and the change
// notifier that wakes suspended long-poll requests. Everything here is
// best-effort and disposable; resolution always falls back to the
// durable record when the cache is cold.
package tickcache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	timerKeyPrefix   = "nuro:timer:"
	finishLockSuffix = ":finish-lock"
	changedChannel   = "nuro:timer-changed"
	rateLimitPrefix  = "nuro:rl:"
	minStateTTL      = time.Second
)

func timerKey(timerID string) string {
	return timerKeyPrefix + timerID
}

func finishLockKey(timerID string) string {
	return timerKey(timerID) + finishLockSuffix
}

// RateLimitKeyPrefix is the namespace shared with the rate limiting
// middleware so all Nuro keys live under one prefix in Redis.
func RateLimitKeyPrefix() string {
	return rateLimitPrefix
}

// State is the cached projection of a running timer. It carries just
// enough to resolve ticks without touching the durable store.
type State struct {
	TimerID         string
	UserID          string
	Label           string
	DurationSeconds int
	EndsAtUnix      float64
}

// EndsAt converts the cached deadline back to a timestamp.
func (s *State) EndsAt() time.Time {
	sec := int64(s.EndsAtUnix)
	nsec := int64((s.EndsAtUnix - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

// Cache stores per-timer state hashes with a TTL bounded by the timer's
// remaining runtime.
type Cache struct {
	client *redis.Client
}

// NewCache creates a tick state cache on the given Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Put stores the state hash and sets its TTL to the time left until the
// deadline (at least one second, so expired entries still linger long
// enough for racing readers).
func (c *Cache) Put(ctx context.Context, state *State, now time.Time) error {
	ttl := state.EndsAt().Sub(now)
	if ttl < minStateTTL {
		ttl = minStateTTL
	}

	key := timerKey(state.TimerID)
	fields := map[string]interface{}{
		"end_ts":       strconv.FormatFloat(state.EndsAtUnix, 'f', -1, 64),
		"user_id":      state.UserID,
		"label":        state.Label,
		"duration_sec": strconv.Itoa(state.DurationSeconds),
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tick cache put: %w", err)
	}
	return nil
}

// Get loads the cached state for a timer. A missing or unparsable entry
// returns (nil, nil): cache misses are not errors.
func (c *Cache) Get(ctx context.Context, timerID string) (*State, error) {
	data, err := c.client.HGetAll(ctx, timerKey(timerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("tick cache get: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	endTS, err := strconv.ParseFloat(data["end_ts"], 64)
	if err != nil {
		// Corrupt entry; treat as a miss and let the caller rebuild it.
		return nil, nil
	}

	duration, _ := strconv.Atoi(data["duration_sec"])
	return &State{
		TimerID:         timerID,
		UserID:          data["user_id"],
		Label:           data["label"],
		DurationSeconds: duration,
		EndsAtUnix:      endTS,
	}, nil
}

// Drop removes a timer's cached state, typically after a terminal
// transition.
func (c *Cache) Drop(ctx context.Context, timerID string) error {
	if err := c.client.Del(ctx, timerKey(timerID)).Err(); err != nil {
		return fmt.Errorf("tick cache drop: %w", err)
	}
	return nil
}
