package tickcache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestClient connects to a local Redis instance, skipping the test
// when none is reachable.
func newTestClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at localhost:6379: %v", err)
	}
	return client
}

func TestCache_PutGetDrop(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()
	now := time.Now().UTC()

	state := &State{
		TimerID:         "cache-test-timer",
		UserID:          "user-1",
		Label:           "Deep work",
		DurationSeconds: 1500,
		EndsAtUnix:      float64(now.Add(1500*time.Second).UnixNano()) / float64(time.Second),
	}
	defer cache.Drop(ctx, state.TimerID)

	if err := cache.Put(ctx, state, now); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := cache.Get(ctx, state.TimerID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil {
		t.Fatal("Get() returned miss for freshly cached state")
	}
	if got.UserID != state.UserID || got.Label != state.Label || got.DurationSeconds != state.DurationSeconds {
		t.Errorf("Get() = %+v, want %+v", got, state)
	}
	if got.EndsAt().Sub(state.EndsAt()).Abs() > time.Millisecond {
		t.Errorf("EndsAt() = %v, want %v", got.EndsAt(), state.EndsAt())
	}

	// Entry TTL tracks the remaining runtime.
	ttl, err := client.TTL(ctx, timerKey(state.TimerID)).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > 1500*time.Second {
		t.Errorf("TTL = %v, want within (0, 1500s]", ttl)
	}

	if err := cache.Drop(ctx, state.TimerID); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}
	if got, err := cache.Get(ctx, state.TimerID); err != nil || got != nil {
		t.Errorf("Get() after Drop = (%v, %v), want miss", got, err)
	}
}

func TestCache_MissIsNotAnError(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()

	cache := NewCache(client)
	got, err := cache.Get(context.Background(), "never-stored")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != nil {
		t.Errorf("Get() = %+v, want nil", got)
	}
}

func TestCache_ExpiredDeadlineGetsMinimumTTL(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()

	cache := NewCache(client)
	ctx := context.Background()
	now := time.Now().UTC()

	state := &State{
		TimerID:    "cache-test-expired",
		UserID:     "user-1",
		EndsAtUnix: float64(now.Add(-time.Minute).Unix()),
	}
	defer cache.Drop(ctx, state.TimerID)

	if err := cache.Put(ctx, state, now); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	ttl, err := client.TTL(ctx, timerKey(state.TimerID)).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > 2*time.Second {
		t.Errorf("TTL = %v, want about 1s", ttl)
	}
}

func TestLock_AcquireIsExclusive(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()

	lock := NewLock(client, 5*time.Second)
	ctx := context.Background()
	const timerID = "lock-test-timer"
	defer client.Del(ctx, finishLockKey(timerID))

	ok, err := lock.Acquire(ctx, timerID)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !ok {
		t.Fatal("first Acquire() = false, want true")
	}

	ok, err = lock.Acquire(ctx, timerID)
	if err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	if ok {
		t.Error("second Acquire() = true, want false while held")
	}

	if err := lock.Release(ctx, timerID); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	ok, err = lock.Acquire(ctx, timerID)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	if !ok {
		t.Error("Acquire() after release = false, want true")
	}
}

func TestNotifier_PublishReachesSubscriber(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()

	notifier := NewNotifier(client)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := notifier.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer notifier.Close()

	wake, unsubscribe := notifier.Subscribe("notify-test-timer")
	defer unsubscribe()

	notifier.Publish(context.Background(), "notify-test-timer")

	select {
	case <-wake:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was not woken by Publish")
	}
}
