package timer

import (
	"context"
	"fmt"
	"log"
	"time"

	timerdomain "github.com/mneiter/nuro/domain/timer"
)

// FinishCoordinator owns the running→completed transition. It guarantees
// at most one durable completed write per timer, even when many pollers
// race past the deadline at once.
type FinishCoordinator struct {
	store    Store
	cache    TickCache
	lock     FinishLock
	notifier ChangeNotifier
}

// NewFinishCoordinator creates a finish coordinator.
func NewFinishCoordinator(store Store, cache TickCache, lock FinishLock, notifier ChangeNotifier) *FinishCoordinator {
	return &FinishCoordinator{
		store:    store,
		cache:    cache,
		lock:     lock,
		notifier: notifier,
	}
}

// Finish attempts to persist the completed transition for an expired
// running timer. It returns true when this call performed the durable
// write. Losing the lock race is not an error: another worker owns the
// transition and the caller's transient completed view is still correct.
// On success the caller's record is refreshed in place so it can
// re-resolve against the persisted state.
func (f *FinishCoordinator) Finish(ctx context.Context, t *timerdomain.Timer, now time.Time) (bool, error) {
	if t.Status != timerdomain.StatusRunning {
		return false, nil
	}

	acquired, err := f.lock.Acquire(ctx, t.ID)
	if err != nil {
		return false, fmt.Errorf("finish %s: %w", t.ID, err)
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		if err := f.lock.Release(ctx, t.ID); err != nil {
			log.Printf("[timer] release finish lock for %s: %v", t.ID, err)
		}
	}()

	// Re-read under the lock: a concurrent cancel (or an earlier
	// finisher whose lock expired) may have already left running.
	fresh, err := f.store.GetForOwner(ctx, t.ID, t.UserID)
	if err != nil {
		return false, fmt.Errorf("finish %s: %w", t.ID, err)
	}
	if fresh.Status != timerdomain.StatusRunning {
		*t = *fresh
		return false, nil
	}

	fresh.MarkCompleted(now)
	if err := f.store.Update(ctx, fresh); err != nil {
		return false, fmt.Errorf("finish %s: %w", t.ID, err)
	}
	*t = *fresh

	// Publish after the durable write so woken pollers re-resolve
	// against the persisted state. Cache and notify failures are
	// logged, not surfaced: the transition itself already happened.
	if err := f.cache.Drop(ctx, t.ID); err != nil {
		log.Printf("[timer] drop tick cache for %s: %v", t.ID, err)
	}
	if err := f.notifier.Publish(ctx, t.ID); err != nil {
		log.Printf("[timer] publish finish for %s: %v", t.ID, err)
	}
	return true, nil
}
