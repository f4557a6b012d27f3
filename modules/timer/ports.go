package timer

import (
	"context"
	"errors"
	"time"

	timerdomain "github.com/mneiter/nuro/domain/timer"
	"github.com/mneiter/nuro/modules/tickcache"
)

var (
	// ErrNotFound is returned when a timer does not exist or is not
	// owned by the caller. The two cases are indistinguishable on
	// purpose.
	ErrNotFound = errors.New("timer not found")
	// ErrDurationOutOfRange is returned when a create request falls
	// outside the accepted duration bounds.
	ErrDurationOutOfRange = errors.New("duration must be between 60 and 28800 seconds")
	// ErrLabelTooLong is returned when a label exceeds the display limit.
	ErrLabelTooLong = errors.New("label must be at most 128 characters")
	// ErrDuplicateTimerIDs is returned when a batch request repeats an id.
	ErrDuplicateTimerIDs = errors.New("timer_ids must be unique")
)

// Store is the durable record store for timers. It is the single writer
// target for status transitions; only Cancel and the finish coordinator
// go through Update.
type Store interface {
	Create(ctx context.Context, t *timerdomain.Timer) error
	GetForOwner(ctx context.Context, timerID, userID string) (*timerdomain.Timer, error)
	ListByOwner(ctx context.Context, userID string) ([]timerdomain.Timer, error)
	Update(ctx context.Context, t *timerdomain.Timer) error
}

// TickCache is the best-effort shared state cache. Losing it must never
// cause incorrect resolution, only slower wake-ups.
type TickCache interface {
	Put(ctx context.Context, state *tickcache.State, now time.Time) error
	Get(ctx context.Context, timerID string) (*tickcache.State, error)
	Drop(ctx context.Context, timerID string) error
}

// FinishLock is the per-timer mutual exclusion point for the finish
// transition: acquire-if-absent with bounded auto-expiry.
type FinishLock interface {
	Acquire(ctx context.Context, timerID string) (bool, error)
	Release(ctx context.Context, timerID string) error
}

// ChangeNotifier broadcasts state changes to suspended pollers. A single
// publish must wake every subscriber for the timer id. Delivery is
// best-effort.
type ChangeNotifier interface {
	Publish(ctx context.Context, timerID string) error
	Subscribe(timerID string) (<-chan struct{}, func())
}
