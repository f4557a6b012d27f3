package timer

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	timerdomain "github.com/mneiter/nuro/domain/timer"
	"github.com/mneiter/nuro/modules/tickcache"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultWaitBudget is the long-poll timeout when the client does
	// not request one.
	DefaultWaitBudget = 30 * time.Second
	// MaxWaitBudget is the hard upper bound on any wait.
	MaxWaitBudget = 60 * time.Second
	// DefaultPollInterval is how often a suspended request re-resolves
	// its snapshot between change notifications.
	DefaultPollInterval = 500 * time.Millisecond
)

// Config tunes the long-poll behavior of the service.
type Config struct {
	WaitBudget   time.Duration
	PollInterval time.Duration
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		WaitBudget:   DefaultWaitBudget,
		PollInterval: DefaultPollInterval,
	}
}

// Service implements the timer operations: create, cancel, list, and the
// conditional tick resolution that backs the long-poll endpoints.
type Service struct {
	store    Store
	cache    TickCache
	notifier ChangeNotifier
	finisher *FinishCoordinator
	config   Config

	// now is swappable so tests can drive simulated time.
	now func() time.Time
}

// NewService creates a timer service.
func NewService(store Store, cache TickCache, lock FinishLock, notifier ChangeNotifier, config Config) *Service {
	if config.WaitBudget <= 0 {
		config.WaitBudget = DefaultWaitBudget
	}
	if config.WaitBudget > MaxWaitBudget {
		config.WaitBudget = MaxWaitBudget
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	return &Service{
		store:    store,
		cache:    cache,
		notifier: notifier,
		finisher: NewFinishCoordinator(store, cache, lock, notifier),
		config:   config,
		now:      time.Now,
	}
}

// Create starts a new timer for the given owner and returns the full
// resource including its initial snapshot fields.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Resource, error) {
	if req.DurationSeconds < timerdomain.MinDurationSeconds || req.DurationSeconds > timerdomain.MaxDurationSeconds {
		return Resource{}, ErrDurationOutOfRange
	}
	label := req.Label
	if label == "" {
		label = timerdomain.DefaultLabel
	}
	if len(label) > timerdomain.MaxLabelLength {
		return Resource{}, ErrLabelTooLong
	}

	now := s.now()
	t := &timerdomain.Timer{
		ID:              uuid.New().String(),
		UserID:          userID,
		Label:           label,
		DurationSeconds: req.DurationSeconds,
		Status:          timerdomain.StatusRunning,
		StartedAt:       now,
		EndsAt:          now.Add(time.Duration(req.DurationSeconds) * time.Second),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, t); err != nil {
		return Resource{}, err
	}

	s.warmCache(ctx, t)

	snap, err := timerdomain.Resolve(t, now)
	if err != nil {
		return Resource{}, err
	}
	return newResource(t, snap), nil
}

// Cancel transitions a running timer to canceled. Canceling a timer that
// already reached a terminal status returns its current state unchanged.
func (s *Service) Cancel(ctx context.Context, userID, timerID string) (Resource, error) {
	t, snap, err := s.resolveForOwner(ctx, timerID, userID)
	if err != nil {
		return Resource{}, err
	}
	if t.IsTerminal() {
		return newResource(t, snap), nil
	}

	now := s.now()
	t.MarkCanceled(now)
	if err := s.store.Update(ctx, t); err != nil {
		return Resource{}, err
	}

	if err := s.cache.Drop(ctx, t.ID); err != nil {
		log.Printf("[timer] drop tick cache for %s: %v", t.ID, err)
	}
	if err := s.notifier.Publish(ctx, t.ID); err != nil {
		log.Printf("[timer] publish cancel for %s: %v", t.ID, err)
	}

	snap, err = timerdomain.Resolve(t, now)
	if err != nil {
		return Resource{}, err
	}
	return newResource(t, snap), nil
}

// Get returns one timer owned by the caller.
func (s *Service) Get(ctx context.Context, userID, timerID string) (Resource, error) {
	t, snap, err := s.resolveForOwner(ctx, timerID, userID)
	if err != nil {
		return Resource{}, err
	}
	return newResource(t, snap), nil
}

// List returns all of the caller's timers, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Resource, error) {
	timers, err := s.store.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	resources := make([]Resource, 0, len(timers))
	for i := range timers {
		t := &timers[i]
		snap, err := s.snapshot(ctx, t)
		if err != nil {
			return nil, err
		}
		resources = append(resources, newResource(t, snap))
	}
	return resources, nil
}

// Tick resolves the current snapshot for a timer, optionally suspending
// until it differs from the client's tag. The returned snapshot may
// still carry the client's tag: the API layer turns that into a 304.
//
// The wait ends when a change is published for the timer, when the
// budget elapses, or when ctx is canceled (client gone); the first two
// are normal outcomes, the last returns ctx.Err().
func (s *Service) Tick(ctx context.Context, userID, timerID, clientETag string, wait bool, budget time.Duration) (timerdomain.Snapshot, error) {
	_, snap, err := s.resolveForOwner(ctx, timerID, userID)
	if err != nil {
		return timerdomain.Snapshot{}, err
	}

	// Immediate answers: changed state, fire-and-forget poll, or a
	// terminal timer that will never change again.
	if !wait || snap.ETag != clientETag || snap.Status != timerdomain.StatusRunning {
		return snap, nil
	}

	budget = s.clampBudget(budget)
	wake, unsubscribe := s.notifier.Subscribe(timerID)
	defer unsubscribe()

	deadline := time.NewTimer(budget)
	defer deadline.Stop()
	interval := time.NewTicker(s.config.PollInterval)
	defer interval.Stop()

	for {
		// Re-resolve after subscribing so a change between the first
		// resolution and the registration cannot be missed.
		_, snap, err = s.resolveForOwner(ctx, timerID, userID)
		if err != nil {
			return timerdomain.Snapshot{}, err
		}
		if snap.ETag != clientETag {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return timerdomain.Snapshot{}, ctx.Err()
		case <-deadline.C:
			// Expected, silent timeout: no change observed.
			return snap, nil
		case <-wake:
		case <-interval.C:
		}
	}
}

// BatchTick fans the conditional resolution out over several timers and
// collects only the entries whose snapshots changed. Failures are
// isolated per id: a missing timer drops out of the response instead of
// failing the batch.
func (s *Service) BatchTick(ctx context.Context, userID string, req BatchTickRequest) (BatchTickResponse, error) {
	if hasDuplicates(req.TimerIDs) {
		return BatchTickResponse{}, ErrDuplicateTimerIDs
	}

	budget := s.clampBudget(time.Duration(req.TimeoutSeconds * float64(time.Second)))

	changed := make(map[string]timerdomain.Snapshot)
	var mu sync.Mutex

	resolvePending := func(pending []string) ([]string, error) {
		g, gctx := errgroup.WithContext(ctx)
		still := make([]string, 0, len(pending))
		for _, timerID := range pending {
			timerID := timerID
			g.Go(func() error {
				_, snap, err := s.resolveForOwner(gctx, timerID, userID)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					// Isolated failure: drop the id from the batch.
					log.Printf("[timer] batch tick %s: %v", timerID, err)
				case snap.ETag != req.ClientETags[timerID]:
					changed[timerID] = snap
				default:
					still = append(still, timerID)
				}
				return nil
			})
		}
		err := g.Wait()
		return still, err
	}

	pending, err := resolvePending(req.TimerIDs)
	if err != nil {
		return BatchTickResponse{}, err
	}

	if req.Wait && len(pending) > 0 {
		pending, err = s.waitBatch(ctx, userID, req.ClientETags, pending, changed, &mu, budget)
		if err != nil {
			return BatchTickResponse{}, err
		}
	}

	return s.buildBatchResponse(req.TimerIDs, changed, pending), nil
}

// waitBatch suspends on all pending ids at once, re-resolving them on
// every wake-up until the budget elapses or all have changed.
func (s *Service) waitBatch(
	ctx context.Context,
	userID string,
	clientETags map[string]string,
	pending []string,
	changed map[string]timerdomain.Snapshot,
	mu *sync.Mutex,
	budget time.Duration,
) ([]string, error) {
	wake := make(chan struct{}, 1)
	done := make(chan struct{})
	defer close(done)
	for _, timerID := range pending {
		ch, unsubscribe := s.notifier.Subscribe(timerID)
		defer unsubscribe()
		go func(ch <-chan struct{}) {
			for {
				select {
				case <-done:
					return
				case <-ch:
					select {
					case wake <- struct{}{}:
					default:
					}
				}
			}
		}(ch)
	}

	deadline := time.NewTimer(budget)
	defer deadline.Stop()
	interval := time.NewTicker(s.config.PollInterval)
	defer interval.Stop()

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return pending, nil
		case <-wake:
		case <-interval.C:
		}

		still := pending[:0]
		for _, timerID := range pending {
			_, snap, err := s.resolveForOwner(ctx, timerID, userID)
			if err != nil {
				log.Printf("[timer] batch tick %s: %v", timerID, err)
				continue
			}
			if snap.ETag != clientETags[timerID] {
				mu.Lock()
				changed[timerID] = snap
				mu.Unlock()
			} else {
				still = append(still, timerID)
			}
		}
		pending = still
	}
	return pending, nil
}

func (s *Service) buildBatchResponse(requested []string, changed map[string]timerdomain.Snapshot, pending []string) BatchTickResponse {
	resp := BatchTickResponse{
		Timers:      make([]timerdomain.Snapshot, 0, len(changed)),
		NotModified: append([]string(nil), pending...),
	}
	// Preserve request order for the changed entries.
	for _, timerID := range requested {
		if snap, ok := changed[timerID]; ok {
			resp.Timers = append(resp.Timers, snap)
		}
	}
	sort.Strings(resp.NotModified)
	return resp
}

// resolveForOwner loads the record, keeps the tick cache warm, resolves
// the snapshot, and hands expired running timers to the finish
// coordinator. Lock contention degrades to the resolver's transient
// completed view, which is still a correct answer for the caller.
func (s *Service) resolveForOwner(ctx context.Context, timerID, userID string) (*timerdomain.Timer, timerdomain.Snapshot, error) {
	t, err := s.store.GetForOwner(ctx, timerID, userID)
	if err != nil {
		return nil, timerdomain.Snapshot{}, err
	}
	snap, err := s.snapshot(ctx, t)
	if err != nil {
		return nil, timerdomain.Snapshot{}, err
	}
	return t, snap, nil
}

// snapshot resolves one timer, driving the finish transition when the
// deadline has passed.
func (s *Service) snapshot(ctx context.Context, t *timerdomain.Timer) (timerdomain.Snapshot, error) {
	if t.Status == timerdomain.StatusRunning {
		s.ensureCached(ctx, t)
	}

	now := s.now()
	snap, err := timerdomain.Resolve(t, now)
	if err != nil {
		return timerdomain.Snapshot{}, err
	}

	if snap.Finishing {
		finished, err := s.finisher.Finish(ctx, t, now)
		if err != nil {
			// Degrade to the transient completed view; the durable
			// transition will be retried by the next resolution.
			log.Printf("[timer] finish %s: %v", t.ID, err)
			return snap, nil
		}
		if finished || t.IsTerminal() {
			// Re-resolve against the persisted record so the returned
			// etag reflects the durable transition.
			return timerdomain.Resolve(t, now)
		}
		// Another worker holds the lock: the transition is in flight
		// and the transient view is correct as-is.
	}
	return snap, nil
}

// ensureCached rebuilds the shared state entry for a running timer when
// it is missing, e.g. after a Redis restart. Best-effort only.
func (s *Service) ensureCached(ctx context.Context, t *timerdomain.Timer) {
	state, err := s.cache.Get(ctx, t.ID)
	if err != nil {
		log.Printf("[timer] tick cache get for %s: %v", t.ID, err)
		return
	}
	if state == nil {
		s.warmCache(ctx, t)
	}
}

func (s *Service) warmCache(ctx context.Context, t *timerdomain.Timer) {
	if t.Status != timerdomain.StatusRunning {
		return
	}
	state := &tickcache.State{
		TimerID:         t.ID,
		UserID:          t.UserID,
		Label:           t.Label,
		DurationSeconds: t.DurationSeconds,
		EndsAtUnix:      float64(t.EndsAt.UnixNano()) / float64(time.Second),
	}
	if err := s.cache.Put(ctx, state, s.now()); err != nil {
		log.Printf("[timer] tick cache put for %s: %v", t.ID, err)
	}
}

func (s *Service) clampBudget(budget time.Duration) time.Duration {
	if budget <= 0 {
		budget = s.config.WaitBudget
	}
	if budget > MaxWaitBudget {
		budget = MaxWaitBudget
	}
	return budget
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
