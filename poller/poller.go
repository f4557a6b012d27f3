package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/mneiter/nuro/domain/timer"
)

// State is the poll loop's lifecycle state.
type State int

const (
	// StateIdle means the loop has not started yet.
	StateIdle State = iota
	// StatePolling means the loop is issuing conditional requests.
	StatePolling
	// StateSuspended means the loop is backing off after a failure.
	StateSuspended
	// StateStopped is terminal: the timer finished, the context was
	// canceled, or Stop was called.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateSuspended:
		return "suspended"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Default tuning for the poll loop.
const (
	DefaultBackoff    = 2 * time.Second
	DefaultStallAfter = 5
)

// Config configures a Poller.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:3000".
	BaseURL string
	// Token is the bearer credential for the owner of the timer.
	Token string
	// Backoff is the fixed delay between attempts while suspended.
	Backoff time.Duration
	// StallAfter is the number of consecutive failures before OnStall
	// fires. Zero means DefaultStallAfter.
	StallAfter int
	// HTTPClient overrides the transport. A nil client gets a default
	// with no overall timeout, since the server may hold each request
	// for its full wait budget.
	HTTPClient *http.Client
}

// Hooks receives poll loop events. All fields are optional.
type Hooks struct {
	// OnTick fires for every 200 response with the fresh snapshot.
	OnTick func(snap timer.Snapshot)
	// OnStall fires once when consecutive failures reach the
	// configured threshold. It fires again only after a successful
	// response resets the counter.
	OnStall func(err error)
	// OnStateChange fires whenever the loop transitions state.
	OnStateChange func(from, to State)
}

// Poller drives a single timer's long-poll loop against the tick
// endpoint. It reuses the server's validator so unchanged snapshots
// cost a 304 and a held connection rather than a payload.
type Poller struct {
	config Config
	hooks  Hooks
	client *http.Client

	state    State
	etag     string
	failures int
	stalled  bool
}

// New creates a Poller for one timer. Run must be called to start it.
func New(config Config, hooks Hooks) *Poller {
	if config.Backoff <= 0 {
		config.Backoff = DefaultBackoff
	}
	if config.StallAfter <= 0 {
		config.StallAfter = DefaultStallAfter
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Poller{
		config: config,
		hooks:  hooks,
		client: client,
		state:  StateIdle,
	}
}

// State returns the loop's current state. Only meaningful from the
// goroutine running the loop, or after Run has returned.
func (p *Poller) State() State {
	return p.state
}

// Run polls until the timer reaches a terminal status or ctx is
// canceled. It blocks; callers wanting a background loop start it in
// a goroutine. The returned error is nil on a terminal snapshot and
// ctx.Err() on cancellation.
func (p *Poller) Run(ctx context.Context, timerID string) error {
	p.transition(StatePolling)

	for {
		if err := ctx.Err(); err != nil {
			p.transition(StateStopped)
			return err
		}

		snap, status, err := p.poll(ctx, timerID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				p.transition(StateStopped)
				return ctx.Err()
			}
			if stop := p.suspend(ctx, err); stop {
				p.transition(StateStopped)
				return ctx.Err()
			}
			continue

		case status == http.StatusNotModified:
			p.recover()
			continue

		case status == http.StatusOK:
			p.recover()
			p.etag = snap.ETag
			if p.hooks.OnTick != nil {
				p.hooks.OnTick(snap)
			}
			if snap.Status != timer.StatusRunning {
				p.transition(StateStopped)
				return nil
			}
			continue

		default:
			// 5xx and unexpected statuses count as failures.
			if stop := p.suspend(ctx, fmt.Errorf("unexpected status %d", status)); stop {
				p.transition(StateStopped)
				return ctx.Err()
			}
			continue
		}
	}
}

// poll issues one conditional long-poll request.
func (p *Poller) poll(ctx context.Context, timerID string) (timer.Snapshot, int, error) {
	url := fmt.Sprintf("%s/api/v1/timers/%s/tick", p.config.BaseURL, timerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return timer.Snapshot{}, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.config.Token)
	if p.etag != "" {
		req.Header.Set("If-None-Match", p.etag)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return timer.Snapshot{}, 0, fmt.Errorf("poll request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return timer.Snapshot{}, resp.StatusCode, nil
	}

	var snap timer.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return timer.Snapshot{}, 0, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, resp.StatusCode, nil
}

// suspend records a failure, waits out the backoff, and reports whether
// the context was canceled while waiting.
func (p *Poller) suspend(ctx context.Context, cause error) bool {
	p.transition(StateSuspended)
	p.failures++
	if p.failures >= p.config.StallAfter && !p.stalled {
		p.stalled = true
		log.Printf("[poller] stalled after %d consecutive failures: %v", p.failures, cause)
		if p.hooks.OnStall != nil {
			p.hooks.OnStall(cause)
		}
	}

	t := time.NewTimer(p.config.Backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-t.C:
		return false
	}
}

// recover leaves the suspended state after a successful response.
func (p *Poller) recover() {
	p.failures = 0
	p.stalled = false
	p.transition(StatePolling)
}

func (p *Poller) transition(to State) {
	if p.state == to {
		return
	}
	from := p.state
	p.state = to
	if p.hooks.OnStateChange != nil {
		p.hooks.OnStateChange(from, to)
	}
}
