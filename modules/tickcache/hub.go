package tickcache

import "sync"

// hub fans a change signal for one timer out to every registered waiter.
// Delivery is best-effort: sends are non-blocking into buffered channels,
// so a slow waiter coalesces signals instead of blocking the publisher.
type hub struct {
	mu      sync.Mutex
	waiters map[string]map[int]chan struct{}
	nextID  int
}

func newHub() *hub {
	return &hub{waiters: make(map[string]map[int]chan struct{})}
}

// subscribe registers a waiter for a timer id. The returned cancel func
// must be called to deregister; it is safe to call more than once.
func (h *hub) subscribe(timerID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.waiters[timerID] == nil {
		h.waiters[timerID] = make(map[int]chan struct{})
	}
	h.waiters[timerID][id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.waiters[timerID]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(h.waiters, timerID)
			}
		}
	}
	return ch, cancel
}

// broadcast wakes every waiter currently registered for a timer id.
func (h *hub) broadcast(timerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.waiters[timerID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// waiterCount reports the number of registered waiters for a timer.
func (h *hub) waiterCount(timerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.waiters[timerID])
}
