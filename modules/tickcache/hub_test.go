package tickcache

import (
	"testing"
	"time"
)

func TestHub_BroadcastWakesAllWaiters(t *testing.T) {
	h := newHub()

	const waiters = 5
	chans := make([]<-chan struct{}, 0, waiters)
	cancels := make([]func(), 0, waiters)
	for i := 0; i < waiters; i++ {
		ch, cancel := h.subscribe("timer-1")
		chans = append(chans, ch)
		cancels = append(cancels, cancel)
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	h.broadcast("timer-1")

	for i, ch := range chans {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("waiter %d not woken by broadcast", i)
		}
	}
}

func TestHub_BroadcastIsScopedToTimer(t *testing.T) {
	h := newHub()

	chA, cancelA := h.subscribe("timer-a")
	defer cancelA()
	chB, cancelB := h.subscribe("timer-b")
	defer cancelB()

	h.broadcast("timer-a")

	select {
	case <-chA:
	case <-time.After(time.Second):
		t.Fatal("timer-a waiter not woken")
	}

	select {
	case <-chB:
		t.Fatal("timer-b waiter woken by timer-a broadcast")
	default:
	}
}

func TestHub_CancelDeregisters(t *testing.T) {
	h := newHub()

	_, cancel := h.subscribe("timer-1")
	if got := h.waiterCount("timer-1"); got != 1 {
		t.Fatalf("waiterCount = %d, want 1", got)
	}

	cancel()
	if got := h.waiterCount("timer-1"); got != 0 {
		t.Errorf("waiterCount after cancel = %d, want 0", got)
	}

	// Cancel is safe to call twice.
	cancel()

	// Broadcasting with no waiters must not panic or block.
	h.broadcast("timer-1")
}

func TestHub_SlowWaiterDoesNotBlockPublisher(t *testing.T) {
	h := newHub()

	ch, cancel := h.subscribe("timer-1")
	defer cancel()

	// Repeated broadcasts coalesce into the buffered slot instead of
	// blocking.
	for i := 0; i < 10; i++ {
		h.broadcast("timer-1")
	}

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("waiter never received coalesced signal")
	}
}
