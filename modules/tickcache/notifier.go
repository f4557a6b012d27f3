package tickcache

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Notifier bridges Redis pub/sub and local long-poll waiters. A single
// subscription goroutine receives change messages and broadcasts them to
// the in-process hub, so one publish wakes every waiter on every process.
// Redis pub/sub is fire-and-forget; a missed wake-up only delays a poller
// until its wait budget expires and it re-resolves from the durable
// record.
type Notifier struct {
	client *redis.Client
	hub    *hub
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewNotifier creates a change notifier on the given Redis client.
func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{
		client: client,
		hub:    newHub(),
	}
}

// Run subscribes to the change channel and pumps messages into the hub
// until the context is canceled.
func (n *Notifier) Run(ctx context.Context) error {
	n.pubsub = n.client.Subscribe(ctx, changedChannel)
	if _, err := n.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("notifier subscribe: %w", err)
	}

	n.done = make(chan struct{})
	go func() {
		defer close(n.done)
		ch := n.pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				n.hub.broadcast(msg.Payload)
			}
		}
	}()
	return nil
}

// Close tears down the Redis subscription and waits for the pump to exit.
func (n *Notifier) Close() error {
	if n.pubsub == nil {
		return nil
	}
	err := n.pubsub.Close()
	if n.done != nil {
		<-n.done
	}
	return err
}

// Publish announces a state change for a timer. Local waiters are woken
// directly so a same-process poller never depends on the Redis round
// trip; remote processes get the signal via pub/sub.
func (n *Notifier) Publish(ctx context.Context, timerID string) error {
	n.hub.broadcast(timerID)
	if err := n.client.Publish(ctx, changedChannel, timerID).Err(); err != nil {
		log.Printf("[tickcache] publish change for %s: %v", timerID, err)
		return fmt.Errorf("notifier publish: %w", err)
	}
	return nil
}

// Subscribe registers interest in changes to one timer. The cancel func
// must be called when the waiter is done to avoid leaking registrations.
func (n *Notifier) Subscribe(timerID string) (<-chan struct{}, func()) {
	return n.hub.subscribe(timerID)
}
