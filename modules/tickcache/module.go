package tickcache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

// Module owns the Redis connection and exposes the tick cache, the
// finish lock and the change notifier to the timer module.
type Module struct {
	redisAddr string
	lockTTL   time.Duration

	client   *redis.Client
	cache    *Cache
	lock     *Lock
	notifier *Notifier
	cancel   context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the tick cache module.
func NewModule(redisAddr string, lockTTL time.Duration) *Module {
	return &Module{
		redisAddr: redisAddr,
		lockTTL:   lockTTL,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "tickcache"
}

// Start connects to Redis and starts the change notifier pump.
func (m *Module) Start(ctx context.Context) error {
	m.client = redis.NewClient(&redis.Options{Addr: m.redisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := m.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", m.redisAddr, err)
	}

	m.cache = NewCache(m.client)
	m.lock = NewLock(m.client, m.lockTTL)
	m.notifier = NewNotifier(m.client)

	runCtx, runCancel := context.WithCancel(context.Background())
	m.cancel = runCancel
	if err := m.notifier.Run(runCtx); err != nil {
		runCancel()
		return err
	}

	log.Printf("[tickcache] Module started (redis: %s)", m.redisAddr)
	return nil
}

// Stop closes the notifier and the Redis client.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.notifier != nil {
		if err := m.notifier.Close(); err != nil {
			log.Printf("[tickcache] notifier close: %v", err)
		}
	}
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			return err
		}
	}
	log.Println("[tickcache] Module stopped")
	return nil
}

// Health reports Redis connectivity.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.client == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "redis client not initialized",
		}
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"redis": m.redisAddr,
		},
	}
}

// Cache returns the tick state cache.
func (m *Module) Cache() *Cache {
	return m.cache
}

// Lock returns the finish lock.
func (m *Module) Lock() *Lock {
	return m.lock
}

// Notifier returns the change notifier.
func (m *Module) Notifier() *Notifier {
	return m.notifier
}

// Client returns the underlying Redis client, shared with the rate
// limiting middleware.
func (m *Module) Client() *redis.Client {
	return m.client
}
