// Package timer implements the countdown service: durable timer records,
// the finish coordinator, and the conditional tick resolution behind the
// long-poll endpoints.
package timer

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module provides timer services as a mono module.
type Module struct {
	dbPath  string
	config  Config
	db      *gorm.DB
	repo    *Repository
	service *Service
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new timer module.
func NewModule(dbPath string, config Config) *Module {
	return &Module{
		dbPath: dbPath,
		config: config,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "timer"
}

// Start opens the database and prepares the repository. The coordination
// layer (cache, lock, notifier) is wired afterwards via SetCoordination.
func (m *Module) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db
	m.repo = NewRepository(db)

	if err := m.repo.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("[timer] Module started (database: %s)", m.dbPath)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[timer] Module stopped")
	return nil
}

// Health reports database connectivity.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.dbPath,
		},
	}
}

// SetCoordination wires the shared coordination layer and builds the
// service. Called from main after all modules have started.
func (m *Module) SetCoordination(cache TickCache, lock FinishLock, notifier ChangeNotifier) {
	m.service = NewService(m.repo, cache, lock, notifier, m.config)
}

// Service returns the timer service, or nil before SetCoordination.
func (m *Module) Service() *Service {
	return m.service
}
