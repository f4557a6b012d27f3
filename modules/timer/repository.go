package timer

import (
	"context"
	"errors"
	"fmt"

	timerdomain "github.com/mneiter/nuro/domain/timer"
	"gorm.io/gorm"
)

// Repository is the GORM-backed Store implementation.
type Repository struct {
	db *gorm.DB
}

var _ Store = (*Repository)(nil)

// NewRepository creates a timer repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate runs database migrations for the timers table.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&timerdomain.Timer{})
}

// Create persists a new timer.
func (r *Repository) Create(ctx context.Context, t *timerdomain.Timer) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create timer: %w", err)
	}
	return nil
}

// GetForOwner loads a timer scoped to its owner. Unknown ids and foreign
// timers both map to ErrNotFound.
func (r *Repository) GetForOwner(ctx context.Context, timerID, userID string) (*timerdomain.Timer, error) {
	var t timerdomain.Timer
	result := r.db.WithContext(ctx).First(&t, "id = ? AND user_id = ?", timerID, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get timer: %w", result.Error)
	}
	return &t, nil
}

// ListByOwner returns all of a user's timers, newest first.
func (r *Repository) ListByOwner(ctx context.Context, userID string) ([]timerdomain.Timer, error) {
	var timers []timerdomain.Timer
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&timers)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list timers: %w", result.Error)
	}
	return timers, nil
}

// Update persists a state transition.
func (r *Repository) Update(ctx context.Context, t *timerdomain.Timer) error {
	if err := r.db.WithContext(ctx).Save(t).Error; err != nil {
		return fmt.Errorf("failed to update timer: %w", err)
	}
	return nil
}
