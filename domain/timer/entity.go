// Package timer defines the durable Timer entity and the pure tick
// resolution logic shared by the service and API layers.
package timer

import (
	"time"
)

// Status is the lifecycle state of a timer. Transitions are monotonic:
// a timer never returns to StatusRunning once it has left it.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Duration bounds enforced at creation, in seconds (1 minute to 8 hours).
const (
	MinDurationSeconds = 60
	MaxDurationSeconds = 8 * 60 * 60
)

// DefaultLabel is used when a create request carries no label.
const DefaultLabel = "Pomodoro"

// MaxLabelLength is the longest accepted display label.
const MaxLabelLength = 128

// Timer is the durable record of a countdown owned by a single user.
// Only the cancel operation and the finish coordinator may change Status.
type Timer struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	UserID          string     `gorm:"size:36;index;not null" json:"-"`
	Label           string     `gorm:"size:128;not null" json:"label"`
	DurationSeconds int        `gorm:"not null" json:"duration_seconds"`
	Status          Status     `gorm:"size:16;not null" json:"status"`
	StartedAt       time.Time  `gorm:"not null" json:"started_at"`
	EndsAt          time.Time  `gorm:"not null" json:"ends_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	CanceledAt      *time.Time `json:"canceled_at"`
	Version         int        `gorm:"not null;default:1" json:"-"`
	CreatedAt       time.Time  `json:"-"`
	UpdatedAt       time.Time  `json:"-"`
}

// IsTerminal reports whether the timer has reached a final status.
func (t *Timer) IsTerminal() bool {
	return t.Status != StatusRunning
}

// touch records a state-affecting transition. Version participates in
// the ETag, so every transition invalidates previously issued tags.
func (t *Timer) touch(when time.Time) {
	t.Version++
	t.UpdatedAt = when
}

// MarkCompleted transitions a running timer to completed. EndsAt snaps
// to the completion instant so late finishes report an accurate end.
func (t *Timer) MarkCompleted(when time.Time) {
	t.Status = StatusCompleted
	t.CompletedAt = &when
	t.EndsAt = when
	t.touch(when)
}

// MarkCanceled transitions a running timer to canceled.
func (t *Timer) MarkCanceled(when time.Time) {
	t.Status = StatusCanceled
	t.CanceledAt = &when
	t.touch(when)
}
