package timer

import (
	"time"

	timerdomain "github.com/mneiter/nuro/domain/timer"
)

// CreateRequest is the payload for starting a timer.
type CreateRequest struct {
	Label           string `json:"label"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Resource is the full timer representation returned by the CRUD
// endpoints, combining the durable record with its current snapshot.
type Resource struct {
	ID               string             `json:"id"`
	Label            string             `json:"label"`
	DurationSeconds  int                `json:"duration_seconds"`
	Status           timerdomain.Status `json:"status"`
	StartedAt        time.Time          `json:"started_at"`
	EndsAt           time.Time          `json:"ends_at"`
	CompletedAt      *time.Time         `json:"completed_at"`
	CanceledAt       *time.Time         `json:"canceled_at"`
	RemainingSeconds int                `json:"remaining_seconds"`
	ETag             string             `json:"etag"`
	LastModified     time.Time          `json:"last_modified"`
}

func newResource(t *timerdomain.Timer, snap timerdomain.Snapshot) Resource {
	return Resource{
		ID:               t.ID,
		Label:            t.Label,
		DurationSeconds:  t.DurationSeconds,
		Status:           snap.Status,
		StartedAt:        t.StartedAt,
		EndsAt:           snap.EndsAt,
		CompletedAt:      t.CompletedAt,
		CanceledAt:       t.CanceledAt,
		RemainingSeconds: snap.RemainingSeconds,
		ETag:             snap.ETag,
		LastModified:     snap.LastModified,
	}
}

// BatchTickRequest asks for the changed subset of several timers.
type BatchTickRequest struct {
	TimerIDs       []string          `json:"timer_ids"`
	Wait           bool              `json:"wait"`
	ClientETags    map[string]string `json:"client_etags"`
	TimeoutSeconds float64           `json:"timeout_seconds"`
}

// BatchTickResponse carries only the entries whose snapshots changed,
// plus the ids that matched their client tag.
type BatchTickResponse struct {
	Timers      []timerdomain.Snapshot `json:"timers"`
	NotModified []string               `json:"not_modified"`
}
