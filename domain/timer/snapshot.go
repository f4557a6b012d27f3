package timer

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDuration is returned by Resolve when a record violates the
// creation invariant of a positive duration.
var ErrInvalidDuration = errors.New("timer duration must be positive")

// Snapshot is one resolved view of a timer at a point in time. It is
// derived, never persisted, and recomputed on every resolution.
type Snapshot struct {
	ID               string    `json:"id"`
	Status           Status    `json:"status"`
	Label            string    `json:"label"`
	EndsAt           time.Time `json:"ends_at"`
	RemainingSeconds int       `json:"remaining_seconds"`
	ETag             string    `json:"etag"`
	LastModified     time.Time `json:"last_modified"`

	// Finishing is set when the snapshot observes an expired running
	// record: the view is already completed but the durable transition
	// has not been persisted. The caller is expected to hand the timer
	// to the finish coordinator. Never serialized.
	Finishing bool `json:"-"`
}

// Resolve computes the current snapshot for a timer. It is side-effect
// free: an expired running timer resolves to a completed view with
// Finishing set, and persistence stays the finish coordinator's job so
// read paths never write.
func Resolve(t *Timer, now time.Time) (Snapshot, error) {
	if t.DurationSeconds <= 0 {
		return Snapshot{}, fmt.Errorf("timer %s: %w", t.ID, ErrInvalidDuration)
	}

	status := t.Status
	remaining := 0
	finishing := false

	if t.Status == StatusRunning {
		remaining = int(math.Ceil(t.EndsAt.Sub(now).Seconds()))
		if remaining <= 0 {
			remaining = 0
			status = StatusCompleted
			finishing = true
		}
	}

	return Snapshot{
		ID:               t.ID,
		Status:           status,
		Label:            t.Label,
		EndsAt:           t.EndsAt,
		RemainingSeconds: remaining,
		ETag:             WeakETag(t.ID, string(status), strconv.Itoa(t.Version), strconv.Itoa(remaining)),
		LastModified:     t.UpdatedAt,
		Finishing:        finishing,
	}, nil
}

// WeakETag builds an opaque weak validator from the given parts. Two
// resolutions of the same logical state produce the same tag; any status
// transition bumps the record version and therefore the tag.
func WeakETag(parts ...string) string {
	digest := sha1.Sum([]byte(strings.Join(parts, "::")))
	encoded := base64.RawURLEncoding.EncodeToString(digest[:])
	return `W/"` + encoded + `"`
}
