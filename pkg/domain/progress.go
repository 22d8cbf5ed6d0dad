package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a progress record.
type Status string

const (
	StatusLocked     Status = "locked"
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusBranch     Status = "branch"
	StatusCompleted  Status = "completed"
	// StatusReset marks a record superseded by a newer one. History is kept.
	StatusReset      Status = "reset"
)

// rank orders statuses along the forward direction of progression.
// Branch shares the rank of in-progress: a record may move between the two freely.
func (s Status) rank() int {
	switch s {
	case StatusLocked:
		return 0
	case StatusNotStarted:
		return 1
	case StatusInProgress, StatusBranch:
		return 2
	case StatusCompleted:
		return 3
	case StatusReset:
		return 4
	}
	return -1
}

// Terminal reports whether no further transition (besides reset) is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusReset
}

// CanTransition reports whether moving from one status to another keeps progression monotonic.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	if from == StatusReset || to.rank() < 0 {
		return false
	}
	if to == StatusReset {
		return true
	}
	if from == StatusCompleted {
		return false
	}
	if to == StatusBranch {
		return from == StatusInProgress
	}
	return to.rank() >= from.rank()
}

// ProgressRecord tracks one user's advancement through one outline item.
type ProgressRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CourseID      string    `json:"course_id"`
	OutlineItemID string    `json:"outline_item_id"`
	Status        Status    `json:"status"`
	Position      int       `json:"position"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Active reports whether the record is the live one for its (user, item).
func (r *ProgressRecord) Active() bool {
	return r.Status != StatusReset
}

// SetStatus moves the record to a new status, refusing backward moves.
func (r *ProgressRecord) SetStatus(to Status) error {
	if !CanTransition(r.Status, to) {
		return &InconsistentStateError{
			Reason: fmt.Sprintf("progress %s: illegal transition %s -> %s", r.ID, r.Status, to),
		}
	}
	r.Status = to
	return nil
}

// Promote moves the record forward to target if it is not already there or beyond.
// It reports whether the status changed. It never downgrades.
func (r *ProgressRecord) Promote(target Status) bool {
	if r.Status == StatusReset || r.Status.rank() >= target.rank() {
		return false
	}
	r.Status = target
	return true
}
