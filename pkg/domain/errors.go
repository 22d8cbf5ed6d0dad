package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores and loaders when a record or course does not exist.
var ErrNotFound = errors.New("not found")

// ErrLocked is returned when a turn targets an outline item the user has not unlocked yet.
var ErrLocked = errors.New("outline item is locked")

// ErrLockBusy is returned when the per-user session lock could not be acquired in time.
// No state was mutated; callers retry the whole turn later.
var ErrLockBusy = errors.New("session is busy")

// ErrRiskRejected is matched by every RiskRejectedError.
var ErrRiskRejected = errors.New("content rejected by safety check")

// ErrCodeExpired and ErrCodeMismatch are returned by verification code services.
var (
	ErrCodeExpired  = errors.New("verification code expired")
	ErrCodeMismatch = errors.New("verification code mismatch")
)

// ErrDuplicate is returned by stores when a log entry with the same idempotency key exists.
var ErrDuplicate = errors.New("duplicate entry")

// ValidationError is a user-recoverable input problem. The turn re-presents the block
// without advancing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// RiskRejectedError carries the label reported by the content-risk collaborator.
type RiskRejectedError struct {
	Label string
}

func (e *RiskRejectedError) Error() string {
	return fmt.Sprintf("content rejected by safety check (%s)", e.Label)
}

func (e *RiskRejectedError) Is(target error) bool {
	return target == ErrRiskRejected
}

// InconsistentStateError signals corrupted or cyclic progression state. It is fatal for the turn.
type InconsistentStateError struct {
	Reason string
}

func (e *InconsistentStateError) Error() string {
	return "inconsistent state: " + e.Reason
}

// UpstreamError wraps a failure of an external collaborator (model, payments, codes).
type UpstreamError struct {
	Service string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
