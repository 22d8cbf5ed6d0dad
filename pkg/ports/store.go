package ports

import (
	"context"

	"github.com/aretw0/lectern/pkg/domain"
)

// Store opens transactions over the engine's persistent state.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one unit of work. Nothing written through it is visible to other transactions
// until Commit. Rollback after Commit is a no-op.
//
// Lookups return domain.ErrNotFound when nothing matches.
type Tx interface {
	GetProgress(ctx context.Context, id string) (*domain.ProgressRecord, error)
	// FindProgress returns the active (non-reset) record of a user for an outline item.
	FindProgress(ctx context.Context, userID, courseID, itemID string) (*domain.ProgressRecord, error)
	// ListProgress returns the active records of a user in a course.
	ListProgress(ctx context.Context, userID, courseID string) ([]*domain.ProgressRecord, error)
	CreateProgress(ctx context.Context, rec *domain.ProgressRecord) error
	UpdateProgress(ctx context.Context, rec *domain.ProgressRecord) error

	// ActiveBranch returns the active outgoing association of a record.
	ActiveBranch(ctx context.Context, fromID string) (*domain.BranchAssociation, error)
	// PutBranch stores an association and deactivates any other active edge from the same record.
	PutBranch(ctx context.Context, b *domain.BranchAssociation) error

	Variables(ctx context.Context, userID string) (map[string]string, error)
	SetVariable(ctx context.Context, userID, key, value string) error

	// AppendLog assigns the next Order of the progress record when e.Order is zero.
	// It returns domain.ErrDuplicate if e.Key is set and already used.
	AppendLog(ctx context.Context, e *domain.LogEntry) error
	// ListLog returns the entries of a progress record ordered by Order.
	ListLog(ctx context.Context, progressID string) ([]domain.LogEntry, error)
	FindLogByKey(ctx context.Context, key string) (*domain.LogEntry, error)

	Commit() error
	Rollback() error
}
