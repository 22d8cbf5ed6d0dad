package domain

import "time"

// BranchAssociation redirects a progress record in StatusBranch to another record.
// At most one active edge leaves a given record; repointing deactivates the previous one.
type BranchAssociation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
