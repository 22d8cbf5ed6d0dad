package domain

import "time"

// Role identifies who produced a log entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// LogEntry is one append-only record of a block instance shown to, or answered by, the user.
type LogEntry struct {
	ID         string    `json:"id"`
	ProgressID string    `json:"progress_id"`
	BlockID    string    `json:"block_id"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	Order      int       `json:"order"`
	// Key is the idempotency key of the user action that produced the entry, if any.
	Key        string    `json:"key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
