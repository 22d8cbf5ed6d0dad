package domain

import (
	"context"
	"time"
)

// EventType defines the category of a lifecycle event.
type EventType string

const (
	EventTurnStart    EventType = "turn_start"
	EventTurnEnd      EventType = "turn_end"
	EventBlock        EventType = "block"
	EventStatusChange EventType = "status_change"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
}

// TurnEvent marks the start or end of a turn. Outcome is empty on start.
type TurnEvent struct {
	EventBase
	Outcome  string        `json:"outcome,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// BlockEvent reports a block whose output was produced.
type BlockEvent struct {
	EventBase
	OutlineItemID string          `json:"outline_item_id"`
	BlockID       string          `json:"block_id"`
	Content       ContentKind     `json:"content"`
	Interaction   InteractionKind `json:"interaction"`
	Replayed      bool            `json:"replayed,omitempty"`
}

// StatusEvent reports a progress record transition.
type StatusEvent struct {
	EventBase
	OutlineItemID string `json:"outline_item_id"`
	From          Status `json:"from"`
	To            Status `json:"to"`
}

// LifecycleHooks defines callbacks for engine observability. Nil callbacks are skipped.
type LifecycleHooks struct {
	OnTurnStart    func(context.Context, *TurnEvent)
	OnTurnEnd      func(context.Context, *TurnEvent)
	OnBlock        func(context.Context, *BlockEvent)
	OnStatusChange func(context.Context, *StatusEvent)
	OnFrame        func(context.Context, Frame)
}
