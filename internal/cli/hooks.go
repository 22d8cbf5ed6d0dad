package cli

import (
	"context"
	"log/slog"

	"github.com/aretw0/lectern/pkg/domain"
)

// DebugHooks logs every engine lifecycle event at debug level.
func DebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			logger.Debug("turn start", "user_id", e.UserID, "course_id", e.CourseID)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			attrs := []any{"user_id", e.UserID, "course_id", e.CourseID, "outcome", e.Outcome, "duration", e.Duration}
			if e.Err != nil {
				attrs = append(attrs, "error", e.Err)
			}
			logger.Debug("turn end", attrs...)
		},
		OnBlock: func(ctx context.Context, e *domain.BlockEvent) {
			logger.Debug("block", "item", e.OutlineItemID, "block", e.BlockID, "content", e.Content, "replayed", e.Replayed)
		},
		OnStatusChange: func(ctx context.Context, e *domain.StatusEvent) {
			logger.Debug("status", "item", e.OutlineItemID, "from", e.From, "to", e.To)
		},
	}
}
