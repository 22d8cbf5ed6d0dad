package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aretw0/lectern/pkg/domain"
)

// ItemProgress is the state of one outline item for one user.
type ItemProgress struct {
	OutlineItemID string          `json:"outline_item_id"`
	ParentID      string          `json:"parent_id,omitempty"`
	PositionCode  string          `json:"position_code"`
	Title         string          `json:"title"`
	Kind          domain.ItemKind `json:"kind"`
	Status        domain.Status   `json:"status"`
	Position      int             `json:"position"`
	Blocks        int             `json:"blocks"`
}

// Progress lists every outline item of a course in play order with the user's status.
// Items the user never reached are reported as locked.
func (e *Engine) Progress(ctx context.Context, userID, courseID string, preview bool) ([]ItemProgress, error) {
	variant, scope := domain.VariantPublished, courseID
	if preview {
		variant, scope = domain.VariantPreview, courseID+previewSuffix
	}
	tree, err := e.loader.LoadCourse(ctx, courseID, variant)
	if err != nil {
		return nil, fmt.Errorf("load course %s: %w", courseID, err)
	}
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	records, err := tx.ListProgress(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	byItem := make(map[string]*domain.ProgressRecord, len(records))
	for _, r := range records {
		byItem[r.OutlineItemID] = r
	}

	items := tree.Walk()
	out := make([]ItemProgress, 0, len(items))
	for _, item := range items {
		p := ItemProgress{
			OutlineItemID: item.ID,
			ParentID:      item.ParentID,
			PositionCode:  tree.PositionCode(item.ID),
			Title:         item.Title,
			Kind:          item.Kind,
			Status:        domain.StatusLocked,
			Blocks:        tree.BlockCount(item.ID),
		}
		if r, ok := byItem[item.ID]; ok {
			p.Status = r.Status
			p.Position = r.Position
		}
		out = append(out, p)
	}
	return out, nil
}

// Reset supersedes a user's record of an outline item with a fresh one. The old record and
// its log are kept. A reset lesson can be replayed from its first block; a locked item stays
// locked.
func (e *Engine) Reset(ctx context.Context, userID, courseID, itemID string) (*domain.ProgressRecord, error) {
	release, err := e.sessions.Acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	tree, err := e.loader.LoadCourse(ctx, courseID, domain.VariantPublished)
	if err != nil {
		return nil, fmt.Errorf("load course %s: %w", courseID, err)
	}
	if _, ok := tree.Item(itemID); !ok {
		return nil, fmt.Errorf("outline item %s: %w", itemID, domain.ErrNotFound)
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := e.now()
	fresh := &domain.ProgressRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		CourseID:      courseID,
		OutlineItemID: itemID,
		Status:        domain.StatusLocked,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	old, err := tx.FindProgress(ctx, userID, courseID, itemID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		if old.Status != domain.StatusLocked {
			fresh.Status = domain.StatusNotStarted
		}
		from := old.Status
		if err := old.SetStatus(domain.StatusReset); err != nil {
			return nil, err
		}
		old.UpdatedAt = now
		if err := tx.UpdateProgress(ctx, old); err != nil {
			return nil, err
		}
		e.emitStatus(ctx, &domain.StatusEvent{
			EventBase:     domain.EventBase{Timestamp: now, Type: domain.EventStatusChange, UserID: userID, CourseID: courseID},
			OutlineItemID: itemID,
			From:          from,
			To:            domain.StatusReset,
		})
	}
	if err := tx.CreateProgress(ctx, fresh); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	e.logger.Info("progress reset", "user_id", userID, "course_id", courseID, "outline_item_id", itemID)
	return fresh, nil
}
