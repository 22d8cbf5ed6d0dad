package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

// statusChange is a progress transition that still has to be reported to the client.
type statusChange struct {
	record domain.ProgressRecord
	from   domain.Status
}

// progression binds a transaction to one user's view of one course. All status
// transitions go through it so they are persisted, reported to hooks and queued as frames.
type progression struct {
	e       *Engine
	tx      ports.Tx
	tree    *domain.Tree
	userID  string
	scope   string // course id under which records are stored
	preview bool

	changes []statusChange
}

// record returns the active record of an item, creating it locked if none exists.
func (p *progression) record(ctx context.Context, itemID string) (*domain.ProgressRecord, error) {
	if _, ok := p.tree.Item(itemID); !ok {
		return nil, &domain.InconsistentStateError{Reason: fmt.Sprintf("outline item %s not in course %s", itemID, p.tree.CourseID())}
	}
	rec, err := p.tx.FindProgress(ctx, p.userID, p.scope, itemID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("find progress for %s: %w", itemID, err)
	}
	now := p.e.now()
	rec = &domain.ProgressRecord{
		ID:            uuid.NewString(),
		UserID:        p.userID,
		CourseID:      p.scope,
		OutlineItemID: itemID,
		Status:        domain.StatusLocked,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.tx.CreateProgress(ctx, rec); err != nil {
		return nil, fmt.Errorf("create progress for %s: %w", itemID, err)
	}
	return rec, nil
}

// move applies a checked transition and persists the record.
func (p *progression) move(ctx context.Context, rec *domain.ProgressRecord, to domain.Status) error {
	from := rec.Status
	if err := rec.SetStatus(to); err != nil {
		return err
	}
	return p.save(ctx, rec, from)
}

// promote moves the record forward to target, never backward.
func (p *progression) promote(ctx context.Context, rec *domain.ProgressRecord, target domain.Status) error {
	from := rec.Status
	if !rec.Promote(target) {
		return nil
	}
	return p.save(ctx, rec, from)
}

func (p *progression) save(ctx context.Context, rec *domain.ProgressRecord, from domain.Status) error {
	rec.UpdatedAt = p.e.now()
	if err := p.tx.UpdateProgress(ctx, rec); err != nil {
		return fmt.Errorf("update progress %s: %w", rec.ID, err)
	}
	if from == rec.Status {
		return nil
	}
	p.changes = append(p.changes, statusChange{record: *rec, from: from})
	p.e.emitStatus(ctx, &domain.StatusEvent{
		EventBase:     domain.EventBase{Timestamp: rec.UpdatedAt, Type: domain.EventStatusChange, UserID: p.userID, CourseID: p.tree.CourseID()},
		OutlineItemID: rec.OutlineItemID,
		From:          from,
		To:            rec.Status,
	})
	return nil
}

// drain returns and clears the queued status changes.
func (p *progression) drain() []statusChange {
	out := p.changes
	p.changes = nil
	return out
}

// position is the outcome of an advance: either a block to play, or an exhausted record.
type position struct {
	// record owns block (it differs from the starting record when a branch was followed).
	record *domain.ProgressRecord
	block  domain.Block
	// exhausted is set when the starting record has no block left and is completed.
	// The caller runs the unlock cascade for record.
	exhausted bool
}

// advance computes the active block of a record, moving the pointer by `by` (0 replays,
// 1 moves forward). Branch associations are followed in the same bounded loop; a branch
// target that runs out of blocks is completed and the walk resumes after the origin.
func (p *progression) advance(ctx context.Context, recordID string, by int) (*position, error) {
	cur, err := p.tx.GetProgress(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("load progress %s: %w", recordID, err)
	}

	var origins []*domain.ProgressRecord
	hops := 0
	for steps := 0; ; steps++ {
		if hops > p.e.maxHops || steps > 4*p.e.maxHops+maxBlocksPerTurn {
			return nil, &domain.InconsistentStateError{
				Reason: fmt.Sprintf("branch hop limit %d exceeded from progress %s", p.e.maxHops, recordID),
			}
		}

		switch cur.Status {
		case domain.StatusLocked:
			if !p.preview && len(origins) == 0 {
				return nil, fmt.Errorf("outline item %s: %w", cur.OutlineItemID, domain.ErrLocked)
			}
			if err := p.start(ctx, cur); err != nil {
				return nil, err
			}
		case domain.StatusNotStarted:
			if err := p.start(ctx, cur); err != nil {
				return nil, err
			}
		case domain.StatusBranch:
			assoc, err := p.tx.ActiveBranch(ctx, cur.ID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil, &domain.InconsistentStateError{Reason: fmt.Sprintf("progress %s is in branch without an active association", cur.ID)}
				}
				return nil, err
			}
			target, err := p.tx.GetProgress(ctx, assoc.ToID)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return nil, &domain.InconsistentStateError{Reason: fmt.Sprintf("branch %s points to missing progress %s", assoc.ID, assoc.ToID)}
				}
				return nil, err
			}
			if target.ID == cur.ID || onStack(origins, target.ID) {
				return nil, &domain.InconsistentStateError{Reason: fmt.Sprintf("branch cycle through progress %s", target.ID)}
			}
			origins = append(origins, cur)
			cur = target
			hops++
			continue
		case domain.StatusCompleted, domain.StatusReset:
			if len(origins) == 0 {
				return &position{record: cur, exhausted: true}, nil
			}
			cur, origins, err = p.mergeBack(ctx, origins)
			if err != nil {
				return nil, err
			}
			by = 1
			continue
		default:
			if cur.Position <= 0 {
				if err := p.start(ctx, cur); err != nil {
					return nil, err
				}
			} else if by != 0 {
				cur.Position += by
				if err := p.save(ctx, cur, cur.Status); err != nil {
					return nil, err
				}
			}
		}

		if block, ok := p.tree.Block(cur.OutlineItemID, cur.Position); ok {
			return &position{record: cur, block: block}, nil
		}

		if err := p.move(ctx, cur, domain.StatusCompleted); err != nil {
			return nil, err
		}
		if len(origins) == 0 {
			return &position{record: cur, exhausted: true}, nil
		}
		cur, origins, err = p.mergeBack(ctx, origins)
		if err != nil {
			return nil, err
		}
		by = 1
	}
}

// start puts a record at its first block and promotes the ancestors it opens.
func (p *progression) start(ctx context.Context, rec *domain.ProgressRecord) error {
	from := rec.Status
	rec.Position = 1
	rec.Promote(domain.StatusInProgress)
	if err := p.save(ctx, rec, from); err != nil {
		return err
	}
	for item := rec.OutlineItemID; p.tree.IsFirstChild(item); {
		parent, _ := p.tree.Parent(item)
		prec, err := p.record(ctx, parent.ID)
		if err != nil {
			return err
		}
		if err := p.promote(ctx, prec, domain.StatusInProgress); err != nil {
			return err
		}
		item = parent.ID
	}
	return nil
}

// mergeBack pops the innermost origin and returns it to the main line.
func (p *progression) mergeBack(ctx context.Context, origins []*domain.ProgressRecord) (*domain.ProgressRecord, []*domain.ProgressRecord, error) {
	origin := origins[len(origins)-1]
	origins = origins[:len(origins)-1]
	if origin.Status == domain.StatusBranch {
		if err := p.move(ctx, origin, domain.StatusInProgress); err != nil {
			return nil, nil, err
		}
	}
	return origin, origins, nil
}

func onStack(stack []*domain.ProgressRecord, id string) bool {
	for _, r := range stack {
		if r.ID == id {
			return true
		}
	}
	return false
}
