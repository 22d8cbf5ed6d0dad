package runtime

import (
	"context"

	"github.com/aretw0/lectern/pkg/domain"
)

// cascade unlocks what follows a completed record. The next reachable sibling opens at its
// first leaf; without one, the parent completes and the walk continues one level up.
// It returns the leaf that became playable, if any. Records are only ever promoted.
// A leaf a goto already played to the end counts as just completed and the walk goes on.
func (p *progression) cascade(ctx context.Context, completed *domain.ProgressRecord) (domain.OutlineItem, bool, error) {
	item := completed.OutlineItemID
	for {
		if next, ok := p.tree.NextSibling(item); ok {
			path := p.tree.FirstLeaf(next.ID)
			var leaf *domain.ProgressRecord
			for _, step := range path {
				rec, err := p.record(ctx, step.ID)
				if err != nil {
					return domain.OutlineItem{}, false, err
				}
				if err := p.promote(ctx, rec, domain.StatusNotStarted); err != nil {
					return domain.OutlineItem{}, false, err
				}
				leaf = rec
			}
			if leaf.Status != domain.StatusCompleted {
				return path[len(path)-1], true, nil
			}
			item = leaf.OutlineItemID
			continue
		}

		parent, ok := p.tree.Parent(item)
		if !ok {
			return domain.OutlineItem{}, false, nil
		}
		prec, err := p.record(ctx, parent.ID)
		if err != nil {
			return domain.OutlineItem{}, false, err
		}
		if err := p.promote(ctx, prec, domain.StatusCompleted); err != nil {
			return domain.OutlineItem{}, false, err
		}
		item = parent.ID
	}
}

// bootstrap opens the first leaf of a course the user has never touched.
func (p *progression) bootstrap(ctx context.Context) error {
	records, err := p.tx.ListProgress(ctx, p.userID, p.scope)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		return nil
	}
	for _, root := range p.tree.Children("") {
		if !root.Reachable() {
			continue
		}
		for _, step := range p.tree.FirstLeaf(root.ID) {
			rec, err := p.record(ctx, step.ID)
			if err != nil {
				return err
			}
			if err := p.promote(ctx, rec, domain.StatusNotStarted); err != nil {
				return err
			}
		}
		return nil
	}
	return nil
}
