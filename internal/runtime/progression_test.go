package runtime

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lectern/pkg/domain"
)

// twoChapters has chapter P1 (C1, C2) and chapter P2 (D1, D2), one block per lesson.
func twoChapters() domain.Course {
	c := domain.Course{
		ID: testCourse,
		Items: []domain.OutlineItem{
			{ID: "P1", Order: 1, Title: "One"},
			{ID: "C1", ParentID: "P1", Order: 1, Title: "One.One"},
			{ID: "C2", ParentID: "P1", Order: 2, Title: "One.Two"},
			{ID: "P2", Order: 2, Title: "Two"},
			{ID: "D1", ParentID: "P2", Order: 1, Title: "Two.One"},
			{ID: "D2", ParentID: "P2", Order: 2, Title: "Two.Two"},
			{ID: "H", ParentID: "P1", Order: 3, Kind: domain.ItemHidden, Title: "Detour"},
		},
	}
	for _, id := range []string{"C1", "C2", "D1", "D2", "H"} {
		c.Blocks = append(c.Blocks,
			domain.Block{ID: id + "-1", OutlineItemID: id, Order: 1, Content: domain.ContentFixed, Interaction: domain.InteractionContinue},
			domain.Block{ID: id + "-2", OutlineItemID: id, Order: 2, Content: domain.ContentFixed, Interaction: domain.InteractionContinue},
		)
	}
	return c
}

func TestAdvance_ReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newProgression(t, twoChapters())
	rec := seed(t, p.tx, "C1", domain.StatusInProgress, 2)

	first, err := p.advance(ctx, rec.ID, 0)
	require.NoError(t, err)
	second, err := p.advance(ctx, rec.ID, 0)
	require.NoError(t, err)

	assert.Equal(t, "C1-2", first.block.ID)
	assert.Equal(t, first.block.ID, second.block.ID)
	assert.Empty(t, p.drain(), "replaying must not change any status")

	stored, err := p.tx.GetProgress(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Position)
}

func TestAdvance_StartOpensFirstChildAncestors(t *testing.T) {
	ctx := context.Background()
	p := newProgression(t, twoChapters())
	rec := seed(t, p.tx, "C1", domain.StatusNotStarted, 0)

	pos, err := p.advance(ctx, rec.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "C1-1", pos.block.ID)
	assert.Equal(t, domain.StatusInProgress, pos.record.Status)

	parent, err := p.tx.FindProgress(ctx, testUser, testCourse, "P1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, parent.Status)
}

func TestAdvance_LockedRecordIsRejected(t *testing.T) {
	p := newProgression(t, twoChapters())
	rec := seed(t, p.tx, "C2", domain.StatusLocked, 0)

	_, err := p.advance(context.Background(), rec.ID, 0)
	assert.ErrorIs(t, err, domain.ErrLocked)
}

func TestAdvance_PreviewPlaysLockedRecords(t *testing.T) {
	p := newProgression(t, twoChapters())
	p.preview = true
	rec := seed(t, p.tx, "C2", domain.StatusLocked, 0)

	pos, err := p.advance(context.Background(), rec.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "C2-1", pos.block.ID)
}

func TestAdvance_ExhaustionCompletes(t *testing.T) {
	ctx := context.Background()
	p := newProgression(t, twoChapters())
	rec := seed(t, p.tx, "C1", domain.StatusInProgress, 2)

	pos, err := p.advance(ctx, rec.ID, 1)
	require.NoError(t, err)
	assert.True(t, pos.exhausted)
	assert.Equal(t, domain.StatusCompleted, pos.record.Status)

	again, err := p.advance(ctx, rec.ID, 0)
	require.NoError(t, err)
	assert.True(t, again.exhausted, "a completed record stays exhausted")
}

func TestAdvance_BranchMergesBack(t *testing.T) {
	ctx := context.Background()
	p := newProgression(t, twoChapters())
	origin := seed(t, p.tx, "C1", domain.StatusBranch, 1)
	detour := seed(t, p.tx, "H", domain.StatusLocked, 0)
	link(t, p.tx, origin, detour)

	pos, err := p.advance(ctx, origin.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "H-1", pos.block.ID)
	assert.Equal(t, detour.ID, pos.record.ID)

	pos, err = p.advance(ctx, origin.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "H-2", pos.block.ID)

	pos, err = p.advance(ctx, origin.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "C1-2", pos.block.ID, "the walk resumes after the goto block")
	assert.Equal(t, domain.StatusInProgress, pos.record.Status)

	stored, err := p.tx.GetProgress(ctx, detour.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestAdvance_BranchCycleIsInconsistent(t *testing.T) {
	p := newProgression(t, twoChapters())
	a := seed(t, p.tx, "C1", domain.StatusBranch, 1)
	b := seed(t, p.tx, "H", domain.StatusBranch, 1)
	link(t, p.tx, a, b)
	link(t, p.tx, b, a)

	_, err := p.advance(context.Background(), a.ID, 0)
	var inconsistent *domain.InconsistentStateError
	require.ErrorAs(t, err, &inconsistent)
	assert.Contains(t, inconsistent.Reason, "cycle")
}

func TestAdvance_BranchWithoutAssociationIsInconsistent(t *testing.T) {
	p := newProgression(t, twoChapters())
	a := seed(t, p.tx, "C1", domain.StatusBranch, 1)

	_, err := p.advance(context.Background(), a.ID, 0)
	var inconsistent *domain.InconsistentStateError
	assert.ErrorAs(t, err, &inconsistent)
}

func TestAdvance_HopLimit(t *testing.T) {
	course := domain.Course{ID: testCourse}
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("L%d", i)
		course.Items = append(course.Items, domain.OutlineItem{ID: id, Order: i + 1})
		course.Blocks = append(course.Blocks, domain.Block{ID: id + "-1", OutlineItemID: id, Order: 1, Content: domain.ContentFixed, Interaction: domain.InteractionContinue})
	}

	build := func(t *testing.T, maxHops int) (*progression, string) {
		p := newProgression(t, course, WithMaxHops(maxHops))
		var prev *domain.ProgressRecord
		var first string
		for i := 0; i < 8; i++ {
			status := domain.StatusBranch
			if i == 7 {
				status = domain.StatusInProgress
			}
			rec := seed(t, p.tx, fmt.Sprintf("L%d", i), status, 1)
			if prev != nil {
				link(t, p.tx, prev, rec)
			} else {
				first = rec.ID
			}
			prev = rec
		}
		return p, first
	}

	t.Run("within limit", func(t *testing.T) {
		p, first := build(t, 7)
		pos, err := p.advance(context.Background(), first, 0)
		require.NoError(t, err)
		assert.Equal(t, "L7-1", pos.block.ID)
	})

	t.Run("over limit", func(t *testing.T) {
		p, first := build(t, 6)
		_, err := p.advance(context.Background(), first, 0)
		var inconsistent *domain.InconsistentStateError
		require.ErrorAs(t, err, &inconsistent)
		assert.Contains(t, inconsistent.Reason, "hop limit")
	})
}

func TestCascade_CompletesParentAndOpensNextChapter(t *testing.T) {
	ctx := context.Background()
	p := newProgression(t, twoChapters())
	seed(t, p.tx, "P1", domain.StatusInProgress, 0)
	seed(t, p.tx, "C1", domain.StatusCompleted, 2)
	last := seed(t, p.tx, "C2", domain.StatusInProgress, 2)

	pos, err := p.advance(ctx, last.ID, 1)
	require.NoError(t, err)
	require.True(t, pos.exhausted)

	leaf, ok, err := p.cascade(ctx, pos.record)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "D1", leaf.ID)

	status := func(item string) domain.Status {
		rec, err := p.tx.FindProgress(ctx, testUser, testCourse, item)
		require.NoError(t, err)
		return rec.Status
	}
	assert.Equal(t, domain.StatusCompleted, status("C2"))
	assert.Equal(t, domain.StatusCompleted, status("P1"))
	assert.Equal(t, domain.StatusNotStarted, status("P2"))
	assert.Equal(t, domain.StatusNotStarted, status("D1"))

	_, err = p.tx.FindProgress(ctx, testUser, testCourse, "H")
	assert.ErrorIs(t, err, domain.ErrNotFound, "hidden lessons are never unlocked by the cascade")
}

func TestCascade_OpensNextSibling(t *testing.T) {
	ctx := context.Background()
	p := newProgression(t, twoChapters())
	done := seed(t, p.tx, "C1", domain.StatusCompleted, 2)

	leaf, ok, err := p.cascade(ctx, done)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "C2", leaf.ID)

	_, err = p.tx.FindProgress(ctx, testUser, testCourse, "P1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "the parent is untouched while siblings remain")
}

func TestCascade_SkipsLessonsAlreadyPlayedThroughGoto(t *testing.T) {
	ctx := context.Background()
	p := newProgression(t, twoChapters())
	done := seed(t, p.tx, "C1", domain.StatusCompleted, 2)
	seed(t, p.tx, "C2", domain.StatusCompleted, 2)

	leaf, ok, err := p.cascade(ctx, done)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "D1", leaf.ID)

	for item, want := range map[string]domain.Status{
		"P1": domain.StatusCompleted,
		"P2": domain.StatusNotStarted,
		"D1": domain.StatusNotStarted,
	} {
		rec, err := p.tx.FindProgress(ctx, testUser, testCourse, item)
		require.NoError(t, err, item)
		assert.Equal(t, want, rec.Status, item)
	}
}

func TestCascade_EndOfCourse(t *testing.T) {
	ctx := context.Background()
	p := newProgression(t, twoChapters())
	done := seed(t, p.tx, "D2", domain.StatusCompleted, 2)

	_, ok, err := p.cascade(ctx, done)
	require.NoError(t, err)
	assert.False(t, ok)

	parent, err := p.tx.FindProgress(ctx, testUser, testCourse, "P2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, parent.Status)
}

func TestCascade_NeverDowngrades(t *testing.T) {
	ctx := context.Background()
	p := newProgression(t, twoChapters())
	done := seed(t, p.tx, "C1", domain.StatusCompleted, 2)
	ahead := seed(t, p.tx, "C2", domain.StatusInProgress, 2)

	_, _, err := p.cascade(ctx, done)
	require.NoError(t, err)

	stored, err := p.tx.GetProgress(ctx, ahead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, stored.Status)
	assert.Equal(t, 2, stored.Position)
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	p := newProgression(t, twoChapters())

	require.NoError(t, p.bootstrap(ctx))
	records, err := p.tx.ListProgress(ctx, testUser, testCourse)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Contains(t, []string{"P1", "C1"}, r.OutlineItemID)
		assert.Equal(t, domain.StatusNotStarted, r.Status)
	}

	require.NoError(t, p.bootstrap(ctx))
	again, err := p.tx.ListProgress(ctx, testUser, testCourse)
	require.NoError(t, err)
	assert.Len(t, again, 2, "bootstrap only runs on an untouched course")
}
