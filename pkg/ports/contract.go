package ports

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")
	user := "contract-user-" + suffix

	begin := func(t *testing.T) Tx {
		t.Helper()
		tx, err := store.Begin(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { _ = tx.Rollback() })
		return tx
	}
	newRecord := func(id, item string, status domain.Status) *domain.ProgressRecord {
		now := time.Now().UTC().Truncate(time.Second)
		return &domain.ProgressRecord{
			ID: id + "-" + suffix, UserID: user, CourseID: "course", OutlineItemID: item,
			Status: status, CreatedAt: now, UpdatedAt: now,
		}
	}

	t.Run("Create and Find Progress", func(t *testing.T) {
		tx := begin(t)
		rec := newRecord("p1", "item-1", domain.StatusLocked)
		require.NoError(t, tx.CreateProgress(ctx, rec))
		require.NoError(t, tx.Commit())

		tx = begin(t)
		got, err := tx.GetProgress(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, rec.OutlineItemID, got.OutlineItemID)
		assert.Equal(t, domain.StatusLocked, got.Status)

		found, err := tx.FindProgress(ctx, user, "course", "item-1")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, found.ID)

		_, err = tx.FindProgress(ctx, user, "course", "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = tx.GetProgress(ctx, "missing-"+suffix)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Update Progress", func(t *testing.T) {
		tx := begin(t)
		rec, err := tx.FindProgress(ctx, user, "course", "item-1")
		require.NoError(t, err)
		rec.Status = domain.StatusInProgress
		rec.Position = 3
		require.NoError(t, tx.UpdateProgress(ctx, rec))
		require.NoError(t, tx.Commit())

		tx = begin(t)
		got, err := tx.GetProgress(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusInProgress, got.Status)
		assert.Equal(t, 3, got.Position)

		ghost := newRecord("ghost", "item-x", domain.StatusLocked)
		assert.ErrorIs(t, tx.UpdateProgress(ctx, ghost), domain.ErrNotFound)
	})

	t.Run("Reset Supersedes", func(t *testing.T) {
		tx := begin(t)
		old, err := tx.FindProgress(ctx, user, "course", "item-1")
		require.NoError(t, err)
		old.Status = domain.StatusReset
		require.NoError(t, tx.UpdateProgress(ctx, old))
		fresh := newRecord("p1b", "item-1", domain.StatusNotStarted)
		require.NoError(t, tx.CreateProgress(ctx, fresh))
		require.NoError(t, tx.Commit())

		tx = begin(t)
		found, err := tx.FindProgress(ctx, user, "course", "item-1")
		require.NoError(t, err)
		assert.Equal(t, fresh.ID, found.ID)

		list, err := tx.ListProgress(ctx, user, "course")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, fresh.ID, list[0].ID)

		history, err := tx.GetProgress(ctx, old.ID)
		require.NoError(t, err, "reset records are kept")
		assert.Equal(t, domain.StatusReset, history.Status)
	})

	t.Run("Rollback Discards", func(t *testing.T) {
		tx := begin(t)
		rec := newRecord("p2", "item-2", domain.StatusLocked)
		require.NoError(t, tx.CreateProgress(ctx, rec))
		require.NoError(t, tx.SetVariable(ctx, user, "discarded", "x"))
		require.NoError(t, tx.Rollback())

		tx = begin(t)
		_, err := tx.GetProgress(ctx, rec.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		vars, err := tx.Variables(ctx, user)
		require.NoError(t, err)
		assert.NotContains(t, vars, "discarded")
	})

	t.Run("Read Your Writes", func(t *testing.T) {
		tx := begin(t)
		rec := newRecord("p3", "item-3", domain.StatusNotStarted)
		require.NoError(t, tx.CreateProgress(ctx, rec))
		got, err := tx.FindProgress(ctx, user, "course", "item-3")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		require.NoError(t, tx.Commit())
		assert.NoError(t, tx.Rollback(), "rollback after commit is a no-op")
	})

	t.Run("Variables Overwrite", func(t *testing.T) {
		tx := begin(t)
		require.NoError(t, tx.SetVariable(ctx, user, "name", "Ann"))
		require.NoError(t, tx.SetVariable(ctx, user, "name", "Bea"))
		require.NoError(t, tx.SetVariable(ctx, user, "city", "Rio"))
		require.NoError(t, tx.Commit())

		tx = begin(t)
		vars, err := tx.Variables(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, "Bea", vars["name"])
		assert.Equal(t, "Rio", vars["city"])

		other, err := tx.Variables(ctx, "nobody-"+suffix)
		require.NoError(t, err)
		assert.Empty(t, other)
	})

	t.Run("Branch Repoint", func(t *testing.T) {
		from := "from-" + suffix
		tx := begin(t)
		_, err := tx.ActiveBranch(ctx, from)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		require.NoError(t, tx.PutBranch(ctx, &domain.BranchAssociation{
			ID: "b1-" + suffix, UserID: user, FromID: from, ToID: "to-1", Active: true, CreatedAt: time.Now().UTC(),
		}))
		require.NoError(t, tx.PutBranch(ctx, &domain.BranchAssociation{
			ID: "b2-" + suffix, UserID: user, FromID: from, ToID: "to-2", Active: true, CreatedAt: time.Now().UTC(),
		}))
		require.NoError(t, tx.Commit())

		tx = begin(t)
		b, err := tx.ActiveBranch(ctx, from)
		require.NoError(t, err)
		assert.Equal(t, "to-2", b.ToID)
	})

	t.Run("Log Ordering and Keys", func(t *testing.T) {
		progress := "log-progress-" + suffix
		tx := begin(t)
		for i, role := range []domain.Role{domain.RoleAssistant, domain.RoleUser, domain.RoleAssistant} {
			e := &domain.LogEntry{
				ID: fmt.Sprintf("log-%d-%s", i, suffix), ProgressID: progress, BlockID: "blk",
				Role: role, Content: fmt.Sprintf("entry %d", i), CreatedAt: time.Now().UTC(),
			}
			if role == domain.RoleUser {
				e.Key = "key-" + suffix
			}
			require.NoError(t, tx.AppendLog(ctx, e))
			assert.Equal(t, i+1, e.Order)
		}
		require.NoError(t, tx.Commit())

		tx = begin(t)
		entries, err := tx.ListLog(ctx, progress)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "entry 0", entries[0].Content)
		assert.Equal(t, "entry 2", entries[2].Content)

		byKey, err := tx.FindLogByKey(ctx, "key-"+suffix)
		require.NoError(t, err)
		assert.Equal(t, domain.RoleUser, byKey.Role)

		err = tx.AppendLog(ctx, &domain.LogEntry{
			ID: "dup-" + suffix, ProgressID: progress, Role: domain.RoleUser, Key: "key-" + suffix,
		})
		assert.True(t, errors.Is(err, domain.ErrDuplicate))

		_, err = tx.FindLogByKey(ctx, "missing-"+suffix)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
