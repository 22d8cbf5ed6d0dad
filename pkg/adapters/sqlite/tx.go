package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/lectern/pkg/domain"
)

const progressColumns = `id, user_id, course_id, outline_item_id, status, position, created_at, updated_at`

type tx struct {
	tx   *sql.Tx
	done bool
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (*domain.ProgressRecord, error) {
	var (
		rec                  domain.ProgressRecord
		status               string
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&rec.ID, &rec.UserID, &rec.CourseID, &rec.OutlineItemID,
		&status, &rec.Position, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	rec.Status = domain.Status(status)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return &rec, nil
}

func (t *tx) GetProgress(ctx context.Context, id string) (*domain.ProgressRecord, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+progressColumns+` FROM progress WHERE id = ?`, id)
	rec, err := scanProgress(row)
	if err != nil {
		return nil, notFound(err)
	}
	return rec, nil
}

func (t *tx) FindProgress(ctx context.Context, userID, courseID, itemID string) (*domain.ProgressRecord, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM progress
		 WHERE user_id = ? AND course_id = ? AND outline_item_id = ? AND status != ?`,
		userID, courseID, itemID, string(domain.StatusReset),
	)
	rec, err := scanProgress(row)
	if err != nil {
		return nil, notFound(err)
	}
	return rec, nil
}

func (t *tx) ListProgress(ctx context.Context, userID, courseID string) ([]*domain.ProgressRecord, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM progress
		 WHERE user_id = ? AND course_id = ? AND status != ?
		 ORDER BY created_at, id`,
		userID, courseID, string(domain.StatusReset),
	)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	var out []*domain.ProgressRecord
	for rows.Next() {
		rec, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (t *tx) CreateProgress(ctx context.Context, rec *domain.ProgressRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO progress (`+progressColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.CourseID, rec.OutlineItemID,
		string(rec.Status), rec.Position, toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("progress %s: %w", rec.ID, domain.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create progress: %w", err)
	}
	return nil
}

func (t *tx) UpdateProgress(ctx context.Context, rec *domain.ProgressRecord) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE progress SET status = ?, position = ?, updated_at = ? WHERE id = ?`,
		string(rec.Status), rec.Position, toMillis(rec.UpdatedAt), rec.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("progress %s: %w", rec.ID, domain.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *tx) ActiveBranch(ctx context.Context, fromID string) (*domain.BranchAssociation, error) {
	var (
		b         domain.BranchAssociation
		createdAt int64
	)
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, user_id, from_id, to_id, created_at FROM branches WHERE from_id = ? AND active = 1`,
		fromID,
	).Scan(&b.ID, &b.UserID, &b.FromID, &b.ToID, &createdAt)
	if err != nil {
		return nil, notFound(err)
	}
	b.Active = true
	b.CreatedAt = fromMillis(createdAt)
	return &b, nil
}

func (t *tx) PutBranch(ctx context.Context, b *domain.BranchAssociation) error {
	if b.Active {
		if _, err := t.tx.ExecContext(ctx,
			`UPDATE branches SET active = 0 WHERE from_id = ? AND active = 1 AND id != ?`,
			b.FromID, b.ID,
		); err != nil {
			return fmt.Errorf("deactivate branches: %w", err)
		}
	}
	createdAt := b.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO branches (id, user_id, from_id, to_id, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET to_id = excluded.to_id, active = excluded.active`,
		b.ID, b.UserID, b.FromID, b.ToID, b.Active, toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("put branch: %w", err)
	}
	return nil
}

func (t *tx) Variables(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT key, value FROM variables WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (t *tx) SetVariable(ctx context.Context, userID, key, value string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO variables (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value, toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set variable: %w", err)
	}
	return nil
}

func (t *tx) AppendLog(ctx context.Context, e *domain.LogEntry) error {
	if e.Key != "" {
		_, err := t.FindLogByKey(ctx, e.Key)
		if err == nil {
			return domain.ErrDuplicate
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	if e.Order == 0 {
		if err := t.tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(ord), 0) + 1 FROM block_logs WHERE progress_id = ?`, e.ProgressID,
		).Scan(&e.Order); err != nil {
			return fmt.Errorf("next log order: %w", err)
		}
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var key sql.NullString
	if e.Key != "" {
		key = sql.NullString{String: e.Key, Valid: true}
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO block_logs (id, progress_id, block_id, role, content, ord, action_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProgressID, e.BlockID, string(e.Role), e.Content, e.Order, key, toMillis(createdAt),
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

const logColumns = `id, progress_id, block_id, role, content, ord, action_key, created_at`

func scanLog(row rowScanner) (domain.LogEntry, error) {
	var (
		e         domain.LogEntry
		role      string
		key       sql.NullString
		createdAt int64
	)
	if err := row.Scan(&e.ID, &e.ProgressID, &e.BlockID, &role, &e.Content, &e.Order, &key, &createdAt); err != nil {
		return domain.LogEntry{}, err
	}
	e.Role = domain.Role(role)
	e.Key = key.String
	e.CreatedAt = fromMillis(createdAt)
	return e, nil
}

func (t *tx) ListLog(ctx context.Context, progressID string) ([]domain.LogEntry, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+logColumns+` FROM block_logs WHERE progress_id = ? ORDER BY ord`, progressID,
	)
	if err != nil {
		return nil, fmt.Errorf("list log: %w", err)
	}
	defer rows.Close()

	var out []domain.LogEntry
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *tx) FindLogByKey(ctx context.Context, key string) (*domain.LogEntry, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+logColumns+` FROM block_logs WHERE action_key = ?`, key)
	e, err := scanLog(row)
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (t *tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	t.done = true
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
