package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

var errTxDone = errors.New("memory: transaction already finished")

// Store implements ports.Store in memory.
// Safe for concurrent use. Transactions stage their writes and apply them atomically on Commit.
type Store struct {
	mu       sync.RWMutex
	progress map[string]domain.ProgressRecord
	branches map[string]domain.BranchAssociation
	vars     map[string]map[string]string
	logs     map[string][]domain.LogEntry
	keys     map[string]domain.LogEntry
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		progress: make(map[string]domain.ProgressRecord),
		branches: make(map[string]domain.BranchAssociation),
		vars:     make(map[string]map[string]string),
		logs:     make(map[string][]domain.LogEntry),
		keys:     make(map[string]domain.LogEntry),
	}
}

// Begin opens a new transaction.
func (s *Store) Begin(ctx context.Context) (ports.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &tx{
		store:    s,
		progress: make(map[string]domain.ProgressRecord),
		branches: make(map[string]domain.BranchAssociation),
		vars:     make(map[string]map[string]string),
		logs:     make(map[string][]domain.LogEntry),
		keys:     make(map[string]domain.LogEntry),
	}, nil
}

type tx struct {
	store *Store
	done  bool

	progress map[string]domain.ProgressRecord
	branches map[string]domain.BranchAssociation
	vars     map[string]map[string]string
	logs     map[string][]domain.LogEntry
	keys     map[string]domain.LogEntry
}

func (t *tx) check() error {
	if t.done {
		return errTxDone
	}
	return nil
}

// mergedProgress returns committed records overlaid with staged ones.
func (t *tx) mergedProgress() map[string]domain.ProgressRecord {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	out := make(map[string]domain.ProgressRecord, len(t.store.progress)+len(t.progress))
	for id, r := range t.store.progress {
		out[id] = r
	}
	for id, r := range t.progress {
		out[id] = r
	}
	return out
}

func (t *tx) GetProgress(ctx context.Context, id string) (*domain.ProgressRecord, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if r, ok := t.progress[id]; ok {
		return &r, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if r, ok := t.store.progress[id]; ok {
		return &r, nil
	}
	return nil, domain.ErrNotFound
}

func (t *tx) FindProgress(ctx context.Context, userID, courseID, itemID string) (*domain.ProgressRecord, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	for _, r := range t.mergedProgress() {
		if r.UserID == userID && r.CourseID == courseID && r.OutlineItemID == itemID && r.Active() {
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *tx) ListProgress(ctx context.Context, userID, courseID string) ([]*domain.ProgressRecord, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	var out []*domain.ProgressRecord
	for _, r := range t.mergedProgress() {
		if r.UserID == userID && r.CourseID == courseID && r.Active() {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tx) CreateProgress(ctx context.Context, rec *domain.ProgressRecord) error {
	if err := t.check(); err != nil {
		return err
	}
	t.progress[rec.ID] = *rec
	return nil
}

func (t *tx) UpdateProgress(ctx context.Context, rec *domain.ProgressRecord) error {
	if _, err := t.GetProgress(ctx, rec.ID); err != nil {
		return err
	}
	t.progress[rec.ID] = *rec
	return nil
}

func (t *tx) mergedBranches() map[string]domain.BranchAssociation {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	out := make(map[string]domain.BranchAssociation, len(t.store.branches)+len(t.branches))
	for id, b := range t.store.branches {
		out[id] = b
	}
	for id, b := range t.branches {
		out[id] = b
	}
	return out
}

func (t *tx) ActiveBranch(ctx context.Context, fromID string) (*domain.BranchAssociation, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	for _, b := range t.mergedBranches() {
		if b.FromID == fromID && b.Active {
			return &b, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *tx) PutBranch(ctx context.Context, b *domain.BranchAssociation) error {
	if err := t.check(); err != nil {
		return err
	}
	if b.Active {
		for id, other := range t.mergedBranches() {
			if other.FromID == b.FromID && other.Active && id != b.ID {
				other.Active = false
				t.branches[id] = other
			}
		}
	}
	t.branches[b.ID] = *b
	return nil
}

func (t *tx) Variables(ctx context.Context, userID string) (map[string]string, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	t.store.mu.RLock()
	for k, v := range t.store.vars[userID] {
		out[k] = v
	}
	t.store.mu.RUnlock()
	for k, v := range t.vars[userID] {
		out[k] = v
	}
	return out, nil
}

func (t *tx) SetVariable(ctx context.Context, userID, key, value string) error {
	if err := t.check(); err != nil {
		return err
	}
	if t.vars[userID] == nil {
		t.vars[userID] = make(map[string]string)
	}
	t.vars[userID][key] = value
	return nil
}

func (t *tx) AppendLog(ctx context.Context, e *domain.LogEntry) error {
	if err := t.check(); err != nil {
		return err
	}
	t.store.mu.RLock()
	_, committed := t.store.keys[e.Key]
	count := len(t.store.logs[e.ProgressID])
	t.store.mu.RUnlock()
	if e.Key != "" {
		if _, staged := t.keys[e.Key]; staged || committed {
			return domain.ErrDuplicate
		}
	}
	if e.Order == 0 {
		e.Order = count + len(t.logs[e.ProgressID]) + 1
	}
	t.logs[e.ProgressID] = append(t.logs[e.ProgressID], *e)
	if e.Key != "" {
		t.keys[e.Key] = *e
	}
	return nil
}

func (t *tx) ListLog(ctx context.Context, progressID string) ([]domain.LogEntry, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	t.store.mu.RLock()
	out := append([]domain.LogEntry(nil), t.store.logs[progressID]...)
	t.store.mu.RUnlock()
	out = append(out, t.logs[progressID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (t *tx) FindLogByKey(ctx context.Context, key string) (*domain.LogEntry, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	if e, ok := t.keys[key]; ok {
		return &e, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if e, ok := t.store.keys[key]; ok {
		return &e, nil
	}
	return nil, domain.ErrNotFound
}

func (t *tx) Commit() error {
	if err := t.check(); err != nil {
		return err
	}
	t.done = true

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range t.progress {
		s.progress[id] = r
	}
	for id, b := range t.branches {
		s.branches[id] = b
	}
	for user, kv := range t.vars {
		if s.vars[user] == nil {
			s.vars[user] = make(map[string]string)
		}
		for k, v := range kv {
			s.vars[user][k] = v
		}
	}
	for pid, entries := range t.logs {
		s.logs[pid] = append(s.logs[pid], entries...)
	}
	for k, e := range t.keys {
		s.keys[k] = e
	}
	return nil
}

func (t *tx) Rollback() error {
	t.done = true
	return nil
}
