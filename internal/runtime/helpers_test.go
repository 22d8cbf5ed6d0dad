package runtime

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

const (
	testUser   = "u1"
	testCourse = "course"
)

// collector records the frames of a turn.
type collector struct {
	frames []domain.Frame
}

func (c *collector) emit(f domain.Frame) error {
	c.frames = append(c.frames, f)
	return nil
}

// content keeps the frames a learner sees, dropping progress notifications.
func (c *collector) content() []domain.Frame {
	var out []domain.Frame
	for _, f := range c.frames {
		switch f.Type {
		case domain.FrameLessonUpdate, domain.FrameChapterUpdate, domain.FrameTeacherAvatar, domain.FrameProfileUpdate:
			continue
		}
		out = append(out, f)
	}
	return out
}

func (c *collector) types() []domain.FrameType {
	out := make([]domain.FrameType, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, f.Type)
	}
	return out
}

func (c *collector) text() string {
	var b strings.Builder
	for _, f := range c.frames {
		if f.Type == domain.FrameText {
			b.WriteString(f.Content.(string))
		}
	}
	return b.String()
}

func (c *collector) last(ft domain.FrameType) (domain.Frame, bool) {
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].Type == ft {
			return c.frames[i], true
		}
	}
	return domain.Frame{}, false
}

type fixture struct {
	engine   *Engine
	loader   *memory.Loader
	store    *memory.Store
	model    *memory.Model
	codes    *memory.Codes
	payments *memory.Payments
	profiles *memory.Profiles
}

func newFixture(t *testing.T, course domain.Course, opts ...EngineOption) *fixture {
	t.Helper()
	loader, err := memory.NewLoader(course)
	require.NoError(t, err)
	f := &fixture{
		loader:   loader,
		store:    memory.NewStore(),
		model:    memory.NewModel(nil),
		codes:    memory.NewCodes(memory.WithGenerator(func() string { return "123456" })),
		payments: memory.NewPayments(),
		profiles: memory.NewProfiles(),
	}
	base := []EngineOption{
		WithModel(f.model),
		WithCodeService(f.codes),
		WithPayments(f.payments),
		WithProfiles(f.profiles),
	}
	f.engine = NewEngine(f.loader, f.store, append(base, opts...)...)
	return f
}

func (f *fixture) turn(t *testing.T, req domain.Request) (*collector, error) {
	t.Helper()
	if req.UserID == "" {
		req.UserID = testUser
	}
	if req.CourseID == "" {
		req.CourseID = testCourse
	}
	c := &collector{}
	err := f.engine.Turn(context.Background(), req, c.emit)
	return c, err
}

func (f *fixture) setVar(t *testing.T, key, value string) {
	t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.SetVariable(ctx, testUser, key, value))
	require.NoError(t, tx.Commit())
}

func (f *fixture) record(t *testing.T, item string) *domain.ProgressRecord {
	t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	rec, err := tx.FindProgress(ctx, testUser, testCourse, item)
	require.NoError(t, err)
	return rec
}

func (f *fixture) logOf(t *testing.T, item string) []domain.LogEntry {
	t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	rec, err := tx.FindProgress(ctx, testUser, testCourse, item)
	require.NoError(t, err)
	entries, err := tx.ListLog(ctx, rec.ID)
	require.NoError(t, err)
	return entries
}

func (f *fixture) vars(t *testing.T) map[string]string {
	t.Helper()
	ctx := context.Background()
	tx, err := f.store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	vars, err := tx.Variables(ctx, testUser)
	require.NoError(t, err)
	return vars
}

// lesson builds a single-chapter course whose only lesson holds the given blocks, in order.
func lesson(blocks ...domain.Block) domain.Course {
	for i := range blocks {
		blocks[i].OutlineItemID = "l1"
		blocks[i].Order = i + 1
		if blocks[i].ID == "" {
			blocks[i].ID = "b" + string(rune('1'+i))
		}
	}
	return domain.Course{
		ID:    testCourse,
		Title: "Test course",
		Items: []domain.OutlineItem{
			{ID: "ch1", Order: 1, Title: "Chapter"},
			{ID: "l1", ParentID: "ch1", Order: 1, Title: "Lesson"},
		},
		Blocks: blocks,
	}
}

func fixed(text string, interaction domain.InteractionKind) domain.Block {
	return domain.Block{Content: domain.ContentFixed, Interaction: interaction, Payload: domain.Payload{Text: text}}
}

// seed writes a progress record directly and returns it.
func seed(t *testing.T, tx ports.Tx, item string, status domain.Status, position int) *domain.ProgressRecord {
	t.Helper()
	rec := &domain.ProgressRecord{
		ID: uuid.NewString(), UserID: testUser, CourseID: testCourse, OutlineItemID: item,
		Status: status, Position: position, CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, tx.CreateProgress(context.Background(), rec))
	return rec
}

func link(t *testing.T, tx ports.Tx, from, to *domain.ProgressRecord) {
	t.Helper()
	require.NoError(t, tx.PutBranch(context.Background(), &domain.BranchAssociation{
		ID: uuid.NewString(), UserID: testUser, FromID: from.ID, ToID: to.ID, Active: true,
	}))
}

// newProgression opens a transaction over tree for the test user.
func newProgression(t *testing.T, course domain.Course, opts ...EngineOption) *progression {
	t.Helper()
	tree, err := domain.NewTree(course)
	require.NoError(t, err)
	store := memory.NewStore()
	tx, err := store.Begin(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return &progression{
		e:      NewEngine(nil, store, opts...),
		tx:     tx,
		tree:   tree,
		userID: testUser,
		scope:  testCourse,
	}
}
