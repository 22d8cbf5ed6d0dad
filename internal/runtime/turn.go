package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/aretw0/lectern/pkg/domain"
)

// frameBuffer is the capacity of the channel returned by Run.
const frameBuffer = 64

// previewSuffix keeps an author's preview progress apart from their learner progress.
const previewSuffix = "#preview"

// turn is the state of one request while it runs.
type turn struct {
	e    *Engine
	req  domain.Request
	tree *domain.Tree
	prog *progression
	out  *frameWriter
	log  *slog.Logger

	root string // progress id the turn advances from
	vars map[string]string
}

// Run executes a turn in the background and streams its frames through a bounded channel.
// The channel is closed when the turn ends. Canceling ctx aborts the turn and rolls back
// whatever the current block had not committed.
func (e *Engine) Run(ctx context.Context, req domain.Request) <-chan domain.Frame {
	frames := make(chan domain.Frame, frameBuffer)
	go func() {
		defer close(frames)
		_ = e.Turn(ctx, req, func(f domain.Frame) error {
			select {
			case frames <- f:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	return frames
}

// Turn executes one turn synchronously, handing each frame to emit as soon as it is produced.
// Failures are reported to the client as frames; the returned error is for the caller's logs.
func (e *Engine) Turn(ctx context.Context, req domain.Request, emit func(domain.Frame) error) error {
	start := e.now()
	base := domain.EventBase{Timestamp: start, Type: domain.EventTurnStart, UserID: req.UserID, CourseID: req.CourseID}
	e.emitTurn(ctx, e.hooks.OnTurnStart, &domain.TurnEvent{EventBase: base})

	outcome, err := e.turn(ctx, req, emit)

	base.Type = domain.EventTurnEnd
	base.Timestamp = e.now()
	e.emitTurn(ctx, e.hooks.OnTurnEnd, &domain.TurnEvent{
		EventBase: base,
		Outcome:   outcome,
		Duration:  base.Timestamp.Sub(start),
		Err:       err,
	})
	return err
}

func (e *Engine) turn(ctx context.Context, req domain.Request, emit func(domain.Frame) error) (string, error) {
	out := &frameWriter{ctx: ctx, emit: emit, hook: e.hooks.OnFrame, delay: e.typingDelay}
	if req.UserID == "" || req.CourseID == "" {
		_ = out.send(domain.Frame{Type: domain.FrameError, Content: e.messages.Failure})
		return "error", &domain.ValidationError{Field: "request", Message: "user_id and course_id are required"}
	}

	release, err := e.sessions.Acquire(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrLockBusy) {
			_ = out.send(domain.Frame{Type: domain.FrameBusy, Content: e.messages.Busy})
			return "busy", err
		}
		e.logger.Warn("acquire session lock", "user_id", req.UserID, "err", err)
		_ = out.send(domain.Frame{Type: domain.FrameError, Content: e.messages.Failure})
		return "error", fmt.Errorf("acquire session lock: %w", err)
	}
	defer release()

	t := &turn{
		e:   e,
		req: req,
		out: out,
		log: e.logger.With("user_id", req.UserID, "course_id", req.CourseID),
	}
	defer t.rollback()

	if err := t.run(ctx); err != nil {
		return t.fail(ctx, err)
	}
	return "ok", nil
}

func (t *turn) run(ctx context.Context) error {
	variant, scope := domain.VariantPublished, t.req.CourseID
	if t.req.Preview {
		variant, scope = domain.VariantPreview, t.req.CourseID+previewSuffix
	}
	tree, err := t.e.loader.LoadCourse(ctx, t.req.CourseID, variant)
	if err != nil {
		return fmt.Errorf("load course %s: %w", t.req.CourseID, err)
	}
	t.tree = tree
	t.prog = &progression{e: t.e, tree: tree, userID: t.req.UserID, scope: scope, preview: t.req.Preview}
	if err := t.begin(ctx); err != nil {
		return err
	}

	if err := t.prog.bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap progress: %w", err)
	}
	root, err := t.resolve(ctx)
	if err != nil {
		return err
	}
	if root == nil {
		if err := t.flush(); err != nil {
			return err
		}
		if err := t.out.message("", "", t.e.messages.CourseFinished); err != nil {
			return err
		}
		return t.commit(ctx)
	}
	t.root = root.ID
	t.log = t.log.With("outline_item_id", root.OutlineItemID)

	pos, err := t.prog.advance(ctx, t.root, 0)
	if err != nil {
		return err
	}
	passed := false
	for !pos.exhausted && pos.block.Interaction == domain.InteractionBreak {
		marked, err := t.hasBreakMarker(ctx, pos)
		if err != nil {
			return err
		}
		if !marked {
			break
		}
		passed = true
		if pos, err = t.prog.advance(ctx, t.root, 1); err != nil {
			return err
		}
	}
	if err := t.flush(); err != nil {
		return err
	}
	if err := t.commit(ctx); err != nil {
		return err
	}

	if t.req.HasInput() && !pos.exhausted && !passed {
		if pos, err = t.input(ctx, pos); err != nil || pos == nil {
			return err
		}
	}
	return t.play(ctx, pos)
}

// play produces blocks until one waits for the user or the record is exhausted.
func (t *turn) play(ctx context.Context, pos *position) error {
	for i := 0; ; i++ {
		if i >= maxBlocksPerTurn {
			return &domain.InconsistentStateError{Reason: fmt.Sprintf("turn did not settle after %d blocks", maxBlocksPerTurn)}
		}
		if pos.exhausted {
			return t.finish(ctx, pos.record)
		}
		if err := t.output(ctx, pos); err != nil {
			return err
		}
		more, by, err := t.next(ctx, pos)
		if err != nil {
			return err
		}
		if err := t.flush(); err != nil {
			return err
		}
		if err := t.commit(ctx); err != nil {
			return err
		}
		if !more {
			return nil
		}
		if pos, err = t.prog.advance(ctx, t.root, by); err != nil {
			return err
		}
		if err := t.flush(); err != nil {
			return err
		}
	}
}

// finish runs the unlock cascade for an exhausted record.
func (t *turn) finish(ctx context.Context, rec *domain.ProgressRecord) error {
	leaf, ok, err := t.prog.cascade(ctx, rec)
	if err != nil {
		return fmt.Errorf("unlock cascade from %s: %w", rec.OutlineItemID, err)
	}
	if err := t.flush(); err != nil {
		return err
	}
	if ok {
		next, err := t.prog.record(ctx, leaf.ID)
		if err != nil {
			return err
		}
		if err := t.out.send(domain.Frame{
			Type:          domain.FrameNextChapter,
			Content:       t.statusContent(*next),
			OutlineItemID: leaf.ID,
		}); err != nil {
			return err
		}
	} else if err := t.out.message("", "", t.e.messages.CourseFinished); err != nil {
		return err
	}
	return t.commit(ctx)
}

// resolve picks the record the turn plays: the requested lesson, or the first lesson (within
// the requested chapter, if any) that is underway, else the first one ready to start.
func (t *turn) resolve(ctx context.Context) (*domain.ProgressRecord, error) {
	under := ""
	if id := t.req.OutlineItemID; id != "" {
		if _, ok := t.tree.Item(id); !ok {
			return nil, fmt.Errorf("outline item %s: %w", id, domain.ErrNotFound)
		}
		if !t.tree.HasChildren(id) {
			return t.prog.record(ctx, id)
		}
		under = id
	}

	records, err := t.prog.tx.ListProgress(ctx, t.req.UserID, t.prog.scope)
	if err != nil {
		return nil, err
	}
	byItem := make(map[string]*domain.ProgressRecord, len(records))
	for _, r := range records {
		byItem[r.OutlineItemID] = r
	}

	lessons := t.lessons(under)
	for _, wanted := range [][]domain.Status{
		{domain.StatusBranch, domain.StatusInProgress},
		{domain.StatusNotStarted},
	} {
		for _, item := range lessons {
			if r, ok := byItem[item.ID]; ok && slices.Contains(wanted, r.Status) {
				return r, nil
			}
		}
	}
	if under != "" && len(lessons) > 0 {
		return t.prog.record(ctx, lessons[0].ID)
	}
	return nil, nil
}

// lessons lists reachable childless items under id ("" for the whole course) in play order.
func (t *turn) lessons(id string) []domain.OutlineItem {
	var out []domain.OutlineItem
	var visit func(string)
	visit = func(parent string) {
		for _, c := range t.tree.Children(parent) {
			if !c.Reachable() {
				continue
			}
			if t.tree.HasChildren(c.ID) {
				visit(c.ID)
			} else {
				out = append(out, c)
			}
		}
	}
	visit(id)
	return out
}

// fail rolls back and reports err to the client. It returns the outcome label and the
// error the caller should see.
func (t *turn) fail(ctx context.Context, err error) (string, error) {
	t.rollback()
	_ = t.out.closeText()

	var rejected *domain.RiskRejectedError
	var inconsistent *domain.InconsistentStateError
	switch {
	case errors.As(err, &rejected):
		t.log.Info("turn rejected by safety check", "label", rejected.Label)
		_ = t.out.message(t.req.OutlineItemID, "", t.e.messages.RiskRejected)
		return "rejected", nil
	case ctx.Err() != nil:
		t.log.Debug("turn canceled", "err", err)
		return "canceled", ctx.Err()
	case errors.Is(err, domain.ErrLocked):
		_ = t.out.send(domain.Frame{Type: domain.FrameError, Content: t.e.messages.Locked, OutlineItemID: t.req.OutlineItemID})
		return "locked", err
	case errors.As(err, &inconsistent):
		t.log.Error("inconsistent progress state", "err", err)
	default:
		t.log.Warn("turn failed", "err", err)
	}
	_ = t.out.send(domain.Frame{Type: domain.FrameError, Content: t.e.messages.Failure, OutlineItemID: t.req.OutlineItemID})
	return "error", err
}

func (t *turn) begin(ctx context.Context) error {
	tx, err := t.e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	t.prog.tx = tx
	t.vars = nil
	return nil
}

// commit makes the work so far durable and opens the next transaction.
func (t *turn) commit(ctx context.Context) error {
	if err := t.prog.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return t.begin(ctx)
}

func (t *turn) rollback() {
	if t.prog == nil || t.prog.tx == nil {
		return
	}
	if err := t.prog.tx.Rollback(); err != nil {
		t.log.Debug("rollback", "err", err)
	}
	t.prog.changes = nil
	t.vars = nil
}

// flush turns queued status changes into lesson_update / chapter_update frames.
func (t *turn) flush() error {
	for _, c := range t.prog.drain() {
		ft := domain.FrameLessonUpdate
		if t.tree.HasChildren(c.record.OutlineItemID) {
			ft = domain.FrameChapterUpdate
		}
		if err := t.out.send(domain.Frame{Type: ft, Content: t.statusContent(c.record), OutlineItemID: c.record.OutlineItemID}); err != nil {
			return err
		}
		if ft == domain.FrameLessonUpdate && c.record.Status == domain.StatusInProgress && c.from != domain.StatusBranch {
			if url := t.avatar(); url != "" {
				if err := t.out.send(domain.Frame{Type: domain.FrameTeacherAvatar, Content: url, OutlineItemID: c.record.OutlineItemID}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (t *turn) statusContent(r domain.ProgressRecord) domain.StatusContent {
	item, _ := t.tree.Item(r.OutlineItemID)
	return domain.StatusContent{
		OutlineItemID: r.OutlineItemID,
		PositionCode:  t.tree.PositionCode(r.OutlineItemID),
		Title:         item.Title,
		Status:        r.Status,
	}
}

func (t *turn) avatar() string {
	if url := t.tree.Course().AvatarURL; url != "" {
		return url
	}
	return t.e.avatarURL
}

// variables returns the user's variables as seen by the open transaction.
func (t *turn) variables(ctx context.Context) (map[string]string, error) {
	if t.vars != nil {
		return t.vars, nil
	}
	vars, err := t.prog.tx.Variables(ctx, t.req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load variables: %w", err)
	}
	t.vars = vars
	return vars, nil
}

// setVariables persists values and reports each as a profile_update frame, in key order.
func (t *turn) setVariables(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := t.prog.tx.SetVariable(ctx, t.req.UserID, k, values[k]); err != nil {
			return fmt.Errorf("set variable %s: %w", k, err)
		}
		if t.vars != nil {
			t.vars[k] = values[k]
		}
		if err := t.out.send(domain.Frame{
			Type:    domain.FrameProfileUpdate,
			Content: domain.ProfileContent{Key: k, Value: values[k]},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (t *turn) hasBreakMarker(ctx context.Context, pos *position) (bool, error) {
	entries, err := t.prog.tx.ListLog(ctx, pos.record.ID)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.BlockID == pos.block.ID && e.Role == domain.RoleSystem {
			return true, nil
		}
	}
	return false, nil
}
