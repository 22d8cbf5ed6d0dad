package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/pkg/domain"
)

// Turner runs one turn of a course.
type Turner interface {
	Turn(ctx context.Context, req domain.Request, emit func(domain.Frame) error) error
}

// DefaultBusyBackoff is how long the runner waits before retrying a turn refused as busy.
const DefaultBusyBackoff = 250 * time.Millisecond

// maxBusyRetries bounds consecutive busy retries before the runner gives up.
const maxBusyRetries = 20

// Runner handles the play loop using a pluggable IOHandler.
type Runner struct {
	handler     IOHandler
	logger      *slog.Logger
	userID      string
	courseID    string
	startItem   string
	preview     bool
	busyBackoff time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithHandler sets the IO strategy.
func WithHandler(h IOHandler) Option {
	return func(r *Runner) { r.handler = h }
}

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithUser sets the learner id.
func WithUser(id string) Option {
	return func(r *Runner) { r.userID = id }
}

// WithCourse sets the course to play.
func WithCourse(id string) Option {
	return func(r *Runner) { r.courseID = id }
}

// WithStartItem opens the session at a specific outline item instead of resuming.
func WithStartItem(id string) Option {
	return func(r *Runner) { r.startItem = id }
}

// WithPreview plays the draft variant with separate progress.
func WithPreview(preview bool) Option {
	return func(r *Runner) { r.preview = preview }
}

// WithBusyBackoff sets the pause before retrying a busy turn.
func WithBusyBackoff(d time.Duration) Option {
	return func(r *Runner) { r.busyBackoff = d }
}

// NewRunner creates a Runner. Without WithHandler it plays on standard IO in text mode.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger:      logging.NewNop(),
		busyBackoff: DefaultBusyBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.handler == nil {
		r.handler = NewTextHandler(nil, nil)
	}
	return r
}

// turnResult is what the runner learned from one turn's frames.
type turnResult struct {
	prompt   *Prompt
	next     string
	busy     bool
	finished bool
}

// Run plays turns until the course ends, the handler reports io.EOF, or ctx is canceled.
func (r *Runner) Run(ctx context.Context, engine Turner) error {
	if r.userID == "" || r.courseID == "" {
		return errors.New("runner: user and course are required")
	}
	req := r.request()
	req.OutlineItemID = r.startItem
	idle, busy := 0, 0

	for {
		res, err := r.turn(ctx, engine, req)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if res.busy {
			busy++
			if busy > maxBusyRetries {
				return fmt.Errorf("runner: %w", domain.ErrLockBusy)
			}
			r.logger.Debug("turn busy, retrying", "attempt", busy)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.busyBackoff):
			}
			continue
		}
		busy = 0
		if err != nil {
			return fmt.Errorf("turn: %w", err)
		}

		next := r.request()
		switch {
		case res.prompt != nil:
			idle = 0
			answer, err := r.handler.Input(ctx, *res.prompt)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			applyAnswer(&next, *res.prompt, answer)
		case res.next != "":
			idle = 0
			next.OutlineItemID = res.next
		default:
			idle++
			if res.finished || idle > 1 {
				return r.handler.SystemOutput(ctx, "Session finished.")
			}
			if _, err := r.handler.Input(ctx, Prompt{}); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}
		req = next
	}
}

func (r *Runner) request() domain.Request {
	return domain.Request{UserID: r.userID, CourseID: r.courseID, Preview: r.preview}
}

func (r *Runner) turn(ctx context.Context, engine Turner, req domain.Request) (turnResult, error) {
	var res turnResult
	err := engine.Turn(ctx, req, func(f domain.Frame) error {
		switch f.Type {
		case domain.FrameBusy:
			res.busy = true
			return nil
		case domain.FrameNextChapter:
			res.next = f.OutlineItemID
		case domain.FrameLessonUpdate, domain.FrameChapterUpdate:
			// A course is over once its last top-level chapter completes with nothing opened after it.
			if c, ok := f.Content.(domain.StatusContent); ok && c.Status == domain.StatusCompleted && len(c.PositionCode) == domain.PositionWidth {
				res.finished = true
			}
		}
		if p, ok := promptOf(f); ok {
			res.prompt = &p
		}
		return r.handler.Output(ctx, f)
	})
	if res.busy {
		return res, nil
	}
	if res.next != "" {
		res.finished = false
	}
	return res, err
}

// applyAnswer fills the request answering p.
func applyAnswer(req *domain.Request, p Prompt, answer string) {
	req.OutlineItemID = p.Frame.OutlineItemID
	req.BlockID = p.Frame.BlockID
	req.InputKind = p.Kind
	switch p.Kind {
	case domain.InputContinue:
		req.Input = string(domain.InputContinue)
	case domain.InputPayment:
		req.Input = ""
	default:
		req.Input = answer
	}
}
