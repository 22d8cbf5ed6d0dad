package lectern

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/internal/runtime"
	"github.com/aretw0/lectern/pkg/adapters/file"
	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
	"github.com/aretw0/lectern/pkg/runner"
	"github.com/aretw0/lectern/pkg/session"
)

// Version is the release of the module, set at build time with -ldflags "-X".
var Version = "dev"

// ItemProgress is one outline item with the learner's status, as returned by Progress.
type ItemProgress = runtime.ItemProgress

// Engine is the high-level entry point for the lectern library.
// It wraps the internal runtime and provides a simplified API for consumers.
type Engine struct {
	runtime *runtime.Engine

	loader   ports.ContentLoader
	store    ports.Store
	locker   ports.Locker
	logger   *slog.Logger
	hooks    domain.LifecycleHooks
	messages *domain.Messages
	services []runtime.EngineOption
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLoader injects a custom ContentLoader instead of reading a course directory.
func WithLoader(l ports.ContentLoader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithStore sets where progress is kept. The default store lives in memory.
func WithStore(s ports.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithLocker serializes the turns of a user across processes.
func WithLocker(l ports.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithMessages replaces the built-in learner-facing texts.
func WithMessages(m domain.Messages) Option {
	return func(e *Engine) { e.messages = &m }
}

// WithModel sets the language model that generates prompt blocks and checks answers.
func WithModel(m ports.ModelClient) Option {
	return func(e *Engine) { e.services = append(e.services, runtime.WithModel(m)) }
}

// WithRiskChecker screens learner input and generated text.
func WithRiskChecker(r ports.RiskChecker) Option {
	return func(e *Engine) { e.services = append(e.services, runtime.WithRiskChecker(r)) }
}

// WithCodeService sets the phone verification backend.
func WithCodeService(c ports.CodeService) Option {
	return func(e *Engine) { e.services = append(e.services, runtime.WithCodeService(c)) }
}

// WithPayments sets the order backend behind payment blocks.
func WithPayments(p ports.PaymentService) Option {
	return func(e *Engine) { e.services = append(e.services, runtime.WithPayments(p)) }
}

// WithProfiles sets where learner profiles are kept.
func WithProfiles(p ports.ProfileStore) Option {
	return func(e *Engine) { e.services = append(e.services, runtime.WithProfiles(p)) }
}

// New initializes an Engine over the course documents in dir.
// If WithLoader is given, dir may be empty.
func New(dir string, opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.loader == nil {
		if dir == "" {
			return nil, fmt.Errorf("lectern: a course directory is required when no loader is provided")
		}
		e.loader = file.NewLoader(dir)
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}

	lockOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		lockOpts = append(lockOpts, session.WithLocker(e.locker))
	}
	runtimeOpts := []runtime.EngineOption{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithSessionLock(session.NewManager(lockOpts...)),
	}
	if e.messages != nil {
		runtimeOpts = append(runtimeOpts, runtime.WithMessages(*e.messages))
	}
	runtimeOpts = append(runtimeOpts, e.services...)

	e.runtime = runtime.NewEngine(e.loader, e.store, runtimeOpts...)
	return e, nil
}

// Turn runs one turn, handing each frame to emit as it is produced.
func (e *Engine) Turn(ctx context.Context, req domain.Request, emit func(domain.Frame) error) error {
	return e.runtime.Turn(ctx, req, emit)
}

// Run runs one turn and returns its frames on a channel that closes when the turn ends.
func (e *Engine) Run(ctx context.Context, req domain.Request) <-chan domain.Frame {
	return e.runtime.Run(ctx, req)
}

// Progress lists every outline item of a course with the learner's status.
func (e *Engine) Progress(ctx context.Context, userID, courseID string, preview bool) ([]ItemProgress, error) {
	return e.runtime.Progress(ctx, userID, courseID, preview)
}

// Reset restarts an outline item for a learner.
func (e *Engine) Reset(ctx context.Context, userID, courseID, itemID string) (*domain.ProgressRecord, error) {
	return e.runtime.Reset(ctx, userID, courseID, itemID)
}

// Messages returns the active learner-facing texts.
func (e *Engine) Messages() domain.Messages {
	return e.runtime.Messages()
}

// Play runs an interactive session on a runner configured by opts.
func (e *Engine) Play(ctx context.Context, opts ...runner.Option) error {
	return runner.NewRunner(opts...).Run(ctx, e)
}
