package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

const (
	// DefaultMaxHops bounds how many branch associations a single advance may follow.
	DefaultMaxHops = 16
	// maxBlocksPerTurn bounds the auto-advance loop of one turn.
	maxBlocksPerTurn = 512
)

// SessionLock serializes the turns of one user.
// Acquire returns domain.ErrLockBusy when the lock could not be taken in time.
type SessionLock interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// ContinuationContext is what a continuation predicate gets to decide on.
type ContinuationContext struct {
	UserID    string
	CourseID  string
	Block     domain.Block
	Variables map[string]string
	Profiles  ports.ProfileStore
	Payments  ports.PaymentService
}

// ContinuationFunc reports whether the engine should skip the block's UI and auto-advance.
type ContinuationFunc func(ctx context.Context, c ContinuationContext) (bool, error)

// Engine runs learning turns against a content loader and a transactional store.
type Engine struct {
	loader ports.ContentLoader
	store  ports.Store

	sessions SessionLock
	model    ports.ModelClient
	risk     ports.RiskChecker
	codes    ports.CodeService
	payments ports.PaymentService
	profiles ports.ProfileStore

	hooks         domain.LifecycleHooks
	logger        *slog.Logger
	messages      domain.Messages
	continuations map[domain.InteractionKind]ContinuationFunc

	maxHops        int
	typingDelay    time.Duration
	checkGenerated bool
	avatarURL      string
	now            func() time.Time
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithSessionLock replaces the per-user turn lock.
func WithSessionLock(l SessionLock) EngineOption {
	return func(e *Engine) {
		e.sessions = l
	}
}

// WithModel sets the language model used by prompt blocks and checked inputs.
func WithModel(m ports.ModelClient) EngineOption {
	return func(e *Engine) {
		e.model = m
	}
}

// WithRiskChecker sets the safety gate collaborator.
func WithRiskChecker(r ports.RiskChecker) EngineOption {
	return func(e *Engine) {
		e.risk = r
	}
}

// WithCodeService sets the verification code collaborator.
func WithCodeService(c ports.CodeService) EngineOption {
	return func(e *Engine) {
		e.codes = c
	}
}

// WithPayments sets the order collaborator.
func WithPayments(p ports.PaymentService) EngineOption {
	return func(e *Engine) {
		e.payments = p
	}
}

// WithProfiles sets the profile store.
func WithProfiles(p ports.ProfileStore) EngineOption {
	return func(e *Engine) {
		e.profiles = p
	}
}

// WithMessages overrides user-facing texts. Empty fields keep their defaults.
func WithMessages(m domain.Messages) EngineOption {
	return func(e *Engine) {
		e.messages = m.Merge(domain.DefaultMessages())
	}
}

// WithMaxHops sets the branch hop limit.
func WithMaxHops(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxHops = n
		}
	}
}

// WithTypingDelay paces fixed text frames.
func WithTypingDelay(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.typingDelay = d
	}
}

// WithCheckGenerated also screens model output through the safety gate.
func WithCheckGenerated(enabled bool) EngineOption {
	return func(e *Engine) {
		e.checkGenerated = enabled
	}
}

// WithAvatarURL sets the avatar used when a course does not carry its own.
func WithAvatarURL(url string) EngineOption {
	return func(e *Engine) {
		e.avatarURL = url
	}
}

// WithContinuation overrides the continuation predicate of an interaction kind.
func WithContinuation(kind domain.InteractionKind, fn ContinuationFunc) EngineOption {
	return func(e *Engine) {
		e.continuations[kind] = fn
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a new engine with dependencies.
func NewEngine(loader ports.ContentLoader, store ports.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		loader:        loader,
		store:         store,
		sessions:      noopLock{},
		logger:        logging.NewNop(),
		messages:      domain.DefaultMessages(),
		continuations: defaultContinuations(),
		maxHops:       DefaultMaxHops,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Messages returns the active message catalog.
func (e *Engine) Messages() domain.Messages {
	return e.messages
}

type noopLock struct{}

func (noopLock) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

func (e *Engine) emitTurn(ctx context.Context, fn func(context.Context, *domain.TurnEvent), ev *domain.TurnEvent) {
	if fn != nil {
		fn(ctx, ev)
	}
}

func (e *Engine) emitStatus(ctx context.Context, ev *domain.StatusEvent) {
	if e.hooks.OnStatusChange != nil {
		e.hooks.OnStatusChange(ctx, ev)
	}
}

func (e *Engine) emitBlock(ctx context.Context, ev *domain.BlockEvent) {
	if e.hooks.OnBlock != nil {
		e.hooks.OnBlock(ctx, ev)
	}
}
