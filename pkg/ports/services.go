package ports

import (
	"context"

	"github.com/aretw0/lectern/pkg/domain"
)

// ModelRequest describes one language model invocation.
type ModelRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	// JSON asks the model for a single JSON object instead of prose.
	JSON        bool
}

// ModelStream yields tokens of a running generation.
type ModelStream interface {
	// Recv returns the next token, or io.EOF once the generation finished.
	Recv() (string, error)
	Close() error
}

// ModelClient invokes a language model in streaming mode.
type ModelClient interface {
	Stream(ctx context.Context, req ModelRequest) (ModelStream, error)
}

// RiskVerdict is the answer of a content-risk check.
type RiskVerdict struct {
	Pass  bool
	Label string
}

// RiskChecker screens text before it is persisted.
type RiskChecker interface {
	Check(ctx context.Context, text string) (RiskVerdict, error)
}

// CodeService issues and verifies phone verification codes.
type CodeService interface {
	Send(ctx context.Context, userID, phone string) error
	// Verify returns the phone the code was sent to, or domain.ErrCodeExpired /
	// domain.ErrCodeMismatch.
	Verify(ctx context.Context, userID, code string) (string, error)
}

// PaymentService queries and creates orders.
type PaymentService interface {
	// FindOrder returns the most recent order of a user for a product.
	FindOrder(ctx context.Context, userID, product string) (*domain.Order, error)
	CreateOrder(ctx context.Context, userID, product string, price int64) (*domain.Order, error)
}

// ProfileStore reads and writes user profiles.
// GetProfile returns domain.ErrNotFound for unknown users.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
	SaveProfile(ctx context.Context, p *domain.Profile) error
}

// OrderSettler marks orders paid once the payment provider confirms them.
type OrderSettler interface {
	MarkPaid(ctx context.Context, orderID string) error
}
