package memory

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

// ReplyFunc produces the tokens of a scripted generation. A non-nil error is delivered
// after the tokens, simulating a stream that breaks midway.
type ReplyFunc func(req ports.ModelRequest) ([]string, error)

// Model is a scripted ports.ModelClient for tests and offline play.
type Model struct {
	mu    sync.Mutex
	reply ReplyFunc
	calls []ports.ModelRequest
}

// NewModel creates a scripted model. A nil reply echoes the prompt word by word.
func NewModel(reply ReplyFunc) *Model {
	if reply == nil {
		reply = func(req ports.ModelRequest) ([]string, error) {
			return strings.SplitAfter(req.Prompt, " "), nil
		}
	}
	return &Model{reply: reply}
}

// Reply returns a ReplyFunc that always answers text, one word per token.
func Reply(text string) ReplyFunc {
	return func(ports.ModelRequest) ([]string, error) {
		return strings.SplitAfter(text, " "), nil
	}
}

// Stream records the request and replays the scripted tokens.
func (m *Model) Stream(ctx context.Context, req ports.ModelRequest) (ports.ModelStream, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	tokens, err := m.reply(req)
	return &stream{ctx: ctx, tokens: tokens, err: err}, nil
}

// Calls returns the requests received so far.
func (m *Model) Calls() []ports.ModelRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.ModelRequest(nil), m.calls...)
}

type stream struct {
	ctx    context.Context
	tokens []string
	err    error
}

func (s *stream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if len(s.tokens) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	tok := s.tokens[0]
	s.tokens = s.tokens[1:]
	return tok, nil
}

func (s *stream) Close() error { return nil }

// KeywordRiskChecker rejects text containing any of its keywords (case-insensitive).
type KeywordRiskChecker struct {
	Label    string
	Keywords []string
}

// Check implements ports.RiskChecker.
func (k KeywordRiskChecker) Check(ctx context.Context, text string) (ports.RiskVerdict, error) {
	lower := strings.ToLower(text)
	for _, kw := range k.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			label := k.Label
			if label == "" {
				label = "keyword"
			}
			return ports.RiskVerdict{Pass: false, Label: label}, nil
		}
	}
	return ports.RiskVerdict{Pass: true}, nil
}

type sentCode struct {
	phone  string
	code   string
	sentAt time.Time
}

// Codes is an in-memory ports.CodeService. Codes are never delivered anywhere; LastCode
// exposes them for tests and local play.
type Codes struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	generate func() string
	sent     map[string]sentCode
}

// CodesOption configures Codes.
type CodesOption func(*Codes)

// WithCodeTTL sets how long an issued code stays valid.
func WithCodeTTL(d time.Duration) CodesOption {
	return func(c *Codes) { c.ttl = d }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) CodesOption {
	return func(c *Codes) { c.now = now }
}

// WithGenerator replaces the code generator.
func WithGenerator(gen func() string) CodesOption {
	return func(c *Codes) { c.generate = gen }
}

// NewCodes creates a code service with a 5 minute TTL and random 6-digit codes.
func NewCodes(opts ...CodesOption) *Codes {
	c := &Codes{
		ttl:  5 * time.Minute,
		now:  time.Now,
		sent: make(map[string]sentCode),
		generate: func() string {
			return fmt.Sprintf("%06d", rand.IntN(1000000))
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send issues a new code for the user, replacing any previous one.
func (c *Codes) Send(ctx context.Context, userID, phone string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[userID] = sentCode{phone: phone, code: c.generate(), sentAt: c.now()}
	return nil
}

// Verify checks the code and consumes it on success.
func (c *Codes) Verify(ctx context.Context, userID, code string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sent[userID]
	if !ok {
		return "", domain.ErrCodeMismatch
	}
	if c.now().Sub(s.sentAt) > c.ttl {
		delete(c.sent, userID)
		return "", domain.ErrCodeExpired
	}
	if s.code != strings.TrimSpace(code) {
		return "", domain.ErrCodeMismatch
	}
	delete(c.sent, userID)
	return s.phone, nil
}

// LastCode returns the outstanding code of a user.
func (c *Codes) LastCode(userID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sent[userID]
	return s.code, ok
}

// Payments is an in-memory ports.PaymentService.
type Payments struct {
	mu     sync.Mutex
	orders []domain.Order
}

// NewPayments creates an empty order book.
func NewPayments() *Payments {
	return &Payments{}
}

// FindOrder returns the latest order of the user for the product.
func (p *Payments) FindOrder(ctx context.Context, userID, product string) (*domain.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.orders) - 1; i >= 0; i-- {
		if o := p.orders[i]; o.UserID == userID && o.Product == product {
			return &o, nil
		}
	}
	return nil, domain.ErrNotFound
}

// CreateOrder opens a pending order.
func (p *Payments) CreateOrder(ctx context.Context, userID, product string, price int64) (*domain.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := domain.Order{
		ID: uuid.NewString(), UserID: userID, Product: product, Price: price,
		Status: domain.OrderPending, CreatedAt: time.Now().UTC(),
	}
	p.orders = append(p.orders, o)
	return &o, nil
}

// MarkPaid settles an order, standing in for the payment provider callback.
func (p *Payments) MarkPaid(ctx context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.orders {
		if p.orders[i].ID == orderID {
			p.orders[i].Status = domain.OrderPaid
			return nil
		}
	}
	return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
}

// Profiles is an in-memory ports.ProfileStore.
type Profiles struct {
	mu       sync.RWMutex
	profiles map[string]domain.Profile
}

// NewProfiles creates an empty profile store.
func NewProfiles() *Profiles {
	return &Profiles{profiles: make(map[string]domain.Profile)}
}

// GetProfile returns a copy of the stored profile.
func (p *Profiles) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prof, ok := p.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &prof, nil
}

// SaveProfile upserts a profile.
func (p *Profiles) SaveProfile(ctx context.Context, prof *domain.Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profiles[prof.UserID] = *prof
	return nil
}
