package redis

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/lectern/pkg/domain"
)

const (
	defaultCodeTTL     = 5 * time.Minute
	defaultMaxAttempts = 5
)

// Sender delivers a verification code to a phone. Delivery itself (SMS gateway, captcha)
// lives outside this module.
type Sender func(ctx context.Context, phone, code string) error

// Codes implements ports.CodeService with codes kept in Redis hashes that expire on their own.
type Codes struct {
	client      backend.UniversalClient
	prefix      string
	ttl         time.Duration
	maxAttempts int64
	send        Sender
	generate    func() string
}

// CodesOption configures Codes.
type CodesOption func(*Codes)

// WithCodeTTL sets how long an issued code stays valid.
func WithCodeTTL(d time.Duration) CodesOption {
	return func(c *Codes) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithMaxAttempts sets how many wrong guesses burn a code.
func WithMaxAttempts(n int) CodesOption {
	return func(c *Codes) {
		if n > 0 {
			c.maxAttempts = int64(n)
		}
	}
}

// WithSender sets the delivery hook.
func WithSender(s Sender) CodesOption {
	return func(c *Codes) {
		c.send = s
	}
}

// WithGenerator replaces the code generator.
func WithGenerator(gen func() string) CodesOption {
	return func(c *Codes) {
		c.generate = gen
	}
}

// NewCodes creates a Redis backed code service. Keys are stored under prefix + "code:".
func NewCodes(client backend.UniversalClient, prefix string, opts ...CodesOption) *Codes {
	c := &Codes{
		client:      client,
		prefix:      prefix,
		ttl:         defaultCodeTTL,
		maxAttempts: defaultMaxAttempts,
		generate: func() string {
			return fmt.Sprintf("%06d", rand.IntN(1000000))
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Codes) key(userID string) string {
	return c.prefix + "code:" + userID
}

// Send issues a new code for the user, replacing any previous one.
func (c *Codes) Send(ctx context.Context, userID, phone string) error {
	code := c.generate()
	key := c.key(userID)
	_, err := c.client.TxPipelined(ctx, func(p backend.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, "phone", phone, "code", code, "attempts", 0)
		p.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store code: %w", err)
	}
	if c.send != nil {
		if err := c.send(ctx, phone, code); err != nil {
			return fmt.Errorf("deliver code: %w", err)
		}
	}
	return nil
}

// Verify checks the code and consumes it on success. A missing key means the code expired
// (or was never sent, or was burnt by too many wrong guesses).
func (c *Codes) Verify(ctx context.Context, userID, code string) (string, error) {
	key := c.key(userID)
	fields, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("load code: %w", err)
	}
	if len(fields) == 0 {
		return "", domain.ErrCodeExpired
	}
	if fields["code"] != strings.TrimSpace(code) {
		attempts, err := c.client.HIncrBy(ctx, key, "attempts", 1).Result()
		if err != nil {
			return "", fmt.Errorf("count attempt: %w", err)
		}
		if attempts >= c.maxAttempts {
			c.client.Del(ctx, key)
		}
		return "", domain.ErrCodeMismatch
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return "", fmt.Errorf("consume code: %w", err)
	}
	return fields["phone"], nil
}
