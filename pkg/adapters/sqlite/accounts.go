package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/lectern/pkg/domain"
)

// GetProfile returns the profile of a user.
func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var (
		p         domain.Profile
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, phone, verified, updated_at FROM profiles WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &p.Phone, &p.Verified, &updatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

// SaveProfile upserts a profile.
func (s *Store) SaveProfile(ctx context.Context, p *domain.Profile) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, phone, verified, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		     phone = excluded.phone,
		     verified = excluded.verified,
		     updated_at = excluded.updated_at`,
		p.UserID, p.Phone, p.Verified, toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// FindOrder returns the latest order of the user for the product.
func (s *Store) FindOrder(ctx context.Context, userID, product string) (*domain.Order, error) {
	var (
		o         domain.Order
		status    string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, product, price, status, created_at FROM orders
		 WHERE user_id = ? AND product = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		userID, product,
	).Scan(&o.ID, &o.UserID, &o.Product, &o.Price, &status, &createdAt)
	if err != nil {
		return nil, notFound(err)
	}
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = fromMillis(createdAt)
	return &o, nil
}

// CreateOrder opens a pending order.
func (s *Store) CreateOrder(ctx context.Context, userID, product string, price int64) (*domain.Order, error) {
	o := &domain.Order{
		ID: uuid.NewString(), UserID: userID, Product: product, Price: price,
		Status: domain.OrderPending, CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, product, price, status, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.Product, o.Price, string(o.Status), toMillis(o.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return o, nil
}

// MarkPaid settles an order. It is the hook a payment provider callback lands on.
func (s *Store) MarkPaid(ctx context.Context, orderID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, string(domain.OrderPaid), orderID)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return nil
}
