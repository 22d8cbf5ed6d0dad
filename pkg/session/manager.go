package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

const (
	// DefaultWait is how long Acquire waits for a held lock.
	DefaultWait = time.Second
	// DefaultTTL bounds how long a distributed lock outlives a crashed holder.
	DefaultTTL = 5 * time.Minute

	releaseTimeout = 5 * time.Second
)

// lockEntry is a one-slot semaphore and the number of goroutines holding or waiting on it.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// Manager serializes access per user id.
// It uses reference counting to garbage collect unused locks.
type Manager struct {
	mu    sync.Mutex            // guards locks
	locks map[string]*lockEntry // active locks by user id

	locker ports.Locker // optional distributed locker
	logger *slog.Logger
	wait   time.Duration
	ttl    time.Duration
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.Locker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithWait sets how long Acquire waits before reporting domain.ErrLockBusy.
func WithWait(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.wait = d
		}
	}
}

// WithTTL sets the expiry of distributed locks.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// NewManager creates a new session Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		locks:  make(map[string]*lockEntry),
		logger: logging.NewNop(),
		wait:   DefaultWait,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ref gets or creates a lock entry and increments its reference count.
// The caller must call unref(userID) once done with the entry.
func (m *Manager) ref(userID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[userID] = entry
	}
	entry.refs++
	return entry
}

// unref decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) unref(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[userID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, userID)
	}
}

// Acquire takes the lock of a user. It returns domain.ErrLockBusy when the lock is still
// held after the configured wait. The returned release is safe to call more than once.
func (m *Manager) Acquire(ctx context.Context, userID string) (func(), error) {
	entry := m.ref(userID)

	waitCtx, cancel := context.WithTimeout(ctx, m.wait)
	defer cancel()

	select {
	case entry.sem <- struct{}{}:
	case <-waitCtx.Done():
		m.unref(userID)
		return nil, m.waitErr(ctx, userID)
	}

	var unlock ports.UnlockFunc
	if m.locker != nil {
		var err error
		unlock, err = m.locker.Lock(waitCtx, "session:"+userID, m.ttl)
		if err != nil {
			<-entry.sem
			m.unref(userID)
			if waitCtx.Err() != nil {
				return nil, m.waitErr(ctx, userID)
			}
			return nil, fmt.Errorf("acquire distributed lock: %w", err)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if unlock != nil {
				// The turn's context may be gone by now.
				rctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
				defer cancel()
				if err := unlock(rctx); err != nil {
					m.logger.Warn("failed to release distributed lock (will expire via TTL)",
						"user_id", userID,
						"err", err,
					)
				}
			}
			<-entry.sem
			m.unref(userID)
		})
	}, nil
}

func (m *Manager) waitErr(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Debug("session lock busy", "user_id", userID)
	return fmt.Errorf("user %s: %w", userID, domain.ErrLockBusy)
}

// WithLock executes fn while holding the lock of the user.
func (m *Manager) WithLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	release, err := m.Acquire(ctx, userID)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Held returns the number of users with a lock held or waited on.
func (m *Manager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
