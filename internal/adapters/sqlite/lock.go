// internal/adapters/sqlite/lock.go
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// ErrLockNotAcquired is returned when the lock stays held past the wait limit
var ErrLockNotAcquired = errors.New("ledger lock not acquired")

// Lock is a leased mutex stored in the database file, so every process that
// opens the same file serializes on it.
type Lock struct {
	store  *Store
	name   string
	ttl    time.Duration
	retry  time.Duration
	wait   time.Duration
	logger *slog.Logger
}

var _ ports.Locker = (*Lock)(nil)

// LockOption configures a Lock
type LockOption func(*Lock)

// WithLockTTL bounds how long a crashed holder can keep the lock
func WithLockTTL(ttl time.Duration) LockOption {
	return func(l *Lock) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLockWait bounds how long Lock waits before giving up
func WithLockWait(wait time.Duration) LockOption {
	return func(l *Lock) { l.wait = wait }
}

// WithLockRetry sets the polling interval
func WithLockRetry(retry time.Duration) LockOption {
	return func(l *Lock) { l.retry = retry }
}

// NewLock creates the lock named name in store's database
func NewLock(store *Store, name string, opts ...LockOption) *Lock {
	l := &Lock{
		store:  store,
		name:   name,
		ttl:    10 * time.Second,
		retry:  10 * time.Millisecond,
		wait:   15 * time.Second,
		logger: store.logger.With(slog.String("component", "ledger_lock")),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock blocks until the lock is held, ctx is done or the wait limit passes.
// An expired lease is taken over.
func (l *Lock) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.tryAcquire(ctx, token)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { l.release(token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *Lock) tryAcquire(ctx context.Context, token string) (bool, error) {
	now := l.store.now()
	query, args, err := l.store.sq.
		Insert("ledger_lock").
		Columns("name", "token", "expires_at").
		Values(l.name, token, now.Add(l.ttl).UnixMilli()).
		Suffix("ON CONFLICT (name) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at WHERE ledger_lock.expires_at <= ?",
			now.UnixMilli()).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build lock query: %w", err)
	}

	res, err := l.store.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return n == 1, nil
}

func (l *Lock) release(token string) {
	// The caller's context may already be cancelled; release regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := l.store.db.ExecContext(ctx,
		"DELETE FROM ledger_lock WHERE name = ? AND token = ?", l.name, token)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to release lock",
			slog.String("name", l.name),
			slog.String("error", err.Error()))
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		l.logger.WarnContext(ctx, "lock expired before release", slog.String("name", l.name))
	}
}
