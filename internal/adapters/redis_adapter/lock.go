// internal/adapters/redis_adapter/lock.go
package redis_a

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// ErrLockNotAcquired is returned when the lock stays held past the wait limit
var ErrLockNotAcquired = errors.New("ledger lock not acquired")

// releaseScript deletes the lock only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock is a single-key mutex shared by every process using the same Redis
type Lock struct {
	client redis.UniversalClient
	key    string
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
	return func(l *Lock) { l.ttl = ttl }
}

// WithLockWait bounds how long Lock waits before giving up
func WithLockWait(wait time.Duration) LockOption {
	return func(l *Lock) { l.wait = wait }
}

// WithLockRetry sets the polling interval
func WithLockRetry(retry time.Duration) LockOption {
	return func(l *Lock) { l.retry = retry }
}

// NewLock creates a lock on key
func NewLock(client redis.UniversalClient, key string, logger *slog.Logger, opts ...LockOption) *Lock {
	l := &Lock{
		client: client,
		key:    key,
		ttl:    10 * time.Second,
		retry:  25 * time.Millisecond,
		wait:   15 * time.Second,
		logger: logger.With(slog.String("component", "ledger_lock")),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock blocks until the lock is held, ctx is done or the wait limit passes
func (l *Lock) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx error: %w", err)
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

func (l *Lock) release(token string) {
	// The caller's context may already be cancelled; release regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to release lock",
			slog.String("key", l.key),
			slog.String("error", err.Error()))
		return
	}
	if n == 0 {
		l.logger.WarnContext(ctx, "lock expired before release", slog.String("key", l.key))
	}
}
