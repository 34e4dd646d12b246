// internal/core/services/types.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// DefaultConfirmationTTL bounds how long a confirmation token stays valid.
const DefaultConfirmationTTL = 5 * time.Minute

// Option configures a Ledger
type Option func(*Ledger)

// WithClock replaces the wall clock used for ids and timestamps
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithLocker replaces the in-process mutex, e.g. with a Redis lock shared
// by the API and the worker.
func WithLocker(locker ports.Locker) Option {
	return func(l *Ledger) {
		l.locker = locker
	}
}

// WithDefaultCatalog replaces the catalog seeded into an empty store
func WithDefaultCatalog(catalog []domain.NewProduct) Option {
	return func(l *Ledger) {
		l.catalog = catalog
	}
}

// WithConfirmationTTL sets the lifetime of confirmation tokens
func WithConfirmationTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.confirmations.ttl = ttl
		}
	}
}

// WithChangeHook runs hook after every successful ledger write, while the
// ledger lock is still held.
func WithChangeHook(hook func(ctx context.Context)) Option {
	return func(l *Ledger) {
		l.onChange = hook
	}
}

// LocalLocker serializes callers within one process.
type LocalLocker struct {
	mu sync.Mutex
}

var _ ports.Locker = (*LocalLocker)(nil)

// Lock blocks until the mutex is held or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context) (func(), error) {
	acquired := make(chan struct{})
	go func() {
		l.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
		return l.mu.Unlock, nil
	case <-ctx.Done():
		// Release the mutex once the pending acquisition completes.
		go func() {
			<-acquired
			l.mu.Unlock()
		}()
		return nil, ctx.Err()
	}
}

// idGenerator issues strictly increasing timestamp-derived ids.
type idGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// next returns an id greater than both the last issued id and floor.
func (g *idGenerator) next(floor int64) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	if id <= floor {
		id = floor + 1
	}
	g.last = id
	return id
}
