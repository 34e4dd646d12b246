// internal/core/ports/store.go
package ports

import (
	"context"
	"errors"
)

// Fixed keys of the ledger's persistent collections.
const (
	KeyProducts     = "pos_products"
	KeySales        = "pos_sales"
	KeyOfflineSales = "pos_offline_sales"
	KeyUser         = "pos_user"
)

// ErrKeyNotFound is returned by Get when the key has never been written.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueStore holds whole JSON documents addressed by fixed string keys.
// Implementations replace a document atomically on Set.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Entry is one document of a multi-key write
type Entry struct {
	Key   string
	Value []byte
}

// AtomicWriter is implemented by stores that can replace several documents
// in a single transaction. Entries are applied in order.
type AtomicWriter interface {
	SetMany(ctx context.Context, entries []Entry) error
}

// Locker serializes ledger operations. Unlock must be called exactly once.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}
