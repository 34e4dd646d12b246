// internal/adapters/memory/store.go
package memory

import (
	"context"
	"sync"

	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// Store is an in-process KeyValueStore. It backs tests and single-process
// demo runs; contents are lost on exit.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var (
	_ ports.KeyValueStore = (*Store)(nil)
	_ ports.AtomicWriter  = (*Store)(nil)
)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get returns a copy of the document under key
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, ports.ErrKeyNotFound
	}
	return clone(v), nil
}

// Set replaces the document under key
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = clone(value)
	return nil
}

// SetMany replaces several documents under one lock
func (s *Store) SetMany(_ context.Context, entries []ports.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.data[e.Key] = clone(e.Value)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Ping always succeeds
func (s *Store) Ping(context.Context) error { return nil }

// Keys returns the stored keys, for diagnostics
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
