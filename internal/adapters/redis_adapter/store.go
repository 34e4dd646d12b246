// internal/adapters/redis_adapter/store.go
package redis_a

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// Store keeps ledger documents as plain Redis string values
type Store struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

var (
	_ ports.KeyValueStore = (*Store)(nil)
	_ ports.AtomicWriter  = (*Store)(nil)
)

// NewStore creates a store. prefix is prepended to every ledger key so
// several shops can share a Redis database.
func NewStore(client redis.UniversalClient, prefix string, logger *slog.Logger) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger.With(slog.String("adapter", "redis_kv")),
	}
}

// Get returns the document under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ports.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set replaces the document under key
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// SetMany writes all entries in one MULTI/EXEC transaction
func (s *Store) SetMany(ctx context.Context, entries []ports.Entry) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, s.prefix+e.Key, e.Value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis multi-set: %w", err)
	}

	s.logger.DebugContext(ctx, "documents written", slog.Int("count", len(entries)))
	return nil
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping checks if Redis is accessible
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
