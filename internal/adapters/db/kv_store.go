// internal/adapters/db/kv_store.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/ammerola/pos-ledger/internal/core/ports"
)

const kvTable = "kv_store"

// KVStore keeps ledger documents in a single PostgreSQL table
type KVStore struct {
	db     *sql.DB
	psql   squirrel.StatementBuilderType
	now    func() time.Time
	logger *slog.Logger
}

var (
	_ ports.KeyValueStore = (*KVStore)(nil)
	_ ports.AtomicWriter  = (*KVStore)(nil)
)

// NewKVStore creates a store over db. The kv_store table must exist; see
// Migrator.
func NewKVStore(db *sql.DB, logger *slog.Logger) *KVStore {
	return &KVStore{
		db:     db,
		psql:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:    time.Now,
		logger: logger.With(slog.String("adapter", "postgres_kv")),
	}
}

// Get returns the document under key
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := s.psql.
		Select("value").
		From(kvTable).
		Where(squirrel.Eq{"key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var value []byte
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Set upserts the document under key
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	query, args, err := s.upsert(key, value)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	s.logger.DebugContext(ctx, "document written",
		slog.String("key", key),
		slog.Int("bytes", len(value)))
	return nil
}

// SetMany upserts all entries in one transaction
func (s *KVStore) SetMany(ctx context.Context, entries []ports.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, e := range entries {
		query, args, err := s.upsert(e.Key, e.Value)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				return fmt.Errorf("tx failed: %v, rollback failed: %w", err, rbErr)
			}
			return fmt.Errorf("failed to set %s: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "documents written", slog.Int("count", len(entries)))
	return nil
}

// Delete removes key
func (s *KVStore) Delete(ctx context.Context, key string) error {
	query, args, err := s.psql.
		Delete(kvTable).
		Where(squirrel.Eq{"key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Ping verifies database connectivity
func (s *KVStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *KVStore) upsert(key string, value []byte) (string, []interface{}, error) {
	query, args, err := s.psql.
		Insert(kvTable).
		Columns("key", "value", "updated_at").
		Values(key, value, s.now().UTC()).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build upsert: %w", err)
	}
	return query, args, nil
}
