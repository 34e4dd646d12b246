// internal/adapters/sqlite/store.go
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ammerola/pos-ledger/internal/core/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ledger_lock (
	name       TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);`

// Store is a single-device KeyValueStore backed by a SQLite file
type Store struct {
	db     *sqlx.DB
	sq     squirrel.StatementBuilderType
	now    func() time.Time
	logger *slog.Logger
}

var (
	_ ports.KeyValueStore = (*Store)(nil)
	_ ports.AtomicWriter  = (*Store)(nil)
)

// Open opens (creating if needed) the database at path. Use ":memory:" for a
// throwaway database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger = logger.With(slog.String("adapter", "sqlite"))
	logger.InfoContext(ctx, "sqlite store opened", slog.String("path", path))

	return &Store{
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		now:    time.Now,
		logger: logger,
	}, nil
}

// Get returns the document under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := s.sq.Select("value").From("kv_store").Where(squirrel.Eq{"key": key}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var value []byte
	if err := s.db.GetContext(ctx, &value, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ports.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Set replaces the document under key
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, []ports.Entry{{Key: key, Value: value}})
}

// SetMany replaces every entry in one transaction
func (s *Store) SetMany(ctx context.Context, entries []ports.Entry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	updatedAt := s.now().UTC().Format(time.RFC3339Nano)
	for _, e := range entries {
		query, args, err := s.sq.
			Insert("kv_store").
			Columns("key", "value", "updated_at").
			Values(e.Key, e.Value, updatedAt).
			Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build upsert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to set %s: %w", e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Delete removes key
func (s *Store) Delete(ctx context.Context, key string) error {
	query, args, err := s.sq.Delete("kv_store").Where(squirrel.Eq{"key": key}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys in order
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, "SELECT key FROM kv_store ORDER BY key"); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
