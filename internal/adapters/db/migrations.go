// internal/adapters/db/migrations.go
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrDirtySchema means a previous migration stopped half way
var ErrDirtySchema = errors.New("ledger schema is dirty")

// MigrationConfig selects the database and bookkeeping table for migrations
type MigrationConfig struct {
	DatabaseURL      string
	Table            string
	ForceDirty       bool
	StatementTimeout time.Duration
}

func (c *MigrationConfig) withDefaults() MigrationConfig {
	out := *c
	if out.Table == "" {
		out.Table = "schema_migrations"
	}
	if out.StatementTimeout == 0 {
		out.StatementTimeout = 5 * time.Minute
	}
	return out
}

// RunMigrationsWithRetry brings the kv_store schema up to date. Connection
// failures are retried with exponential backoff up to maxRetries times; a
// dirty schema fails immediately unless ForceDirty is set.
func RunMigrationsWithRetry(ctx context.Context, cfg *MigrationConfig, logger *slog.Logger, maxRetries int) error {
	if cfg == nil || cfg.DatabaseURL == "" {
		return errors.New("migration database url is required")
	}
	mc := cfg.withDefaults()
	log := logger.With(slog.String("component", "migrator"))

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxElapsedTime = 0
	retries := uint64(0)
	if maxRetries > 1 {
		retries = uint64(maxRetries - 1)
	}

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		err := migrateUp(ctx, mc, log)
		if errors.Is(err, ErrDirtySchema) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx), func(err error, wait time.Duration) {
		log.WarnContext(ctx, "migration attempt failed",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", wait),
			slog.String("error", err.Error()))
	})
	if err != nil {
		return fmt.Errorf("migrations failed after %d attempts: %w", attempt, err)
	}
	return nil
}

func migrateUp(ctx context.Context, cfg MigrationConfig, log *slog.Logger) error {
	conn, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()
	conn.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.WithInstance(conn, &postgres.Config{
		MigrationsTable:  cfg.Table,
		StatementTimeout: cfg.StatementTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case dirty && !cfg.ForceDirty:
		return fmt.Errorf("%w at version %d", ErrDirtySchema, version)
	case dirty:
		log.WarnContext(ctx, "forcing dirty schema version", slog.Uint64("version", uint64(version)))
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force schema version: %w", err)
		}
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	if version, _, err = m.Version(); err == nil {
		log.InfoContext(ctx, "ledger schema up to date", slog.Uint64("version", uint64(version)))
	}
	return nil
}
