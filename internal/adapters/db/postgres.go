// internal/adapters/db/postgres.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// Config describes the Postgres server holding the kv_store table
type Config struct {
	Host               string
	Port               string
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int32
	MinConnections     int32
	MaxConnLifetime    time.Duration
	MaxConnIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	EnableQueryLogging bool
}

// DefaultConfig matches the docker-compose development database
func DefaultConfig() *Config {
	return &Config{
		Host:              "localhost",
		Port:              "5432",
		User:              "pos",
		Password:          "pos_dev",
		Database:          "pos_ledger",
		SSLMode:           "disable",
		MaxConnections:    10,
		MinConnections:    2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    10 * time.Second,
	}
}

// URL renders the connection string as a postgres:// URL. The connect
// timeout is applied on the pool config instead.
func (c *Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

func (c *Config) poolConfig(logger *slog.Logger) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.URL())
	if err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}
	pc.MaxConns = c.MaxConnections
	pc.MinConns = c.MinConnections
	pc.MaxConnLifetime = c.MaxConnLifetime
	pc.MaxConnIdleTime = c.MaxConnIdleTime
	pc.HealthCheckPeriod = c.HealthCheckPeriod
	if c.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = c.ConnectTimeout
	}
	pc.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
	if c.EnableQueryLogging {
		pc.ConnConfig.Tracer = &tracelog.TraceLog{Logger: slogTracer{logger}, LogLevel: tracelog.LogLevelDebug}
	}
	return pc, nil
}

// Database is the pgx pool behind the Postgres ledger store. SQL exposes
// the same pool through database/sql for sqlx and squirrel.
type Database struct {
	pool   *pgxpool.Pool
	sqlDB  *sql.DB
	logger *slog.Logger
}

var _ ports.Database = (*Database)(nil)

// NewDatabase opens and pings the pool; a nil config uses DefaultConfig
func NewDatabase(ctx context.Context, cfg *Config, logger *slog.Logger) (*Database, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := logger.With(slog.String("adapter", "postgres"))

	pc, err := cfg.poolConfig(log)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach %s at %s: %w", cfg.Database, cfg.Host, err)
	}

	log.Info("ledger database connected",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database),
		slog.Int("max_connections", int(cfg.MaxConnections)))

	return &Database{pool: pool, sqlDB: stdlib.OpenDBFromPool(pool), logger: log}, nil
}

// SQL returns the database/sql view of the pool
func (d *Database) SQL() *sql.DB { return d.sqlDB }

func (d *Database) Ping(ctx context.Context) error { return d.pool.Ping(ctx) }

// Close shuts the sql handle and then the pool
func (d *Database) Close() error {
	err := d.sqlDB.Close()
	d.pool.Close()
	d.logger.Info("ledger database closed")
	return err
}

// Health reports pool usage and how many ledger collections are stored
func (d *Database) Health(ctx context.Context) map[string]interface{} {
	st := d.pool.Stat()
	out := map[string]interface{}{
		"status":               "healthy",
		"total_connections":    st.TotalConns(),
		"idle_connections":     st.IdleConns(),
		"acquired_connections": st.AcquiredConns(),
		"max_connections":      st.MaxConns(),
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var keys int64
	if err := d.pool.QueryRow(ctx, "SELECT count(*) FROM "+kvTable).Scan(&keys); err != nil {
		out["status"] = "unhealthy"
		out["error"] = err.Error()
		return out
	}
	out["collections"] = keys
	return out
}

// slogTracer forwards pgx trace output to slog
type slogTracer struct{ logger *slog.Logger }

func (t slogTracer) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	lvl := slog.LevelDebug
	switch level {
	case tracelog.LogLevelError:
		lvl = slog.LevelError
	case tracelog.LogLevelWarn:
		lvl = slog.LevelWarn
	case tracelog.LogLevelInfo:
		lvl = slog.LevelInfo
	}
	attrs := make([]slog.Attr, 0, len(data)+1)
	attrs = append(attrs, slog.String("component", "pgx"))
	for k, v := range data {
		attrs = append(attrs, slog.Any(k, v))
	}
	t.logger.LogAttrs(ctx, lvl, msg, attrs...)
}
