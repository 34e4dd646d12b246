// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/pos-ledger/internal/adapters/db"
	"github.com/ammerola/pos-ledger/internal/adapters/memory"
	redis_a "github.com/ammerola/pos-ledger/internal/adapters/redis_adapter"
	"github.com/ammerola/pos-ledger/internal/adapters/sqlite"
	"github.com/ammerola/pos-ledger/internal/adapters/storage"
	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/ports"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/internal/pkg/config"
)

// Backend is the opened ledger store together with the resources it owns
type Backend struct {
	Driver   string
	Store    ports.KeyValueStore
	Locker   ports.Locker // nil means the ledger's in-process mutex (memory only)
	Database *db.Database // postgres only

	closers []func() error
}

// Close releases everything the backend opened, in reverse order
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RedisOptions maps the redis section onto go-redis options
func RedisOptions(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:            cfg.Redis.Addr(),
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		MaxRetries:      cfg.Redis.MaxRetries,
		MinRetryBackoff: cfg.Redis.MinRetryBackoff,
		MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
		DialTimeout:     cfg.Redis.DialTimeout,
		ReadTimeout:     cfg.Redis.ReadTimeout,
		WriteTimeout:    cfg.Redis.WriteTimeout,
		PoolSize:        cfg.Redis.PoolSize,
		MinIdleConns:    cfg.Redis.MinIdleConns,
		PoolTimeout:     cfg.Redis.PoolTimeout,
	}
}

// AsynqRedisOpt returns the connection used by the task queue
func AsynqRedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
}

// ConnectRedis opens and pings a Redis client
func ConnectRedis(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*redis.Client, error) {
	logger.Info("connecting to Redis", slog.String("addr", cfg.Redis.Addr()))

	client := redis.NewClient(RedisOptions(cfg))
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NeedsRedis reports whether the configured store requires a Redis client
func NeedsRedis(cfg *config.Config) bool {
	return cfg.Store.Driver == config.StoreRedis || cfg.Store.Driver == config.StorePostgres
}

// OpenBackend opens the configured store together with a ledger lock every
// process on the same store shares: a lease row inside the SQLite file, or
// the Redis lock for the redis and postgres drivers, which require rdb.
func OpenBackend(ctx context.Context, cfg *config.Config, rdb redis.UniversalClient, logger *slog.Logger) (*Backend, error) {
	b := &Backend{Driver: cfg.Store.Driver}

	if NeedsRedis(cfg) {
		if rdb == nil {
			return nil, fmt.Errorf("store driver %q requires redis", cfg.Store.Driver)
		}
		b.Locker = redis_a.NewLock(rdb, cfg.Store.LockKey, logger, redis_a.WithLockTTL(cfg.Store.LockTTL))
	}

	switch cfg.Store.Driver {
	case config.StoreMemory:
		b.Store = memory.NewStore()

	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		b.Store = store
		b.Locker = sqlite.NewLock(store, cfg.Store.LockKey, sqlite.WithLockTTL(cfg.Store.LockTTL))
		b.closers = append(b.closers, store.Close)

	case config.StoreRedis:
		b.Store = redis_a.NewStore(rdb, cfg.Store.KeyPrefix, logger)

	case config.StorePostgres:
		dbConfig := DatabaseConfig(cfg)
		if cfg.Database.AutoMigrate {
			if err := db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{DatabaseURL: dbConfig.URL()}, logger, 3); err != nil {
				return nil, err
			}
		}
		database, err := db.NewDatabase(ctx, dbConfig, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		b.Database = database
		b.Store = db.NewKVStore(database.SQL(), logger)
		b.closers = append(b.closers, database.Close)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	logger.Info("ledger store ready", slog.String("driver", cfg.Store.Driver))
	return b, nil
}

// ErrWorkerStore is returned for a store the worker cannot share with the API
var ErrWorkerStore = errors.New("the memory store is private to one process")

// CheckWorkerStore rejects drivers whose ledger the worker would not share
// with the API process.
func CheckWorkerStore(cfg *config.Config) error {
	if cfg.Store.Driver == config.StoreMemory {
		return fmt.Errorf("worker cannot use store driver %q: %w", cfg.Store.Driver, ErrWorkerStore)
	}
	return nil
}

// DatabaseConfig maps the database section onto the postgres adapter config
func DatabaseConfig(cfg *config.Config) *db.Config {
	return &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     cfg.Database.MaxConnections,
		MinConnections:     cfg.Database.MinConnections,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}
}

// NewLedger builds the ledger over an opened backend
func NewLedger(cfg *config.Config, b *Backend, logger *slog.Logger, opts ...services.Option) *services.Ledger {
	base := []services.Option{services.WithConfirmationTTL(cfg.Ledger.ConfirmationTTL)}
	if b.Locker != nil {
		base = append(base, services.WithLocker(b.Locker))
	}
	if !cfg.Ledger.SeedCatalog {
		base = append(base, services.WithDefaultCatalog(nil))
	}
	return services.NewLedger(b.Store, logger, append(base, opts...)...)
}

// Credentials resolves the configured users, hashing plaintext development
// passwords at the configured bcrypt cost.
func Credentials(cfg *config.Config) (*memory.CredentialStore, error) {
	creds := make([]domain.Credential, 0, len(cfg.Security.Users))
	for _, u := range cfg.Security.Users {
		hash := u.PasswordHash
		if hash == "" {
			if cfg.IsProduction() {
				return nil, fmt.Errorf("user %q has no password hash", u.Username)
			}
			var err error
			hash, err = services.HashPassword(u.Password, cfg.Security.BcryptCost)
			if err != nil {
				return nil, err
			}
		}
		name := u.Name
		if name == "" {
			name = u.Username
		}
		creds = append(creds, domain.Credential{
			Username:     u.Username,
			Name:         name,
			Role:         domain.Role(u.Role),
			PasswordHash: hash,
		})
	}
	return memory.NewCredentialStore(creds...)
}

// NewArchiveStorage opens the configured export archive storage
func NewArchiveStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.StorageClient, error) {
	switch cfg.Storage.Driver {
	case "s3":
		return storage.NewS3Storage(ctx, &storage.S3Config{
			Region:          cfg.AWS.Region,
			Bucket:          cfg.AWS.S3Bucket,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Endpoint:        cfg.AWS.S3Endpoint,
			UsePathStyle:    cfg.AWS.UsePathStyle,
		}, logger)
	default:
		return storage.NewLocalStorage(cfg.Storage.LocalDir, logger)
	}
}
