// internal/pkg/config/config.go
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingRequiredConfig marks a required setting that was not provided
var ErrMissingRequiredConfig = errors.New("missing required configuration")

// Store drivers
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Store          StoreConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Asynq          AsynqConfig
	AWS            AWSConfig
	Storage        StorageConfig
	FileProcessing FileProcessingConfig
	Security       SecurityConfig
	Ledger         LedgerConfig
	Server         ServerConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `required:"true"`
	Environment string // development, staging, production
	Version     string
	LogLevel    string
	LogFormat   string // json, text
	Debug       bool
}

// StoreConfig selects where the ledger documents live
type StoreConfig struct {
	Driver     string `required:"true"`
	SQLitePath string
	KeyPrefix  string // redis only
	LockKey    string
	LockTTL    time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxConnections     int32
	MinConnections     int32
	MaxConnLifetime    time.Duration
	MaxConnIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	EnableQueryLogging bool
	AutoMigrate        bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host            string
	Port            string
	Password        string
	DB              int
	MaxRetries      int
	MinRetryBackoff time.Duration
	MaxRetryBackoff time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	TTL             time.Duration
}

// Addr is the host:port of the Redis server
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, r.Port)
}

// AsynqConfig holds Asynq configuration
type AsynqConfig struct {
	Enabled         bool // the API enqueues background jobs instead of running them inline
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Concurrency     int
	Queues          map[string]int // queue name -> priority
	StrictPriority  bool
	RetryMax        int
	ShutdownTimeout time.Duration
	SyncInterval    time.Duration // 0 disables the periodic offline sync
}

// AWSConfig holds AWS configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string // For MinIO in development
	UsePathStyle    bool   // For MinIO compatibility
	SecretsName     string // Secrets Manager secret holding production credentials
}

// StorageConfig selects where export archives are written
type StorageConfig struct {
	Driver   string // local, s3
	LocalDir string
}

// FileProcessingConfig holds file processing configuration
type FileProcessingConfig struct {
	ProcessingTimeout time.Duration
	UploadMaxAge      time.Duration // uploads older than this are swept
	TempDir           string
}

// UserConfig is one terminal login. Password is only honoured outside
// production and is hashed at startup.
type UserConfig struct {
	Username     string
	Name         string
	Role         string
	PasswordHash string
	Password     string
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	BcryptCost        int
	SessionTTL        time.Duration
	RateLimitRequests int
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	SecureHeaders     bool
	RequestIDHeader   string
	Users             []UserConfig
}

// LedgerConfig tunes the ledger services
type LedgerConfig struct {
	ConfirmationTTL   time.Duration
	LowStockThreshold int
	SeedCatalog       bool
	AnalyticsCacheTTL time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string `required:"true"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	GracefulTimeout time.Duration
	MaxUploadMB     int
}

// SecretsSource resolves secret values by key
type SecretsSource interface {
	GetSecrets(ctx context.Context, keys []string) (map[string]string, error)
}

// secretKeys are overridden from the secrets source in production
var secretKeys = []string{"DB_PASSWORD", "REDIS_PASSWORD", "AWS_SECRET_ACCESS_KEY", "POS_USERS"}

// Load loads configuration from the environment, a .env file in development
// and, in production, AWS Secrets Manager when AWS_SECRETS_NAME is set.
func Load(logger *slog.Logger) (*Config, error) {
	v := newViper()
	env := v.GetString("APP_ENV")

	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Warn("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		} else {
			logger.Info(".env file loaded successfully")
		}
	}

	var secrets SecretsSource
	if env == "production" {
		if name := v.GetString("AWS_SECRETS_NAME"); name != "" {
			sm, err := NewSecretsManagerSource(v.GetString("AWS_REGION"), name, logger)
			if err != nil {
				return nil, err
			}
			secrets = sm
		}
	}

	return LoadFrom(context.Background(), v, secrets)
}

// LoadFrom builds the configuration from v, overriding secret keys from
// secrets when it is non-nil.
func LoadFrom(ctx context.Context, v *viper.Viper, secrets SecretsSource) (*Config, error) {
	if secrets != nil {
		values, err := secrets.GetSecrets(ctx, secretKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to load secrets: %w", err)
		}
		for k, val := range values {
			v.Set(k, val)
		}
	}

	env := v.GetString("APP_ENV")
	dev := env == "development" || env == "local"

	users, err := parseUsers(v.GetString("POS_USERS"))
	if err != nil {
		return nil, err
	}
	if len(users) == 0 && env != "production" {
		users = defaultUsers()
	}

	cfg := &Config{
		App: AppConfig{
			Name:        v.GetString("APP_NAME"),
			Environment: env,
			Version:     v.GetString("APP_VERSION"),
			LogLevel:    v.GetString("LOG_LEVEL"),
			LogFormat:   v.GetString("LOG_FORMAT"),
			Debug:       getBool(v, "APP_DEBUG", dev),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(v.GetString("STORE_DRIVER")),
			SQLitePath: v.GetString("SQLITE_PATH"),
			KeyPrefix:  v.GetString("STORE_KEY_PREFIX"),
			LockKey:    v.GetString("STORE_LOCK_KEY"),
			LockTTL:    v.GetDuration("STORE_LOCK_TTL"),
		},
		Database: DatabaseConfig{
			Host:               v.GetString("DB_HOST"),
			Port:               v.GetString("DB_PORT"),
			User:               v.GetString("DB_USER"),
			Password:           v.GetString("DB_PASSWORD"),
			Name:               v.GetString("DB_NAME"),
			SSLMode:            v.GetString("DB_SSL_MODE"),
			MaxConnections:     v.GetInt32("DB_MAX_CONNECTIONS"),
			MinConnections:     v.GetInt32("DB_MIN_CONNECTIONS"),
			MaxConnLifetime:    v.GetDuration("DB_CONNECTION_LIFETIME"),
			MaxConnIdleTime:    v.GetDuration("DB_IDLE_TIME"),
			HealthCheckPeriod:  v.GetDuration("DB_HEALTH_CHECK_PERIOD"),
			ConnectTimeout:     v.GetDuration("DB_CONNECT_TIMEOUT"),
			EnableQueryLogging: getBool(v, "DB_QUERY_LOGGING", dev),
			AutoMigrate:        v.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Host:            v.GetString("REDIS_HOST"),
			Port:            v.GetString("REDIS_PORT"),
			Password:        v.GetString("REDIS_PASSWORD"),
			DB:              v.GetInt("REDIS_DB"),
			MaxRetries:      v.GetInt("REDIS_MAX_RETRIES"),
			MinRetryBackoff: v.GetDuration("REDIS_MIN_RETRY_BACKOFF"),
			MaxRetryBackoff: v.GetDuration("REDIS_MAX_RETRY_BACKOFF"),
			DialTimeout:     v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:     v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("REDIS_WRITE_TIMEOUT"),
			PoolSize:        v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns:    v.GetInt("REDIS_MIN_IDLE_CONNS"),
			PoolTimeout:     v.GetDuration("REDIS_POOL_TIMEOUT"),
			TTL:             v.GetDuration("REDIS_TTL"),
		},
		Asynq: AsynqConfig{
			Enabled:         v.GetBool("ASYNQ_ENABLED"),
			RedisAddr:       net.JoinHostPort(v.GetString("REDIS_HOST"), v.GetString("REDIS_PORT")),
			RedisPassword:   v.GetString("REDIS_PASSWORD"),
			RedisDB:         v.GetInt("ASYNQ_REDIS_DB"),
			Concurrency:     v.GetInt("ASYNQ_CONCURRENCY"),
			Queues:          parseQueues(v.GetString("ASYNQ_QUEUES")),
			StrictPriority:  v.GetBool("ASYNQ_STRICT_PRIORITY"),
			RetryMax:        v.GetInt("ASYNQ_RETRY_MAX"),
			ShutdownTimeout: v.GetDuration("ASYNQ_SHUTDOWN_TIMEOUT"),
			SyncInterval:    v.GetDuration("ASYNQ_SYNC_INTERVAL"),
		},
		AWS: AWSConfig{
			Region:          v.GetString("AWS_REGION"),
			AccessKeyID:     v.GetString("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("AWS_SECRET_ACCESS_KEY"),
			S3Bucket:        v.GetString("AWS_S3_BUCKET"),
			S3Endpoint:      v.GetString("AWS_S3_ENDPOINT"),
			UsePathStyle:    getBool(v, "AWS_S3_PATH_STYLE", dev),
			SecretsName:     v.GetString("AWS_SECRETS_NAME"),
		},
		Storage: StorageConfig{
			Driver:   strings.ToLower(v.GetString("EXPORT_STORAGE")),
			LocalDir: v.GetString("EXPORT_DIR"),
		},
		FileProcessing: FileProcessingConfig{
			ProcessingTimeout: v.GetDuration("PROCESSING_TIMEOUT"),
			UploadMaxAge:      v.GetDuration("UPLOAD_MAX_AGE"),
			TempDir:           v.GetString("TEMP_DIR"),
		},
		Security: SecurityConfig{
			BcryptCost:        v.GetInt("BCRYPT_COST"),
			SessionTTL:        v.GetDuration("SESSION_TTL"),
			RateLimitRequests: v.GetInt("RATE_LIMIT_REQUESTS"),
			RateLimitDuration: v.GetDuration("RATE_LIMIT_DURATION"),
			AllowedOrigins:    splitList(v.GetString("ALLOWED_ORIGINS")),
			SecureHeaders:     getBool(v, "SECURE_HEADERS", env == "production"),
			RequestIDHeader:   v.GetString("REQUEST_ID_HEADER"),
			Users:             users,
		},
		Ledger: LedgerConfig{
			ConfirmationTTL:   v.GetDuration("CONFIRMATION_TTL"),
			LowStockThreshold: v.GetInt("LOW_STOCK_THRESHOLD"),
			SeedCatalog:       v.GetBool("SEED_CATALOG"),
			AnalyticsCacheTTL: v.GetDuration("ANALYTICS_CACHE_TTL"),
		},
		Server: ServerConfig{
			Host:            v.GetString("SERVER_HOST"),
			Port:            v.GetString("SERVER_PORT"),
			ReadTimeout:     v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("SERVER_WRITE_TIMEOUT"),
			IdleTimeout:     v.GetDuration("SERVER_IDLE_TIMEOUT"),
			MaxHeaderBytes:  v.GetInt("SERVER_MAX_HEADER_BYTES"),
			GracefulTimeout: v.GetDuration("SERVER_GRACEFUL_TIMEOUT"),
			MaxUploadMB:     v.GetInt("SERVER_MAX_UPLOAD_MB"),
		},
	}

	validators := []Validator{&BasicValidator{}}
	if cfg.IsProduction() {
		validators = append(validators, &ProductionValidator{}, &SecurityValidator{})
	}
	for _, validator := range validators {
		if err := validator.Validate(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return cfg, nil
}

// Validate runs the basic validator
func (c *Config) Validate() error {
	return (&BasicValidator{}).Validate(c)
}

// GetServerAddress returns the formatted server address
func (c *Config) GetServerAddress() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "local"
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

// NewViper returns a viper instance with every default set and environment
// lookup enabled
func NewViper() *viper.Viper {
	return newViper()
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]interface{}{
		"APP_ENV":     "development",
		"APP_NAME":    "pos-ledger",
		"APP_VERSION": "dev",
		"LOG_LEVEL":   "info",
		"LOG_FORMAT":  "json",

		"STORE_DRIVER":     StoreSQLite,
		"SQLITE_PATH":      "data/pos.db",
		"STORE_KEY_PREFIX": "",
		"STORE_LOCK_KEY":   "pos:ledger:lock",
		"STORE_LOCK_TTL":   10 * time.Second,

		"DB_HOST":                "localhost",
		"DB_PORT":                "5432",
		"DB_USER":                "pos",
		"DB_PASSWORD":            "pos_dev",
		"DB_NAME":                "pos_ledger",
		"DB_SSL_MODE":            "disable",
		"DB_MAX_CONNECTIONS":     10,
		"DB_MIN_CONNECTIONS":     2,
		"DB_CONNECTION_LIFETIME": time.Hour,
		"DB_IDLE_TIME":           30 * time.Minute,
		"DB_HEALTH_CHECK_PERIOD": time.Minute,
		"DB_CONNECT_TIMEOUT":     10 * time.Second,
		"DB_AUTO_MIGRATE":        true,

		"REDIS_HOST":              "localhost",
		"REDIS_PORT":              "6379",
		"REDIS_PASSWORD":          "",
		"REDIS_DB":                0,
		"REDIS_MAX_RETRIES":       3,
		"REDIS_MIN_RETRY_BACKOFF": 8 * time.Millisecond,
		"REDIS_MAX_RETRY_BACKOFF": 512 * time.Millisecond,
		"REDIS_DIAL_TIMEOUT":      5 * time.Second,
		"REDIS_READ_TIMEOUT":      3 * time.Second,
		"REDIS_WRITE_TIMEOUT":     3 * time.Second,
		"REDIS_POOL_SIZE":         10,
		"REDIS_MIN_IDLE_CONNS":    2,
		"REDIS_POOL_TIMEOUT":      4 * time.Second,
		"REDIS_TTL":               time.Hour,

		"ASYNQ_ENABLED":          false,
		"ASYNQ_REDIS_DB":         0,
		"ASYNQ_CONCURRENCY":      10,
		"ASYNQ_QUEUES":           "critical:6,default:3,low:1",
		"ASYNQ_STRICT_PRIORITY":  false,
		"ASYNQ_RETRY_MAX":        3,
		"ASYNQ_SHUTDOWN_TIMEOUT": 30 * time.Second,
		"ASYNQ_SYNC_INTERVAL":    time.Duration(0),

		"AWS_REGION":            "us-east-1",
		"AWS_ACCESS_KEY_ID":     "",
		"AWS_SECRET_ACCESS_KEY": "",
		"AWS_S3_BUCKET":         "pos-exports",
		"AWS_S3_ENDPOINT":       "",
		"AWS_SECRETS_NAME":      "",

		"EXPORT_STORAGE": "local",
		"EXPORT_DIR":     "data/exports",

		"PROCESSING_TIMEOUT": 5 * time.Minute,
		"UPLOAD_MAX_AGE":     24 * time.Hour,
		"TEMP_DIR":           "data/uploads",

		"BCRYPT_COST":         10,
		"SESSION_TTL":         12 * time.Hour,
		"RATE_LIMIT_REQUESTS": 100,
		"RATE_LIMIT_DURATION": time.Minute,
		"ALLOWED_ORIGINS":     "*",
		"REQUEST_ID_HEADER":   "X-Request-ID",
		"POS_USERS":           "",

		"CONFIRMATION_TTL":    5 * time.Minute,
		"LOW_STOCK_THRESHOLD": 10,
		"SEED_CATALOG":        true,
		"ANALYTICS_CACHE_TTL": time.Minute,

		"SERVER_HOST":             "0.0.0.0",
		"SERVER_PORT":             "8080",
		"SERVER_READ_TIMEOUT":     15 * time.Second,
		"SERVER_WRITE_TIMEOUT":    30 * time.Second,
		"SERVER_IDLE_TIMEOUT":     60 * time.Second,
		"SERVER_MAX_HEADER_BYTES": 1 << 20,
		"SERVER_GRACEFUL_TIMEOUT": 30 * time.Second,
		"SERVER_MAX_UPLOAD_MB":    20,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// getBool reads key, falling back to def when it is unset
func getBool(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	if b, err := strconv.ParseBool(v.GetString(key)); err == nil {
		return b
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseQueues(queuesStr string) map[string]int {
	queues := make(map[string]int)
	for _, pair := range strings.Split(queuesStr, ",") {
		parts := strings.Split(pair, ":")
		if len(parts) == 2 {
			name := strings.TrimSpace(parts[0])
			priority, err := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err == nil {
				queues[name] = priority
			}
		}
	}
	if len(queues) == 0 {
		queues["default"] = 1
	}
	return queues
}

// parseUsers reads "username:role:name:bcrypt-hash" entries separated by
// commas. Bcrypt hashes never contain either separator.
func parseUsers(s string) ([]UserConfig, error) {
	var users []UserConfig
	for _, entry := range splitList(s) {
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("%w: POS_USERS entry %q must be username:role:name:hash",
				ErrMissingRequiredConfig, parts[0])
		}
		users = append(users, UserConfig{
			Username:     strings.TrimSpace(parts[0]),
			Role:         strings.TrimSpace(parts[1]),
			Name:         strings.TrimSpace(parts[2]),
			PasswordHash: strings.TrimSpace(parts[3]),
		})
	}
	return users, nil
}

func defaultUsers() []UserConfig {
	return []UserConfig{
		{Username: "owner", Name: "Shop Owner", Role: "owner", Password: "owner-dev"},
		{Username: "employee", Name: "Sales Employee", Role: "employee", Password: "sales-dev"},
	}
}
