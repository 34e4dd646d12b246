// test/helpers/helpers.go
package helpers

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/pos-ledger/internal/adapters/db"
	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/pkg/config"
)

// TestDB represents a test database instance
type TestDB struct {
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	level := slog.LevelError
	if testing.Verbose() {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// SetupTestDB creates a migrated PostgreSQL container for integration tests
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Could not connect to Docker")

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test_pos_ledger",
			"listen_addresses = '*'",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Could not start PostgreSQL container")

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Could not purge resource: %s", err)
		}
	})

	dbConfig := &db.Config{
		Host:               "localhost",
		Port:               resource.GetPort("5432/tcp"),
		User:               "test",
		Password:           "test",
		Database:           "test_pos_ledger",
		SSLMode:            "disable",
		MaxConnections:     5,
		MinConnections:     1,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    time.Minute * 30,
		HealthCheckPeriod:  time.Minute,
		ConnectTimeout:     time.Second * 10,
		EnableQueryLogging: testing.Verbose(),
	}

	var database *db.Database
	err = pool.Retry(func() error {
		ctx := context.Background()
		var err error
		database, err = db.NewDatabase(ctx, dbConfig, TestLogger())
		if err != nil {
			return err
		}
		return database.Ping(ctx)
	})
	require.NoError(t, err, "Could not connect to PostgreSQL")
	t.Cleanup(func() { database.Close() })

	err = db.RunMigrationsWithRetry(context.Background(),
		&db.MigrationConfig{DatabaseURL: dbConfig.URL()}, TestLogger(), 3)
	require.NoError(t, err, "Could not run migrations")

	return &TestDB{
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   dbConfig,
	}
}

// TruncateKVStore empties the ledger document table
func TruncateKVStore(t *testing.T, sqlDB *sql.DB) {
	t.Helper()

	_, err := sqlDB.ExecContext(context.Background(), "TRUNCATE TABLE kv_store")
	require.NoError(t, err, "Failed to truncate kv_store")
}

// SetupTestRedis creates an in-process Redis for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// SetupMockDB creates a mock database for unit testing
func SetupMockDB(t *testing.T) (sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock DB")

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return mock, sqlDB
}

// LoadTestConfig returns a test configuration over the memory store
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "pos-ledger-test",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
			Debug:       true,
		},
		Store: config.StoreConfig{
			Driver:  config.StoreMemory,
			LockKey: "pos:ledger:lock",
			LockTTL: 5 * time.Second,
		},
		Database: config.DatabaseConfig{
			Host:           "localhost",
			Port:           "5432",
			User:           "test",
			Password:       "test",
			Name:           "test_pos_ledger",
			SSLMode:        "disable",
			MaxConnections: 10,
			MinConnections: 2,
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			TTL:      time.Minute,
			PoolSize: 10,
		},
		Storage: config.StorageConfig{
			Driver:   "local",
			LocalDir: os.TempDir(),
		},
		FileProcessing: config.FileProcessingConfig{
			ProcessingTimeout: time.Minute,
			UploadMaxAge:      time.Hour,
			TempDir:           os.TempDir(),
		},
		Security: config.SecurityConfig{
			BcryptCost:        4,
			SessionTTL:        time.Hour,
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
			RequestIDHeader:   "X-Request-ID",
			Users: []config.UserConfig{
				{Username: "owner", Name: "Shop Owner", Role: "owner", Password: "owner-pass"},
				{Username: "employee", Name: "Sales Employee", Role: "employee", Password: "sales-pass"},
			},
		},
		Ledger: config.LedgerConfig{
			ConfirmationTTL:   time.Minute,
			LowStockThreshold: 10,
			SeedCatalog:       true,
		},
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			MaxUploadMB:  5,
		},
	}
}

// CreateTestProduct returns a valid new product
func CreateTestProduct(overrides ...func(*domain.NewProduct)) domain.NewProduct {
	p := domain.NewProduct{
		Name:         "Test Widget",
		Category:     "Hardware",
		BuyingPrice:  decimal.NewFromFloat(3.00),
		SellingPrice: decimal.NewFromFloat(5.00),
		Stock:        10,
	}
	for _, override := range overrides {
		override(&p)
	}
	return p
}

// CreateTestProducts returns count distinct valid products
func CreateTestProducts(count int) []domain.NewProduct {
	categories := []string{"Beverages", "Snacks", "Household"}

	products := make([]domain.NewProduct, count)
	for i := 0; i < count; i++ {
		products[i] = CreateTestProduct(func(p *domain.NewProduct) {
			p.Name = fmt.Sprintf("Test Product %d", i+1)
			p.Category = categories[i%len(categories)]
			p.SellingPrice = decimal.NewFromInt(int64(5 + i))
			p.Stock = 100
		})
	}
	return products
}

// BuildCatalogXLSX renders rows below the catalog header as a workbook
func BuildCatalogXLSX(t *testing.T, rows [][]string) []byte {
	t.Helper()

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Catalog")
	require.NoError(t, err)

	header := []string{"Name", "Category", "Buying Price", "Selling Price", "Stock"}
	for _, values := range append([][]string{header}, rows...) {
		row := sheet.AddRow()
		for _, v := range values {
			row.AddCell().SetString(v)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, file.Write(&buf))
	return buf.Bytes()
}

// BuildTextPDF renders a single-page PDF with one text line per entry
func BuildTextPDF(lines ...string) []byte {
	var content strings.Builder
	content.WriteString("BT\n/F1 12 Tf\n14 TL\n72 720 Td\n")
	for _, line := range lines {
		fmt.Fprintf(&content, "(%s) Tj T*\n", escapePDFString(line))
	}
	content.WriteString("ET")
	stream := content.String()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// CreateTempFile creates a temporary file for testing
func CreateTempFile(t *testing.T, content []byte, extension string) string {
	t.Helper()

	file, err := os.CreateTemp(t.TempDir(), fmt.Sprintf("test-*%s", extension))
	require.NoError(t, err, "Failed to create temp file")

	_, err = file.Write(content)
	require.NoError(t, err, "Failed to write to temp file")
	require.NoError(t, file.Close())

	return file.Name()
}

// AssertEventuallyWithTimeout asserts that a condition is met within a timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}
