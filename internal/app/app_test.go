package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/internal/pkg/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseConfig(driver string) *config.Config {
	return &config.Config{
		App:   config.AppConfig{Name: "pos-ledger", Environment: "test"},
		Store: config.StoreConfig{Driver: driver, LockKey: "pos:ledger:lock", LockTTL: time.Second},
		Ledger: config.LedgerConfig{
			ConfirmationTTL: time.Minute,
			SeedCatalog:     true,
		},
		Security: config.SecurityConfig{BcryptCost: bcrypt.MinCost},
	}
}

func TestOpenBackend_Memory(t *testing.T) {
	ctx := context.Background()
	b, err := OpenBackend(ctx, baseConfig(config.StoreMemory), nil, quietLogger())
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.Locker)
	ledger := NewLedger(baseConfig(config.StoreMemory), b, quietLogger())
	products, err := ledger.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(domain.DefaultCatalog()))
}

func TestOpenBackend_SQLiteWithoutSeed(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig(config.StoreSQLite)
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "pos.db")
	cfg.Ledger.SeedCatalog = false

	b, err := OpenBackend(ctx, cfg, nil, quietLogger())
	require.NoError(t, err)
	defer b.Close()

	products, err := NewLedger(cfg, b, quietLogger()).ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestOpenBackend_RedisRequiresClient(t *testing.T) {
	_, err := OpenBackend(context.Background(), baseConfig(config.StoreRedis), nil, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires redis")
}

func TestOpenBackend_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	cfg := baseConfig(config.StoreRedis)
	cfg.Store.KeyPrefix = "shop1:"

	b, err := OpenBackend(ctx, cfg, rdb, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, b.Locker)

	_, err = NewLedger(cfg, b, quietLogger()).ListProducts(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists("shop1:pos_products"))
}

func TestOpenBackend_UnknownDriver(t *testing.T) {
	_, err := OpenBackend(context.Background(), baseConfig("mysql"), nil, quietLogger())
	assert.Error(t, err)
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig(config.StoreMemory)
	cfg.Security.Users = []config.UserConfig{
		{Username: "owner", Name: "Shop Owner", Role: "owner", Password: "owner-dev"},
		{Username: "sam", Role: "employee", PasswordHash: "$2a$04$preset"},
	}

	store, err := Credentials(cfg)
	require.NoError(t, err)

	owner, err := store.FindByUsername(ctx, "OWNER")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOwner, owner.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(owner.PasswordHash), []byte("owner-dev")))

	sam, err := store.FindByUsername(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, "sam", sam.Name)
	assert.Equal(t, "$2a$04$preset", sam.PasswordHash)
}

func TestCredentials_ProductionNeedsHash(t *testing.T) {
	cfg := baseConfig(config.StorePostgres)
	cfg.App.Environment = "production"
	cfg.Security.Users = []config.UserConfig{{Username: "owner", Role: "owner", Password: "plain"}}

	_, err := Credentials(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no password hash")
}

func TestNewArchiveStorage_Local(t *testing.T) {
	cfg := baseConfig(config.StoreMemory)
	cfg.Storage = config.StorageConfig{Driver: "local", LocalDir: t.TempDir()}

	client, err := NewArchiveStorage(context.Background(), cfg, quietLogger())
	require.NoError(t, err)

	exists, err := client.Exists(context.Background(), "exports/none.csv")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestOpenBackend_SQLiteLedgersShareLock(t *testing.T) {
	ctx := context.Background()
	cfg := baseConfig(config.StoreSQLite)
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "pos.db")
	cfg.Store.LockTTL = 5 * time.Second
	cfg.Ledger.SeedCatalog = false

	openLedger := func() *services.Ledger {
		b, err := OpenBackend(ctx, cfg, nil, quietLogger())
		require.NoError(t, err)
		t.Cleanup(func() { b.Close() })
		require.NotNil(t, b.Locker)
		return NewLedger(cfg, b, quietLogger())
	}
	till := openLedger()
	worker := openLedger()

	product, err := till.AddProduct(ctx, domain.NewProduct{
		Name:         "Widget",
		Category:     "General",
		BuyingPrice:  decimal.RequireFromString("2.00"),
		SellingPrice: decimal.RequireFromString("5.00"),
		Stock:        100,
	})
	require.NoError(t, err)

	const sales = 20
	done := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(done)
		for i := 0; i < sales; i++ {
			if _, err := till.RecordSale(ctx, domain.SaleRequest{
				Items:         []domain.CartItem{{ProductID: product.ID, Quantity: 1}},
				PaymentMethod: domain.PaymentCard,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for {
			select {
			case <-done:
				_, err := worker.SyncPendingOfflineSales(ctx)
				return err
			default:
			}
			if _, err := worker.SyncPendingOfflineSales(ctx); err != nil {
				return err
			}
			time.Sleep(5 * time.Millisecond)
		}
	})
	require.NoError(t, g.Wait())

	logged, err := till.ListSales(ctx)
	require.NoError(t, err)
	assert.Len(t, logged, sales)

	pending, err := worker.ListPendingOfflineSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	got, err := worker.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 100-sales, got.Stock)
}

func TestCheckWorkerStore(t *testing.T) {
	assert.ErrorIs(t, CheckWorkerStore(baseConfig(config.StoreMemory)), ErrWorkerStore)
	assert.NoError(t, CheckWorkerStore(baseConfig(config.StoreSQLite)))
	assert.NoError(t, CheckWorkerStore(baseConfig(config.StoreRedis)))
}
