package workers

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/pos-ledger/internal/adapters/memory"
	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/core/services"
	"github.com/ammerola/pos-ledger/test/helpers"
	"github.com/ammerola/pos-ledger/test/mocks"
)

// mustTask wraps a task constructor call: mustTask(t)(NewSyncTask(""))
func mustTask(t *testing.T) func(*asynq.Task, error) *asynq.Task {
	return func(task *asynq.Task, err error) *asynq.Task {
		t.Helper()
		require.NoError(t, err)
		return task
	}
}

func TestSyncProcessor(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidates analytics after syncing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ledger := mocks.NewMockLedgerService(ctrl)
		cache := mocks.NewMockCacheRepository(ctrl)

		ledger.EXPECT().SyncPendingOfflineSales(gomock.Any()).Return(2, nil)
		cache.EXPECT().DeletePattern(gomock.Any(), "analytics:*").Return(nil)

		p := NewSyncProcessor(ledger, cache, helpers.TestLogger())
		require.NoError(t, p.ProcessSync(ctx, mustTask(t)(NewSyncTask("terminal"))))
	})

	t.Run("nothing pending leaves the cache alone", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ledger := mocks.NewMockLedgerService(ctrl)
		cache := mocks.NewMockCacheRepository(ctrl)

		ledger.EXPECT().SyncPendingOfflineSales(gomock.Any()).Return(0, nil)

		p := NewSyncProcessor(ledger, cache, helpers.TestLogger())
		require.NoError(t, p.ProcessSync(ctx, asynq.NewTask(TypeSyncOffline, nil)))
	})

	t.Run("cache failure does not fail the task", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ledger := mocks.NewMockLedgerService(ctrl)
		cache := mocks.NewMockCacheRepository(ctrl)

		ledger.EXPECT().SyncPendingOfflineSales(gomock.Any()).Return(1, nil)
		cache.EXPECT().DeletePattern(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

		p := NewSyncProcessor(ledger, cache, helpers.TestLogger())
		require.NoError(t, p.ProcessSync(ctx, mustTask(t)(NewSyncTask(""))))
	})

	t.Run("store failure is retried", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ledger := mocks.NewMockLedgerService(ctrl)

		persistErr := &domain.PersistenceError{Op: "write", Key: "pos_sales", Err: errors.New("disk full")}
		ledger.EXPECT().SyncPendingOfflineSales(gomock.Any()).Return(0, persistErr)

		p := NewSyncProcessor(ledger, nil, helpers.TestLogger())
		err := p.ProcessSync(ctx, mustTask(t)(NewSyncTask("")))
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
		assert.True(t, errors.Is(err, domain.ErrPersistence))
	})
}

func TestExportProcessor_ProcessArchive(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStorageClient(ctrl)
	ledger := services.NewLedger(memory.NewStore(), helpers.TestLogger())

	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	p := NewExportProcessor(ledger, store, helpers.TestLogger())
	p.now = func() time.Time { return fixed }

	var uploaded []byte
	store.EXPECT().
		Upload(gomock.Any(), "exports/products/20260314T093000Z.csv", gomock.Any(), "text/csv; charset=utf-8").
		DoAndReturn(func(_ context.Context, key string, r io.Reader, _ string) (string, error) {
			b, err := io.ReadAll(r)
			uploaded = b
			return "file://" + key, err
		})

	require.NoError(t, p.ProcessArchive(ctx, mustTask(t)(NewExportArchiveTask("products", "csv"))))

	records, err := csv.NewReader(bytes.NewReader(uploaded)).ReadAll()
	require.NoError(t, err)
	// header plus the seeded catalog
	assert.Len(t, records, len(domain.DefaultCatalog())+1)
}

func TestExportProcessor_InvalidPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStorageClient(ctrl)
	ledger := mocks.NewMockLedgerService(ctrl)
	p := NewExportProcessor(ledger, store, helpers.TestLogger())

	tests := []struct {
		name   string
		kind   string
		format string
	}{
		{name: "unknown kind", kind: "customers", format: "csv"},
		{name: "unknown format", kind: "sales", format: "pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.ProcessArchive(context.Background(), mustTask(t)(NewExportArchiveTask(tt.kind, tt.format)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestExportProcessor_UploadFailureIsRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStorageClient(ctrl)
	ledger := services.NewLedger(memory.NewStore(), helpers.TestLogger())
	p := NewExportProcessor(ledger, store, helpers.TestLogger())

	store.EXPECT().Upload(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", errors.New("bucket unavailable"))

	err := p.ProcessArchive(context.Background(), mustTask(t)(NewExportArchiveTask("sales", "xlsx")))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestImportProcessor_ProcessCatalog(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockCacheRepository(ctrl)
	ledger := services.NewLedger(memory.NewStore(), helpers.TestLogger())

	path := helpers.CreateTempFile(t, helpers.BuildCatalogXLSX(t, [][]string{
		{"Granola Bar", "Snacks", "0.75", "1.80", "24"},
	}), ".xlsx")

	cache.EXPECT().DeletePattern(gomock.Any(), "analytics:*").Return(nil)

	p := NewImportProcessor(ledger, cache, helpers.TestLogger())
	require.NoError(t, p.ProcessCatalog(ctx, mustTask(t)(NewImportTask(TypeImportCatalog, path))))

	products, err := ledger.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(domain.DefaultCatalog())+1)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "upload should be removed")
}

func TestImportProcessor_ProcessDeliveryNote(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewLedger(memory.NewStore(), helpers.TestLogger())
	path := helpers.CreateTempFile(t, helpers.BuildTextPDF("Delivery", "Coffee x 10"), ".pdf")

	p := NewImportProcessor(ledger, nil, helpers.TestLogger())
	require.NoError(t, p.ProcessDeliveryNote(ctx, mustTask(t)(NewImportTask(TypeImportDelivery, path))))

	products, err := ledger.ListProducts(ctx)
	require.NoError(t, err)
	for _, p := range products {
		if p.Name == "Coffee" {
			assert.Equal(t, 110, p.Stock)
		}
	}
}

func TestImportProcessor_Failures(t *testing.T) {
	ctx := context.Background()
	ledger := services.NewLedger(memory.NewStore(), helpers.TestLogger())
	p := NewImportProcessor(ledger, nil, helpers.TestLogger())

	t.Run("missing path", func(t *testing.T) {
		err := p.ProcessCatalog(ctx, mustTask(t)(NewImportTask(TypeImportCatalog, "")))
		assert.True(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("upload already gone", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "gone.xlsx")
		err := p.ProcessCatalog(ctx, mustTask(t)(NewImportTask(TypeImportCatalog, missing)))
		assert.True(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("unreadable workbook is removed", func(t *testing.T) {
		path := helpers.CreateTempFile(t, []byte("not a workbook"), ".xlsx")
		err := p.ProcessCatalog(ctx, mustTask(t)(NewImportTask(TypeImportCatalog, path)))
		assert.True(t, errors.Is(err, asynq.SkipRetry))

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestCleanupProcessor(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	stale := filepath.Join(dir, uuid.New().String()+"_stale.xlsx")
	fresh := filepath.Join(dir, uuid.New().String()+"_fresh.pdf")
	foreign := filepath.Join(dir, "notes.txt")
	for _, f := range []string{stale, fresh, foreign} {
		require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))
	}
	require.NoError(t, os.Chtimes(stale, now.Add(-48*time.Hour), now.Add(-48*time.Hour)))
	require.NoError(t, os.Chtimes(foreign, now.Add(-48*time.Hour), now.Add(-48*time.Hour)))

	p := NewCleanupProcessor(dir, 24*time.Hour, helpers.TestLogger())
	require.NoError(t, p.CleanupUploads(context.Background(), asynq.NewTask(TypeCleanupUploads, nil)))

	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
	_, err = os.Stat(foreign)
	assert.NoError(t, err, "files not written by the import handler are left alone")
}

func TestCleanupProcessor_MissingDirectory(t *testing.T) {
	p := NewCleanupProcessor(filepath.Join(t.TempDir(), "absent"), time.Hour, helpers.TestLogger())
	assert.NoError(t, p.CleanupUploads(context.Background(), asynq.NewTask(TypeCleanupUploads, nil)))
}
