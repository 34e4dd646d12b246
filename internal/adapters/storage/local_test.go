package storage_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/pos-ledger/internal/adapters/storage"
	"github.com/ammerola/pos-ledger/test/helpers"
)

func TestLocalStorage_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir(), helpers.TestLogger())
	require.NoError(t, err)

	key := "exports/products/20260314T100000Z.csv"
	_, err = store.Upload(ctx, key, strings.NewReader("ID,Name\n"), "text/csv")
	require.NoError(t, err)

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := store.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "ID,Name\n", string(data))

	// overwrite
	_, err = store.Upload(ctx, key, bytes.NewReader([]byte("ID\n")), "")
	require.NoError(t, err)
	data, err = store.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "ID\n", string(data))

	url, err := store.GetPresignedURL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
	assert.True(t, strings.HasSuffix(url, key))

	require.NoError(t, store.Delete(ctx, key))
	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, store.Delete(ctx, key))
}

func TestLocalStorage_List(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir(), helpers.TestLogger())
	require.NoError(t, err)

	for _, key := range []string{
		"exports/sales/b.csv",
		"exports/sales/a.xlsx",
		"exports/products/a.csv",
	} {
		_, err := store.Upload(ctx, key, strings.NewReader("x"), "")
		require.NoError(t, err)
	}

	keys, err := store.List(ctx, "exports/sales/")
	require.NoError(t, err)
	assert.Equal(t, []string{"exports/sales/a.xlsx", "exports/sales/b.csv"}, keys)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStorage(t.TempDir(), helpers.TestLogger())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside.csv", "/etc/passwd"} {
		_, err := store.Upload(ctx, key, strings.NewReader("x"), "")
		assert.ErrorIs(t, err, storage.ErrInvalidKey, key)
	}
}

func TestArchiveKey(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 30, 5, 0, time.UTC)
	assert.Equal(t, "exports/sales/20260314T103005Z.xlsx", storage.ArchiveKey("sales", "xlsx", at))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "text/csv", storage.ContentTypeFor("a.csv"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", storage.ContentTypeFor("a.xlsx"))
	assert.Equal(t, "application/octet-stream", storage.ContentTypeFor("a.unknownext"))
}
