package storage_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/config"
	"github.com/bulkmat/order-api/internal/storage"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key, size, err := s.Upload(ctx, "orders/42", "Invoice-0042.PDF", "application/pdf", strings.NewReader("%PDF-1.7 invoice"))
	require.NoError(t, err)
	assert.Equal(t, int64(16), size)
	assert.True(t, strings.HasPrefix(key, "orders/42/"), key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), key)

	rc, err := s.Download(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 invoice", string(body))

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key), "deleting twice is fine")

	_, err = s.Download(ctx, key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLocalStorage_StaysInsideBase(t *testing.T) {
	ctx := context.Background()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Download(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.Download(ctx, "")
	assert.Error(t, err)
}

func TestNewStorage_Modes(t *testing.T) {
	logger := zap.NewNop()

	s, err := storage.NewStorage(&config.StorageConfig{Mode: "local", LocalBasePath: t.TempDir()}, logger)
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStorage{}, s)

	_, err = storage.NewStorage(&config.StorageConfig{Mode: "azure"}, logger)
	assert.Error(t, err)

	_, err = storage.NewStorage(&config.StorageConfig{Mode: "ftp"}, logger)
	assert.Error(t, err)
}
