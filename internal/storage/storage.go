package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/config"
)

// ErrNotFound is returned when a stored document does not exist
var ErrNotFound = errors.New("stored document not found")

// Storage stores invoice documents. Paths are opaque, slash separated keys
// returned by Upload.
type Storage interface {
	Upload(ctx context.Context, prefix, filename, contentType string, data io.Reader) (string, int64, error)
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storagePath string) error
}

// NewStorage creates the storage backend selected by configuration
func NewStorage(cfg *config.StorageConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Mode {
	case "local":
		return NewLocalStorage(cfg.LocalBasePath)
	case "cloud", "azure":
		if cfg.CloudConnectionString == "" {
			return nil, fmt.Errorf("cloud connection string required for azure storage")
		}
		return NewAzureBlobStorage(cfg.CloudConnectionString, cfg.CloudContainer, logger)
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}

// objectKey builds a unique key below prefix keeping the original extension
func objectKey(prefix, filename string) string {
	name := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// LocalStorage implements Storage on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (s *LocalStorage) resolve(storagePath string) (string, error) {
	clean := path.Clean("/" + storagePath)
	if clean == "/" {
		return "", fmt.Errorf("invalid storage path %q", storagePath)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(clean)), nil
}

// Upload writes a document below prefix
func (s *LocalStorage) Upload(_ context.Context, prefix, filename, _ string, data io.Reader) (string, int64, error) {
	key := objectKey(prefix, filename)
	fullPath, err := s.resolve(key)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, data)
	if err != nil {
		_ = os.Remove(fullPath)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}
	return key, size, nil
}

// Download opens a stored document
func (s *LocalStorage) Download(_ context.Context, storagePath string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored document. Missing documents are not an error.
func (s *LocalStorage) Delete(_ context.Context, storagePath string) error {
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
