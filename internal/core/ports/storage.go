// internal/core/ports/storage.go
package ports

import (
	"context"
	"io"
	"time"
)

// StorageClient keeps rendered export archives under slash separated keys.
// Upload returns a location string for the archive task result.
type StorageClient interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) (location string, err error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
	GetPresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
