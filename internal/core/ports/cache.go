// internal/core/ports/cache.go
package ports

import (
	"context"
	"time"
)

// CacheRepository holds derived analytics results. Cached values are JSON
// documents; a miss is reported as an error the caller can ignore.
type CacheRepository interface {
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error

	// DeletePattern invalidates every key matching a glob such as "analytics:*".
	DeletePattern(ctx context.Context, pattern string) error

	// GetOrSet decodes key into dest, filling it from fetch for ttl on a miss.
	GetOrSet(ctx context.Context, key string, dest interface{},
		fetch func() (interface{}, error), ttl time.Duration) error

	Ping(ctx context.Context) error
}
