// internal/adapters/redis_adapter/cache.go
package redis_a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/ammerola/pos-ledger/internal/core/ports"
)

// ErrCacheMiss is returned when a key is absent or holds an unreadable value
var ErrCacheMiss = errors.New("cache miss")

// scanBatch bounds keys per SCAN page and per DEL during invalidation
const scanBatch = 100

// Cache holds JSON encoded analytics results in Redis
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
	fills  singleflight.Group
	logger *slog.Logger
}

var _ ports.CacheRepository = (*Cache)(nil)

// NewCache creates a cache whose Set uses ttl
func NewCache(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger.With(slog.String("component", "cache"))}
}

// Set stores value under key with the default ttl
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	return c.SetWithTTL(ctx, key, value, c.ttl)
}

// SetWithTTL stores value under key for ttl
func (c *Cache) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &CacheError{Op: "marshal", Key: key, Err: err}
	}
	return c.put(ctx, key, data, ttl)
}

func (c *Cache) put(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return &CacheError{Op: "set", Key: key, Err: err}
	}
	c.logger.DebugContext(ctx, "cached", slog.String("key", key), slog.Duration("ttl", ttl))
	return nil
}

// Get decodes the value under key into dest. A value that no longer
// decodes into dest is reported as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheMiss
	case err != nil:
		return &CacheError{Op: "get", Key: key, Err: err}
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.WarnContext(ctx, "discarding undecodable cache value",
			slog.String("key", key), slog.String("error", err.Error()))
		return ErrCacheMiss
	}
	return nil
}

// Delete removes keys
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return &CacheError{Op: "del", Key: strings.Join(keys, ","), Err: err}
	}
	return nil
}

// DeletePattern removes every key matching pattern, one SCAN page at a time
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return &CacheError{Op: "scan", Key: pattern, Err: err}
		}
		if err := c.Delete(ctx, keys...); err != nil {
			return err
		}
		removed += len(keys)
		if cursor = next; cursor == 0 {
			break
		}
	}
	if removed > 0 {
		c.logger.DebugContext(ctx, "cache invalidated", slog.String("pattern", pattern), slog.Int("keys", removed))
	}
	return nil
}

// GetOrSet decodes key into dest, filling it from fetch on a miss.
// Concurrent misses on one key share a single fetch. A failed write after
// a successful fetch is logged and the fetched value is still returned.
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{},
	fetch func() (interface{}, error), ttl time.Duration) error {

	err := c.Get(ctx, key, dest)
	if !errors.Is(err, ErrCacheMiss) {
		return err
	}

	v, err, _ := c.fills.Do(key, func() (interface{}, error) {
		value, err := fetch()
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, &CacheError{Op: "marshal", Key: key, Err: err}
		}
		if err := c.put(ctx, key, data, ttl); err != nil {
			c.logger.WarnContext(ctx, "cache fill not stored", slog.String("error", err.Error()))
		}
		return data, nil
	})
	if err != nil {
		return fmt.Errorf("cache fill for %s: %w", key, err)
	}
	return json.Unmarshal(v.([]byte), dest)
}

// Ping checks the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return &CacheError{Op: "ping", Err: err}
	}
	return nil
}

// CacheError wraps a failed Redis operation
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }
