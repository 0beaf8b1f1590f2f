package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const versionKey = "content:version"

// RedisCache stores JSON documents under versioned keys. Bumping the version
// makes every previously written key unreachable; the TTL reclaims them.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (c *RedisCache) version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, versionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("read cache version: %w", err)
	}
	return v, nil
}

func keyAt(version int64, name string) string {
	return fmt.Sprintf("content:v%d:%s", version, name)
}

// Get looks name up under the current version and returns that version so a
// miss can be filled with Set under the same key.
func (c *RedisCache) Get(ctx context.Context, name string, dst interface{}) (int64, bool, error) {
	version, err := c.version(ctx)
	if err != nil {
		return 0, false, err
	}
	key := keyAt(version, name)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return version, false, nil
	}
	if err != nil {
		return version, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return version, false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return version, true, nil
}

// Set writes value under the given version. A value loaded before an
// Invalidate lands under the old version and is never read again.
func (c *RedisCache) Set(ctx context.Context, name string, version int64, value interface{}) error {
	key := keyAt(version, name)
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, versionKey).Err(); err != nil {
		return fmt.Errorf("bump cache version: %w", err)
	}
	return nil
}
