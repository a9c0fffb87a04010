// Package cache implements a tag-indexed key/value cache over Redis.
// Every entry carries a TTL and a set of tags; invalidating a tag removes
// every key stored under it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/codecampus/campus-core/pkg/logger"
)

// DefaultTTL applies when callers pass a zero TTL.
const DefaultTTL = 5 * time.Minute

// tagKeyPrefix namespaces the per-tag key sets.
const tagKeyPrefix = "cachetag:"

// Cache is a tag-indexed cache over Redis.
type Cache struct {
	rdb   *redis.Client
	log   *slog.Logger
	group singleflight.Group
}

// New creates a Cache.
func New(rdb *redis.Client, log *slog.Logger) *Cache {
	return &Cache{
		rdb: rdb,
		log: log.With(logger.Scope("cache")),
	}
}

// Get unmarshals the cached value for key into dest. The second return is
// false on a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// A corrupt entry behaves like a miss; drop it.
		_ = c.rdb.Del(ctx, key).Err()
		return false, nil
	}
	return true, nil
}

// Set stores value under key with the given TTL and registers it under every
// tag. Tag sets live slightly longer than the entries they index.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration, tags ...string) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	for _, tag := range tags {
		tagKey := tagKeyPrefix + tag
		pipe.SAdd(ctx, tagKey, key)
		pipe.Expire(ctx, tagKey, ttl+time.Minute)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Delete removes a single key.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// InvalidateTag removes every key stored under tag, then the tag set itself.
func (c *Cache) InvalidateTag(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		tagKey := tagKeyPrefix + tag
		keys, err := c.rdb.SMembers(ctx, tagKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if err := c.rdb.Del(ctx, tagKey).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Fetch returns the cached value for key, building it at most once across
// concurrent callers on a miss. The built value is stored with the given TTL
// and tags and unmarshaled into dest.
func (c *Cache) Fetch(ctx context.Context, key string, ttl time.Duration, tags []string, dest any, build func(ctx context.Context) (any, error)) error {
	hit, err := c.Get(ctx, key, dest)
	if err != nil {
		c.log.Warn("cache read failed, falling through", logger.Error(err), slog.String("key", key))
	}
	if hit {
		return nil
	}

	value, err, _ := c.group.Do(key, func() (any, error) {
		built, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, built, ttl, tags...); err != nil {
			c.log.Warn("cache write failed", logger.Error(err), slog.String("key", key))
		}
		return built, nil
	})
	if err != nil {
		return err
	}

	// Round-trip through JSON so every caller sees the same shape whether the
	// value came from Redis or from the builder.
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
