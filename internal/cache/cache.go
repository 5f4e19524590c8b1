// Package cache provides a fail-open Redis cache.
//
// Cache problems never propagate to callers: when Redis is unreachable the
// cache runs disabled, gets miss, and writes are dropped. Callers always fall
// back to computing the value.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a Redis-backed JSON cache.
type Cache struct {
	client     *redis.Client
	enabled    bool
	defaultTTL time.Duration
}

// New connects to Redis at redisURL. When the connection fails the returned
// cache is disabled rather than returning an error.
func New(ctx context.Context, redisURL string, defaultTTL time.Duration) *Cache {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Warn("invalid redis url, caching disabled", "error", err)
		return &Cache{defaultTTL: defaultTTL}
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 5 * time.Second
	opt.WriteTimeout = 5 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis not available, caching disabled", "error", err)
		return &Cache{defaultTTL: defaultTTL}
	}

	return &Cache{client: client, enabled: true, defaultTTL: defaultTTL}
}

// Enabled reports whether the cache is backed by a live Redis connection.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Get reads key into dest. Returns false on miss, decode failure, or any
// Redis error.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if !c.enabled {
		return false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache get error", "cache_key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		slog.Warn("cache decode error", "cache_key", key, "error", err)
		return false
	}
	return true
}

// Set stores value as JSON under key. ttl <= 0 uses the default TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !c.enabled {
		return false
	}

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache encode error", "cache_key", key, "error", err)
		return false
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		slog.Warn("cache set error", "cache_key", key, "error", err)
		return false
	}
	return true
}

// Delete removes a single key.
func (c *Cache) Delete(ctx context.Context, key string) bool {
	if !c.enabled {
		return false
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		slog.Warn("cache delete error", "cache_key", key, "error", err)
		return false
	}
	return true
}

// DeletePattern removes all keys matching pattern and returns the count.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) int {
	if !c.enabled {
		return 0
	}

	keys, err := c.client.Keys(ctx, pattern).Result()
	if err != nil {
		slog.Warn("cache delete_pattern error", "pattern", pattern, "error", err)
		return 0
	}
	if len(keys) == 0 {
		return 0
	}
	deleted, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		slog.Warn("cache delete_pattern error", "pattern", pattern, "error", err)
		return 0
	}
	return int(deleted)
}

// InvalidateWorkspace removes every cache entry tied to a workspace.
func (c *Cache) InvalidateWorkspace(ctx context.Context, workspaceID string) {
	patterns := []string{
		fmt.Sprintf("workspace:%s:*", workspaceID),
		fmt.Sprintf("workspace:%s:stats", workspaceID),
		fmt.Sprintf("workspace:%s:documents", workspaceID),
		fmt.Sprintf("workspace:%s:metadata", workspaceID),
		fmt.Sprintf("vector_search:%s:*", workspaceID),
		fmt.Sprintf("document:*:workspace:%s", workspaceID),
	}
	for _, p := range patterns {
		c.DeletePattern(ctx, p)
	}
}

// InvalidateDocument removes cache entries tied to a document and the
// workspace views that include it.
func (c *Cache) InvalidateDocument(ctx context.Context, documentID, workspaceID string) {
	patterns := []string{
		fmt.Sprintf("document:%s:*", documentID),
		fmt.Sprintf("workspace:%s:documents", workspaceID),
		fmt.Sprintf("workspace:%s:stats", workspaceID),
		fmt.Sprintf("vector_search:%s:*", workspaceID),
	}
	for _, p := range patterns {
		c.DeletePattern(ctx, p)
	}
}

// GetOrCompute returns the cached value for key, computing and caching it on
// a miss. Compute errors pass through uncached.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func() (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	value, err := compute()
	if err != nil {
		return value, err
	}
	c.Set(ctx, key, value, ttl)
	return value, nil
}

// HashText returns a short stable fingerprint for text, used in cache keys.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}
