package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mikey/openfda-engine/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache is a Redis implementation of the CacheRepository interface.
// Each entry is a hash under <prefix>entry:<key>; a sorted set per category,
// scored by store time, indexes entries for expiry sweeps and counts.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisClient builds a client from a redis:// URL or a host:port address
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         redisURL,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}), nil
}

// NewRedisCache connects to Redis and removes entries left under prefix
func NewRedisCache(ctx context.Context, client *redis.Client, prefix string, logger *zap.Logger) (*RedisCache, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c := &RedisCache{client: client, prefix: prefix, logger: logger}

	n, err := c.Flush(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		logger.Info("Discarded cache entries from a previous run",
			zap.String("backend", "Redis"),
			zap.Int("entries", n))
	}
	return c, nil
}

func (c *RedisCache) entryKey(key string) string {
	return c.prefix + "entry:" + key
}

func (c *RedisCache) indexKey(category core.Category) string {
	return c.prefix + "idx:" + string(category)
}

// Get retrieves a cached entry by key
func (c *RedisCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	fields, err := c.client.HGetAll(ctx, c.entryKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrCacheMiss
	}

	storedAt, err := strconv.ParseInt(fields["stored_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt stored_at for %s: %w", key, err)
	}

	return &core.CacheEntry{
		Key:      key,
		Category: core.Category(fields["category"]),
		Payload:  []byte(fields["payload"]),
		StoredAt: time.Unix(0, storedAt).UTC(),
	}, nil
}

// Set stores a cache entry
func (c *RedisCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	storedAt := entry.StoredAt.UnixNano()
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.entryKey(entry.Key),
			"category", string(entry.Category),
			"payload", entry.Payload,
			"stored_at", strconv.FormatInt(storedAt, 10))
		pipe.ZAdd(ctx, c.indexKey(entry.Category), redis.Z{Score: float64(storedAt), Member: entry.Key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	category, err := c.client.HGet(ctx, c.entryKey(key), "category").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.entryKey(key))
		pipe.ZRem(ctx, c.indexKey(core.Category(category)), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// DeleteStoredBefore removes the category's entries stored before cutoff
func (c *RedisCache) DeleteStoredBefore(ctx context.Context, category core.Category, cutoff time.Time) (int, error) {
	index := c.indexKey(category)
	upper := "(" + strconv.FormatInt(cutoff.UnixNano(), 10)

	keys, err := c.client.ZRangeByScore(ctx, index, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired entries: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	entryKeys := make([]string, len(keys))
	for i, key := range keys {
		entryKeys[i] = c.entryKey(key)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, entryKeys...)
		pipe.ZRemRangeByScore(ctx, index, "-inf", upper)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired entries: %w", err)
	}
	return len(keys), nil
}

// Flush removes every entry under the cache prefix
func (c *RedisCache) Flush(ctx context.Context) (int, error) {
	entries := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasPrefix(key, c.prefix+"entry:") {
			entries++
		}
		batch = append(batch, key)
		if len(batch) == 100 {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return 0, fmt.Errorf("failed to flush Redis cache: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("failed to flush Redis cache: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return 0, fmt.Errorf("failed to flush Redis cache: %w", err)
		}
	}
	return entries, nil
}

// CountByCategory reports the number of stored entries per category
func (c *RedisCache) CountByCategory(ctx context.Context) (map[core.Category]int, error) {
	pipe := c.client.Pipeline()
	cmds := make(map[core.Category]*redis.IntCmd, len(core.Categories))
	for _, category := range core.Categories {
		cmds[category] = pipe.ZCard(ctx, c.indexKey(category))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to count cache entries: %w", err)
	}

	counts := make(map[core.Category]int)
	for category, cmd := range cmds {
		if n := cmd.Val(); n > 0 {
			counts[category] = int(n)
		}
	}
	return counts, nil
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
