package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/openfda-engine/internal/core"
	"go.uber.org/zap"
)

// MemoryCache is an in-memory implementation of the CacheRepository interface
type MemoryCache struct {
	entries map[string]*core.CacheEntry
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(logger *zap.Logger) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*core.CacheEntry),
		logger:  logger,
	}
}

// Get retrieves a cached entry by key
func (c *MemoryCache) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, core.ErrCacheMiss
	}
	return cloneEntry(entry), nil
}

// Set stores a cache entry
func (c *MemoryCache) Set(ctx context.Context, entry *core.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[entry.Key] = cloneEntry(entry)
	return nil
}

// Delete removes a cache entry
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// DeleteStoredBefore removes the category's entries stored before cutoff
func (c *MemoryCache) DeleteStoredBefore(ctx context.Context, category core.Category, cutoff time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiredCount := 0
	for key, entry := range c.entries {
		if entry.Category == category && entry.StoredAt.Before(cutoff) {
			delete(c.entries, key)
			expiredCount++
		}
	}
	return expiredCount, nil
}

// Flush removes every entry
func (c *MemoryCache) Flush(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]*core.CacheEntry)
	c.logger.Debug("Flushed memory cache", zap.Int("entries", n))
	return n, nil
}

// CountByCategory reports the number of stored entries per category
func (c *MemoryCache) CountByCategory(ctx context.Context) (map[core.Category]int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	counts := make(map[core.Category]int)
	for _, entry := range c.entries {
		counts[entry.Category]++
	}
	return counts, nil
}

// Close releases the cache's resources
func (c *MemoryCache) Close() error {
	return nil
}

// cloneEntry copies the payload so callers can't mutate stored bytes
func cloneEntry(e *core.CacheEntry) *core.CacheEntry {
	clone := *e
	clone.Payload = append([]byte(nil), e.Payload...)
	return &clone
}
