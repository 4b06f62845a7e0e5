package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mikey/openfda-engine/internal/utils"
	"go.uber.org/zap"
)

// NeverCache marks a category whose data must always be fetched fresh
const NeverCache time.Duration = -1

// ApproxEntryBytes is the fixed per-entry cost used for memory accounting
const ApproxEntryBytes = 1024

// Default TTLs per category
const (
	DefaultLabelTTL        = 24 * time.Hour
	DefaultShortageTTL     = 30 * time.Minute
	DefaultAdverseEventTTL = 60 * time.Minute
)

// safetyCritical categories are never cached, whatever the configuration says
var safetyCritical = []Category{CategoryRecall, CategorySeriousAdverseEvent}

// CachePolicy maps each category to a TTL or NeverCache. It is immutable once built.
type CachePolicy struct {
	ttls map[Category]time.Duration
}

// DefaultCachePolicy returns the reference TTL table
func DefaultCachePolicy() CachePolicy {
	return NewCachePolicy(nil)
}

// NewCachePolicy builds a policy from the defaults plus overrides. A zero or
// negative override disables caching for that category. Recall and serious
// adverse event data are forced to NeverCache.
func NewCachePolicy(overrides map[Category]time.Duration) CachePolicy {
	ttls := map[Category]time.Duration{
		CategoryLabel:        DefaultLabelTTL,
		CategoryShortage:     DefaultShortageTTL,
		CategoryAdverseEvent: DefaultAdverseEventTTL,
	}
	for category, ttl := range overrides {
		if ttl <= 0 {
			ttl = NeverCache
		}
		ttls[category] = ttl
	}
	for _, category := range safetyCritical {
		ttls[category] = NeverCache
	}
	return CachePolicy{ttls: ttls}
}

// TTL returns the category's TTL; ok is false when the category is never cached
func (p CachePolicy) TTL(category Category) (time.Duration, bool) {
	ttl, found := p.ttls[category]
	if !found || ttl == NeverCache {
		return 0, false
	}
	return ttl, true
}

// Cacheable reports whether the category may be stored at all
func (p CachePolicy) Cacheable(category Category) bool {
	_, ok := p.TTL(category)
	return ok
}

// IsCacheValid reports whether entry may still be served at now under ttl
func IsCacheValid(entry *CacheEntry, ttl time.Duration, now time.Time) bool {
	if entry == nil || entry.StoredAt.IsZero() {
		return false
	}
	return now.Sub(entry.StoredAt) <= ttl
}

// CacheKey builds the deterministic key for one upstream query. Every input
// that changes the shape of the result is part of the key.
func CacheKey(category Category, field, drugName string, limit int, extra ...string) string {
	parts := []string{string(category), field, utils.NormalizeName(drugName), fmt.Sprintf("limit=%d", limit)}
	parts = append(parts, extra...)
	return strings.Join(parts, "|")
}

// CacheStore applies the cache policy in front of a CacheRepository and runs
// the periodic expiry sweep.
type CacheStore struct {
	repo        CacheRepository
	policy      CachePolicy
	logger      *zap.Logger
	now         func() time.Time
	cleanupFreq time.Duration

	hits   atomic.Int64
	misses atomic.Int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCacheStore creates a cache store. A nil now defaults to time.Now.
func NewCacheStore(
	repo CacheRepository,
	policy CachePolicy,
	logger *zap.Logger,
	now func() time.Time,
	cleanupFreq time.Duration,
) *CacheStore {
	if now == nil {
		now = time.Now
	}
	return &CacheStore{
		repo:        repo,
		policy:      policy,
		logger:      logger,
		now:         now,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}
}

// Invalidate removes a single entry, used when a stored payload can no longer be decoded
func (s *CacheStore) Invalidate(ctx context.Context, key string) {
	if err := s.repo.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to invalidate cache entry", zap.String("key", key), zap.Error(err))
	}
}

// Get returns a cached payload. Never-cache categories always miss without
// consulting the repository.
func (s *CacheStore) Get(ctx context.Context, category Category, key string) ([]byte, bool) {
	ttl, ok := s.policy.TTL(category)
	if !ok {
		return nil, false
	}

	entry, err := s.repo.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn("Cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		s.misses.Add(1)
		return nil, false
	}

	if !IsCacheValid(entry, ttl, s.now()) {
		s.logger.Debug("Cache entry expired", zap.String("key", key))
		s.misses.Add(1)
		return nil, false
	}

	s.hits.Add(1)
	s.logger.Debug("Cache hit", zap.String("key", key))
	return entry.Payload, true
}

// Put stores a payload; it is a no-op for never-cache categories
func (s *CacheStore) Put(ctx context.Context, category Category, key string, payload []byte) {
	if !s.policy.Cacheable(category) {
		return
	}

	entry := &CacheEntry{
		Key:      key,
		Category: category,
		Payload:  payload,
		StoredAt: s.now(),
	}
	if err := s.repo.Set(ctx, entry); err != nil {
		s.logger.Error("Failed to update cache", zap.String("key", key), zap.Error(err))
	}
}

// Cleanup removes expired entries and returns how many were removed. Entries
// of never-cache categories are removed unconditionally.
func (s *CacheStore) Cleanup(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0

	for _, category := range Categories {
		cutoff := now.Add(time.Nanosecond)
		if ttl, ok := s.policy.TTL(category); ok {
			cutoff = now.Add(-ttl)
		}
		n, err := s.repo.DeleteStoredBefore(ctx, category, cutoff)
		if err != nil {
			return removed, fmt.Errorf("failed to clean up %s entries: %w", category, err)
		}
		removed += n
	}

	s.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", removed))
	return removed, nil
}

// Flush removes every entry
func (s *CacheStore) Flush(ctx context.Context) (int, error) {
	n, err := s.repo.Flush(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to flush cache: %w", err)
	}
	return n, nil
}

// Stats reports entry counts and an approximate memory footprint
func (s *CacheStore) Stats(ctx context.Context) (*CacheStats, error) {
	counts, err := s.repo.CountByCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}

	stats := &CacheStats{
		EntriesByCategory: make(map[Category]int, len(counts)),
		Hits:              s.hits.Load(),
		Misses:            s.misses.Load(),
	}
	for category, n := range counts {
		stats.EntriesByCategory[category] = n
		stats.TotalEntries += n
	}
	stats.ApproxMemoryBytes = stats.TotalEntries * ApproxEntryBytes

	return stats, nil
}

// Start launches the background cleanup task
func (s *CacheStore) Start() {
	if s.cleanupFreq <= 0 {
		return
	}
	go s.startCleanupTask()
}

func (s *CacheStore) startCleanupTask() {
	ticker := time.NewTicker(s.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.Cleanup(context.Background()); err != nil {
				s.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (s *CacheStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}
