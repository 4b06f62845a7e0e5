package factory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mikey/openfda-engine/internal/adapters/cache"
	"github.com/mikey/openfda-engine/internal/config"
	"github.com/mikey/openfda-engine/internal/core"
	"go.uber.org/zap"
)

// CacheFactory creates cache repositories and the cache store based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateCacheRepository creates a cache repository based on the configuration
func (f *CacheFactory) CreateCacheRepository() (core.CacheRepository, error) {
	cc, err := f.cfg.GetCache()
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	switch cc.Type {
	case "memory":
		return cache.NewMemoryCache(f.logger), nil
	case "sqlite":
		// In-memory DSNs have no directory to create
		if !strings.HasPrefix(cc.SQLitePath, "file:") {
			if err := os.MkdirAll(filepath.Dir(cc.SQLitePath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
			}
		}
		return cache.NewSQLiteCache(ctx, cc.SQLitePath, f.logger)
	case "mysql":
		return cache.NewMySQLCache(ctx, cc.MySQLDSN, f.logger)
	case "postgres":
		return cache.NewPostgresCache(ctx, cc.PostgresDSN, f.logger)
	case "redis":
		client, err := cache.NewRedisClient(cc.RedisURL)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisCache(ctx, client, cc.RedisPrefix, f.logger)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cc.Type)
	}
}

// CreateCachePolicy builds the TTL table from the configured durations
func (f *CacheFactory) CreateCachePolicy() (core.CachePolicy, error) {
	cc, err := f.cfg.GetCache()
	if err != nil {
		return core.CachePolicy{}, err
	}

	return core.NewCachePolicy(map[core.Category]time.Duration{
		core.CategoryLabel:        cc.LabelTTL,
		core.CategoryShortage:     cc.ShortageTTL,
		core.CategoryAdverseEvent: cc.AdverseEventTTL,
	}), nil
}

// CreateCacheStore wraps the repository with the configured policy and sweep frequency
func (f *CacheFactory) CreateCacheStore(repo core.CacheRepository) (*core.CacheStore, error) {
	cc, err := f.cfg.GetCache()
	if err != nil {
		return nil, err
	}
	policy, err := f.CreateCachePolicy()
	if err != nil {
		return nil, err
	}

	f.logger.Info("Cache configured",
		zap.String("type", cc.Type),
		zap.Duration("label_ttl", cc.LabelTTL),
		zap.Duration("shortage_ttl", cc.ShortageTTL),
		zap.Duration("adverse_event_ttl", cc.AdverseEventTTL),
		zap.Duration("cleanup_frequency", cc.CleanupFrequency))

	return core.NewCacheStore(repo, policy, f.logger, nil, cc.CleanupFrequency), nil
}
