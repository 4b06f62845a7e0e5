package config

import (
	"fmt"
	"time"
)

// UpstreamConfig represents the configuration for the openFDA API
type UpstreamConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// CacheConfig represents the cache backend and TTL configuration
type CacheConfig struct {
	Type             string
	CleanupFrequency time.Duration
	LabelTTL         time.Duration
	ShortageTTL      time.Duration
	AdverseEventTTL  time.Duration
	SQLitePath       string
	MySQLDSN         string
	PostgresDSN      string
	RedisURL         string
	RedisPrefix      string
}

// BatchConfig represents the batch orchestrator configuration
type BatchConfig struct {
	Concurrency   int
	ShortageLimit int
	TrendMonths   int
}

// TrendConfig represents the shortage trend analyzer configuration
type TrendConfig struct {
	HighThreshold     float64
	ModerateThreshold float64
	FetchLimit        int
}

// GetUpstream returns the upstream API configuration
func (c *Config) GetUpstream() (UpstreamConfig, error) {
	timeout, err := c.GetDuration("openfda.timeout")
	if err != nil {
		return UpstreamConfig{}, fmt.Errorf("invalid openfda timeout: %w", err)
	}

	return UpstreamConfig{
		BaseURL:   c.GetString("openfda.base_url"),
		APIKey:    c.GetString("openfda.api_key"),
		Timeout:   timeout,
		UserAgent: c.GetString("openfda.user_agent"),
	}, nil
}

// GetCache returns the cache configuration
func (c *Config) GetCache() (CacheConfig, error) {
	durations := map[string]*time.Duration{}
	cc := CacheConfig{
		Type:        c.GetString("cache.type"),
		SQLitePath:  c.GetString("cache.sqlite_path"),
		MySQLDSN:    c.GetString("cache.mysql_dsn"),
		PostgresDSN: c.GetString("cache.postgres_dsn"),
		RedisURL:    c.GetString("cache.redis_url"),
		RedisPrefix: c.GetString("cache.redis_prefix"),
	}
	durations["cache.cleanup_frequency"] = &cc.CleanupFrequency
	durations["cache.ttl.drug_label"] = &cc.LabelTTL
	durations["cache.ttl.shortage"] = &cc.ShortageTTL
	durations["cache.ttl.adverse_event"] = &cc.AdverseEventTTL

	for key, dst := range durations {
		d, err := c.GetDuration(key)
		if err != nil {
			return CacheConfig{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	return cc, nil
}

// GetBatch returns the batch configuration
func (c *Config) GetBatch() BatchConfig {
	return BatchConfig{
		Concurrency:   c.GetInt("batch.concurrency"),
		ShortageLimit: c.GetInt("batch.shortage_limit"),
		TrendMonths:   c.GetInt("batch.trend_months"),
	}
}

// GetTrends returns the trend analyzer configuration
func (c *Config) GetTrends() TrendConfig {
	return TrendConfig{
		HighThreshold:     c.GetFloat64("trends.high_threshold"),
		ModerateThreshold: c.GetFloat64("trends.moderate_threshold"),
		FetchLimit:        c.GetInt("trends.fetch_limit"),
	}
}
