package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	upstream, err := cfg.GetUpstream()
	require.NoError(t, err)
	assert.Equal(t, "https://api.fda.gov", upstream.BaseURL)
	assert.Empty(t, upstream.APIKey)
	assert.Equal(t, 15*time.Second, upstream.Timeout)

	cc, err := cfg.GetCache()
	require.NoError(t, err)
	assert.Equal(t, "memory", cc.Type)
	assert.Equal(t, 24*time.Hour, cc.LabelTTL)
	assert.Equal(t, 30*time.Minute, cc.ShortageTTL)
	assert.Equal(t, time.Hour, cc.AdverseEventTTL)
	assert.Equal(t, time.Hour, cc.CleanupFrequency)

	assert.Equal(t, BatchConfig{Concurrency: 4, ShortageLimit: 10, TrendMonths: 12}, cfg.GetBatch())
	assert.Equal(t, TrendConfig{HighThreshold: 0.5, ModerateThreshold: 0.2, FetchLimit: 100}, cfg.GetTrends())
}

func TestNewReadsAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("FDA_ENGINE_OPENFDA_API_KEY", "")
	t.Setenv("OPENFDA_API_KEY", "env-key")
	t.Setenv("FDA_ENGINE_CACHE_TYPE", "sqlite")

	cfg, err := New()
	require.NoError(t, err)

	upstream, err := cfg.GetUpstream()
	require.NoError(t, err)
	assert.Equal(t, "env-key", upstream.APIKey)
	assert.Equal(t, "sqlite", cfg.GetString("cache.type"))
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
openfda:
  timeout: 5s
cache:
  type: redis
  ttl:
    shortage: 10m
batch:
  concurrency: 2
`), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)

	upstream, err := cfg.GetUpstream()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, upstream.Timeout)

	cc, err := cfg.GetCache()
	require.NoError(t, err)
	assert.Equal(t, "redis", cc.Type)
	assert.Equal(t, 10*time.Minute, cc.ShortageTTL)
	assert.Equal(t, 24*time.Hour, cc.LabelTTL)
	assert.Equal(t, 2, cfg.GetBatch().Concurrency)
}

func TestInvalidDurations(t *testing.T) {
	v := NewEmptyViper()
	v.Set("openfda.timeout", "fast")
	v.Set("cache.cleanup_frequency", "often")
	cfg := NewFromViper(v)

	_, err := cfg.GetUpstream()
	assert.ErrorContains(t, err, "invalid openfda timeout")

	_, err = cfg.GetCache()
	assert.ErrorContains(t, err, "cache.cleanup_frequency")
}

func TestNewFromFileMissing(t *testing.T) {
	_, err := NewFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
