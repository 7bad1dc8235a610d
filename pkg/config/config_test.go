package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://mp.weixin.qq.com", cfg.WeChat.BaseURL)
	assert.Equal(t, 20, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.MinInterval)
	assert.Equal(t, 5*time.Second, cfg.RateLimit.MaxInterval)
	assert.True(t, cfg.RateLimit.Adaptive)
	assert.Equal(t, 10, cfg.Fetch.PageSize)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
wechat:
  base_url: https://mp.example.com
rate_limit:
  requests_per_minute: 5
fetch:
  page_size: 4
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "https://mp.example.com", cfg.WeChat.BaseURL)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 4, cfg.Fetch.PageSize)
	// Untouched fields keep their defaults.
	assert.Equal(t, 3, cfg.Fetch.MaxConcurrency)
}

func TestLoadFromFileMissingExplicitPath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MPSCRAPER_BASE_URL", "https://mp.test")
	t.Setenv("MPSCRAPER_REQUESTS_PER_MINUTE", "7")
	t.Setenv("MPSCRAPER_CACHE_ENABLED", "false")
	t.Setenv("MPSCRAPER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, "https://mp.test", cfg.WeChat.BaseURL)
	assert.Equal(t, 7, cfg.RateLimit.RequestsPerMinute)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("MPSCRAPER_REQUESTS_PER_MINUTE", "not-a-number")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()
	assert.Equal(t, 20, cfg.RateLimit.RequestsPerMinute)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WeChat.BaseURL = ""
	cfg.RateLimit.RequestsPerMinute = 0
	cfg.Fetch.PageSize = 11
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL is required")
	assert.Contains(t, err.Error(), "requests per minute must be positive")
	assert.Contains(t, err.Error(), "page size must be between 1 and 10")
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestValidateIntervalOrdering(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit.MinInterval = 10 * time.Second
	cfg.RateLimit.MaxInterval = 5 * time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum interval must not be below minimum interval")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.RateLimit.RequestsPerMinute = 9
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 9, loaded.RateLimit.RequestsPerMinute)
}

func TestBaseIntervalFromQuota(t *testing.T) {
	cfg := DefaultConfig()
	// 20 requests per minute implies one request every 3 seconds.
	assert.Equal(t, 3*time.Second, time.Minute/time.Duration(cfg.RateLimit.RequestsPerMinute))
}
