package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the article-list client.
type Config struct {
	// WeChat platform endpoint settings
	WeChat WeChatConfig `yaml:"wechat" json:"wechat"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Result cache settings
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Pagination and fan-out settings
	Fetch FetchConfig `yaml:"fetch" json:"fetch"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// WeChatConfig holds settings for talking to the mp.weixin.qq.com platform.
type WeChatConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig holds rate limiting configuration. Intervals bound the
// adaptive controller; the per-minute quota bounds the sliding window.
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	MinInterval       time.Duration `yaml:"min_interval" json:"min_interval"`
	MaxInterval       time.Duration `yaml:"max_interval" json:"max_interval"`
	Adaptive          bool          `yaml:"adaptive" json:"adaptive"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
}

// CacheConfig holds result cache settings.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Dir      string `yaml:"dir" json:"dir"`
	TTLHours int    `yaml:"ttl_hours" json:"ttl_hours"`
}

// TTL returns the cache time-to-live as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// FetchConfig holds pagination and concurrency settings. The remote caps
// page size at 10; MaxConcurrency stays small because the rate limiter
// budget is shared across accounts.
type FetchConfig struct {
	PageSize           int `yaml:"page_size" json:"page_size"`
	MaxItemsPerAccount int `yaml:"max_items_per_account" json:"max_items_per_account"`
	MaxConcurrency     int `yaml:"max_concurrency" json:"max_concurrency"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		WeChat: WeChatConfig{
			BaseURL: "https://mp.weixin.qq.com",
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Timeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 20,
			MinInterval:       2 * time.Second,
			MaxInterval:       5 * time.Second,
			Adaptive:          true,
			MaxRetries:        3,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Dir:      defaultCacheDir(),
			TTLHours: 24,
		},
		Fetch: FetchConfig{
			PageSize:           10,
			MaxItemsPerAccount: 500,
			MaxConcurrency:     3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mpscraper/cache"
	}
	return filepath.Join(home, ".mpscraper", "cache")
}

// LoadFromFile loads configuration from a YAML file. An empty path means
// "use the first config file found in the standard locations"; finding none
// is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func findConfigFile() string {
	locations := []string{
		".mpscraper.yaml",
		".mpscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "mpscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".mpscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadFromEnv overrides configuration from environment variables.
func (c *Config) LoadFromEnv() {
	if base := os.Getenv("MPSCRAPER_BASE_URL"); base != "" {
		c.WeChat.BaseURL = base
	}
	if ua := os.Getenv("MPSCRAPER_USER_AGENT"); ua != "" {
		c.WeChat.UserAgent = ua
	}
	if rpm := os.Getenv("MPSCRAPER_REQUESTS_PER_MINUTE"); rpm != "" {
		if v, err := strconv.Atoi(rpm); err == nil && v > 0 {
			c.RateLimit.RequestsPerMinute = v
		}
	}
	if dir := os.Getenv("MPSCRAPER_CACHE_DIR"); dir != "" {
		c.Cache.Dir = dir
	}
	if enabled := os.Getenv("MPSCRAPER_CACHE_ENABLED"); enabled != "" {
		c.Cache.Enabled = strings.EqualFold(enabled, "true")
	}
	if ttl := os.Getenv("MPSCRAPER_CACHE_TTL_HOURS"); ttl != "" {
		if v, err := strconv.Atoi(ttl); err == nil && v > 0 {
			c.Cache.TTLHours = v
		}
	}
	if conc := os.Getenv("MPSCRAPER_MAX_CONCURRENCY"); conc != "" {
		if v, err := strconv.Atoi(conc); err == nil && v > 0 {
			c.Fetch.MaxConcurrency = v
		}
	}
	if level := os.Getenv("MPSCRAPER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.WeChat.BaseURL == "" {
		errs = append(errs, errors.New("base URL is required"))
	}
	if c.WeChat.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.MinInterval <= 0 {
		errs = append(errs, errors.New("minimum interval must be positive"))
	}
	if c.RateLimit.MaxInterval < c.RateLimit.MinInterval {
		errs = append(errs, errors.New("maximum interval must not be below minimum interval"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Cache.Enabled && c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache directory is required when caching is enabled"))
	}
	if c.Cache.TTLHours <= 0 {
		errs = append(errs, errors.New("cache TTL must be positive"))
	}

	if c.Fetch.PageSize <= 0 || c.Fetch.PageSize > 10 {
		errs = append(errs, errors.New("page size must be between 1 and 10"))
	}
	if c.Fetch.MaxItemsPerAccount <= 0 {
		errs = append(errs, errors.New("max items per account must be positive"))
	}
	if c.Fetch.MaxConcurrency <= 0 {
		errs = append(errs, errors.New("max concurrency must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load loads configuration from all sources.
// Precedence order: environment variables > .env file > config file > defaults.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".mpscraper.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg.LoadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}
