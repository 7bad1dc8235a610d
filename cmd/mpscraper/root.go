package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"mpscraper/pkg/auth"
	"mpscraper/pkg/cache"
	"mpscraper/pkg/config"
	"mpscraper/pkg/fetcher"
	"mpscraper/pkg/logger"
	"mpscraper/pkg/ratelimit"
	"mpscraper/pkg/wechat"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mpscraper",
	Short: "Fetch article listings from WeChat Official Accounts",
	Long: `mpscraper lists published articles from WeChat Official Accounts through
the platform's own backend API.

Features:
  - QR code login with secure credential storage
  - Adaptive rate limiting that backs off on platform pushback
  - Result caching with configurable TTL
  - Concurrent multi-account fetching`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := logger.Initialize(&cfg.Logging); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.mpscraper.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`mpscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// newSessionManager builds a session manager over the layered credential
// stores, configured against the platform from cfg.
func newSessionManager() (*auth.SessionManager, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return nil, err
	}
	return auth.NewSessionManager(manager, logger.GetLogger(),
		wechat.WithBaseURL(cfg.WeChat.BaseURL),
		wechat.WithTimeout(cfg.WeChat.Timeout),
		wechat.WithUserAgent(cfg.WeChat.UserAgent),
	)
}

// newResultCache builds the result cache from config, or a disabled one.
func newResultCache() (*cache.ResultCache, error) {
	if !cfg.Cache.Enabled {
		return cache.Disabled(), nil
	}
	return cache.New(cfg.Cache.Dir, cfg.Cache.TTL(), logger.GetLogger())
}

// newFetcher wires the client, limiter, credentials, and cache together.
func newFetcher(session *auth.SessionManager, resultCache *cache.ResultCache) *fetcher.ListFetcher {
	client := wechat.NewClient(logger.GetLogger(),
		wechat.WithBaseURL(cfg.WeChat.BaseURL),
		wechat.WithTimeout(cfg.WeChat.Timeout),
		wechat.WithUserAgent(cfg.WeChat.UserAgent),
		wechat.WithMaxRetries(cfg.RateLimit.MaxRetries),
	)

	limiterCfg := ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		MinInterval:       cfg.RateLimit.MinInterval,
		MaxInterval:       cfg.RateLimit.MaxInterval,
		Adaptive:          cfg.RateLimit.Adaptive,
	}

	var limiter fetcher.RateLimiter
	if cfg.RateLimit.Adaptive {
		limiter = ratelimit.NewAdaptive(limiterCfg)
	} else {
		limiter = ratelimit.New(limiterCfg)
	}

	var fetcherCache fetcher.Cache
	if resultCache.Enabled() {
		fetcherCache = resultCache
	}

	return fetcher.New(client, limiter, session, fetcherCache, cfg.Fetch, logger.GetLogger())
}
