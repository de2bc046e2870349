package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr  string
	MetricsAddr string
	LogLevel    string

	DatabaseURL string

	// NATS configuration; an empty URL disables event publishing.
	NATSURL string

	// Solana configuration. SOLANA_RPC_URL may list several endpoints
	// separated by commas; one is picked per process.
	SolanaRPCURLs      []string
	SolanaRequestDelay time.Duration

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Sync configuration
	DefaultSyncInterval time.Duration
	MinSyncInterval     time.Duration
	SyncPageSize        int
	SyncFetchTimeout    time.Duration
	SyncConcurrency     int

	// Telegram delivery is enabled when both are set.
	TelegramBotToken string
	TelegramChatID   string
}

// TelegramEnabled reports whether Telegram delivery is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory if one exists. Variables already set in the
// environment win over the file. All validation errors are reported together.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	cfg.NATSURL = os.Getenv("NATS_URL")

	cfg.SolanaRPCURLs = splitList(os.Getenv("SOLANA_RPC_URL"))
	if len(cfg.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}
	if d, err := parseDuration("SOLANA_REQUEST_DELAY", "0s"); err != nil {
		errs = append(errs, err)
	} else {
		cfg.SolanaRequestDelay = d
	}

	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "solwatch-sync")

	if d, err := parseDuration("DEFAULT_SYNC_INTERVAL", "5m"); err != nil {
		errs = append(errs, err)
	} else {
		cfg.DefaultSyncInterval = d
	}
	if d, err := parseDuration("MIN_SYNC_INTERVAL", "1m"); err != nil {
		errs = append(errs, err)
	} else {
		cfg.MinSyncInterval = d
	}
	if d, err := parseDuration("SYNC_FETCH_TIMEOUT", "60s"); err != nil {
		errs = append(errs, err)
	} else {
		cfg.SyncFetchTimeout = d
	}
	if n, err := parseInt("SYNC_PAGE_SIZE", 100); err != nil {
		errs = append(errs, err)
	} else {
		cfg.SyncPageSize = n
	}
	if n, err := parseInt("SYNC_CONCURRENCY", 4); err != nil {
		errs = append(errs, err)
	} else {
		cfg.SyncConcurrency = n
	}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")

	if len(errs) == 0 {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}
	if len(c.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("SolanaRPCURLs is required"))
	}
	if c.MinSyncInterval > c.DefaultSyncInterval {
		errs = append(errs, fmt.Errorf("MinSyncInterval (%v) cannot be greater than DefaultSyncInterval (%v)",
			c.MinSyncInterval, c.DefaultSyncInterval))
	}
	if c.MinSyncInterval < time.Second {
		errs = append(errs, fmt.Errorf("MinSyncInterval must be at least 1 second"))
	}
	if c.SyncPageSize < 1 || c.SyncPageSize > 1000 {
		errs = append(errs, fmt.Errorf("SyncPageSize must be between 1 and 1000"))
	}
	if c.SyncFetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SyncFetchTimeout must be positive"))
	}
	if c.SyncConcurrency < 1 {
		errs = append(errs, fmt.Errorf("SyncConcurrency must be at least 1"))
	}
	if (c.TelegramBotToken == "") != (c.TelegramChatID == "") {
		errs = append(errs, fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return nil
}

// IntervalForPriority maps a wallet priority to its sync interval: high
// priority wallets sync at the minimum interval, low priority at twice the
// default.
func (c *Config) IntervalForPriority(priority int) time.Duration {
	switch {
	case priority >= 2:
		return c.MinSyncInterval
	case priority == 1:
		return c.DefaultSyncInterval
	default:
		return 2 * c.DefaultSyncInterval
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
