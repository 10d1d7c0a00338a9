// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values for the collector.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	CORSOrigins []string

	// APIKeys are the keys devices may present in X-API-Key. Required.
	APIKeys []string

	// MigrateOnStart applies pending goose migrations before serving.
	MigrateOnStart bool

	// MaxBodyBytes caps the upload request body.
	MaxBodyBytes int64

	// RateLimitPerMinute is the per-client upload allowance.
	RateLimitPerMinute int

	WOM   WOM
	Redis Redis
}

// WOM configures the voucher issuer client.
type WOM struct {
	BaseURL   string // required
	SourceID  string // required
	SourceKey string // required
	LinkBase  string
	Timeout   time.Duration
}

// Redis configures the optional seen-key cache. An empty URL disables it.
type Redis struct {
	URL string
	TTL time.Duration
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or the
// first optional variable that cannot be parsed.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "*")),
		WOM: WOM{
			LinkBase: strings.TrimRight(getEnv("WOM_LINK_BASE", "https://wom.social/vouchers"), "/"),
		},
		Redis: Redis{
			URL: os.Getenv("REDIS_URL"),
		},
	}

	var missing []string
	require := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = require("DATABASE_URL")
	cfg.APIKeys = splitCSV(require("API_KEYS"))
	cfg.WOM.BaseURL = strings.TrimRight(require("WOM_BASE_URL"), "/")
	cfg.WOM.SourceID = require("WOM_SOURCE_ID")
	cfg.WOM.SourceKey = require("WOM_SOURCE_KEY")

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.WOM.Timeout, err = getDuration("WOM_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Redis.TTL, err = getDuration("SEEN_CACHE_TTL", 48*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return Config{}, err
	}
	maxBody, err := getInt("MAX_BODY_BYTES", 64<<10)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBodyBytes = int64(maxBody)
	if cfg.MigrateOnStart, err = getBool("MIGRATE_ON_START", false); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
