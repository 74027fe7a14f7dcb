// Package config loads and validates environment variables at startup.
// Fail-fast: a missing required variable or an unparsable value stops the
// process before anything connects.
package config

import (
	"os"
	"strconv"
	"time"

	"campusgig/internal/errors"
)

// Config holds all runtime configuration.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	LogLevel    string

	// NotificationRetention is how long read notifications are kept before
	// the janitor purges them.
	NotificationRetention time.Duration
	JanitorIntervalHours  int
	RateLimitPerMinute    int
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	retention, err := time.ParseDuration(getEnv("NOTIFICATION_RETENTION", "720h"))
	if err != nil {
		return nil, errors.Wrap(err, "parse NOTIFICATION_RETENTION")
	}
	if retention <= 0 {
		return nil, errors.New("NOTIFICATION_RETENTION must be positive")
	}

	interval, err := strconv.Atoi(getEnv("JANITOR_INTERVAL_HOURS", "24"))
	if err != nil {
		return nil, errors.Wrap(err, "parse JANITOR_INTERVAL_HOURS")
	}
	if interval < 1 {
		return nil, errors.New("JANITOR_INTERVAL_HOURS must be at least 1")
	}

	rateLimit, err := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "120"))
	if err != nil {
		return nil, errors.Wrap(err, "parse RATE_LIMIT_PER_MINUTE")
	}
	if rateLimit < 1 {
		return nil, errors.New("RATE_LIMIT_PER_MINUTE must be at least 1")
	}

	return &Config{
		Port:                  getEnv("PORT", "8080"),
		DatabaseURL:           dbURL,
		RedisURL:              redisURL,
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		NotificationRetention: retention,
		JanitorIntervalHours:  interval,
		RateLimitPerMinute:    rateLimit,
	}, nil
}

// getEnv returns the value of key, or fallback when unset or empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
