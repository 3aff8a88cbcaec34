package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration required by the service.
type Config struct {
	DBURL      string
	RedisURL   string
	ListenAddr string

	// RateLimit is the admitted requests per credential per 60s window.
	RateLimit int64

	// BatchSize is the maximum envelopes the worker drains per pop.
	BatchSize int

	// IdlePollInterval is how long the worker sleeps on an empty queue.
	IdlePollInterval time.Duration

	LogLevel string
}

// Load reads required values from environment variables. Only DB_URL has
// no fallback; everything else defaults to a local dev setup.
func Load() (Config, error) {
	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		return Config{}, errors.New("DB_URL required")
	}

	return Config{
		DBURL:            dbURL,
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		RateLimit:        int64(parseInt("RATE_LIMIT", 100)),
		BatchSize:        parseInt("BATCH_SIZE", 100),
		IdlePollInterval: parseDuration("IDLE_POLL_INTERVAL", time.Second),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func parseDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, defaultValue.String()))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
