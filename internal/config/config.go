// Package config loads service settings from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting of the fraud detection service.
type Config struct {
	Port     string
	LogLevel string

	// SampleDatasetURL is fetched by "load sample"; empty uses the bundled CSV.
	SampleDatasetURL string

	TestRatio float64
	SplitSeed int64 // 0 picks a new seed for every training run

	StreamInterval time.Duration
	StreamCapacity int

	AlertProvider       string // "log" or "mailgun"
	MailgunDomain       string
	MailgunAPIKey       string
	AlertSender         string
	AlertRecipient      string
	AlertPriority       string
	AlertRatePerMinute  int
	AlertDedupeTTL      time.Duration
	AlertTimeout        time.Duration
	MetricDisplayBanded bool
}

// Load reads the given .env files (".env" when none are named) and then the
// process environment. Missing .env files are not an error; malformed
// values fall back to their defaults with a warning.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", strings.Join(envFiles, ", "), err)
		}
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		SampleDatasetURL: getEnv("SAMPLE_DATASET_URL", ""),

		TestRatio: getEnvAsFloat("TEST_RATIO", 0.2),
		SplitSeed: int64(getEnvAsInt("SPLIT_SEED", 0)),

		StreamInterval: getEnvAsDuration("STREAM_INTERVAL", 2*time.Second),
		StreamCapacity: getEnvAsInt("STREAM_CAPACITY", 50),

		AlertProvider:      strings.ToLower(getEnv("ALERT_PROVIDER", "log")),
		MailgunDomain:      getEnv("MAILGUN_DOMAIN", ""),
		MailgunAPIKey:      getEnv("MAILGUN_API_KEY", ""),
		AlertSender:        getEnv("ALERT_SENDER", ""),
		AlertRecipient:     getEnv("ALERT_EMAIL", ""),
		AlertPriority:      getEnv("ALERT_PRIORITY", "high"),
		AlertRatePerMinute: getEnvAsInt("ALERT_RATE_PER_MINUTE", 30),
		AlertDedupeTTL:     getEnvAsDuration("ALERT_DEDUPE_TTL", 10*time.Minute),
		AlertTimeout:       getEnvAsDuration("ALERT_TIMEOUT", 10*time.Second),

		MetricDisplayBanded: strings.EqualFold(getEnv("METRIC_DISPLAY", "raw"), "banded"),
	}

	if cfg.TestRatio <= 0 || cfg.TestRatio >= 1 {
		return nil, fmt.Errorf("config: TEST_RATIO must be between 0 and 1, got %v", cfg.TestRatio)
	}
	if cfg.StreamInterval <= 0 {
		return nil, fmt.Errorf("config: STREAM_INTERVAL must be positive, got %s", cfg.StreamInterval)
	}
	if cfg.StreamCapacity <= 0 {
		return nil, fmt.Errorf("config: STREAM_CAPACITY must be positive, got %d", cfg.StreamCapacity)
	}
	return cfg, nil
}

// MailgunConfigured reports whether every Mailgun setting is present.
func (c *Config) MailgunConfigured() bool {
	return c.MailgunDomain != "" && c.MailgunAPIKey != "" && c.AlertSender != "" && c.AlertRecipient != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", valueStr, "default", fallback)
		return fallback
	}
	return value
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		slog.Warn("Invalid number in environment, using default", "key", key, "value", valueStr, "default", fallback)
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		slog.Warn("Invalid duration in environment, using default", "key", key, "value", valueStr, "default", fallback.String())
		return fallback
	}
	return value
}
