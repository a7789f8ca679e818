// Package config loads daemon configuration from CURRENCY_* environment
// variables so main stays lean. Load validates cross-field requirements;
// anything optional degrades the corresponding feature instead of failing.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	pstrings "github.com/sabbirahammad/currency/pkg/platform/strings"
)

// Store selects the detection record backend.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Config is the full daemon configuration.
type Config struct {
	Addr      string
	LogLevel  string
	LogFormat string

	// DetectURL is the recognition service base URL. Required: the daemon
	// exists to submit images there.
	DetectURL string

	// AuthURL is the identity service base URL. Empty means sessions stay
	// unconfigured and history is disabled.
	AuthURL string

	// AuthToken is an optional pre-issued credential token tried before
	// anonymous sign-in.
	AuthToken string

	// ApplicationID scopes detection records in the shared store.
	ApplicationID string

	Store       string
	RedisURL    string
	PostgresDSN string

	// KafkaBrokers enable the audit trail. Empty means audit events are
	// dropped after logging.
	KafkaBrokers []string
	AuditTopic   string

	ShutdownTimeout time.Duration
}

// Load builds a Config from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:            getEnv("CURRENCY_ADDR", ":8787"),
		LogLevel:        getEnv("CURRENCY_LOG_LEVEL", "info"),
		LogFormat:       getEnv("CURRENCY_LOG_FORMAT", "text"),
		DetectURL:       getEnv("CURRENCY_DETECT_URL", ""),
		AuthURL:         getEnv("CURRENCY_AUTH_URL", ""),
		AuthToken:       getEnv("CURRENCY_AUTH_TOKEN", ""),
		ApplicationID:   getEnv("CURRENCY_APP_ID", ""),
		Store:           getEnv("CURRENCY_STORE", StoreMemory),
		RedisURL:        getEnv("CURRENCY_REDIS_URL", ""),
		PostgresDSN:     getEnv("CURRENCY_POSTGRES_DSN", ""),
		AuditTopic:      getEnv("CURRENCY_AUDIT_TOPIC", "currency-audit-events"),
		ShutdownTimeout: 10 * time.Second,
	}

	if brokers := getEnv("CURRENCY_KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = pstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}

	if cfg.DetectURL == "" {
		return nil, fmt.Errorf("CURRENCY_DETECT_URL is required")
	}

	switch cfg.Store {
	case StoreMemory:
	case StoreRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("CURRENCY_REDIS_URL is required when CURRENCY_STORE=redis")
		}
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("CURRENCY_POSTGRES_DSN is required when CURRENCY_STORE=postgres")
		}
	default:
		return nil, fmt.Errorf("CURRENCY_STORE must be one of %s, %s, %s", StoreMemory, StoreRedis, StorePostgres)
	}

	if cfg.AuthToken != "" && cfg.AuthURL == "" {
		return nil, fmt.Errorf("CURRENCY_AUTH_URL is required when CURRENCY_AUTH_TOKEN is set")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
