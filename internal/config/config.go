// Package config loads process configuration from the environment.
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

const minSecretLength = 32

type Config struct {
	HTTPAddr       string
	DatabaseURL    string
	MigrationsPath string

	RedisAddr string
	CartTTL   time.Duration

	KafkaBrokers   []string
	KafkaTopic     string
	KafkaEnabled   bool
	KafkaGroupID   string
	OutboxInterval time.Duration

	IdempotencyTable string
	IdempotencyTTL   time.Duration

	SMTPHost string
	SMTPPort string
	SMTPFrom string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "internal/infrastructure/store/migrations"),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "marketplace-events"),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "notifier"),
		IdempotencyTable: getEnv("IDEMPOTENCY_TABLE", ""),
		SMTPHost:         getEnv("SMTP_HOST", "localhost"),
		SMTPPort:         getEnv("SMTP_PORT", "1025"),
		SMTPFrom:         getEnv("SMTP_FROM", "noreply@marketplace.local"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
	}

	var err error
	if cfg.KafkaEnabled, err = strconv.ParseBool(getEnv("KAFKA_ENABLED", "true")); err != nil {
		return nil, fmt.Errorf("KAFKA_ENABLED: %w", err)
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"CART_TTL", "24h", &cfg.CartTTL},
		{"OUTBOX_INTERVAL", "2s", &cfg.OutboxInterval},
		{"IDEMPOTENCY_TTL", "24h", &cfg.IdempotencyTTL},
		{"ACCESS_TOKEN_TTL", "15m", &cfg.AccessTokenTTL},
		{"REFRESH_TOKEN_TTL", "168h", &cfg.RefreshTokenTTL},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("%s must be positive", d.key)
		}
		*d.dst = v
	}

	return cfg, nil
}

// ValidateJWT fails unless a signing secret of at least 32 characters is set.
// Only processes that issue or check tokens call it.
func (c *Config) ValidateJWT() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters long", minSecretLength)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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
