package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	Port           string
	LogLevel       slog.Level
	OTelEndpoint   string

	PostgresURL    string
	MigrationsPath string

	JWTSecret string

	KafkaBrokers      []string
	NotificationTopic string

	RedisAddr       string
	ProductCacheTTL time.Duration

	AutoCompleteInterval time.Duration
	AutoCompleteAfter    time.Duration
}

// Load reads the process environment. A .env file in the working directory is
// applied first when present; variables already set win over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		ServiceName:       getenv("SERVICE_NAME", "storefront-api"),
		ServiceVersion:    getenv("SERVICE_VERSION", "0.1.0"),
		Port:              getenv("PORT", "8080"),
		OTelEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MigrationsPath:    getenv("MIGRATIONS_PATH", "file://migrations"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		NotificationTopic: getenv("NOTIFICATION_TOPIC", "notification.requested"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getenv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	if cfg.PostgresURL, err = postgresURL(); err != nil {
		return nil, err
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if cfg.ProductCacheTTL, err = duration("PRODUCT_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AutoCompleteInterval, err = duration("AUTO_COMPLETE_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AutoCompleteAfter, err = duration("AUTO_COMPLETE_AFTER", 24*time.Hour); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireJWTSecret is checked by binaries that serve authenticated routes.
func (c *Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	return nil
}

func postgresURL() (string, error) {
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		return v, nil
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		return "", errors.New("POSTGRES_URL or DB_HOST environment variable is required")
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getenv("DB_USER", "postgres"), os.Getenv("DB_PASSWORD")),
		Host:     host + ":" + getenv("DB_PORT", "5432"),
		Path:     "/" + getenv("DB_NAME", "storefront"),
		RawQuery: "sslmode=" + getenv("DB_SSLMODE", "disable"),
	}
	return u.String(), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
