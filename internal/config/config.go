// Package config loads all runtime configuration from environment variables.
// A .env file may pre-populate the environment (see cmd/huddle), but Load
// itself only reads os.Getenv.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for Huddle.
type Config struct {
	HTTP    HTTPConfig
	DB      DBConfig
	Log     LogConfig
	JWT     JWTConfig
	Redis   RedisConfig
	Storage StorageConfig
	Mail    MailConfig
	AI      AIConfig
	App     AppConfig
	Worker  WorkerConfig
	OTel    OTelConfig
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int
}

// DBConfig holds database connection configuration.
type DBConfig struct {
	Driver   string // "sqlite" (default) or "postgres"
	DSN      string // required when Driver == "postgres"
	File     string // SQLite database file path (default: "huddle.db")
	MaxConns int    // Postgres only
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Level  string
	Format string
}

// JWTConfig holds JSON Web Token signing and expiry settings.
type JWTConfig struct {
	Secret        string //nolint:gosec // intentional: holds JWT signing secret loaded from env
	RefreshSecret string //nolint:gosec // intentional: holds refresh signing secret loaded from env
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// RedisConfig points at the cache used for OTP codes, the refresh-token
// allowlist and summary idempotency markers.
type RedisConfig struct {
	URL string
}

// StorageConfig holds S3-compatible object storage settings.
type StorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string //nolint:gosec // intentional: holds storage secret loaded from env
	Region        string
	UseSSL        bool
	PublicBucket  string
	PrivateBucket string
	PublicBaseURL string // prefix for public object URLs, e.g. https://cdn.example.com
}

// MailConfig holds SMTP settings. An empty Host selects the logging sender.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string //nolint:gosec // intentional: holds SMTP password loaded from env
	From     string
}

// AIConfig holds LLM provider connection settings.
type AIConfig struct {
	APIKey      string //nolint:gosec // intentional: holds AI provider API key loaded from env
	APIBase     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Env           string // "development" or "production"
	ClientURL     string
	AllowedEmails []string
	SeedEmail     string
	SeedPassword  string
}

// Production reports whether the process runs with APP_ENV=production.
func (a AppConfig) Production() bool { return a.Env == "production" }

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	Concurrency int
}

// OTelConfig holds OpenTelemetry exporter settings.
type OTelConfig struct {
	OTLPEndpoint string
}

// Load reads configuration from environment variables, applies defaults,
// and returns an error if any required field is absent.
func Load() (*Config, error) {
	cfg := &Config{}

	// HTTP
	cfg.HTTP.Port = envInt("HTTP_PORT", 8080)

	// DB
	cfg.DB.Driver = envStr("DB_DRIVER", "sqlite")
	cfg.DB.File = envStr("DB_FILE", "huddle.db")
	cfg.DB.DSN = os.Getenv("DB_DSN")
	if cfg.DB.Driver == "postgres" && cfg.DB.DSN == "" {
		return nil, errors.New("DB_DSN is required when DB_DRIVER=postgres")
	}
	cfg.DB.MaxConns = envInt("DB_MAX_CONNS", 25)

	// Log
	cfg.Log.Level = envStr("LOG_LEVEL", "info")
	cfg.Log.Format = envStr("LOG_FORMAT", "json")

	// JWT (required)
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	cfg.JWT.RefreshSecret = os.Getenv("JWT_REFRESH_SECRET")
	if cfg.JWT.RefreshSecret == "" {
		return nil, errors.New("JWT_REFRESH_SECRET is required")
	}
	var err error
	cfg.JWT.AccessTTL, err = envDuration("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("JWT_ACCESS_TTL: %w", err)
	}
	cfg.JWT.RefreshTTL, err = envDuration("JWT_REFRESH_TTL", 720*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("JWT_REFRESH_TTL: %w", err)
	}

	// Redis
	cfg.Redis.URL = envStr("REDIS_URL", "redis://localhost:6379/0")

	// Storage
	cfg.Storage.Endpoint = envStr("S3_ENDPOINT", "s3.amazonaws.com")
	cfg.Storage.AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.Storage.SecretKey = os.Getenv("S3_SECRET_KEY")
	cfg.Storage.Region = envStr("S3_REGION", "us-east-1")
	cfg.Storage.UseSSL = envBool("S3_USE_SSL", true)
	cfg.Storage.PublicBucket = envStr("S3_UPLOADS_BUCKET_NAME", "huddle-uploads")
	cfg.Storage.PrivateBucket = envStr("S3_PRIVATE_ASSETS_BUCKET_NAME", "huddle-assets")
	cfg.Storage.PublicBaseURL = os.Getenv("S3_PUBLIC_BASE_URL")

	// Mail
	cfg.Mail.Host = os.Getenv("MAIL_HOST")
	cfg.Mail.Port = envInt("MAIL_PORT", 587)
	cfg.Mail.Username = os.Getenv("MAIL_USERNAME")
	cfg.Mail.Password = os.Getenv("MAIL_PASSWORD")
	cfg.Mail.From = envStr("MAIL_FROM", "no-reply@huddle.local")

	// AI
	cfg.AI.APIKey = os.Getenv("AI_API_KEY")
	cfg.AI.APIBase = envStr("AI_API_BASE", "https://api.openai.com/v1")
	cfg.AI.Model = envStr("AI_MODEL", "gpt-4o-mini")
	cfg.AI.MaxTokens = envInt("AI_MAX_TOKENS", 2350)
	cfg.AI.Temperature = float32(envFloat("AI_TEMPERATURE", 0.5))

	// App
	cfg.App.Env = envStr("APP_ENV", "development")
	cfg.App.ClientURL = strings.TrimRight(envStr("APP_CLIENT_URL", "http://localhost:3000"), "/")
	cfg.App.AllowedEmails = envList("APP_ALLOWED_EMAILS")
	cfg.App.SeedEmail = os.Getenv("SEED_OWNER_EMAIL")
	cfg.App.SeedPassword = os.Getenv("SEED_OWNER_PASSWORD")

	// Worker
	cfg.Worker.Concurrency = envInt("WORKER_CONCURRENCY", 10)

	// OTel
	cfg.OTel.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", v, err)
	}
	return d, nil
}
