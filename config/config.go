package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	EnvLocal      = "local"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

type Config struct {
	Env         string `env:"ENV"          envDefault:"local" validate:"required,oneof=local staging production"`
	Port        string `env:"PORT"         envDefault:"8080"  validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"  validate:"oneof=debug info warn error"`

	StoreDriver   string `env:"STORE_DRIVER"   envDefault:"mongo" validate:"oneof=mongo postgres memory"`
	MongoURI      string `env:"MONGO_URI"      validate:"required_if=StoreDriver mongo"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"magic_auth"`
	DatabaseURL   string `env:"DATABASE_URL"   validate:"required_if=StoreDriver postgres"`

	// Optional collaborators; empty disables them.
	RedisURL string `env:"REDIS_URL"`
	AMQPURL  string `env:"AMQP_URL"`

	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET,required"  validate:"required,min=32"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET,required" validate:"required,min=32,nefield=JWTAccessSecret"`
	AccessTTL        time.Duration `env:"ACCESS_TTL"     envDefault:"15m"  validate:"min=1m"`
	RefreshTTL       time.Duration `env:"REFRESH_TTL"    envDefault:"168h" validate:"gtfield=AccessTTL"`
	MagicLinkTTL     time.Duration `env:"MAGIC_LINK_TTL" envDefault:"15m"  validate:"min=1m,max=24h"`

	AppBaseURL   string `env:"APP_BASE_URL"  envDefault:"http://localhost:8080"           validate:"required,url"`
	DashboardURL string `env:"DASHBOARD_URL" envDefault:"http://localhost:5173/dashboard" validate:"required,url"`
	CookieDomain string `env:"COOKIE_DOMAIN"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`

	JanitorCron      string        `env:"JANITOR_CRON"      envDefault:"@every 1h"`
	JanitorRetention time.Duration `env:"JANITOR_RETENTION" envDefault:"24h"`
}

// Load reads .env (if present) and the process environment into a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) IsLocal() bool { return c.Env == EnvLocal }

// SecureCookies reports whether session cookies must carry the Secure flag.
func (c *Config) SecureCookies() bool { return c.Env != EnvLocal }

// ExposeErrors reports whether internal error details may be returned to clients.
func (c *Config) ExposeErrors() bool { return c.Env != EnvProduction }

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
