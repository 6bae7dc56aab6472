package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV"       envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT"      envDefault:"8080"  validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"  validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	RedisURL    string `env:"REDIS_URL"             envDefault:"redis://localhost:6379/0" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	// signs verification and reset tokens
	SecretKey string `env:"SECRET_KEY,required" validate:"required,min=32"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	EmailWorkers int    `env:"EMAIL_WORKERS"  envDefault:"2"   validate:"min=1,max=32"`
	EmailBuffer  int    `env:"EMAIL_BUFFER"   envDefault:"100" validate:"min=1"`

	SiteDomain   string `env:"SITE_DOMAIN"   envDefault:"localhost:8080" validate:"required"`
	SiteProtocol string `env:"SITE_PROTOCOL" envDefault:"http"           validate:"oneof=http https"`

	PasswordResetSubject   string `env:"PASSWORD_RESET_EMAIL_SUBJECT"`
	ValidationEmailSubject string `env:"VALIDATION_EMAIL_SUBJECT"`

	AuthTokenMaxAge        time.Duration `env:"AUTH_TOKEN_MAX_AGE"        envDefault:"4800h" validate:"gt=0"`
	AuthTokenMaxInactivity time.Duration `env:"AUTH_TOKEN_MAX_INACTIVITY" envDefault:"12h"   validate:"gte=0"`
	VerifyAccountExpiry    time.Duration `env:"VERIFY_ACCOUNT_EXPIRY"     envDefault:"0s"    validate:"gte=0"`
	PasswordResetTimeout   time.Duration `env:"PASSWORD_RESET_TIMEOUT"    envDefault:"72h"   validate:"gt=0"`

	ThrottleRates map[string]string `env:"THROTTLE_RATES" envKeyValSeparator:":"`

	EmailVerificationRequired bool `env:"EMAIL_VERIFICATION_REQUIRED" envDefault:"true"`
	HasAvatar                 bool `env:"HAS_AVATAR"                  envDefault:"false"`

	SweepSchedule string `env:"SWEEP_SCHEDULE" envDefault:"@hourly" validate:"required"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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
