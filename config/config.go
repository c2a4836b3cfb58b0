package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/layoffproof/layoff-tracker/internal/email"
	"github.com/layoffproof/layoff-tracker/internal/usecase"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port     string `env:"PORT" envDefault:"8080" validate:"required"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10" validate:"min=1,max=100"`
	// RedisURL switches the magic token store from Postgres to Redis.
	RedisURL string `env:"REDIS_URL"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	JWTSecret     string `env:"JWT_SECRET,required" validate:"required,min=32"`
	MagicLinkBase string `env:"MAGIC_LINK_BASE_URL" envDefault:"http://localhost:8080" validate:"required,url"`

	StripeSecretKey      string  `env:"STRIPE_SECRET_KEY"       validate:"required_if=Env production,required_if=Env staging"`
	StripePublishableKey string  `env:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret  string  `env:"STRIPE_WEBHOOK_SECRET"`
	StripeMonthlyPriceID string  `env:"STRIPE_MONTHLY_PRICE_ID"`
	PlanMonthlyAmount    float64 `env:"PLAN_MONTHLY_AMOUNT"     envDefault:"19.00" validate:"gt=0"`
	PlanCurrency         string  `env:"PLAN_CURRENCY"           envDefault:"usd"   validate:"len=3,alpha"`

	CheckoutSessionTTL  time.Duration `env:"CHECKOUT_SESSION_TTL" envDefault:"30m" validate:"min=1m"`
	MaxCheckoutSessions int           `env:"MAX_CHECKOUT_SESSIONS" envDefault:"10000" validate:"min=1"`

	SentryDSN string `env:"SENTRY_DSN"`

	EmailFrom        string `env:"EMAIL_FROM" envDefault:"Layoff Proof <noreply@layoffproof.com>"`
	SendGridAPIKey   string `env:"SENDGRID_API_KEY"`
	EmailUser        string `env:"EMAIL_USER"`
	EmailAppPassword string `env:"EMAIL_APP_PASSWORD"`
	SMTPHost         string `env:"SMTP_HOST"`
	SMTPPort         int    `env:"SMTP_PORT" validate:"omitempty,min=1,max=65535"`
	SMTPUser         string `env:"SMTP_USER"`
	SMTPPass         string `env:"SMTP_PASS"`
	ResendAPIKey     string `env:"RESEND_API_KEY"`

	PurgeTokensSchedule string `env:"PURGE_TOKENS_SCHEDULE" envDefault:"@every 10m" validate:"required"`
	ReconcileSchedule   string `env:"RECONCILE_SCHEDULE"    envDefault:"@hourly"    validate:"required"`
	ReconcileBatch      int    `env:"RECONCILE_BATCH"       envDefault:"100"        validate:"min=1,max=1000"`
}

// Load reads .env when present, then the process environment. Variables
// already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
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

func (c *Config) EmailConfig() email.Config {
	return email.Config{
		From:               c.EmailFrom,
		SendGridAPIKey:     c.SendGridAPIKey,
		AccountUser:        c.EmailUser,
		AccountAppPassword: c.EmailAppPassword,
		SMTPHost:           c.SMTPHost,
		SMTPPort:           c.SMTPPort,
		SMTPUser:           c.SMTPUser,
		SMTPPass:           c.SMTPPass,
		ResendAPIKey:       c.ResendAPIKey,
	}
}

func (c *Config) CheckoutConfig() usecase.CheckoutConfig {
	return usecase.CheckoutConfig{
		MonthlyAmount:  c.PlanMonthlyAmount,
		Currency:       c.PlanCurrency,
		MonthlyPriceID: c.StripeMonthlyPriceID,
	}
}
