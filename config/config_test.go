package config_test

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/layoffproof/layoff-tracker/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/layoffproof")
	t.Setenv("JWT_SECRET", testSecret)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Env != "local" || cfg.Port != "8080" {
		t.Errorf("env/port = %q/%q", cfg.Env, cfg.Port)
	}
	if cfg.PlanMonthlyAmount != 19.00 || cfg.PlanCurrency != "usd" {
		t.Errorf("plan = %v %q", cfg.PlanMonthlyAmount, cfg.PlanCurrency)
	}
	if cfg.CheckoutSessionTTL != 30*time.Minute {
		t.Errorf("CheckoutSessionTTL = %s", cfg.CheckoutSessionTTL)
	}
	if cfg.EmailFrom != "Layoff Proof <noreply@layoffproof.com>" {
		t.Errorf("EmailFrom = %q", cfg.EmailFrom)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel = %v", cfg.SlogLevel())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"short jwt secret", map[string]string{"JWT_SECRET": "short"}, "JWTSecret"},
		{"bad env", map[string]string{"ENV": "dev"}, "Env"},
		{"zero amount", map[string]string{"PLAN_MONTHLY_AMOUNT": "0"}, "PlanMonthlyAmount"},
		{"bad currency", map[string]string{"PLAN_CURRENCY": "dollars"}, "PlanCurrency"},
		{"production needs stripe key", map[string]string{"ENV": "production"}, "StripeSecretKey"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", testSecret)

	if _, err := config.Load(); err == nil {
		t.Fatal("expected error for empty DATABASE_URL")
	}
}

func TestEmailConfig(t *testing.T) {
	setRequired(t)
	t.Setenv("SMTP_HOST", "mail.example.com")
	t.Setenv("SMTP_PORT", "2525")
	t.Setenv("SMTP_USER", "u")
	t.Setenv("SMTP_PASS", "p")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ec := cfg.EmailConfig()
	if ec.SMTPHost != "mail.example.com" || ec.SMTPPort != 2525 || ec.From != cfg.EmailFrom {
		t.Errorf("EmailConfig = %+v", ec)
	}
}
