package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/layoffproof/layoff-tracker/config"
	"github.com/layoffproof/layoff-tracker/internal/email"
	stripegw "github.com/layoffproof/layoff-tracker/internal/gateway/stripe"
	"github.com/layoffproof/layoff-tracker/internal/health"
	"github.com/layoffproof/layoff-tracker/internal/infrastructure/memory"
	"github.com/layoffproof/layoff-tracker/internal/infrastructure/postgres"
	redisinfra "github.com/layoffproof/layoff-tracker/internal/infrastructure/redis"
	ctxlog "github.com/layoffproof/layoff-tracker/internal/log"
	"github.com/layoffproof/layoff-tracker/internal/metrics"
	"github.com/layoffproof/layoff-tracker/internal/repository"
	httptransport "github.com/layoffproof/layoff-tracker/internal/transport/http"
	"github.com/layoffproof/layoff-tracker/internal/transport/http/handler"
	"github.com/layoffproof/layoff-tracker/internal/usecase"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	sentryEnabled := cfg.SentryDSN != ""
	if sentryEnabled {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN, Environment: cfg.Env}); err != nil {
			log.Fatalf("sentry: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: cfg.DBMaxConns})
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	deps := []health.Dependency{{Name: "postgres", Pinger: pool}}

	// Magic tokens live in Redis when it is configured, Postgres otherwise.
	var tokens repository.MagicTokenRepository = postgres.NewMagicTokenRepository(pool)
	if cfg.RedisURL != "" {
		rdb, err := redisinfra.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			stop()
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		tokens = redisinfra.NewMagicTokenStore(rdb)
		deps = append(deps, health.Dependency{Name: "redis", Pinger: health.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})})
	}

	userRepo := postgres.NewUserRepository(pool)
	subRepo := postgres.NewSubscriptionRepository(pool)
	companyRepo := postgres.NewCompanyRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)

	if cfg.StripeSecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY is not set, billing calls will fail")
	}
	gw := stripegw.New(stripegw.Config{SecretKey: cfg.StripeSecretKey}, logger)

	// Email
	transport := email.NewTransport(cfg.EmailConfig(), logger)
	logger.Info("email transport selected", "transport", transport.Transport())
	notifier := email.NewNotifier(transport, logger)

	// Auth
	authUsecase := usecase.NewAuthUsecase(userRepo, tokens, notifier, []byte(cfg.JWTSecret), cfg.MagicLinkBase)

	// Billing
	sessions := memory.NewSessionStore(cfg.MaxCheckoutSessions, cfg.CheckoutSessionTTL)
	checkoutUsecase := usecase.NewCheckoutUsecase(userRepo, subRepo, sessions, gw, cfg.CheckoutConfig(), logger)
	billingEvents := usecase.NewBillingEventsUsecase(userRepo, subRepo, notificationRepo, gw, logger)

	// Profile
	profileUsecase := usecase.NewProfileUsecase(userRepo, companyRepo, subRepo, notificationRepo)

	metrics.Register()
	checker := health.NewChecker(logger, prometheus.DefaultRegisterer, deps...)

	handlers := httptransport.Handlers{
		Auth:    handler.NewAuthHandler(authUsecase, logger),
		Billing: handler.NewBillingHandler(checkoutUsecase, cfg.StripePublishableKey, logger),
		Profile: handler.NewProfileHandler(profileUsecase, logger),
		Webhook: handler.NewWebhookHandler(stripegw.NewWebhookVerifier(cfg.StripeWebhookSecret), billingEvents, logger),
		Health:  handler.NewHealthHandler(checker),
	}

	srv := http.Server{
		Addr: ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, handlers, httptransport.RouterConfig{
			JWTKey:        []byte(cfg.JWTSecret),
			Users:         userRepo,
			SentryEnabled: sentryEnabled,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
