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

	"github.com/layoffproof/layoff-tracker/config"
	stripegw "github.com/layoffproof/layoff-tracker/internal/gateway/stripe"
	"github.com/layoffproof/layoff-tracker/internal/infrastructure/postgres"
	redisinfra "github.com/layoffproof/layoff-tracker/internal/infrastructure/redis"
	ctxlog "github.com/layoffproof/layoff-tracker/internal/log"
	"github.com/layoffproof/layoff-tracker/internal/metrics"
	"github.com/layoffproof/layoff-tracker/internal/repository"
	"github.com/layoffproof/layoff-tracker/internal/usecase"
	"github.com/layoffproof/layoff-tracker/internal/worker"
	"github.com/lmittmann/tint"
)

// noMailer satisfies the auth usecase; the worker never sends sign-in links.
type noMailer struct{}

func (noMailer) SendMagicLink(context.Context, string, string) bool { return false }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: 4, MinConns: 1})
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	var tokens repository.MagicTokenRepository = postgres.NewMagicTokenRepository(pool)
	if cfg.RedisURL != "" {
		rdb, err := redisinfra.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			stop()
			log.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		tokens = redisinfra.NewMagicTokenStore(rdb)
	}

	userRepo := postgres.NewUserRepository(pool)
	subRepo := postgres.NewSubscriptionRepository(pool)
	notificationRepo := postgres.NewNotificationRepository(pool)
	gw := stripegw.New(stripegw.Config{SecretKey: cfg.StripeSecretKey}, logger)

	authUsecase := usecase.NewAuthUsecase(userRepo, tokens, noMailer{}, []byte(cfg.JWTSecret), cfg.MagicLinkBase)
	billingEvents := usecase.NewBillingEventsUsecase(userRepo, subRepo, notificationRepo, gw, logger)

	metrics.Register()

	jobs := []worker.Job{worker.PurgeTokensJob(cfg.PurgeTokensSchedule, authUsecase)}
	if cfg.StripeSecretKey != "" {
		jobs = append(jobs, worker.ReconcileJob(cfg.ReconcileSchedule, cfg.ReconcileBatch, billingEvents))
	} else {
		logger.Warn("STRIPE_SECRET_KEY is not set, subscription reconciliation disabled")
	}

	w, err := worker.New(logger, jobs...)
	if err != nil {
		stop()
		log.Fatalf("worker: %v", err)
	}

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	w.Start(ctx)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("worker process exited")
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
