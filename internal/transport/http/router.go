package httptransport

import (
	"log/slog"
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/layoffproof/layoff-tracker/internal/transport/http/handler"
	"github.com/layoffproof/layoff-tracker/internal/transport/http/middleware"
	sloggin "github.com/samber/slog-gin"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth    *handler.AuthHandler
	Billing *handler.BillingHandler
	Profile *handler.ProfileHandler
	Webhook *handler.WebhookHandler
	Health  *handler.HealthHandler
}

type RouterConfig struct {
	JWTKey []byte
	// Users backs the check that an authenticated user still exists.
	Users middleware.UserFinder
	// SentryEnabled mounts the Sentry middleware. Sentry must already be initialised.
	SentryEnabled bool
}

func NewRouter(logger *slog.Logger, h Handlers, cfg RouterConfig) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		WithRequestID: false,
		Filters:       []sloggin.Filter{sloggin.IgnorePath("/healthz", "/readyz")},
	}))
	r.Use(gin.Recovery())
	if cfg.SentryEnabled {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
		r.Use(middleware.ReportErrors())
	}
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Metrics("/healthz", "/readyz"))

	r.GET("/healthz", h.Health.Live)
	r.GET("/readyz", h.Health.Ready)

	auth := r.Group("/auth")
	auth.POST("/magic-link", h.Auth.RequestMagicLink)
	auth.GET("/verify", h.Auth.Verify)

	r.GET("/billing/config", h.Billing.Config)
	r.POST("/webhooks/stripe", h.Webhook.Stripe)

	authed := r.Group("/", middleware.Auth(cfg.JWTKey), middleware.EnsureUser(cfg.Users, logger))

	billing := authed.Group("/billing")
	billing.POST("/trial", h.Billing.StartTrial)
	billing.POST("/skip-trial", h.Billing.SkipTrial)
	billing.GET("/checkout", h.Billing.Current)
	billing.POST("/payment-intents", h.Billing.CreatePaymentIntent)
	billing.POST("/subscription", h.Billing.Subscribe)
	billing.GET("/subscription", h.Billing.GetSubscription)
	billing.DELETE("/subscription", h.Billing.CancelSubscription)

	authed.GET("/me", h.Profile.Get)
	authed.PATCH("/me", h.Profile.Update)
	authed.PUT("/me/company", h.Profile.SelectCompany)
	authed.GET("/companies", h.Profile.SearchCompanies)
	authed.GET("/notifications", h.Profile.ListNotifications)
	authed.POST("/notifications/:id/read", h.Profile.MarkNotificationRead)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return r
}
