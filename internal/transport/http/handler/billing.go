package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layoffproof/layoff-tracker/internal/domain"
	"github.com/layoffproof/layoff-tracker/internal/gateway"
	"github.com/layoffproof/layoff-tracker/internal/transport/http/middleware"
	"github.com/layoffproof/layoff-tracker/internal/usecase"
)

type checkoutUsecaser interface {
	Config() usecase.CheckoutConfig
	StartTrial(ctx context.Context, userID string) (*domain.CheckoutSession, error)
	SkipTrial(ctx context.Context, userID string) (*domain.CheckoutSession, error)
	Current(ctx context.Context, userID string) (*domain.CheckoutSession, error)
	CreatePaymentIntent(ctx context.Context, userID string, amount float64, currency string) (gateway.PaymentIntent, error)
	Subscribe(ctx context.Context, userID, paymentMethodID string) (*usecase.SubscribeResult, error)
	GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
	CancelSubscription(ctx context.Context, userID string) (*domain.Subscription, error)
}

type BillingHandler struct {
	checkout       checkoutUsecaser
	publishableKey string
	logger         *slog.Logger
}

func NewBillingHandler(checkout checkoutUsecaser, publishableKey string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		checkout:       checkout,
		publishableKey: publishableKey,
		logger:         logger.With("component", "billing_handler"),
	}
}

type billingConfigResponse struct {
	PublishableKey string  `json:"publishable_key"`
	MonthlyAmount  float64 `json:"monthly_amount"`
	Currency       string  `json:"currency"`
	Subscriptions  bool    `json:"subscriptions_enabled"`
}

type checkoutSessionResponse struct {
	Mode         domain.CheckoutMode `json:"mode"`
	IntentID     string              `json:"intent_id"`
	ClientSecret string              `json:"client_secret"`
	Status       string              `json:"status,omitempty"`
	Amount       int64               `json:"amount"`
	Currency     string              `json:"currency"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

type paymentIntentRequest struct {
	Amount   float64 `json:"amount"   binding:"required,gt=0"`
	Currency string  `json:"currency" binding:"omitempty,len=3,alpha"`
}

type paymentIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type subscribeRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

type subscriptionResponse struct {
	ID               string                    `json:"id"`
	Status           domain.SubscriptionStatus `json:"status"`
	PriceID          string                    `json:"price_id"`
	CurrentPeriodEnd *time.Time                `json:"current_period_end,omitempty"`
	CanceledAt       *time.Time                `json:"canceled_at,omitempty"`
	Premium          bool                      `json:"premium"`
	ClientSecret     string                    `json:"client_secret,omitempty"`
}

// GET /billing/config
func (h *BillingHandler) Config(c *gin.Context) {
	cfg := h.checkout.Config()
	c.JSON(http.StatusOK, billingConfigResponse{
		PublishableKey: h.publishableKey,
		MonthlyAmount:  cfg.MonthlyAmount,
		Currency:       cfg.Currency,
		Subscriptions:  cfg.MonthlyPriceID != "",
	})
}

// POST /billing/trial
func (h *BillingHandler) StartTrial(c *gin.Context) {
	session, err := h.checkout.StartTrial(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		h.fail(c, "start trial", err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// POST /billing/skip-trial
func (h *BillingHandler) SkipTrial(c *gin.Context) {
	session, err := h.checkout.SkipTrial(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		h.fail(c, "skip trial", err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// GET /billing/checkout
func (h *BillingHandler) Current(c *gin.Context) {
	session, err := h.checkout.Current(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		h.fail(c, "get checkout session", err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(session))
}

// POST /billing/payment-intents
func (h *BillingHandler) CreatePaymentIntent(c *gin.Context) {
	var req paymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidAmount})
		return
	}

	pi, err := h.checkout.CreatePaymentIntent(c.Request.Context(), c.GetString(middleware.UserIDKey), req.Amount, req.Currency)
	if err != nil {
		h.fail(c, "create payment intent", err)
		return
	}
	c.JSON(http.StatusCreated, paymentIntentResponse{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       pi.Status,
		Amount:       pi.Amount,
		Currency:     pi.Currency,
	})
}

// POST /billing/subscription
func (h *BillingHandler) Subscribe(c *gin.Context) {
	var req subscribeRequest
	// The body is optional; without a payment method the first invoice is
	// confirmed client-side.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	res, err := h.checkout.Subscribe(c.Request.Context(), c.GetString(middleware.UserIDKey), req.PaymentMethodID)
	if err != nil {
		h.fail(c, "subscribe", err)
		return
	}
	resp := toSubscriptionResponse(res.Subscription)
	resp.ClientSecret = res.ClientSecret
	c.JSON(http.StatusCreated, resp)
}

// GET /billing/subscription
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	sub, err := h.checkout.GetSubscription(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		h.fail(c, "get subscription", err)
		return
	}
	c.JSON(http.StatusOK, toSubscriptionResponse(sub))
}

// DELETE /billing/subscription
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	sub, err := h.checkout.CancelSubscription(c.Request.Context(), c.GetString(middleware.UserIDKey))
	if err != nil {
		h.fail(c, "cancel subscription", err)
		return
	}
	c.JSON(http.StatusOK, toSubscriptionResponse(sub))
}

func (h *BillingHandler) fail(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidAmount})
	case errors.Is(err, domain.ErrNoCheckoutSession):
		c.JSON(http.StatusNotFound, gin.H{"error": errNoCheckoutSession})
	case errors.Is(err, domain.ErrSubscriptionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": errSubscriptionNotFound})
	case errors.Is(err, domain.ErrSubscriptionExists):
		c.JSON(http.StatusConflict, gin.H{"error": errSubscriptionExists})
	case errors.Is(err, domain.ErrCheckoutSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": errCheckoutSuperseded})
	case errors.Is(err, domain.ErrPlanNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errPlanNotConfigured})
	case errors.Is(err, domain.ErrUserNotFound):
		middleware.Unauthorized(c)
	case errors.Is(err, domain.ErrCheckoutSetup),
		errors.Is(err, gateway.ErrGateway),
		errors.Is(err, gateway.ErrGatewayUnavailable):
		h.logger.ErrorContext(c.Request.Context(), op, "error", err)
		gatewayUnavailable(c, err)
	default:
		h.logger.ErrorContext(c.Request.Context(), op, "error", err)
		internalError(c, err)
	}
}

func toSessionResponse(s *domain.CheckoutSession) checkoutSessionResponse {
	return checkoutSessionResponse{
		Mode:         s.Mode,
		IntentID:     s.IntentID,
		ClientSecret: s.ClientSecret,
		Status:       s.Status,
		Amount:       s.Amount,
		Currency:     s.Currency,
		UpdatedAt:    s.UpdatedAt,
	}
}

func toSubscriptionResponse(s *domain.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:               s.StripeSubscriptionID,
		Status:           s.Status,
		PriceID:          s.PriceID,
		CurrentPeriodEnd: s.CurrentPeriodEnd,
		CanceledAt:       s.CanceledAt,
		Premium:          s.Status.Premium(),
	}
}
