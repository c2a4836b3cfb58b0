package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layoffproof/layoff-tracker/internal/gateway"
)

// maxWebhookBody matches the payload limit the gateway documents for events.
const maxWebhookBody = 64 << 10

type webhookVerifier interface {
	Parse(payload []byte, signature string) (gateway.Event, error)
}

type billingEventHandler interface {
	HandleEvent(ctx context.Context, event gateway.Event) error
}

type WebhookHandler struct {
	verifier webhookVerifier
	events   billingEventHandler
	logger   *slog.Logger
}

func NewWebhookHandler(verifier webhookVerifier, events billingEventHandler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		events:   events,
		logger:   logger.With("component", "webhook_handler"),
	}
}

// POST /webhooks/stripe
// A non-2xx response makes the gateway redeliver the event later.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errPayloadTooLarge})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.verifier.Parse(payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, gateway.ErrWebhookNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": errWebhookNotConfigured})
		return
	case errors.Is(err, gateway.ErrInvalidSignature):
		h.logger.WarnContext(c.Request.Context(), "rejected webhook", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidSignature})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.events.HandleEvent(c.Request.Context(), event); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "handle webhook event",
			"event_id", event.ID, "type", event.Type, "error", err)
		internalError(c, err)
		return
	}

	h.logger.InfoContext(c.Request.Context(), "webhook processed", "event_id", event.ID, "type", event.Type)
	c.JSON(http.StatusOK, gin.H{"received": true})
}
