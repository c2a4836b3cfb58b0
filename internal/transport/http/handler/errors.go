package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	errInternalServer       = "Internal server error"
	errTokenInvalid         = "Token is invalid or expired"
	errInvalidEmail         = "A valid email address is required"
	errInvalidAmount        = "Amount must be a positive value"
	errNoCheckoutSession    = "No checkout in progress"
	errSubscriptionNotFound = "Subscription not found"
	errSubscriptionExists   = "An active subscription already exists"
	errCheckoutSuperseded   = "Checkout changed, please reload"
	errPlanNotConfigured    = "Subscriptions are not available right now"
	errGatewayUnavailable   = "Payment provider unavailable, please retry"
	errCompanyNotFound      = "Company not found"
	errNotificationNotFound = "Notification not found"
	errInvalidSignature     = "Invalid signature"
	errWebhookNotConfigured = "Webhooks are not configured"
	errPayloadTooLarge      = "Payload too large"
)

// internalError attaches err for logging and error reporting middleware and
// responds with a generic 500.
func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
}

// gatewayUnavailable is the response for any payment provider failure. The
// client keeps its form and lets the user submit again.
func gatewayUnavailable(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadGateway, gin.H{"error": errGatewayUnavailable, "retryable": true})
}
