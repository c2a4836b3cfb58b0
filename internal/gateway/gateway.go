// Package gateway defines the payment gateway boundary. The application layer
// talks to this interface only; the Stripe SDK stays behind gateway/stripe.
package gateway

import (
	"context"
	"time"

	"github.com/layoffproof/layoff-tracker/internal/domain"
)

// DefaultCurrency is used when a caller passes an empty currency code.
const DefaultCurrency = "usd"

// CustomerRef identifies the local user a gateway customer belongs to.
// ExistingID is the stored gateway customer id, empty if none was ever stored.
type CustomerRef struct {
	ExistingID string
	UserID     string
	Email      string
	Name       string
}

type SetupIntent struct {
	ID           string
	CustomerID   string
	ClientSecret string
	Status       string
}

type PaymentIntent struct {
	ID           string
	CustomerID   string
	ClientSecret string
	Status       string
	Amount       int64 // minor units
	Currency     string
}

// Subscription carries the latest invoice's payment intent so the client can
// confirm the first payment.
type Subscription struct {
	ID                     string
	CustomerID             string
	PriceID                string
	Status                 domain.SubscriptionStatus
	DefaultPaymentMethodID string
	CurrentPeriodEnd       *time.Time
	CanceledAt             *time.Time
	LatestInvoiceID        string
	PaymentIntentID        string
	ClientSecret           string
}

// PaymentGateway wraps the hosted billing platform. Implementations never
// retry; every remote failure is returned to the caller as an *Error.
type PaymentGateway interface {
	GetOrCreateCustomer(ctx context.Context, ref CustomerRef) (string, error)
	CreateSetupIntent(ctx context.Context, customerID string) (SetupIntent, error)
	CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (Subscription, error)
	// CreatePaymentIntent takes amount in major currency units.
	CreatePaymentIntent(ctx context.Context, amount float64, customerID, currency string) (PaymentIntent, error)
	CancelSubscription(ctx context.Context, id string) (Subscription, error)
	GetSubscription(ctx context.Context, id string) (Subscription, error)
}

// Invoice is the subset of an invoice the webhook consumer needs.
type Invoice struct {
	ID         string
	CustomerID string
	AmountDue  int64
	Currency   string
}

// Webhook event types the application handles.
const (
	EventSubscriptionCreated  = "customer.subscription.created"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventInvoicePaid          = "invoice.paid"
)

// Event is a verified webhook event. Exactly one of Subscription or Invoice is
// set for the event types the application handles.
type Event struct {
	ID           string
	Type         string
	Subscription *Subscription
	Invoice      *Invoice
}
