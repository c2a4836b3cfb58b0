package stripegw

import (
	"encoding/json"
	"fmt"

	"github.com/layoffproof/layoff-tracker/internal/gateway"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookVerifier checks the Stripe-Signature header and decodes the events
// the application cares about.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// invoicePayload keeps only what is read from invoice events; the customer is
// always a plain id in webhook payloads.
type invoicePayload struct {
	ID        string `json:"id"`
	Customer  string `json:"customer"`
	AmountDue int64  `json:"amount_due"`
	Currency  string `json:"currency"`
}

func (v *WebhookVerifier) Parse(payload []byte, signature string) (gateway.Event, error) {
	if v.secret == "" {
		return gateway.Event{}, gateway.ErrWebhookNotConfigured
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return gateway.Event{}, fmt.Errorf("%w: %v", gateway.ErrInvalidSignature, err)
	}

	out := gateway.Event{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch event.Type {
	case gateway.EventSubscriptionCreated, gateway.EventSubscriptionUpdated, gateway.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return gateway.Event{}, fmt.Errorf("decode subscription: %w", err)
		}
		s := toSubscription(&sub)
		out.Subscription = &s
	case gateway.EventInvoicePaymentFailed, gateway.EventInvoicePaid:
		var inv invoicePayload
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return gateway.Event{}, fmt.Errorf("decode invoice: %w", err)
		}
		out.Invoice = &gateway.Invoice{
			ID:         inv.ID,
			CustomerID: inv.Customer,
			AmountDue:  inv.AmountDue,
			Currency:   inv.Currency,
		}
	}
	return out, nil
}
