package stripegw

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/layoffproof/layoff-tracker/internal/gateway"
	"github.com/layoffproof/layoff-tracker/internal/metrics"
	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Config configures the SDK backend. BackendURL and HTTPClient are only set in
// tests, to point the SDK at a local fake.
type Config struct {
	SecretKey  string
	BackendURL string
	HTTPClient *http.Client
}

// Client is the Stripe SDK-backed PaymentGateway. It owns its own API client
// instead of the SDK's package-level key.
type Client struct {
	api    *client.API
	logger *slog.Logger
}

var _ gateway.PaymentGateway = (*Client)(nil)

func New(cfg Config, logger *slog.Logger) *Client {
	logger = logger.With("component", "stripe_gateway")

	backendCfg := &stripe.BackendConfig{
		// Retry policy belongs to the caller.
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &leveledLogger{logger: logger},
	}
	if cfg.BackendURL != "" {
		backendCfg.URL = stripe.String(cfg.BackendURL)
	}
	if cfg.HTTPClient != nil {
		backendCfg.HTTPClient = cfg.HTTPClient
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}

	return &Client{
		api:    client.New(cfg.SecretKey, backends),
		logger: logger,
	}
}

// GetOrCreateCustomer returns ref.ExistingID when it still resolves to a live
// customer. A missing or deleted customer is replaced by a new one; the stale
// id is never returned. Lookup failures of any other kind are reported as
// ErrGatewayUnavailable and no customer is created.
func (c *Client) GetOrCreateCustomer(ctx context.Context, ref gateway.CustomerRef) (string, error) {
	if ref.ExistingID != "" {
		params := &stripe.CustomerParams{Params: stripe.Params{Context: ctx}}
		cust, err := observe("get_customer", func() (*stripe.Customer, error) {
			return c.api.Customers.Get(ref.ExistingID, params)
		})
		switch {
		case err == nil && cust != nil && !cust.Deleted:
			return cust.ID, nil
		case err == nil:
			c.logger.InfoContext(ctx, "stored customer was deleted, creating a new one",
				"customer_id", ref.ExistingID, "user_id", ref.UserID)
		default:
			gwErr := wrapError("get customer", err)
			if !errors.Is(gwErr, gateway.ErrNotFound) {
				return "", errors.Join(gateway.ErrGatewayUnavailable, gwErr)
			}
			c.logger.InfoContext(ctx, "stored customer no longer resolves, creating a new one",
				"customer_id", ref.ExistingID, "user_id", ref.UserID)
		}
	}

	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
		Email:  stripe.String(ref.Email),
	}
	if ref.Name != "" {
		params.Name = stripe.String(ref.Name)
	}
	if ref.UserID != "" {
		params.AddMetadata("user_id", ref.UserID)
		// A retried create for the same user and stale id returns the
		// customer made by the first attempt instead of a second one.
		params.SetIdempotencyKey("customer-create:" + ref.UserID + ":" + ref.ExistingID)
	}

	cust, err := observe("create_customer", func() (*stripe.Customer, error) {
		return c.api.Customers.New(params)
	})
	if err != nil {
		return "", wrapError("create customer", err)
	}
	return cust.ID, nil
}

// CreateSetupIntent saves a card for later off-session charges. Nothing is charged.
func (c *Client) CreateSetupIntent(ctx context.Context, customerID string) (gateway.SetupIntent, error) {
	params := &stripe.SetupIntentParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Usage:    stripe.String(string(stripe.SetupIntentUsageOffSession)),
		// Card only. Stripe rejects payment_method_types combined with
		// automatic_payment_methods.
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}

	si, err := observe("create_setup_intent", func() (*stripe.SetupIntent, error) {
		return c.api.SetupIntents.New(params)
	})
	if err != nil {
		return gateway.SetupIntent{}, wrapError("create setup intent", err)
	}
	return toSetupIntent(si), nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, amount float64, customerID, currency string) (gateway.PaymentIntent, error) {
	currency = gateway.NormalizeCurrency(currency)
	minor, err := gateway.ToMinorUnits(amount, currency)
	if err != nil {
		return gateway.PaymentIntent{}, err
	}

	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(currency),
		Customer: stripe.String(customerID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}

	pi, err := observe("create_payment_intent", func() (*stripe.PaymentIntent, error) {
		return c.api.PaymentIntents.New(params)
	})
	if err != nil {
		return gateway.PaymentIntent{}, wrapError("create payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

// CreateSubscription activates immediately when a payment method is supplied;
// otherwise the subscription starts incomplete and the client confirms the
// first invoice's payment intent.
func (c *Client) CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodID string) (gateway.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
	}
	if paymentMethodID != "" {
		params.DefaultPaymentMethod = stripe.String(paymentMethodID)
		params.PaymentBehavior = stripe.String("allow_incomplete")
	} else {
		params.PaymentBehavior = stripe.String("default_incomplete")
		params.PaymentSettings = &stripe.SubscriptionPaymentSettingsParams{
			SaveDefaultPaymentMethod: stripe.String("on_subscription"),
		}
	}
	expandLatestInvoice(&params.Params)

	sub, err := observe("create_subscription", func() (*stripe.Subscription, error) {
		return c.api.Subscriptions.New(params)
	})
	if err != nil {
		return gateway.Subscription{}, wrapError("create subscription", err)
	}
	return toSubscription(sub), nil
}

func (c *Client) CancelSubscription(ctx context.Context, id string) (gateway.Subscription, error) {
	params := &stripe.SubscriptionCancelParams{Params: stripe.Params{Context: ctx}}

	sub, err := observe("cancel_subscription", func() (*stripe.Subscription, error) {
		return c.api.Subscriptions.Cancel(id, params)
	})
	if err != nil {
		return gateway.Subscription{}, wrapError("cancel subscription", err)
	}
	return toSubscription(sub), nil
}

func (c *Client) GetSubscription(ctx context.Context, id string) (gateway.Subscription, error) {
	params := &stripe.SubscriptionParams{Params: stripe.Params{Context: ctx}}
	expandLatestInvoice(&params.Params)

	sub, err := observe("get_subscription", func() (*stripe.Subscription, error) {
		return c.api.Subscriptions.Get(id, params)
	})
	if err != nil {
		return gateway.Subscription{}, wrapError("get subscription", err)
	}
	return toSubscription(sub), nil
}

func expandLatestInvoice(p *stripe.Params) {
	p.AddExpand("latest_invoice.confirmation_secret")
	p.AddExpand("latest_invoice.payments")
}

// observe records latency and outcome of one SDK call.
func observe[T any](op string, call func() (T, error)) (T, error) {
	start := time.Now()
	v, err := call()

	outcome := "ok"
	if err != nil {
		outcome = string(classify(err).Kind)
	}
	metrics.GatewayRequestDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
	return v, err
}
