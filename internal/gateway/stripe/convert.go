package stripegw

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/layoffproof/layoff-tracker/internal/domain"
	"github.com/layoffproof/layoff-tracker/internal/gateway"
	stripe "github.com/stripe/stripe-go/v82"
)

// classify maps an SDK error onto the gateway error taxonomy. Anything that is
// not a *stripe.Error never reached the API and counts as a network failure.
func classify(err error) *gateway.Error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return &gateway.Error{Kind: gateway.KindNetwork, Err: err}
	}

	gwErr := &gateway.Error{
		Code:       string(stripeErr.Code),
		StatusCode: stripeErr.HTTPStatusCode,
		RequestID:  stripeErr.RequestID,
		Err:        err,
	}
	switch {
	case stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound:
		gwErr.Kind = gateway.KindNotFound
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized || stripeErr.HTTPStatusCode == http.StatusForbidden:
		gwErr.Kind = gateway.KindAuth
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
		gwErr.Kind = gateway.KindRateLimit
	case stripeErr.Type == stripe.ErrorTypeInvalidRequest || stripeErr.Type == stripe.ErrorTypeCard ||
		stripeErr.HTTPStatusCode == http.StatusBadRequest || stripeErr.HTTPStatusCode == http.StatusPaymentRequired:
		gwErr.Kind = gateway.KindValidation
	default:
		gwErr.Kind = gateway.KindOther
	}
	return gwErr
}

func wrapError(op string, err error) error {
	gwErr := classify(err)
	gwErr.Op = op
	return gwErr
}

func toSetupIntent(si *stripe.SetupIntent) gateway.SetupIntent {
	out := gateway.SetupIntent{
		ID:           si.ID,
		ClientSecret: si.ClientSecret,
		Status:       string(si.Status),
	}
	if si.Customer != nil {
		out.CustomerID = si.Customer.ID
	}
	return out
}

func toPaymentIntent(pi *stripe.PaymentIntent) gateway.PaymentIntent {
	out := gateway.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	return out
}

func toSubscription(sub *stripe.Subscription) gateway.Subscription {
	out := gateway.Subscription{
		ID:         sub.ID,
		Status:     domain.SubscriptionStatus(sub.Status),
		CanceledAt: unixTime(sub.CanceledAt),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.DefaultPaymentMethod != nil {
		out.DefaultPaymentMethodID = sub.DefaultPaymentMethod.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
		out.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
	}

	if inv := sub.LatestInvoice; inv != nil {
		out.LatestInvoiceID = inv.ID
		if inv.ConfirmationSecret != nil {
			out.ClientSecret = inv.ConfirmationSecret.ClientSecret
		}
		if inv.Payments != nil {
			for _, p := range inv.Payments.Data {
				if p != nil && p.Payment != nil && p.Payment.PaymentIntent != nil {
					out.PaymentIntentID = p.Payment.PaymentIntent.ID
					if out.ClientSecret == "" {
						out.ClientSecret = p.Payment.PaymentIntent.ClientSecret
					}
					break
				}
			}
		}
	}
	return out
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// leveledLogger routes SDK log output through slog.
type leveledLogger struct {
	logger *slog.Logger
}

func (l *leveledLogger) Debugf(format string, v ...any) { l.logger.Debug(fmt.Sprintf(format, v...)) }
func (l *leveledLogger) Infof(format string, v ...any)  { l.logger.Debug(fmt.Sprintf(format, v...)) }
func (l *leveledLogger) Warnf(format string, v ...any)  { l.logger.Warn(fmt.Sprintf(format, v...)) }
func (l *leveledLogger) Errorf(format string, v ...any) { l.logger.Error(fmt.Sprintf(format, v...)) }
