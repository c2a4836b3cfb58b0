package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/layoffproof/layoff-tracker/internal/domain"
	"github.com/layoffproof/layoff-tracker/internal/gateway"
	"github.com/layoffproof/layoff-tracker/internal/metrics"
	"github.com/layoffproof/layoff-tracker/internal/repository"
)

// BillingEventsUsecase keeps the local subscription mirror in step with the
// gateway, from webhooks and from periodic reconciliation.
type BillingEventsUsecase struct {
	users         repository.UserRepository
	subs          repository.SubscriptionRepository
	notifications repository.NotificationRepository
	gateway       gateway.PaymentGateway
	logger        *slog.Logger
}

func NewBillingEventsUsecase(
	users repository.UserRepository,
	subs repository.SubscriptionRepository,
	notifications repository.NotificationRepository,
	gw gateway.PaymentGateway,
	logger *slog.Logger,
) *BillingEventsUsecase {
	return &BillingEventsUsecase{
		users:         users,
		subs:          subs,
		notifications: notifications,
		gateway:       gw,
		logger:        logger.With("component", "billing_events"),
	}
}

// HandleEvent applies a verified webhook event. Events for customers this
// system does not know are acknowledged and ignored.
func (u *BillingEventsUsecase) HandleEvent(ctx context.Context, event gateway.Event) error {
	err := u.handle(ctx, event)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.WebhookEventsTotal.WithLabelValues(event.Type, outcome).Inc()
	return err
}

func (u *BillingEventsUsecase) handle(ctx context.Context, event gateway.Event) error {
	switch event.Type {
	case gateway.EventSubscriptionCreated, gateway.EventSubscriptionUpdated, gateway.EventSubscriptionDeleted:
		if event.Subscription == nil {
			return nil
		}
		return u.mirror(ctx, *event.Subscription)

	case gateway.EventInvoicePaymentFailed:
		if event.Invoice == nil {
			return nil
		}
		return u.notifyPaymentFailed(ctx, *event.Invoice)

	default:
		u.logger.DebugContext(ctx, "ignoring webhook event", "event_id", event.ID, "type", event.Type)
		return nil
	}
}

// Reconcile refreshes up to limit live subscriptions from the gateway and
// returns how many changed status. Successive runs rotate through all live
// subscriptions. A failure on one subscription does not
// stop the others.
func (u *BillingEventsUsecase) Reconcile(ctx context.Context, limit int) (int, error) {
	subs, err := u.subs.ClaimForReconcile(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("claim subscriptions: %w", err)
	}

	changed := 0
	for _, local := range subs {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		gs, err := u.gateway.GetSubscription(ctx, local.StripeSubscriptionID)
		if err != nil {
			u.logger.WarnContext(ctx, "reconcile: fetch subscription",
				"subscription_id", local.StripeSubscriptionID, "error", err)
			continue
		}
		if gs.Status == local.Status {
			continue
		}
		if _, err := u.subs.Upsert(ctx, mirrorOf(local.UserID, gs)); err != nil {
			u.logger.ErrorContext(ctx, "reconcile: mirror subscription",
				"subscription_id", local.StripeSubscriptionID, "error", err)
			continue
		}
		u.logger.InfoContext(ctx, "reconciled subscription",
			"subscription_id", gs.ID, "from", local.Status, "to", gs.Status)
		changed++
	}
	return changed, nil
}

func (u *BillingEventsUsecase) mirror(ctx context.Context, gs gateway.Subscription) error {
	userID, err := u.ownerOf(ctx, gs)
	if errors.Is(err, domain.ErrUserNotFound) {
		u.logger.WarnContext(ctx, "subscription for unknown customer",
			"subscription_id", gs.ID, "customer_id", gs.CustomerID)
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := u.subs.Upsert(ctx, mirrorOf(userID, gs)); err != nil {
		return fmt.Errorf("mirror subscription: %w", err)
	}
	return nil
}

func (u *BillingEventsUsecase) ownerOf(ctx context.Context, gs gateway.Subscription) (string, error) {
	existing, err := u.subs.GetByStripeID(ctx, gs.ID)
	if err == nil {
		return existing.UserID, nil
	}
	if !errors.Is(err, domain.ErrSubscriptionNotFound) {
		return "", fmt.Errorf("find subscription: %w", err)
	}

	user, err := u.users.FindByStripeCustomerID(ctx, gs.CustomerID)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (u *BillingEventsUsecase) notifyPaymentFailed(ctx context.Context, inv gateway.Invoice) error {
	user, err := u.users.FindByStripeCustomerID(ctx, inv.CustomerID)
	if errors.Is(err, domain.ErrUserNotFound) {
		u.logger.WarnContext(ctx, "failed invoice for unknown customer",
			"invoice_id", inv.ID, "customer_id", inv.CustomerID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}

	// Keyed by invoice so a redelivered event notifies once.
	_, err = u.notifications.Create(ctx, &domain.Notification{
		UserID:   user.ID,
		Kind:     domain.NotificationPaymentFailed,
		Title:    "Payment failed",
		SourceID: inv.ID,
		Body: fmt.Sprintf("We could not charge %s for your Layoff Proof subscription. "+
			"Please update your payment method to keep premium access.", formatAmount(inv.AmountDue, inv.Currency)),
	})
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func formatAmount(minor int64, currency string) string {
	currency = gateway.NormalizeCurrency(currency)
	if gateway.ZeroDecimal(currency) {
		return fmt.Sprintf("%d %s", minor, strings.ToUpper(currency))
	}
	return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, strings.ToUpper(currency))
}
