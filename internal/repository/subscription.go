package repository

import (
	"context"

	"github.com/layoffproof/layoff-tracker/internal/domain"
)

type SubscriptionRepository interface {
	Upsert(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error)
	// LatestForUser returns the most recently created subscription of the user.
	LatestForUser(ctx context.Context, userID string) (*domain.Subscription, error)
	GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error)
	// ClaimForReconcile returns up to limit live subscriptions, least recently
	// reconciled first, and marks them reconciled so the next call moves on.
	ClaimForReconcile(ctx context.Context, limit int) ([]*domain.Subscription, error)
}
