package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layoffproof/layoff-tracker/internal/domain"
)

const subscriptionColumns = `
	id, user_id, stripe_subscription_id, stripe_customer_id, price_id, status,
	current_period_end, canceled_at, created_at, updated_at`

type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

// Upsert records the latest gateway view of a subscription keyed by its
// gateway id. A canceled row is never moved back to a live status.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *domain.Subscription) (*domain.Subscription, error) {
	query := `
		INSERT INTO subscriptions (
			user_id, stripe_subscription_id, stripe_customer_id, price_id, status,
			current_period_end, canceled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (stripe_subscription_id) DO UPDATE
		SET    status             = CASE WHEN subscriptions.status = 'canceled'
		                                 THEN subscriptions.status
		                                 ELSE EXCLUDED.status END,
		       price_id           = EXCLUDED.price_id,
		       current_period_end = EXCLUDED.current_period_end,
		       canceled_at        = COALESCE(subscriptions.canceled_at, EXCLUDED.canceled_at),
		       updated_at         = NOW()
		RETURNING ` + subscriptionColumns

	row := r.pool.QueryRow(ctx, query,
		sub.UserID,
		sub.StripeSubscriptionID,
		sub.StripeCustomerID,
		sub.PriceID,
		sub.Status,
		sub.CurrentPeriodEnd,
		sub.CanceledAt,
	)
	saved, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}
	return saved, nil
}

func (r *SubscriptionRepository) LatestForUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	return scanSubscription(r.pool.QueryRow(ctx, query, userID))
}

func (r *SubscriptionRepository) GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE stripe_subscription_id = $1`
	return scanSubscription(r.pool.QueryRow(ctx, query, stripeSubscriptionID))
}

// ClaimForReconcile stamps reconciled_at on the batch it returns. Rows never
// visited come first, then the longest unvisited, so every live row is reached
// even when there are more than limit. Rows locked by a concurrent claim are
// skipped.
func (r *SubscriptionRepository) ClaimForReconcile(ctx context.Context, limit int) ([]*domain.Subscription, error) {
	query := `
		WITH batch AS (
			SELECT id AS claim_id
			FROM subscriptions
			WHERE status NOT IN ('canceled', 'incomplete_expired')
			ORDER BY reconciled_at ASC NULLS FIRST, updated_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE subscriptions s
		SET    reconciled_at = clock_timestamp()
		FROM   batch
		WHERE  s.id = batch.claim_id
		RETURNING ` + subscriptionColumns

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// pgx.Row and pgx.Rows both implement this.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.StripeSubscriptionID, &s.StripeCustomerID, &s.PriceID, &s.Status,
		&s.CurrentPeriodEnd, &s.CanceledAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &s, nil
}
