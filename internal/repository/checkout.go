package repository

import (
	"context"

	"github.com/layoffproof/layoff-tracker/internal/domain"
)

// CheckoutSessionStore holds at most one checkout session per user.
type CheckoutSessionStore interface {
	Get(ctx context.Context, userID string) (*domain.CheckoutSession, error)
	// Put replaces any existing session of the same user.
	Put(ctx context.Context, session *domain.CheckoutSession) error
	Delete(ctx context.Context, userID string) error
}
