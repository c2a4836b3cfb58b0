package repository

import (
	"context"

	"github.com/layoffproof/layoff-tracker/internal/domain"
)

type NotificationRepository interface {
	// Create returns the already stored notification when one with the same
	// user, kind and non-empty SourceID exists.
	Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}
