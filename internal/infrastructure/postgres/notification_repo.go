package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layoffproof/layoff-tracker/internal/domain"
)

const notificationColumns = `id, user_id, kind, title, body, COALESCE(source_id, ''), read_at, created_at`

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	var sourceID *string
	if n.SourceID != "" {
		sourceID = &n.SourceID
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO notifications (user_id, kind, title, body, source_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, kind, source_id) WHERE source_id IS NOT NULL DO NOTHING
		RETURNING `+notificationColumns,
		n.UserID, n.Kind, n.Title, n.Body, sourceID,
	)
	created, err := scanNotification(row)
	if errors.Is(err, domain.ErrNotificationNotFound) && sourceID != nil {
		return scanNotification(r.pool.QueryRow(ctx, `
			SELECT `+notificationColumns+`
			FROM   notifications
			WHERE  user_id = $1 AND kind = $2 AND source_id = $3`,
			n.UserID, n.Kind, n.SourceID,
		))
	}
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return created, nil
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+notificationColumns+`
		FROM   notifications
		WHERE  user_id = $1
		  AND  ($2 = FALSE OR read_at IS NULL)
		ORDER BY created_at DESC, id DESC
		LIMIT  $3`,
		userID, unreadOnly, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, NOW()) WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.SourceID, &n.ReadAt, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	return &n, nil
}
