package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layoffproof/layoff-tracker/internal/domain"
)

type MagicTokenRepository struct {
	pool *pgxpool.Pool
}

func NewMagicTokenRepository(pool *pgxpool.Pool) *MagicTokenRepository {
	return &MagicTokenRepository{pool: pool}
}

func (r *MagicTokenRepository) CreateMagicToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO magic_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, tokenHash, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert magic token: %w", err)
	}
	return nil
}

// ClaimMagicToken marks the token used in the same statement that checks it,
// so two concurrent verifications cannot both succeed.
func (r *MagicTokenRepository) ClaimMagicToken(ctx context.Context, tokenHash string) (*domain.MagicToken, error) {
	query := `
		UPDATE magic_tokens
		SET    used_at = NOW()
		WHERE  token_hash = $1
		  AND  used_at IS NULL
		  AND  expires_at > NOW()
		RETURNING id, user_id, token_hash, expires_at, used_at, created_at`

	var mt domain.MagicToken
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&mt.ID, &mt.UserID, &mt.TokenHash, &mt.ExpiresAt, &mt.UsedAt, &mt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("claim magic token: %w", err)
	}
	return &mt, nil
}

func (r *MagicTokenRepository) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM magic_tokens WHERE expires_at < $1 OR used_at IS NOT NULL`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("purge magic tokens: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
