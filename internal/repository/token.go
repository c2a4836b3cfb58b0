package repository

import (
	"context"
	"time"

	"github.com/layoffproof/layoff-tracker/internal/domain"
)

// MagicTokenRepository stores hashed sign-in tokens. Implementations must make
// ClaimMagicToken atomic: a token can be claimed once, and only before it expires.
// Claiming one token leaves every other token untouched.
type MagicTokenRepository interface {
	CreateMagicToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ClaimMagicToken(ctx context.Context, tokenHash string) (*domain.MagicToken, error)
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}
