package domain

import (
	"errors"
	"time"
)

// MagicLinkTTL is how long an emailed sign-in link stays valid.
const MagicLinkTTL = 15 * time.Minute

var (
	ErrEmailNotSent = errors.New("email could not be delivered")
	ErrUserNotFound = errors.New("user not found")
	ErrTokenInvalid = errors.New("token is invalid or expired")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidEmail = errors.New("email is missing or malformed")
)

type MagicToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Expired reports whether the token's validity window has closed at now.
func (t *MagicToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
