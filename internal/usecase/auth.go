package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layoffproof/layoff-tracker/internal/domain"
	"github.com/layoffproof/layoff-tracker/internal/metrics"
	"github.com/layoffproof/layoff-tracker/internal/repository"
)

const defaultJWTTTL = 24 * time.Hour

// MagicLinkMailer delivers sign-in links. It reports success as a bool and
// never returns transport errors.
type MagicLinkMailer interface {
	SendMagicLink(ctx context.Context, to, link string) bool
}

type AuthUsecase struct {
	users         repository.UserRepository
	tokens        repository.MagicTokenRepository
	mailer        MagicLinkMailer
	jwtKey        []byte
	tokenTTL      time.Duration
	jwtTTL        time.Duration
	magicLinkBase string
	now           func() time.Time
}

func NewAuthUsecase(
	users repository.UserRepository,
	tokens repository.MagicTokenRepository,
	mailer MagicLinkMailer,
	jwtKey []byte,
	magicLinkBase string,
) *AuthUsecase {
	return &AuthUsecase{
		users:         users,
		tokens:        tokens,
		mailer:        mailer,
		jwtKey:        jwtKey,
		tokenTTL:      domain.MagicLinkTTL,
		jwtTTL:        defaultJWTTTL,
		magicLinkBase: strings.TrimRight(magicLinkBase, "/"),
		now:           time.Now,
	}
}

// NormalizeEmail trims and lowercases an address, rejecting anything that is
// not a bare mailbox.
func NormalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || addr.Name != "" {
		return "", domain.ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// RequestMagicLink finds or creates the user, generates a secure token,
// stores its hash, and emails the verify link. Every call issues a fresh
// token with its own expiry window; earlier tokens stay valid.
func (u *AuthUsecase) RequestMagicLink(ctx context.Context, emailAddr string) error {
	addr, err := NormalizeEmail(emailAddr)
	if err != nil {
		return err
	}

	user, err := u.users.FindOrCreate(ctx, addr)
	if err != nil {
		return fmt.Errorf("find or create user: %w", err)
	}

	raw := make([]byte, 32)
	if _, err = io.ReadFull(rand.Reader, raw); err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	rawToken := hex.EncodeToString(raw)

	expiresAt := u.now().Add(u.tokenTTL)
	if err = u.tokens.CreateMagicToken(ctx, user.ID, hashToken(rawToken), expiresAt); err != nil {
		return fmt.Errorf("store magic token: %w", err)
	}

	link := u.magicLinkBase + "/auth/verify?token=" + url.QueryEscape(rawToken)
	if !u.mailer.SendMagicLink(ctx, addr, link) {
		return domain.ErrEmailNotSent
	}
	metrics.MagicLinksIssuedTotal.Inc()
	return nil
}

// VerifyMagicLink hashes the raw token, atomically claims it, and returns a signed JWT.
func (u *AuthUsecase) VerifyMagicLink(ctx context.Context, rawToken string) (string, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		metrics.MagicLinksVerifiedTotal.WithLabelValues("invalid").Inc()
		return "", domain.ErrTokenInvalid
	}

	mt, err := u.tokens.ClaimMagicToken(ctx, hashToken(rawToken))
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			metrics.MagicLinksVerifiedTotal.WithLabelValues("invalid").Inc()
			return "", domain.ErrTokenInvalid
		}
		return "", fmt.Errorf("claim magic token: %w", err)
	}

	user, err := u.users.FindByID(ctx, mt.UserID)
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}

	signed, err := u.issueJWT(user)
	if err != nil {
		return "", err
	}
	metrics.MagicLinksVerifiedTotal.WithLabelValues("ok").Inc()
	return signed, nil
}

// PurgeExpiredTokens removes spent and expired tokens from the store.
func (u *AuthUsecase) PurgeExpiredTokens(ctx context.Context) (int, error) {
	n, err := u.tokens.PurgeExpired(ctx, u.now())
	if err != nil {
		return 0, fmt.Errorf("purge magic tokens: %w", err)
	}
	return n, nil
}

func (u *AuthUsecase) issueJWT(user *domain.User) (string, error) {
	now := u.now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(u.jwtTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(u.jwtKey)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
