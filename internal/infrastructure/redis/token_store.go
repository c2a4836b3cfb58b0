package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layoffproof/layoff-tracker/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "magic:"

type storedToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// MagicTokenStore keeps each token under its own key with a TTL equal to its
// validity window. GETDEL makes a claim single-use without a transaction.
type MagicTokenStore struct {
	client *goredis.Client
	now    func() time.Time
}

func NewMagicTokenStore(client *goredis.Client) *MagicTokenStore {
	return &MagicTokenStore{client: client, now: time.Now}
}

func (s *MagicTokenStore) CreateMagicToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	now := s.now()
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return fmt.Errorf("store magic token: expiry %s is not in the future", expiresAt)
	}

	payload, err := json.Marshal(storedToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("encode magic token: %w", err)
	}

	ok, err := s.client.SetNX(ctx, tokenKeyPrefix+tokenHash, payload, ttl).Result()
	if err != nil {
		return fmt.Errorf("store magic token: %w", err)
	}
	if !ok {
		return fmt.Errorf("store magic token: hash collision")
	}
	return nil
}

func (s *MagicTokenStore) ClaimMagicToken(ctx context.Context, tokenHash string) (*domain.MagicToken, error) {
	raw, err := s.client.GetDel(ctx, tokenKeyPrefix+tokenHash).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("claim magic token: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode magic token: %w", err)
	}

	now := s.now()
	mt := &domain.MagicToken{
		ID:        st.ID,
		UserID:    st.UserID,
		TokenHash: tokenHash,
		ExpiresAt: st.ExpiresAt,
		UsedAt:    &now,
		CreatedAt: st.CreatedAt,
	}
	// Key TTL has second granularity; enforce the exact window here.
	if mt.Expired(now) {
		return nil, domain.ErrTokenInvalid
	}
	return mt, nil
}

// PurgeExpired is a no-op: Redis expires keys on its own.
func (s *MagicTokenStore) PurgeExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}
