// Package memory holds process-local stores for short-lived state.
package memory

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/layoffproof/layoff-tracker/internal/domain"
)

const DefaultMaxSessions = 10_000

// SessionStore keeps checkout sessions in an expiring LRU. Sessions vanish
// after ttl without activity, or earlier when the store is full.
type SessionStore struct {
	cache *lru.LRU[string, domain.CheckoutSession]
}

func NewSessionStore(maxSessions int, ttl time.Duration) *SessionStore {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &SessionStore{
		cache: lru.NewLRU[string, domain.CheckoutSession](maxSessions, nil, ttl),
	}
}

func (s *SessionStore) Get(_ context.Context, userID string) (*domain.CheckoutSession, error) {
	session, ok := s.cache.Get(userID)
	if !ok {
		return nil, domain.ErrNoCheckoutSession
	}
	return &session, nil
}

// Put stores a copy, so later changes to session by the caller are not visible.
func (s *SessionStore) Put(_ context.Context, session *domain.CheckoutSession) error {
	if session == nil || session.UserID == "" {
		return errors.New("checkout session requires a user id")
	}
	s.cache.Add(session.UserID, *session)
	return nil
}

func (s *SessionStore) Delete(_ context.Context, userID string) error {
	s.cache.Remove(userID)
	return nil
}

func (s *SessionStore) Len() int {
	return s.cache.Len()
}
