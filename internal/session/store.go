package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/pkg/cache"
)

var ErrUnknownToken = errors.New("session: unknown token")

// Store maps bearer tokens to sessions.
type Store struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewStore(c cache.Cache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

func (s *Store) Save(ctx context.Context, sess Session) error {
	if !sess.Authenticated() {
		return fmt.Errorf("session: refusing to store unauthenticated session")
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := s.cache.Set(ctx, s.cache.GenerateKey("token", sess.Token), b, s.ttl); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrUnknownToken
	}
	raw, err := s.cache.Get(ctx, s.cache.GenerateKey("token", token))
	if err != nil {
		return Session{}, fmt.Errorf("session: lookup: %w", err)
	}
	if raw == "" {
		return Session{}, ErrUnknownToken
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, fmt.Errorf("session: decode: %w", err)
	}
	return sess, nil
}

func (s *Store) Revoke(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, s.cache.GenerateKey("token", token))
}
