package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ErlanBelekov/magic-auth/internal/domain"
	"github.com/ErlanBelekov/magic-auth/internal/repository"
)

const (
	defaultTokenTTL = 15 * time.Minute
	tokenBytes      = 32
)

// TokenStore issues and redeems one-time magic-link tokens. Only the SHA-256
// digest of a token is ever persisted.
type TokenStore struct {
	repo repository.TokenRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewTokenStore returns a store issuing tokens valid for ttl (default 15m).
// A nil now uses time.Now.
func NewTokenStore(repo repository.TokenRepository, ttl time.Duration, now func() time.Time) *TokenStore {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TokenStore{repo: repo, ttl: ttl, now: now}
}

func (s *TokenStore) TTL() time.Duration { return s.ttl }

// Issue creates a token for userID and returns its raw value.
func (s *TokenStore) Issue(ctx context.Context, userID string) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	rawToken := hex.EncodeToString(raw)

	expiresAt := s.now().Add(s.ttl)
	if _, err := s.repo.Create(ctx, userID, HashToken(rawToken), expiresAt); err != nil {
		return "", fmt.Errorf("store magic token: %w", err)
	}
	return rawToken, nil
}

// Redeem consumes the token and returns it with UsedAt set. Failures are
// domain.ErrTokenNotFound, domain.ErrTokenExpired or domain.ErrTokenAlreadyUsed.
func (s *TokenStore) Redeem(ctx context.Context, rawToken string) (*domain.MagicToken, error) {
	if rawToken == "" {
		return nil, domain.ErrTokenNotFound
	}
	hash := HashToken(rawToken)
	now := s.now()

	t, err := s.repo.Claim(ctx, hash, now)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, domain.ErrTokenNotFound) {
		return nil, fmt.Errorf("claim magic token: %w", err)
	}

	existing, err := s.repo.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find magic token: %w", err)
	}
	if rerr := existing.RedeemError(now); rerr != nil {
		return nil, rerr
	}
	// The store refused a token that reads as redeemable; treat it as consumed.
	return nil, domain.ErrTokenAlreadyUsed
}

// HashToken returns the hex SHA-256 digest stored in place of rawToken.
func HashToken(rawToken string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken)))
}
