package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ErlanBelekov/magic-auth/internal/domain"
	"github.com/google/uuid"
)

type TokenRepository struct {
	mu     sync.Mutex
	byHash map[string]*domain.MagicToken
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{byHash: make(map[string]*domain.MagicToken)}
}

func (r *TokenRepository) Create(_ context.Context, userID, tokenHash string, expiresAt time.Time) (*domain.MagicToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byHash[tokenHash]; ok {
		return nil, domain.ErrConflict
	}

	t := &domain.MagicToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	r.byHash[tokenHash] = t
	return clone(t), nil
}

// Claim checks and marks the token under a single lock, so concurrent
// callers observe exactly one winner.
func (r *TokenRepository) Claim(_ context.Context, tokenHash string, now time.Time) (*domain.MagicToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byHash[tokenHash]
	if !ok || !t.Redeemable(now) {
		return nil, domain.ErrTokenNotFound
	}
	usedAt := now
	t.UsedAt = &usedAt
	return clone(t), nil
}

func (r *TokenRepository) FindByHash(_ context.Context, tokenHash string) (*domain.MagicToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byHash[tokenHash]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return clone(t), nil
}

func (r *TokenRepository) CountPending(_ context.Context, userID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, t := range r.byHash {
		if t.UserID == userID && t.Redeemable(now) {
			n++
		}
	}
	return n, nil
}

func (r *TokenRepository) PurgeExpired(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, t := range r.byHash {
		if t.ExpiresAt.Before(cutoff) || (t.UsedAt != nil && t.UsedAt.Before(cutoff)) {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}

func (r *TokenRepository) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := int64(len(r.byHash))
	r.byHash = make(map[string]*domain.MagicToken)
	return n, nil
}

func clone(t *domain.MagicToken) *domain.MagicToken {
	out := *t
	if t.UsedAt != nil {
		usedAt := *t.UsedAt
		out.UsedAt = &usedAt
	}
	return &out
}
