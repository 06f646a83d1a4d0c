package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/magic-auth/internal/domain"
)

type TokenRepository interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*domain.MagicToken, error)

	// Claim atomically sets used_at = now on the token with tokenHash, but only
	// if it is unused and expires after now. Returns domain.ErrTokenNotFound
	// when no such token matched; callers use FindByHash to learn why.
	Claim(ctx context.Context, tokenHash string, now time.Time) (*domain.MagicToken, error)

	FindByHash(ctx context.Context, tokenHash string) (*domain.MagicToken, error)
	CountPending(ctx context.Context, userID string, now time.Time) (int64, error)

	// PurgeExpired deletes tokens that expired, or were used, before cutoff.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}
