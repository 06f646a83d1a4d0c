package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/magic-auth/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tokenColumns = `id::text, user_id::text, token_hash, expires_at, used_at, created_at`

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*domain.MagicToken, error) {
	query := `
		INSERT INTO magic_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING ` + tokenColumns

	t, err := scanToken(r.pool.QueryRow(ctx, query, userID, tokenHash, expiresAt))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return t, nil
}

// Claim is a single conditional UPDATE; row locking guarantees at most one
// caller sees a returned row.
func (r *TokenRepository) Claim(ctx context.Context, tokenHash string, now time.Time) (*domain.MagicToken, error) {
	query := `
		UPDATE magic_tokens
		SET    used_at = $2
		WHERE  token_hash = $1
		  AND  used_at IS NULL
		  AND  expires_at > $2
		RETURNING ` + tokenColumns

	t, err := scanToken(r.pool.QueryRow(ctx, query, tokenHash, now))
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TokenRepository) FindByHash(ctx context.Context, tokenHash string) (*domain.MagicToken, error) {
	return scanToken(r.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM magic_tokens WHERE token_hash = $1`, tokenHash))
}

func (r *TokenRepository) CountPending(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM magic_tokens
		WHERE user_id::text = $1 AND used_at IS NULL AND expires_at > $2`,
		userID, now,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending tokens: %w", err)
	}
	return n, nil
}

func (r *TokenRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM magic_tokens WHERE expires_at < $1 OR used_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("purge magic tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *TokenRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM magic_tokens`)
	if err != nil {
		return 0, fmt.Errorf("delete magic tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*domain.MagicToken, error) {
	var t domain.MagicToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("scan magic token: %w", err)
	}
	return &t, nil
}
