package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenAlreadyUsed = errors.New("token has already been used")
	ErrTokenExpired     = errors.New("token has expired")
	ErrConflict         = errors.New("conflict")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrDeliveryFailed   = errors.New("email delivery failed")
)

var (
	ErrEmailTaken    = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrUsernameTaken = fmt.Errorf("%w: username already taken", ErrConflict)
)

type User struct {
	ID        string
	FirstName string
	LastName  string
	Username  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MagicToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Redeemable reports whether the token can still be exchanged for a session at now.
func (t *MagicToken) Redeemable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// RedeemError classifies why a token that could not be claimed was rejected.
// Expiry wins over prior use.
func (t *MagicToken) RedeemError(now time.Time) error {
	switch {
	case !now.Before(t.ExpiresAt):
		return ErrTokenExpired
	case t.UsedAt != nil:
		return ErrTokenAlreadyUsed
	default:
		return nil
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
