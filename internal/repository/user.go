package repository

import (
	"context"

	"github.com/ErlanBelekov/magic-auth/internal/domain"
)

type UserRepository interface {
	// Create inserts a new user. Duplicate email or username yields
	// domain.ErrEmailTaken or domain.ErrUsernameTaken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	DeleteAll(ctx context.Context) (int64, error)
}
