// Package store opens the user and token repositories for the configured
// backend.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ErlanBelekov/magic-auth/config"
	"github.com/ErlanBelekov/magic-auth/internal/health"
	"github.com/ErlanBelekov/magic-auth/internal/infrastructure/memory"
	"github.com/ErlanBelekov/magic-auth/internal/infrastructure/mongodb"
	"github.com/ErlanBelekov/magic-auth/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/magic-auth/internal/repository"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Store struct {
	Users  repository.UserRepository
	Tokens repository.TokenRepository

	// Pinger is nil for the memory driver.
	Pinger health.Pinger

	close func()
}

// Close releases the backend connection.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to cfg.StoreDriver and prepares its indexes or schema.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case DriverMongo:
		client, err := mongodb.NewClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		logger.Info("mongo connected", "database", cfg.MongoDatabase)
		return &Store{
			Users:  mongodb.NewUserRepository(db),
			Tokens: mongodb.NewTokenRepository(db),
			Pinger: mongodb.Pinger{Client: client},
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					logger.Error("mongo disconnect", "error", err)
				}
			},
		}, nil

	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("db connected")
		return &Store{
			Users:  postgres.NewUserRepository(pool),
			Tokens: postgres.NewTokenRepository(pool),
			Pinger: pool,
			close:  pool.Close,
		}, nil

	case DriverMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return &Store{
			Users:  memory.NewUserRepository(),
			Tokens: memory.NewTokenRepository(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
