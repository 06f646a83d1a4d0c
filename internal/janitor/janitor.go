// Package janitor removes spent magic-link tokens on a cron schedule and
// implements the administrative bulk clear.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/magic-auth/internal/metrics"
	"github.com/ErlanBelekov/magic-auth/internal/repository"
	"github.com/robfig/cron/v3"
)

const DefaultRetention = 24 * time.Hour

type Janitor struct {
	tokens    repository.TokenRepository
	users     repository.UserRepository
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func New(tokens repository.TokenRepository, users repository.UserRepository, retention time.Duration, logger *slog.Logger) *Janitor {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Janitor{
		tokens:    tokens,
		users:     users,
		retention: retention,
		logger:    logger.With("component", "janitor"),
		now:       time.Now,
	}
}

// Start purges on every tick of schedule until ctx is done. An in-flight purge
// is allowed to finish.
func (j *Janitor) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { j.purge(ctx) }); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}

	j.logger.Info("janitor started", "schedule", schedule, "retention", j.retention)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	j.logger.Info("janitor shut down")
	return nil
}

// Purge deletes tokens that expired or were used more than the retention
// window ago.
func (j *Janitor) Purge(ctx context.Context) (int64, error) {
	n, err := j.tokens.PurgeExpired(ctx, j.now().Add(-j.retention))
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	metrics.TokensPurgedTotal.Add(float64(n))
	return n, nil
}

func (j *Janitor) purge(ctx context.Context) {
	n, err := j.Purge(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "janitor purge", "error", err)
		return
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "janitor purged tokens", "count", n)
	}
}

// ClearAll deletes every token and then every user.
func (j *Janitor) ClearAll(ctx context.Context) (users, tokens int64, err error) {
	tokens, err = j.tokens.DeleteAll(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("delete tokens: %w", err)
	}
	users, err = j.users.DeleteAll(ctx)
	if err != nil {
		return 0, tokens, fmt.Errorf("delete users: %w", err)
	}
	j.logger.WarnContext(ctx, "cleared all users and tokens", "users", users, "tokens", tokens)
	return users, tokens, nil
}
