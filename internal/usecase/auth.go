package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ErlanBelekov/magic-auth/internal/domain"
	"github.com/ErlanBelekov/magic-auth/internal/email"
	"github.com/ErlanBelekov/magic-auth/internal/metrics"
	"github.com/ErlanBelekov/magic-auth/internal/repository"
	"github.com/ErlanBelekov/magic-auth/internal/session"
)

const (
	ModeRegister = "register"
	ModeLogin    = "login"

	VerifyPath = "/auth/passwordless/verify"
)

// EventPublisher delivers auth lifecycle events. Publishing is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// RefreshDenylist revokes refresh credentials before they expire.
type RefreshDenylist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) error { return nil }

type AuthOptions struct {
	AppBaseURL   string
	DashboardURL string

	// Optional.
	Events   EventPublisher
	Denylist RefreshDenylist
}

type AuthUsecase struct {
	users        repository.UserRepository
	tokens       *TokenStore
	issuer       *session.Issuer
	email        email.Sender
	events       EventPublisher
	denylist     RefreshDenylist
	logger       *slog.Logger
	appBaseURL   string
	dashboardURL string
}

func NewAuthUsecase(
	users repository.UserRepository,
	tokens *TokenStore,
	issuer *session.Issuer,
	emailSender email.Sender,
	logger *slog.Logger,
	opts AuthOptions,
) *AuthUsecase {
	events := opts.Events
	if events == nil {
		events = nopPublisher{}
	}
	return &AuthUsecase{
		users:        users,
		tokens:       tokens,
		issuer:       issuer,
		email:        emailSender,
		events:       events,
		denylist:     opts.Denylist,
		logger:       logger.With("component", "auth_usecase"),
		appBaseURL:   strings.TrimRight(opts.AppBaseURL, "/"),
		dashboardURL: opts.DashboardURL,
	}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
}

type VerifyResult struct {
	User       *domain.User
	Session    session.Pair
	RedirectTo string
}

// Register creates the user and emails a sign-in link.
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) error {
	user := &domain.User{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Username:  strings.TrimSpace(in.Username),
		Email:     domain.NormalizeEmail(in.Email),
	}

	if err := u.ensureAvailable(ctx, user); err != nil {
		return err
	}

	// The unique indexes still arbitrate concurrent registrations.
	created, err := u.users.Create(ctx, user)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	u.logger.InfoContext(ctx, "user registered", "user_id", created.ID)
	u.publish(ctx, domain.EventUserRegistered, created)

	return u.sendLink(ctx, created, ModeRegister)
}

func (u *AuthUsecase) ensureAvailable(ctx context.Context, user *domain.User) error {
	if _, err := u.users.FindByEmail(ctx, user.Email); err == nil {
		return domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("find user by email: %w", err)
	}

	if _, err := u.users.FindByUsername(ctx, user.Username); err == nil {
		return domain.ErrUsernameTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("find user by username: %w", err)
	}
	return nil
}

// RequestLink emails a sign-in link to an existing user. Unknown emails fail
// with domain.ErrUserNotFound and create no token.
func (u *AuthUsecase) RequestLink(ctx context.Context, emailAddr string) error {
	user, err := u.users.FindByEmail(ctx, domain.NormalizeEmail(emailAddr))
	if err != nil {
		return fmt.Errorf("find user by email: %w", err)
	}
	return u.sendLink(ctx, user, ModeLogin)
}

// sendLink issues a token and emails it. A delivery failure leaves the token
// in place; it is single-use and expires on its own.
func (u *AuthUsecase) sendLink(ctx context.Context, user *domain.User, mode string) error {
	rawToken, err := u.tokens.Issue(ctx, user.ID)
	if err != nil {
		return err
	}
	metrics.LinksIssuedTotal.WithLabelValues(mode).Inc()

	link := u.appBaseURL + VerifyPath + "?token=" + url.QueryEscape(rawToken)
	subject := "Your sign-in link"
	if mode == ModeRegister {
		subject = "Confirm your account"
	}
	body := fmt.Sprintf(
		`<p>Click the link below to sign in (expires in %d minutes):</p><p><a href="%s">%s</a></p>`,
		int(u.tokens.TTL().Minutes()), link, link,
	)

	if err := u.email.Send(ctx, user.Email, subject, body); err != nil {
		metrics.EmailDeliveryFailuresTotal.Inc()
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}

	u.publish(ctx, domain.EventLinkRequested, user)
	return nil
}

// VerifyLink redeems the token and mints a session for its owner. Token
// errors are returned as-is.
func (u *AuthUsecase) VerifyLink(ctx context.Context, rawToken string) (*VerifyResult, error) {
	mt, err := u.tokens.Redeem(ctx, rawToken)
	metrics.RedemptionsTotal.WithLabelValues(redemptionOutcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	user, err := u.users.FindByID(ctx, mt.UserID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	pair, err := u.issuer.IssuePair(user)
	if err != nil {
		return nil, err
	}

	u.logger.InfoContext(ctx, "session started", "user_id", user.ID)
	u.publish(ctx, domain.EventSessionStarted, user)

	return &VerifyResult{User: user, Session: pair, RedirectTo: u.dashboardURL}, nil
}

// Refresh exchanges a valid refresh credential for a new pair. Every
// verification failure is domain.ErrUnauthorized.
func (u *AuthUsecase) Refresh(ctx context.Context, rawRefresh string) (session.Pair, error) {
	pair, err := u.refresh(ctx, rawRefresh)
	switch {
	case err == nil:
		metrics.RefreshesTotal.WithLabelValues("success").Inc()
	case errors.Is(err, domain.ErrUnauthorized):
		metrics.RefreshesTotal.WithLabelValues("unauthorized").Inc()
	default:
		metrics.RefreshesTotal.WithLabelValues("error").Inc()
	}
	return pair, err
}

func (u *AuthUsecase) refresh(ctx context.Context, rawRefresh string) (session.Pair, error) {
	claims, err := u.issuer.ParseRefresh(rawRefresh)
	if err != nil {
		return session.Pair{}, err
	}

	if u.denylist != nil {
		revoked, err := u.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return session.Pair{}, fmt.Errorf("check refresh revocation: %w", err)
		}
		if revoked {
			return session.Pair{}, fmt.Errorf("%w: refresh credential revoked", domain.ErrUnauthorized)
		}
	}

	user, err := u.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return session.Pair{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
		}
		return session.Pair{}, fmt.Errorf("find user: %w", err)
	}

	pair, err := u.issuer.IssuePair(user)
	if err != nil {
		return session.Pair{}, err
	}

	u.revoke(ctx, claims)
	return pair, nil
}

// Logout revokes the presented refresh credential when a denylist is
// configured. It never fails; clearing cookies is the caller's job.
func (u *AuthUsecase) Logout(ctx context.Context, rawRefresh string) {
	if u.denylist == nil || rawRefresh == "" {
		return
	}
	claims, err := u.issuer.ParseRefresh(rawRefresh)
	if err != nil {
		return
	}
	u.revoke(ctx, claims)
}

func (u *AuthUsecase) revoke(ctx context.Context, claims *session.Claims) {
	if u.denylist == nil || claims.ExpiresAt == nil {
		return
	}
	if err := u.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		u.logger.WarnContext(ctx, "revoke refresh credential", "jti", claims.ID, "error", err)
	}
}

func (u *AuthUsecase) publish(ctx context.Context, typ domain.EventType, user *domain.User) {
	ev := domain.Event{Type: typ, UserID: user.ID, Email: user.Email, OccurredAt: time.Now().UTC()}
	if err := u.events.Publish(ctx, ev); err != nil {
		u.logger.WarnContext(ctx, "publish auth event", "type", typ, "error", err)
	}
}

func redemptionOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrTokenNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrTokenAlreadyUsed):
		return "already_used"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	default:
		return "error"
	}
}
