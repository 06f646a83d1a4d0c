package session_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/magic-auth/internal/domain"
	"github.com/ErlanBelekov/magic-auth/internal/session"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	testAccessKey  = "access-secret-at-least-32-characters"
	testRefreshKey = "refresh-secret-at-least-32-characters"
)

var alice = &domain.User{ID: "user-alice", Email: "alice@example.com"}

func newIssuer(t *testing.T, now func() time.Time) *session.Issuer {
	t.Helper()
	iss, err := session.NewIssuer(session.Options{
		AccessKey:    []byte(testAccessKey),
		RefreshKey:   []byte(testRefreshKey),
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   7 * 24 * time.Hour,
		SecureCookie: true,
		Now:          now,
	})
	require.NoError(t, err)
	return iss
}

type cookieRecorder struct {
	sameSite http.SameSite
	cookies  map[string]http.Cookie
}

func (r *cookieRecorder) SetSameSite(s http.SameSite) { r.sameSite = s }

func (r *cookieRecorder) SetCookie(name, value string, maxAge int, path, domain string, secure, httpOnly bool) {
	if r.cookies == nil {
		r.cookies = make(map[string]http.Cookie)
	}
	r.cookies[name] = http.Cookie{
		Name: name, Value: value, MaxAge: maxAge, Path: path, Domain: domain,
		Secure: secure, HttpOnly: httpOnly, SameSite: r.sameSite,
	}
}

func (r *cookieRecorder) Cookie(name string) (string, error) {
	c, ok := r.cookies[name]
	if !ok {
		return "", http.ErrNoCookie
	}
	return c.Value, nil
}

func TestNewIssuer_RequiresKeys(t *testing.T) {
	_, err := session.NewIssuer(session.Options{AccessKey: []byte(testAccessKey)})
	require.Error(t, err)
}

func TestIssuePair_RoundTrip(t *testing.T) {
	iss := newIssuer(t, nil)

	pair, err := iss.IssuePair(alice)
	require.NoError(t, err)

	access, err := iss.ParseAccess(pair.Access.Token)
	require.NoError(t, err)
	require.Equal(t, alice.ID, access.Subject)
	require.Equal(t, alice.Email, access.Email)
	require.Equal(t, session.TypeAccess, access.Type)

	refresh, err := iss.ParseRefresh(pair.Refresh.Token)
	require.NoError(t, err)
	require.Equal(t, alice.ID, refresh.Subject)
	require.Equal(t, pair.Refresh.JTI, refresh.ID)
	require.Empty(t, refresh.Email)

	require.True(t, pair.Refresh.ExpiresAt.After(pair.Access.ExpiresAt))
}

func TestParseRefresh_RejectsAccessCredential(t *testing.T) {
	iss := newIssuer(t, nil)
	access, err := iss.IssueAccess(alice)
	require.NoError(t, err)

	_, err = iss.ParseRefresh(access.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestParseAccess_RejectsRefreshCredential(t *testing.T) {
	iss := newIssuer(t, nil)
	refresh, err := iss.IssueRefresh(alice.ID)
	require.NoError(t, err)

	_, err = iss.ParseAccess(refresh.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestParseRefresh_TypeCheckedEvenWithSharedKey(t *testing.T) {
	iss, err := session.NewIssuer(session.Options{
		AccessKey:  []byte(testAccessKey),
		RefreshKey: []byte(testAccessKey),
	})
	require.NoError(t, err)

	access, err := iss.IssueAccess(alice)
	require.NoError(t, err)

	_, err = iss.ParseRefresh(access.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestParseRefresh_RejectsTampered(t *testing.T) {
	iss := newIssuer(t, nil)
	refresh, err := iss.IssueRefresh(alice.ID)
	require.NoError(t, err)

	parts := strings.Split(refresh.Token, ".")
	require.Len(t, parts, 3)
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, session.Claims{
		Type:             session.TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-mallory", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	forgedToken, err := forged.SignedString([]byte(testRefreshKey))
	require.NoError(t, err)
	forgedParts := strings.Split(forgedToken, ".")

	// Swap in another payload while keeping the original signature.
	tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]
	_, err = iss.ParseRefresh(tampered)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = iss.ParseRefresh("not.a.jwt")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = iss.ParseRefresh("")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestParseRefresh_RejectsExpired(t *testing.T) {
	issuedAt := time.Now().Add(-8 * 24 * time.Hour)
	old := newIssuer(t, func() time.Time { return issuedAt })
	refresh, err := old.IssueRefresh(alice.ID)
	require.NoError(t, err)

	_, err = newIssuer(t, nil).ParseRefresh(refresh.Token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestParseAccess_RejectsNoneAlgorithm(t *testing.T) {
	iss := newIssuer(t, nil)
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, session.Claims{
		Type:             session.TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: alice.ID, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = iss.ParseAccess(raw)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAttachAndClear(t *testing.T) {
	iss := newIssuer(t, nil)
	pair, err := iss.IssuePair(alice)
	require.NoError(t, err)

	rec := &cookieRecorder{}
	iss.Attach(rec, pair)

	access := rec.cookies[session.AccessCookie]
	require.Equal(t, pair.Access.Token, access.Value)
	require.True(t, access.HttpOnly)
	require.True(t, access.Secure)
	require.Equal(t, "/", access.Path)
	require.Equal(t, http.SameSiteLaxMode, access.SameSite)
	require.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)

	require.Equal(t, pair.Refresh.Token, session.RefreshToken(rec))
	require.Equal(t, pair.Access.Token, session.AccessToken(rec))

	iss.Clear(rec)
	require.Empty(t, session.RefreshToken(rec))
	require.Equal(t, -1, rec.cookies[session.RefreshCookie].MaxAge)
	require.Equal(t, -1, rec.cookies[session.AccessCookie].MaxAge)
}

func TestRefreshToken_MissingCookie(t *testing.T) {
	require.Empty(t, session.RefreshToken(&cookieRecorder{}))
}
