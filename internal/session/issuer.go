// Package session mints and verifies the stateless access/refresh JWT pair
// and moves it in and out of HTTP cookies.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ErlanBelekov/magic-auth/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	TypeAccess  = "access"
	TypeRefresh = "refresh"

	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims is the payload of both credential classes. Typ keeps a refresh
// credential from being accepted where an access credential is expected.
type Claims struct {
	Email string `json:"email,omitempty"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

type Credential struct {
	Token     string
	JTI       string
	ExpiresAt time.Time
}

type Pair struct {
	Access  Credential
	Refresh Credential
}

// CookieWriter is the part of a response the issuer needs. *gin.Context satisfies it.
type CookieWriter interface {
	SetSameSite(samesite http.SameSite)
	SetCookie(name, value string, maxAge int, path, domain string, secure, httpOnly bool)
}

// CookieReader is the part of a request the issuer needs. *gin.Context satisfies it.
type CookieReader interface {
	Cookie(name string) (string, error)
}

type Options struct {
	AccessKey    []byte
	RefreshKey   []byte
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	CookieDomain string
	SecureCookie bool

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

type Issuer struct {
	accessKey    []byte
	refreshKey   []byte
	accessTTL    time.Duration
	refreshTTL   time.Duration
	cookieDomain string
	secure       bool
	now          func() time.Time
}

func NewIssuer(opts Options) (*Issuer, error) {
	if len(opts.AccessKey) == 0 || len(opts.RefreshKey) == 0 {
		return nil, errors.New("session: access and refresh keys are required")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = DefaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = DefaultRefreshTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Issuer{
		accessKey:    opts.AccessKey,
		refreshKey:   opts.RefreshKey,
		accessTTL:    opts.AccessTTL,
		refreshTTL:   opts.RefreshTTL,
		cookieDomain: opts.CookieDomain,
		secure:       opts.SecureCookie,
		now:          opts.Now,
	}, nil
}

func (i *Issuer) IssueAccess(user *domain.User) (Credential, error) {
	return i.sign(i.accessKey, i.accessTTL, TypeAccess, user.ID, user.Email)
}

func (i *Issuer) IssueRefresh(userID string) (Credential, error) {
	return i.sign(i.refreshKey, i.refreshTTL, TypeRefresh, userID, "")
}

func (i *Issuer) IssuePair(user *domain.User) (Pair, error) {
	access, err := i.IssueAccess(user)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.IssueRefresh(user.ID)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (i *Issuer) sign(key []byte, ttl time.Duration, typ, userID, email string) (Credential, error) {
	now := i.now()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := Claims{
		Email: email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return Credential{}, fmt.Errorf("sign %s jwt: %w", typ, err)
	}
	return Credential{Token: signed, JTI: jti, ExpiresAt: exp}, nil
}

// ParseAccess verifies an access credential. Every failure is domain.ErrUnauthorized.
func (i *Issuer) ParseAccess(raw string) (*Claims, error) {
	return i.parse(raw, i.accessKey, TypeAccess)
}

// ParseRefresh verifies a refresh credential. Every failure is domain.ErrUnauthorized.
func (i *Issuer) ParseRefresh(raw string) (*Claims, error) {
	return i.parse(raw, i.refreshKey, TypeRefresh)
}

func (i *Issuer) parse(raw string, key []byte, typ string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: missing %s credential", domain.ErrUnauthorized, typ)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: got %q credential, want %q", domain.ErrUnauthorized, claims.Type, typ)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", domain.ErrUnauthorized)
	}
	return claims, nil
}

// Attach writes both credentials as HttpOnly cookies.
func (i *Issuer) Attach(w CookieWriter, pair Pair) {
	w.SetSameSite(http.SameSiteLaxMode)
	w.SetCookie(AccessCookie, pair.Access.Token, int(i.accessTTL.Seconds()), "/", i.cookieDomain, i.secure, true)
	w.SetCookie(RefreshCookie, pair.Refresh.Token, int(i.refreshTTL.Seconds()), "/", i.cookieDomain, i.secure, true)
}

// Clear expires both credential cookies.
func (i *Issuer) Clear(w CookieWriter) {
	w.SetSameSite(http.SameSiteLaxMode)
	w.SetCookie(AccessCookie, "", -1, "/", i.cookieDomain, i.secure, true)
	w.SetCookie(RefreshCookie, "", -1, "/", i.cookieDomain, i.secure, true)
}

// RefreshToken returns the raw refresh credential carried by r, or "".
func RefreshToken(r CookieReader) string {
	v, err := r.Cookie(RefreshCookie)
	if err != nil {
		return ""
	}
	return v
}

// AccessToken returns the raw access credential carried by r, or "".
func AccessToken(r CookieReader) string {
	v, err := r.Cookie(AccessCookie)
	if err != nil {
		return ""
	}
	return v
}
