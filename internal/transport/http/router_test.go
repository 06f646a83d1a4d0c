package httptransport_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/magic-auth/internal/infrastructure/memory"
	"github.com/ErlanBelekov/magic-auth/internal/session"
	httptransport "github.com/ErlanBelekov/magic-auth/internal/transport/http"
	"github.com/ErlanBelekov/magic-auth/internal/transport/http/handler"
	"github.com/ErlanBelekov/magic-auth/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type outbox struct {
	mu     sync.Mutex
	bodies []string
}

func (o *outbox) Send(_ context.Context, _, _, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bodies = append(o.bodies, body)
	return nil
}

func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.bodies, "no email sent")
	body := o.bodies[len(o.bodies)-1]
	idx := strings.Index(body, "?token=")
	require.NotEqual(t, -1, idx)
	raw, err := url.QueryUnescape(strings.SplitN(body[idx+len("?token="):], `"`, 2)[0])
	require.NoError(t, err)
	return raw
}

type app struct {
	engine *gin.Engine
	users  *memory.UserRepository
	tokens *memory.TokenRepository
	mail   *outbox
}

func newApp(t *testing.T) *app {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	users := memory.NewUserRepository()
	tokens := memory.NewTokenRepository()
	mail := &outbox{}

	issuer, err := session.NewIssuer(session.Options{
		AccessKey:  []byte("router-access-secret-32-chars!!!"),
		RefreshKey: []byte("router-refresh-secret-32-chars!!"),
	})
	require.NoError(t, err)

	uc := usecase.NewAuthUsecase(users, usecase.NewTokenStore(tokens, 15*time.Minute, nil), issuer, mail, logger,
		usecase.AuthOptions{AppBaseURL: "http://auth.test", DashboardURL: "http://app.test/dashboard"})
	h := handler.NewAuthHandler(uc, issuer, logger, true)

	return &app{
		engine: httptransport.NewRouter(logger, h, issuer, users, httptransport.RouterOptions{}),
		users:  users,
		tokens: tokens,
		mail:   mail,
	}
}

func (a *app) do(method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *app) pending(t *testing.T, email string) int64 {
	t.Helper()
	ctx := context.Background()
	u, err := a.users.FindByEmail(ctx, email)
	require.NoError(t, err)
	n, err := a.tokens.CountPending(ctx, u.ID, time.Now())
	require.NoError(t, err)
	return n
}

func verifyTarget(raw string) string {
	return usecase.VerifyPath + "?token=" + url.QueryEscape(raw)
}

func TestRouter_RegisterVerifyMe(t *testing.T) {
	a := newApp(t)

	w := a.do(http.MethodPost, "/auth/register",
		`{"firstName":"Alice","lastName":"Liddell","username":"alice","email":"Alice@Example.com"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.EqualValues(t, 1, a.pending(t, "alice@example.com"))

	raw := a.mail.lastToken(t)

	w = a.do(http.MethodGet, verifyTarget(raw), "")
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "http://app.test/dashboard", w.Header().Get("Location"))

	var access *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.AccessCookie {
			access = c
		}
		assert.True(t, c.HttpOnly, "cookie %s must be HttpOnly", c.Name)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	}
	require.NotNil(t, access)

	w = a.do(http.MethodGet, "/me", "", access)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me struct {
		User struct {
			Sub   string `json:"sub"`
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.NotEmpty(t, me.User.Sub)
	assert.Equal(t, "alice@example.com", me.User.Email)

	// Second use of the same link.
	w = a.do(http.MethodGet, verifyTarget(raw), "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRouter_DuplicateRegistration(t *testing.T) {
	a := newApp(t)

	body := `{"firstName":"Alice","lastName":"Liddell","username":"alice","email":"alice@example.com"}`
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/auth/register", body).Code)

	sameEmail := `{"firstName":"A","lastName":"B","username":"alice2","email":"ALICE@example.com"}`
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/auth/register", sameEmail).Code)

	sameHandle := `{"firstName":"A","lastName":"B","username":"alice","email":"other@example.com"}`
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPost, "/auth/register", sameHandle).Code)
}

func TestRouter_LoginUnknownEmail(t *testing.T) {
	a := newApp(t)

	w := a.do(http.MethodPost, "/auth/passwordless/request", `{"email":"ghost@example.com"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, a.mail.bodies)

	n, err := a.tokens.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "no token may be stored for an unknown email")
}

func TestRouter_LoginRefreshLogout(t *testing.T) {
	a := newApp(t)

	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/auth/register",
		`{"firstName":"Bob","lastName":"Builder","username":"bob","email":"bob@example.com"}`).Code)

	w := a.do(http.MethodPost, "/auth/passwordless/request", `{"email":"bob@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, a.pending(t, "bob@example.com"))

	w = a.do(http.MethodGet, verifyTarget(a.mail.lastToken(t)), "")
	require.Equal(t, http.StatusFound, w.Code)

	cookies := w.Result().Cookies()
	var refresh *http.Cookie
	for _, c := range cookies {
		if c.Name == session.RefreshCookie {
			refresh = c
		}
	}
	require.NotNil(t, refresh)

	w = a.do(http.MethodPost, "/auth/refresh", "", refresh)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, w.Result().Cookies(), 2)

	w = a.do(http.MethodPost, "/auth/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_Verify(t *testing.T) {
	a := newApp(t)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, usecase.VerifyPath, "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, verifyTarget("deadbeef"), "").Code)
}

func TestRouter_MeRequiresSession(t *testing.T) {
	a := newApp(t)

	w := a.do(http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = a.do(http.MethodGet, "/me", "", &http.Cookie{Name: session.AccessCookie, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	a := newApp(t)
	w := a.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, w.Body.String())
}
