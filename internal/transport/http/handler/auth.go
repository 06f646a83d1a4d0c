package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/magic-auth/internal/session"
	"github.com/ErlanBelekov/magic-auth/internal/usecase"
	"github.com/gin-gonic/gin"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	Register(ctx context.Context, in usecase.RegisterInput) error
	RequestLink(ctx context.Context, email string) error
	VerifyLink(ctx context.Context, rawToken string) (*usecase.VerifyResult, error)
	Refresh(ctx context.Context, rawRefresh string) (session.Pair, error)
	Logout(ctx context.Context, rawRefresh string)
}

// cookieJar moves a session pair in and out of the response.
type cookieJar interface {
	Attach(w session.CookieWriter, pair session.Pair)
	Clear(w session.CookieWriter)
}

type AuthHandler struct {
	authUsecase  authUsecaser
	cookies      cookieJar
	logger       *slog.Logger
	exposeErrors bool
}

func NewAuthHandler(authUsecase authUsecaser, cookies cookieJar, logger *slog.Logger, exposeErrors bool) *AuthHandler {
	return &AuthHandler{
		authUsecase:  authUsecase,
		cookies:      cookies,
		logger:       logger.With("component", "auth_handler"),
		exposeErrors: exposeErrors,
	}
}

type registerRequest struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	LastName  string `json:"lastName"  binding:"required,max=100"`
	Username  string `json:"username"  binding:"required,min=3,max=32"`
	Email     string `json:"email"     binding:"required,email,max=254"`
}

type linkRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.authUsecase.Register(c.Request.Context(), usecase.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
	})
	if err != nil {
		writeError(c, h.logger, h.exposeErrors, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true})
}

// POST /auth/passwordless/request
// Unknown emails get a 404; enumeration is not suppressed.
func (h *AuthHandler) RequestLink(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.authUsecase.RequestLink(c.Request.Context(), req.Email); err != nil {
		writeError(c, h.logger, h.exposeErrors, "request magic link", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /auth/passwordless/verify?token=<raw>
// Sets the session cookies and redirects to the dashboard.
func (h *AuthHandler) Verify(c *gin.Context) {
	rawToken := c.Query("token")
	if rawToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMissingToken})
		return
	}

	res, err := h.authUsecase.VerifyLink(c.Request.Context(), rawToken)
	if err != nil {
		writeError(c, h.logger, h.exposeErrors, "verify magic link", err)
		return
	}

	h.cookies.Attach(c, res.Session)
	c.Redirect(http.StatusFound, res.RedirectTo)
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	pair, err := h.authUsecase.Refresh(c.Request.Context(), session.RefreshToken(c))
	if err != nil {
		writeError(c, h.logger, h.exposeErrors, "refresh session", err)
		return
	}

	h.cookies.Attach(c, pair)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.authUsecase.Logout(c.Request.Context(), session.RefreshToken(c))
	h.cookies.Clear(c)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type meResponse struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Iat   int64  `json:"iat"`
	Exp   int64  `json:"exp"`
}

// GET /me
// Runs behind middleware.Auth, which stores the access claims.
func (h *AuthHandler) Me(c *gin.Context) {
	v, ok := c.Get(ClaimsKey)
	claims, _ := v.(*session.Claims)
	if !ok || claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
		return
	}

	resp := meResponse{Sub: claims.Subject, Email: claims.Email}
	if claims.IssuedAt != nil {
		resp.Iat = claims.IssuedAt.Unix()
	}
	if claims.ExpiresAt != nil {
		resp.Exp = claims.ExpiresAt.Unix()
	}
	c.JSON(http.StatusOK, gin.H{"user": resp})
}

// ClaimsKey is the gin context key under which middleware.Auth stores *session.Claims.
const ClaimsKey = "claims"
