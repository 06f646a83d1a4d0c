package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/ErlanBelekov/magic-auth/internal/domain"
	"github.com/ErlanBelekov/magic-auth/internal/reqctx"
	"github.com/ErlanBelekov/magic-auth/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

func TestRequestID_GeneratesAndPreserves(t *testing.T) {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, reqctx.RequestID(c.Request.Context()))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get("X-Request-ID")
	if generated == "" || w.Body.String() != generated {
		t.Errorf("generated id header %q body %q", generated, w.Body.String())
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("header = %q, want req-123", got)
	}
	if w.Body.String() != "req-123" {
		t.Errorf("context id = %q, want req-123", w.Body.String())
	}
}

func TestSecurity_SetsHeaders(t *testing.T) {
	for _, hsts := range []bool{false, true} {
		r := gin.New()
		r.Use(middleware.Security(hsts))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
			t.Errorf("X-Content-Type-Options = %q", got)
		}
		if got := w.Header().Get("Cache-Control"); got != "no-store" {
			t.Errorf("Cache-Control = %q", got)
		}
		if got := w.Header().Get("Strict-Transport-Security") != ""; got != hsts {
			t.Errorf("hsts=%v but header present=%v", hsts, got)
		}
	}
}

func TestEnsureUser(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"exists", nil, http.StatusOK},
		{"deleted", domain.ErrUserNotFound, http.StatusUnauthorized},
		{"store down", errors.New("connection refused"), http.StatusInternalServerError},
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotID string
			users := &stubUsers{findByID: func(_ context.Context, id string) (*domain.User, error) {
				gotID = id
				if tc.err != nil {
					return nil, tc.err
				}
				return &domain.User{ID: id}, nil
			}}

			r := gin.New()
			r.GET("/", func(c *gin.Context) { c.Set("userID", "user-1") },
				middleware.EnsureUser(users, logger),
				func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
			if gotID != "user-1" {
				t.Errorf("looked up %q, want user-1", gotID)
			}
		})
	}
}
