package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/magic-auth/internal/repository"
	"github.com/ErlanBelekov/magic-auth/internal/session"
	"github.com/ErlanBelekov/magic-auth/internal/transport/http/handler"
	"github.com/ErlanBelekov/magic-auth/internal/transport/http/middleware"
	"github.com/ErlanBelekov/magic-auth/internal/usecase"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

type RouterOptions struct {
	// HSTS enables Strict-Transport-Security; off for plain-http local runs.
	HSTS bool
}

func NewRouter(
	logger *slog.Logger,
	authHandler *handler.AuthHandler,
	issuer *session.Issuer,
	userRepo repository.UserRepository,
	opts RouterOptions,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security(opts.HSTS))
	r.Use(sloggin.NewWithConfig(logger, sloggin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		// Verify URLs carry the raw magic-link token in the query string.
		Filters: []sloggin.Filter{sloggin.IgnorePath(usecase.VerifyPath)},
	}))
	r.Use(middleware.Metrics())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	auth := r.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/passwordless/request", authHandler.RequestLink)
	auth.GET("/passwordless/verify", authHandler.Verify)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)

	// Protected routes
	r.GET("/me", middleware.Auth(issuer), middleware.EnsureUser(userRepo, logger), authHandler.Me)

	return r
}
