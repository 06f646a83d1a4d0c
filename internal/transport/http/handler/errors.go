package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ErlanBelekov/magic-auth/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	errInternalServer   = "Internal server error"
	errUnauthorized     = "Unauthorized"
	errUserNotFound     = "User not found"
	errTokenNotFound    = "Token not found"
	errTokenAlreadyUsed = "Token has already been used"
	errTokenExpired     = "Token has expired"
	errEmailTaken       = "Email is already registered"
	errUsernameTaken    = "Username is already taken"
	errConflict         = "Conflict"
	errDeliveryFailed   = "Could not deliver the sign-in email"
	errMissingToken     = "token query parameter is required"
)

// errorResponse maps a domain error onto a status code and client message.
func errorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errUnauthorized
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, errUserNotFound
	case errors.Is(err, domain.ErrTokenNotFound):
		return http.StatusNotFound, errTokenNotFound
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, errEmailTaken
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict, errUsernameTaken
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, errConflict
	case errors.Is(err, domain.ErrTokenAlreadyUsed):
		return http.StatusConflict, errTokenAlreadyUsed
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusGone, errTokenExpired
	case errors.Is(err, domain.ErrDeliveryFailed):
		return http.StatusBadGateway, errDeliveryFailed
	default:
		return http.StatusInternalServerError, errInternalServer
	}
}

// writeError responds with the mapped error. Unexpected errors are logged
// and carry their detail only when exposeDetail is set.
func writeError(c *gin.Context, logger *slog.Logger, exposeDetail bool, op string, err error) {
	status, msg := errorResponse(err)
	body := gin.H{"error": msg}

	if status >= http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), op, "error", err)
		if exposeDetail {
			body["detail"] = err.Error()
		}
	}
	c.JSON(status, body)
}
