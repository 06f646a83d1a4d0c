package middleware

import (
	"net/http"

	"github.com/ErlanBelekov/magic-auth/internal/reqctx"
	"github.com/ErlanBelekov/magic-auth/internal/session"
	"github.com/ErlanBelekov/magic-auth/internal/transport/http/handler"
	"github.com/gin-gonic/gin"
)

const errUnauthorized = "Unauthorized"

// accessParser verifies an access credential. *session.Issuer satisfies it.
type accessParser interface {
	ParseAccess(raw string) (*session.Claims, error)
}

// Auth validates the access_token cookie and sets "userID" and the claims
// in the gin context. The user id is also attached to the request context
// so log lines carry it.
func Auth(parser accessParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := session.AccessToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		claims, err := parser.ParseAccess(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized})
			return
		}

		c.Set("userID", claims.Subject)
		c.Set(handler.ClaimsKey, claims)
		c.Request = c.Request.WithContext(reqctx.WithUserID(c.Request.Context(), claims.Subject))
		c.Next()
	}
}
