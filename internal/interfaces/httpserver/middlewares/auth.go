package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	authvalidator "chatdesk/chat-api/internal/infrastructure/auth"
	"chatdesk/chat-api/internal/interfaces/httpserver/responses"
	"chatdesk/chat-api/internal/utils/platformerrors"
)

const (
	principalContextKey = "principal"
	sessionCookieName   = "session"
)

// AuthMiddleware validates the session token carried in the session cookie or
// an Authorization bearer header.
func AuthMiddleware(validator *authvalidator.SessionValidator, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			responses.HandleNewError(c, platformerrors.ErrorTypeUnauthorized, "authentication required", "8d2f6b0e-4a7c-4159-b8d2-1f5a9c3e7b0d")
			return
		}

		principal, err := validator.Validate(c.Request.Context(), token)
		if err != nil {
			logger.Warn().Err(err).Str("path", c.FullPath()).Msg("session validation failed")
			responses.HandleError(c, err, "unauthorized")
			return
		}

		c.Set(principalContextKey, principal)
		c.Set("user_id", principal.UserID)
		c.Request = c.Request.WithContext(authvalidator.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(c *gin.Context) (*authvalidator.Principal, bool) {
	val, ok := c.Get(principalContextKey)
	if !ok {
		return nil, false
	}
	principal, ok := val.(*authvalidator.Principal)
	return principal, ok
}

func tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(sessionCookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if after, found := strings.CutPrefix(header, "Bearer "); found {
		return strings.TrimSpace(after)
	}
	return ""
}
