package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/catalog_api/internal/models"
	"github.com/GTDGit/catalog_api/internal/utils"
)

// SessionChecker validates an admin bearer token against its live session.
type SessionChecker interface {
	CheckSession(ctx context.Context, token string) (*models.AdminSession, error)
}

type JWTMiddleware struct {
	sessions SessionChecker
}

func NewJWTMiddleware(sessions SessionChecker) *JWTMiddleware {
	return &JWTMiddleware{sessions: sessions}
}

// Handle requires a valid admin token in the Authorization header or, for
// EventSource clients, in the token query parameter.
func (m *JWTMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				utils.Error(c, 401, "UNAUTHORIZED", "Invalid authorization header")
				c.Abort()
				return
			}
			token = strings.TrimSpace(parts[1])
		}
		if token == "" {
			utils.Error(c, 401, "UNAUTHORIZED", "Missing authorization header")
			c.Abort()
			return
		}

		session, err := m.sessions.CheckSession(c.Request.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, utils.ErrSessionExpired):
			utils.Error(c, 401, utils.ErrSessionExpired.Error(), "Session expired, please log in again")
			c.Abort()
			return
		case errors.Is(err, utils.ErrInvalidToken):
			utils.Error(c, 401, utils.ErrInvalidToken.Error(), "Invalid or expired token")
			c.Abort()
			return
		default:
			log.Error().Err(err).Msg("Session check failed")
			utils.Error(c, 503, "SESSION_STORE_UNAVAILABLE", "Unable to verify session")
			c.Abort()
			return
		}

		c.Set("session_id", session.ID)
		c.Set("client_key", session.ClientKey)
		c.Next()
	}
}
