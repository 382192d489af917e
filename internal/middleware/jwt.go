package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/liveclass-lms/backend/internal/auth"
	"github.com/liveclass-lms/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates the session token and sets user
// claims in context. The token arrives in the Authorization header for API
// calls, or in the session cookie for browser navigations like the OAuth
// redirect legs.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token, _ = c.Cookie(auth.SessionCookie)
		}
		if token == "" {
			response.Unauthorized(c, "missing credentials")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
