package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"automax/internal/pkg/jwt"
	"automax/internal/pkg/response"
)

// SessionCookie carries the signed session token for browser clients.
const SessionCookie = "sessionid"

// SessionAuth verifies the session token from an Authorization bearer header
// or the session cookie and sets user_id in the context.
func SessionAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, code, msg := sessionToken(c)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, code, msg)
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Next()
	}
}

func sessionToken(c *gin.Context) (token, code, msg string) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
			return "", "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'"
		}
		return strings.TrimSpace(parts[1]), "", ""
	}

	if cookie, err := c.Cookie(SessionCookie); err == nil && cookie != "" {
		return cookie, "", ""
	}
	return "", "AUTH_HEADER_MISSING", "Authorization header or session cookie is required"
}
