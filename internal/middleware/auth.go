package middleware

import (
	"net/http"
	"strings"

	"docshare/internal/pkg/jwt"
	"docshare/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccessTokenVerifier checks a bearer token and returns its claims.
type AccessTokenVerifier interface {
	VerifyKind(kind jwt.Kind, token string) (*jwt.Claims, error)
}

// JWTAuth requires a valid access token in the Authorization header and
// stores "user_id" (int64) and "role" (string) on the context.
func JWTAuth(verifier AccessTokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.CustomError(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
			response.CustomError(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
			c.Abort()
			return
		}

		claims, err := verifier.VerifyKind(jwt.KindAccess, strings.TrimSpace(parts[1]))
		if err != nil {
			response.CustomError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}
