package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"barberbook/internal/pkg/jwt"
	"barberbook/internal/pkg/response"
)

// Auth validates the Bearer token and stores the claims on the context.
func Auth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or malformed Authorization header")
			c.Abort()
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		claims, err := jwtService.ValidateToken(tokenStr)
		if err != nil {
			response.Fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireProvider gates the management endpoints to the provider role.
func RequireProvider() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != "provider" {
			response.Fail(c, http.StatusForbidden, "FORBIDDEN", "Provider access only")
			c.Abort()
			return
		}
		c.Next()
	}
}
