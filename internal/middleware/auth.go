package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"persona-server/internal/models"
)

const (
	// UserIDHeader identifies the chatting user. Authentication happens upstream.
	UserIDHeader = "X-User-ID"
	// UserIDKey is the gin context key holding the user id.
	UserIDKey = "user_id"
)

// RequireUser rejects requests without a user id header.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "missing " + UserIDHeader + " header"})
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// RequireAdmin checks the bearer token against the configured admin token.
// With no token configured every admin request is refused.
func RequireAdmin(token string, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("AdminAuth")
	if token == "" {
		logger.Warn("Admin token is not configured, admin routes are disabled")
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if token == "" || len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), []byte(token)) != 1 {
			logger.Warn("Admin request rejected", zap.String("path", c.Request.URL.Path), zap.String("ip", c.ClientIP()))
			adminAuthFailures.Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: models.ErrUnauthorized.Error()})
			return
		}
		c.Next()
	}
}
