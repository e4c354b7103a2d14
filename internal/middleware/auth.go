package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"medjournal/internal/wallet"
)

// SessionKey is the gin context key the resolved wallet session is stored
// under.
const SessionKey = "session"

// SessionMiddleware creates a Gin middleware that authenticates requests
// against connected wallet sessions.
func SessionMiddleware(manager *wallet.Manager, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer <token>"})
			c.Abort()
			return
		}

		sess, err := manager.Resolve(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
				c.Abort()
				return
			}
			if errors.Is(err, wallet.ErrNoSession) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Wallet is not connected"})
				c.Abort()
				return
			}
			logger.Error("Invalid session token", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(SessionKey, sess)
		c.Next()
	}
}
