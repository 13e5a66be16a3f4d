// Package auth guards the service endpoints called by trusted backends
// (the Discord bot, the dashboard). Callers authenticate with a shared
// service token; end users never hold one.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireServiceToken rejects requests whose Authorization bearer token
// does not match the configured service token. An empty configured token
// disables the check, which is only sensible in local development.
func RequireServiceToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		supplied := bearerToken(c.GetHeader("Authorization"))
		if supplied == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "service token required. Include 'Authorization: Bearer <token>' header.",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "invalid service token",
			})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
