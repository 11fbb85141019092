// Package auth guards the engine's boundary routes. Callers are trusted
// internal collaborators (the conversational front-end's tool layer and the
// grant-ceremony web UI) authenticating with service API keys.
package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"delegate-api/internal/logger"
)

var (
	errMissingKey = gin.H{"error": "API key is required"}
	errInvalidKey = gin.H{"error": "Invalid API key"}
)

// RequireAPIKey validates the x-api-key header against the configured service
// keys. Comparison is constant time.
func RequireAPIKey(validKeys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("x-api-key")
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errMissingKey)
			return
		}

		for _, valid := range validKeys {
			if len(valid) == len(apiKey) && subtle.ConstantTimeCompare([]byte(valid), []byte(apiKey)) == 1 {
				c.Next()
				return
			}
		}

		logger.Warn("Rejected request with invalid API key")
		c.AbortWithStatusJSON(http.StatusUnauthorized, errInvalidKey)
	}
}
