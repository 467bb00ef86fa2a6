package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wildcard-labs/deck-indexer/internal/logger"
)

// AuthConfig holds authentication configuration for the job trigger
// endpoints
type AuthConfig struct {
	// SharedSecret is the bearer secret cron callers must present. Empty
	// disables the endpoints entirely.
	SharedSecret string
}

// validateSharedSecret checks a bearer Authorization header against the
// configured shared secret
func validateSharedSecret(authHeader string, cfg AuthConfig) error {
	if cfg.SharedSecret == "" {
		return errors.New("job endpoints are not configured")
	}
	if authHeader == "" {
		return errors.New("missing Authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return errors.New("invalid Authorization header format")
	}

	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(cfg.SharedSecret)) != 1 {
		return errors.New("invalid shared secret")
	}
	return nil
}

// CronAuth returns a gin middleware that guards the scheduled job trigger
// endpoints with a shared bearer secret
func CronAuth(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := validateSharedSecret(c.GetHeader("Authorization"), cfg); err != nil {
			logger.Warn("Authentication failed",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication failed",
			})
			return
		}
		c.Next()
	}
}
