package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "spendwise/internal/errors"
	"spendwise/internal/jobs"
)

// RateLimit rejects requests once the authenticated user has exhausted their
// bucket in throttle. It must run after AuthMiddleware; anonymous requests
// share one bucket per client IP.
func RateLimit(throttle *jobs.KeyedThrottle) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if userID := c.GetString(UserIDKey); userID != "" {
			key = "user:" + userID
		}
		if !throttle.Allow(key) {
			abortWithError(c, apperrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}
