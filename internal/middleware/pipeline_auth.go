package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "spendwise/internal/errors"
	"spendwise/internal/logger"
)

// APIKeyHeader carries the pipeline key.
const APIKeyHeader = "X-API-Key"

// PipelineAuthMiddleware guards the job-runner endpoints with a shared key.
// An empty apiKey disables them.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	expected := []byte(apiKey)
	log := logger.Named("pipeline")

	return func(c *gin.Context) {
		if len(expected) == 0 {
			abortWithError(c, apperrors.ErrNotConfigured)
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader(APIKeyHeader)), expected) != 1 {
			log.Warnw("rejected pipeline request", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}
