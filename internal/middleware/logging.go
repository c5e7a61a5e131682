package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/NikhilSetiya/hello-world-aggregator/pkg/logging"
)

// Header names carrying request identity
const (
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
)

// ContextKeyRequestID is the gin context key holding the request id
const ContextKeyRequestID = "request_id"

// LoggingMiddleware assigns request and correlation ids, stores them on the
// request context and logs every completed request
func LoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = logging.NewCorrelationID()
		}

		correlationID := c.GetHeader(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = requestID
		}

		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		ctx = logging.WithRequestID(ctx, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextKeyRequestID, requestID)

		c.Header(HeaderCorrelationID, correlationID)
		c.Header(HeaderRequestID, requestID)

		c.Next()

		logger.LogRequest(
			c.Request.Context(),
			c.Request.Method,
			c.Request.URL.Path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.Writer.Status(),
			time.Since(start),
		)
	}
}

// ErrorLoggingMiddleware logs errors handlers attached to the gin context
func ErrorLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, err := range c.Errors {
			logger.LogError(
				c.Request.Context(),
				err.Err,
				"Request processing error",
				logrus.Fields{
					"error_type": err.Type,
					"meta":       err.Meta,
				},
			)
		}
	}
}

// RecoveryMiddleware recovers from panics and logs them
func RecoveryMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.LogPanic(
			c.Request.Context(),
			recovered,
			"Request panic recovered",
		)

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "Internal server error",
			},
			"request_id": logging.GetRequestID(c.Request.Context()),
			"timestamp":  time.Now(),
		})
	})
}
