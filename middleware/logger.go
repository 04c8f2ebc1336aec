package middleware

import (
	"fmt"
	"strings"
	"time"

	"goldenminutes/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const RequestIDHeader = "X-Request-ID"

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Logger        *logrus.Logger
	SkipPaths     []string
	SlowThreshold time.Duration
}

// LoggerMiddleware assigns a request id and writes one structured line per
// request.
func LoggerMiddleware(config LoggerConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	if config.SlowThreshold == 0 {
		config.SlowThreshold = 2 * time.Second
	}

	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)

		if shouldSkipPath(c.Request.URL.Path, config.SkipPaths) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		fields := logrus.Fields{
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": float64(duration.Nanoseconds()) / 1e6,
			"ip":         c.ClientIP(),
		}
		if userID := utils.GetUserID(c); userID != "" {
			fields["user_id"] = userID
			fields["role"] = utils.GetUserRole(c)
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		logRequest(config.Logger, c.Writer.Status(), duration, config.SlowThreshold, fields)
	}
}

// DefaultLoggerMiddleware returns a logger middleware with default configuration
func DefaultLoggerMiddleware() gin.HandlerFunc {
	return LoggerMiddleware(LoggerConfig{
		Logger:    logrus.StandardLogger(),
		SkipPaths: []string{"/health"},
	})
}

func logRequest(logger *logrus.Logger, statusCode int, duration, slow time.Duration, fields logrus.Fields) {
	message := fmt.Sprintf("%s %s %d %s", fields["method"], fields["path"], statusCode, duration)

	entry := logger.WithFields(fields)
	switch {
	case statusCode >= 500:
		entry.Error(message)
	case statusCode >= 400:
		entry.Warn(message)
	case duration > slow:
		entry.Warn(message + " (slow request)")
	default:
		entry.Info(message)
	}
}

func shouldSkipPath(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}
