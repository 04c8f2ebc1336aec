package middleware

import (
	"runtime/debug"

	"goldenminutes/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorHandler recovers panics and renders errors pushed with c.Error
// when the handler has not written a response itself.
type ErrorHandler struct {
	environment string
	logger      *logrus.Logger
}

func NewErrorHandler(environment string, logger *logrus.Logger) *ErrorHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ErrorHandler{
		environment: environment,
		logger:      logger,
	}
}

// Handle returns the error handling middleware
func (eh *ErrorHandler) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				eh.handlePanic(c, rec)
			}
		}()

		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			utils.HandleServiceError(c, c.Errors.Last().Err)
		}
	}
}

func (eh *ErrorHandler) handlePanic(c *gin.Context, rec interface{}) {
	fields := logrus.Fields{
		"panic":      rec,
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"user_id":    utils.GetUserID(c),
	}
	if eh.environment != "production" {
		fields["stack"] = string(debug.Stack())
	}
	eh.logger.WithFields(fields).Error("Panic recovered")

	if !c.Writer.Written() {
		utils.InternalServerErrorResponse(c, "")
	}
	c.Abort()
}
