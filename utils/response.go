package utils

import (
	"net/http"
	"time"

	"goldenminutes/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Success responses
func SuccessResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func SuccessResponseWithMeta(c *gin.Context, message string, data interface{}, meta *models.MetaData) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Meta:      meta,
		Timestamp: time.Now(),
	})
}

func CreatedResponse(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, models.APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// Error responses
func ErrorResponse(c *gin.Context, statusCode int, message string, details interface{}) {
	errorWithCode(c, statusCode, getErrorCode(statusCode), message, details)
}

func errorWithCode(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Message: message,
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
	})
}

func BadRequestResponse(c *gin.Context, message string) {
	ErrorResponse(c, http.StatusBadRequest, message, nil)
}

func UnauthorizedResponse(c *gin.Context, message string) {
	if message == "" {
		message = "Unauthorized access"
	}
	errorWithCode(c, http.StatusUnauthorized, models.ErrCodeAuthentication, message, nil)
}

func ForbiddenResponse(c *gin.Context, message string) {
	if message == "" {
		message = "Access forbidden"
	}
	errorWithCode(c, http.StatusForbidden, models.ErrCodeAuthorization, message, nil)
}

func RateLimitResponse(c *gin.Context) {
	errorWithCode(c, http.StatusTooManyRequests, models.ErrCodeRateLimit, "Rate limit exceeded", nil)
}

func InternalServerErrorResponse(c *gin.Context, message string) {
	if message == "" {
		message = "Internal server error"
	}
	errorWithCode(c, http.StatusInternalServerError, models.ErrCodeInternal, message, nil)
}

// HandleServiceError writes the envelope for an error returned by a service.
// Errors that are not ServiceErrors are logged and hidden behind a 500.
func HandleServiceError(c *gin.Context, err error) {
	serviceErr, ok := GetServiceError(err)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"error": err.Error(),
		}).Error("Unhandled service error")
		InternalServerErrorResponse(c, "")
		return
	}

	statusCode := serviceErr.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	message := serviceErr.Message
	if statusCode >= http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"path":  c.Request.URL.Path,
			"code":  serviceErr.Code,
			"error": err.Error(),
		}).Error("Service error")
	}

	errorWithCode(c, statusCode, serviceErr.Code, message, serviceErr.Details)
}

// Helper functions
func getErrorCode(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return models.ErrCodeValidation
	case http.StatusUnauthorized:
		return models.ErrCodeAuthentication
	case http.StatusForbidden:
		return models.ErrCodeAuthorization
	case http.StatusNotFound:
		return models.ErrCodeNotFound
	case http.StatusConflict:
		return models.ErrCodeConflict
	case http.StatusPreconditionFailed:
		return models.ErrCodePreconditionFailed
	case http.StatusTooManyRequests:
		return models.ErrCodeRateLimit
	default:
		return models.ErrCodeInternal
	}
}

// HealthCheckResponse creates a health check response
func HealthCheckResponse(services map[string]string, version, uptime string) models.HealthResponse {
	status := "healthy"
	for _, serviceStatus := range services {
		if serviceStatus != "healthy" {
			status = "unhealthy"
			break
		}
	}

	return models.HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
		Version:   version,
		Uptime:    uptime,
	}
}
