package utils

import (
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys set by the auth middleware
const (
	ContextUserID = "userID"
	ContextRole   = "userRole"
)

// GetUserID retrieves the user ID from the Gin context, assuming it is stored as "userID" in context.
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get(ContextUserID); exists {
		if idStr, ok := userID.(string); ok {
			return idStr
		}
	}
	return ""
}

// GetUserRole retrieves the role placed in the context by the auth middleware.
func GetUserRole(c *gin.Context) string {
	if role, exists := c.Get(ContextRole); exists {
		if roleStr, ok := role.(string); ok {
			return roleStr
		}
	}
	return ""
}

// UUID Generation
func GenerateUUID() string {
	return uuid.New().String()
}

func StringSliceContains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func RoundToDecimalPlaces(value float64, places int) float64 {
	multiplier := math.Pow(10, float64(places))
	return math.Round(value*multiplier) / multiplier
}

func TimePtr(t time.Time) *time.Time {
	return &t
}

func Float64Ptr(f float64) *float64 {
	return &f
}

// FormatDuration renders a duration for CLI and log output.
func FormatDuration(duration time.Duration) string {
	switch {
	case duration < time.Second:
		return duration.Round(time.Millisecond).String()
	case duration < time.Minute:
		return duration.Round(10 * time.Millisecond).String()
	default:
		return duration.Round(time.Second).String()
	}
}
