package controllers

import (
	"context"
	"net/http"
	"time"

	"goldenminutes/database"
	"goldenminutes/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

const Version = "1.0.0"

type HealthController struct {
	redis     *redis.Client
	usesMongo bool
	startTime time.Time
}

// NewHealthController reports mongo only when usesMongo is set, and redis
// only when a client is configured.
func NewHealthController(redisClient *redis.Client, usesMongo bool) *HealthController {
	return &HealthController{
		redis:     redisClient,
		usesMongo: usesMongo,
		startTime: time.Now(),
	}
}

func (hc *HealthController) HealthCheck(c *gin.Context) {
	services := map[string]string{"api": "healthy"}

	if hc.usesMongo {
		services["database"] = database.Status()
	}

	if hc.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := hc.redis.Ping(ctx).Err(); err != nil {
			services["redis"] = "unhealthy"
		} else {
			services["redis"] = "healthy"
		}
	}

	response := utils.HealthCheckResponse(services, Version, utils.FormatDuration(time.Since(hc.startTime)))
	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, response)
}
