package routes

import (
	"goldenminutes/controllers"
	"goldenminutes/middleware"
	"goldenminutes/models"

	"github.com/gin-gonic/gin"
)

// SetupEmergencyRoutes configures the SOS lifecycle routes
func SetupEmergencyRoutes(router *gin.RouterGroup, emergencyController *controllers.EmergencyController, auth *middleware.AuthMiddleware, sosLimit gin.HandlerFunc) {
	emergencies := router.Group("/emergencies")
	{
		emergencies.POST("", sosLimit, emergencyController.TriggerSOS)
		emergencies.GET("/active", emergencyController.ListActive)
		emergencies.GET("/:id", emergencyController.GetEmergency)
		emergencies.GET("/:id/timeline", emergencyController.GetTimeline)
		emergencies.GET("/:id/guidance", emergencyController.GetGuidance)

		// Victim or admin
		emergencies.POST("/:id/resolve", emergencyController.Resolve)
		emergencies.POST("/:id/cancel", emergencyController.Cancel)
		emergencies.POST("/:id/notify", emergencyController.Notify)
		emergencies.POST("/:id/bystander", emergencyController.ActivateBystander)
	}

	// Responder actions
	responding := emergencies.Group("/:id")
	responding.Use(auth.RequireRole(models.RoleVolunteer))
	{
		responding.POST("/accept", emergencyController.Accept)
		responding.POST("/decline", emergencyController.Decline)
		responding.POST("/view", emergencyController.View)
		responding.POST("/status", emergencyController.UpdateStatus)
	}

	router.GET("/guidance/:type", emergencyController.GetGuidanceByType)
}
