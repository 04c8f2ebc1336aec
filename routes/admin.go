package routes

import (
	"goldenminutes/controllers"
	"goldenminutes/middleware"
	"goldenminutes/models"

	"github.com/gin-gonic/gin"
)

// SetupAdminRoutes configures admin-only routes
func SetupAdminRoutes(router *gin.RouterGroup, adminController *controllers.AdminController, wsController *controllers.WebSocketController, auth *middleware.AuthMiddleware) {
	admin := router.Group("/admin")
	admin.Use(auth.RequireRole(models.RoleAdmin))

	volunteers := admin.Group("/volunteers")
	{
		volunteers.POST("/:userId/approve", adminController.ApproveVolunteer)
		volunteers.POST("/:userId/reject", adminController.RejectVolunteer)
	}

	sweeps := admin.Group("/sweeps")
	{
		sweeps.GET("/stats", adminController.SweepStats)
		sweeps.POST("/:job", adminController.RunSweep)
	}

	admin.GET("/analytics", adminController.Analytics)
	admin.POST("/areas", adminController.UpsertArea)
	admin.GET("/ws/stats", wsController.GetConnectionStats)
}
