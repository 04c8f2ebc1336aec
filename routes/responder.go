package routes

import (
	"goldenminutes/controllers"
	"goldenminutes/middleware"
	"goldenminutes/models"

	"github.com/gin-gonic/gin"
)

// SetupResponderRoutes configures volunteer and gamification routes
func SetupResponderRoutes(router *gin.RouterGroup, responderController *controllers.ResponderController, gamificationController *controllers.GamificationController, auth *middleware.AuthMiddleware) {
	responders := router.Group("/responders")
	{
		responders.POST("/register", responderController.Register)
		responders.GET("/:id/location", responderController.GetLocation)
	}

	me := responders.Group("/me")
	me.Use(auth.RequireRole(models.RoleVolunteer))
	{
		me.GET("/profile", responderController.GetProfile)
		me.GET("/stats", responderController.GetStats)
		me.POST("/impact", responderController.RecalculateImpact)
		me.GET("/badges", gamificationController.MyBadges)
		me.POST("/availability", responderController.SetAvailability)
		me.POST("/location", responderController.UpdateLocation)
		me.GET("/alerts", responderController.CheckAlerts)
		me.POST("/alerts/ack", responderController.AcknowledgeAlert)
	}

	router.GET("/leaderboard", gamificationController.Leaderboard)
	router.GET("/badges", gamificationController.ListBadges)
	router.GET("/areas", gamificationController.ListAreas)
	router.POST("/training/:moduleId/complete", gamificationController.CompleteTraining)
}
