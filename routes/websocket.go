package routes

import (
	"goldenminutes/controllers"
	"goldenminutes/middleware"

	"github.com/gin-gonic/gin"
)

// SetupWebSocketRoutes configures the realtime event feed
func SetupWebSocketRoutes(router *gin.Engine, wsController *controllers.WebSocketController, auth *middleware.AuthMiddleware) {
	router.GET("/ws", auth.RequireAuth(), wsController.HandleWebSocket)
}
