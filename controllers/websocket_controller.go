package controllers

import (
	"goldenminutes/middleware"
	"goldenminutes/utils"
	"goldenminutes/websocket"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type WebSocketController struct {
	hub *websocket.Hub
}

func NewWebSocketController(hub *websocket.Hub) *WebSocketController {
	return &WebSocketController{hub: hub}
}

// HandleWebSocket upgrades an authenticated request. Browsers cannot set
// headers on the handshake, so the token usually arrives as ?token=.
func (wsc *WebSocketController) HandleWebSocket(c *gin.Context) {
	viewer := middleware.Viewer(c)

	conn, err := websocket.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		logrus.Errorf("Failed to upgrade WebSocket connection for user %s: %v", viewer.UserID, err)
		return
	}

	client := websocket.NewClient(conn, wsc.hub, viewer)
	go client.Serve()
}

// GetConnectionStats reports hub counters (admin only).
func (wsc *WebSocketController) GetConnectionStats(c *gin.Context) {
	utils.SuccessResponse(c, "Connection statistics retrieved successfully", wsc.hub.Stats())
}
