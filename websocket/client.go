package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"goldenminutes/models"
	"goldenminutes/utils"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024

	// Buffer size for client send channel
	sendBufferSize = 64
)

// Upgrader is shared by the HTTP handler. Origins are checked by the CORS
// layer before the upgrade.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Client struct {
	conn *websocket.Conn
	hub  *Hub

	viewer       models.Viewer
	connectionID string
	connectedAt  time.Time

	// Buffered channel of outbound messages. Only the hub closes it.
	send chan Message

	rateLimiter *utils.SlidingWindowRateLimiter
}

func NewClient(conn *websocket.Conn, hub *Hub, viewer models.Viewer) *Client {
	return &Client{
		conn:         conn,
		hub:          hub,
		viewer:       viewer,
		connectionID: utils.GenerateUUID(),
		connectedAt:  time.Now(),
		send:         make(chan Message, sendBufferSize),
		rateLimiter:  utils.NewSlidingWindowRateLimiter(60, time.Minute),
	}
}

// Serve registers the client and runs both pumps; it returns when the
// connection closes.
func (c *Client) Serve() {
	c.hub.Register(c)
	go c.WritePump()
	c.ReadPump()
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("WebSocket error for user %s: %v", c.viewer.UserID, err)
			}
			return
		}

		if !c.rateLimiter.Allow() {
			c.enqueue(errorMessage(ErrorRateLimit, "Rate limit exceeded", ""))
			continue
		}

		c.handleRequest(data)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logrus.Errorf("Write error for user %s: %v", c.viewer.UserID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleRequest(data []byte) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		c.enqueue(errorMessage(ErrorInvalidMessage, "Invalid message format", ""))
		return
	}

	switch req.Type {
	case TypePing:
		c.enqueue(Message{Type: TypePong, RequestID: req.RequestID, Timestamp: time.Now()})

	case TypeSubscribe:
		if req.EmergencyID == "" {
			c.enqueue(errorMessage(ErrorInvalidMessage, "emergencyId is required", req.RequestID))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.hub.Subscribe(ctx, c, req.EmergencyID); err != nil {
			c.enqueue(errorMessage(ErrorForbidden, "Cannot watch this emergency", req.RequestID))
			return
		}
		c.enqueue(successMessage(map[string]string{"subscribed": req.EmergencyID}, req.RequestID))

	case TypeUnsubscribe:
		c.hub.Unsubscribe(c, req.EmergencyID)
		c.enqueue(successMessage(map[string]string{"unsubscribed": req.EmergencyID}, req.RequestID))

	default:
		c.enqueue(errorMessage(ErrorInvalidMessage, "Unknown message type", req.RequestID))
	}
}

// enqueue drops the message when the client is too slow to keep up.
func (c *Client) enqueue(message Message) {
	c.hub.deliver(c, message)
}
