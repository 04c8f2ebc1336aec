package websocket

import (
	"context"
	"sync"
	"time"

	"goldenminutes/events"
	"goldenminutes/models"

	"github.com/sirupsen/logrus"
)

const (
	broadcastBufferSize = 256
	roomCleanupInterval = 5 * time.Minute
)

// Authorizer decides whether viewer may watch an emergency.
type Authorizer func(ctx context.Context, emergencyID string, viewer models.Viewer) error

// volunteerBroadcast lists the events every connected volunteer hears about,
// whether or not they watch the emergency.
var volunteerBroadcast = map[string]bool{
	events.EmergencyTriggered:          true,
	events.ResponseAccepted:            true,
	events.EmergencyResolved:           true,
	events.EmergencyCancelled:          true,
	events.EmergencyBystanderActivated: true,
}

type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Emergency rooms keyed by emergency id
	rooms map[string]*Room

	// User to clients mapping; one user may hold several connections
	userClients map[string]map[*Client]bool

	// Events waiting to be fanned out
	broadcast chan events.Event

	authorize Authorizer

	stats HubStats

	mutex sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

type HubStats struct {
	TotalConnections  int64     `json:"totalConnections"`
	ActiveConnections int       `json:"activeConnections"`
	ActiveRooms       int       `json:"activeRooms"`
	EventsDelivered   int64     `json:"eventsDelivered"`
	EventsDropped     int64     `json:"eventsDropped"`
	MessagesDropped   int64     `json:"messagesDropped"`
	StartTime         time.Time `json:"startTime"`
}

func NewHub(authorize Authorizer) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:     make(map[*Client]bool),
		rooms:       make(map[string]*Room),
		userClients: make(map[string]map[*Client]bool),
		broadcast:   make(chan events.Event, broadcastBufferSize),
		authorize:   authorize,
		stats: HubStats{
			StartTime: time.Now(),
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Run fans queued events out to clients until Shutdown is called.
func (h *Hub) Run() {
	logrus.Info("WebSocket hub started")

	cleanup := time.NewTicker(roomCleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case event := <-h.broadcast:
			h.route(event)

		case <-cleanup.C:
			h.cleanupEmptyRooms()

		case <-h.ctx.Done():
			logrus.Info("WebSocket hub stopped")
			return
		}
	}
}

// Shutdown stops Run and closes every client connection.
func (h *Hub) Shutdown() {
	h.cancel()

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[*Client]bool)
	h.rooms = make(map[string]*Room)
	h.userClients = make(map[string]map[*Client]bool)
}

// HandleEvent is the bus subscriber. It never blocks the publisher: when
// the queue is full the event is dropped.
func (h *Hub) HandleEvent(ctx context.Context, event events.Event) error {
	h.Dispatch(event)
	return nil
}

// Dispatch queues an event for delivery. Events relayed from other
// instances enter here too.
func (h *Hub) Dispatch(event events.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.mutex.Lock()
		h.stats.EventsDropped++
		h.mutex.Unlock()
		logrus.WithFields(logrus.Fields{
			"event":       event.Type,
			"emergencyId": event.EmergencyID,
		}).Warn("WebSocket broadcast queue full, dropping event")
	}
}

func (h *Hub) Register(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	userID := client.viewer.UserID
	if h.userClients[userID] == nil {
		h.userClients[userID] = make(map[*Client]bool)
	}
	h.userClients[userID][client] = true
	h.stats.TotalConnections++

	logrus.WithFields(logrus.Fields{
		"userId":       userID,
		"role":         client.viewer.Role,
		"connectionId": client.connectionID,
	}).Info("WebSocket client connected")
}

// Unregister removes the client everywhere and closes its send channel.
// Calling it twice is harmless.
func (h *Hub) Unregister(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.clients[client] {
		return
	}
	delete(h.clients, client)

	userID := client.viewer.UserID
	if conns := h.userClients[userID]; conns != nil {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.userClients, userID)
		}
	}

	for id, room := range h.rooms {
		room.RemoveClient(client)
		if room.IsEmpty() {
			delete(h.rooms, id)
		}
	}

	close(client.send)

	logrus.WithFields(logrus.Fields{
		"userId":       userID,
		"connectionId": client.connectionID,
		"duration":     time.Since(client.connectedAt).String(),
	}).Info("WebSocket client disconnected")
}

// Subscribe adds the client to an emergency room after checking access.
func (h *Hub) Subscribe(ctx context.Context, client *Client, emergencyID string) error {
	if h.authorize != nil {
		if err := h.authorize(ctx, emergencyID, client.viewer); err != nil {
			return err
		}
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.clients[client] {
		return nil
	}
	room, ok := h.rooms[emergencyID]
	if !ok {
		room = NewRoom(emergencyID)
		h.rooms[emergencyID] = room
	}
	room.AddClient(client)
	return nil
}

func (h *Hub) Unsubscribe(client *Client, emergencyID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, ok := h.rooms[emergencyID]
	if !ok {
		return
	}
	room.RemoveClient(client)
	if room.IsEmpty() {
		delete(h.rooms, emergencyID)
	}
}

func (h *Hub) Stats() HubStats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	stats := h.stats
	stats.ActiveConnections = len(h.clients)
	stats.ActiveRooms = len(h.rooms)
	return stats
}

// route sends the event to everyone concerned, each client at most once.
func (h *Hub) route(event events.Event) {
	h.mutex.RLock()
	targets := h.targetsLocked(event)
	message := eventMessage(event)
	delivered, dropped := 0, 0
	for client := range targets {
		if h.trySendLocked(client, message) {
			delivered++
		} else {
			dropped++
		}
	}
	h.mutex.RUnlock()

	h.mutex.Lock()
	h.stats.EventsDelivered += int64(delivered)
	h.stats.MessagesDropped += int64(dropped)
	h.mutex.Unlock()
}

func (h *Hub) targetsLocked(event events.Event) map[*Client]bool {
	targets := make(map[*Client]bool)

	addUser := func(userID string) {
		if userID == "" {
			return
		}
		for client := range h.userClients[userID] {
			targets[client] = true
		}
	}

	if room, ok := h.rooms[event.EmergencyID]; ok {
		for _, client := range room.Clients() {
			targets[client] = true
		}
	}

	addUser(event.ResponderID)
	if event.Emergency != nil {
		addUser(event.Emergency.VictimID)
		if event.Emergency.PrimaryResponderID != nil {
			addUser(*event.Emergency.PrimaryResponderID)
		}
	}

	for client := range h.clients {
		switch client.viewer.Role {
		case models.RoleAdmin:
			targets[client] = true
		case models.RoleVolunteer:
			if volunteerBroadcast[event.Type] {
				targets[client] = true
			}
		}
	}

	return targets
}

// deliver sends a direct reply to one client.
func (h *Hub) deliver(client *Client, message Message) {
	h.mutex.RLock()
	ok := h.trySendLocked(client, message)
	h.mutex.RUnlock()

	if !ok {
		h.mutex.Lock()
		h.stats.MessagesDropped++
		h.mutex.Unlock()
	}
}

// trySendLocked requires at least the read lock, which keeps Unregister
// from closing the channel underneath the send.
func (h *Hub) trySendLocked(client *Client, message Message) bool {
	if !h.clients[client] {
		return false
	}
	select {
	case client.send <- message:
		return true
	default:
		logrus.Warnf("WebSocket send buffer full for user %s, dropping message", client.viewer.UserID)
		return false
	}
}

func (h *Hub) cleanupEmptyRooms() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for id, room := range h.rooms {
		if room.IsEmpty() {
			delete(h.rooms, id)
		}
	}
}
