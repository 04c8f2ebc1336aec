package websocket

import "sync"

// Room holds the clients watching one emergency.
type Room struct {
	EmergencyID string

	clients map[*Client]bool
	mutex   sync.RWMutex
}

func NewRoom(emergencyID string) *Room {
	return &Room{
		EmergencyID: emergencyID,
		clients:     make(map[*Client]bool),
	}
}

func (r *Room) AddClient(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.clients[client] = true
}

func (r *Room) RemoveClient(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	delete(r.clients, client)
}

func (r *Room) Clients() []*Client {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

func (r *Room) IsEmpty() bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.clients) == 0
}
