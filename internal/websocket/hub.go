package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a change notification pushed to the members of one location.
type Message struct {
	Type       string         `json:"type"`
	Entity     string         `json:"entity"`
	Action     string         `json:"action"`
	LocationID int64          `json:"location_id"`
	ID         int64          `json:"id,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, locationID, id int64, extra map[string]any) Message {
	return Message{
		Type:       fmt.Sprintf("%s_%s", entity, action),
		Entity:     entity,
		Action:     action,
		LocationID: locationID,
		ID:         id,
		Extra:      extra,
	}
}

// Hub tracks connected clients per location and fans messages out to the
// clients watching that location only.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.locationID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.locationID] = room
	}
	room[c] = struct{}{}
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	room, ok := h.rooms[c.locationID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.locationID)
	}
}

// Broadcast sends msg to every client watching msg.LocationID.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[msg.LocationID] {
		select {
		case c.send <- data:
		default:
			// client buffer full, drop
		}
	}
}

// Evict disconnects clients of a location who lost access. userID 0
// evicts everyone, used when the location itself is deleted.
func (h *Hub) Evict(locationID, userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for c := range h.rooms[locationID] {
		if userID == 0 || c.userID == userID {
			h.removeLocked(c)
			n++
		}
	}
	return n
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}
