package ws

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/commune-dev/commune-api/internal/models"
	"github.com/commune-dev/commune-api/internal/service"
)

// Hub tracks connected clients and their room subscriptions. A client holds
// one socket but may be subscribed to any number of rooms; subscriptions
// mirror persisted memberships and are rebuilt on reconnect.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[int64]map[*Client]struct{}
	logger  *zap.Logger
	metrics *service.MetricsService
}

// NewHub constructs an empty hub.
func NewHub(logger *zap.Logger, metrics *service.MetricsService) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[int64]map[*Client]struct{}),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.ConnectionOpened()
}

// Unregister drops the client from every room and closes its send channel.
// Returns the room ids the client was subscribed to.
func (h *Hub) Unregister(c *Client) []int64 {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return nil
	}
	delete(h.clients, c)

	var roomIDs []int64
	for roomID, members := range h.rooms {
		if _, ok := members[c]; ok {
			delete(members, c)
			roomIDs = append(roomIDs, roomID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	roomCount := len(h.rooms)
	h.mu.Unlock()

	c.closeSend()

	h.metrics.ConnectionClosed()
	h.metrics.SetRoomCount(roomCount)
	return roomIDs
}

// Subscribe attaches the client to a room's broadcast set.
func (h *Hub) Subscribe(c *Client, roomID int64) {
	h.mu.Lock()
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[roomID] = members
	}
	members[c] = struct{}{}
	roomCount := len(h.rooms)
	h.mu.Unlock()

	h.metrics.SetRoomCount(roomCount)
}

// Unsubscribe detaches the client from a room's broadcast set.
func (h *Hub) Unsubscribe(c *Client, roomID int64) {
	h.mu.Lock()
	if members, ok := h.rooms[roomID]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	roomCount := len(h.rooms)
	h.mu.Unlock()

	h.metrics.SetRoomCount(roomCount)
}

// BroadcastToRoom sends the event to every client subscribed to the room.
func (h *Hub) BroadcastToRoom(roomID int64, event models.RealtimeEnvelope) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal room broadcast", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(payload)
	}
}

// BroadcastAll sends the event to every connected client.
func (h *Hub) BroadcastAll(event models.RealtimeEnvelope) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal broadcast", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(payload)
	}
}

// RoomSubscribers returns how many clients are subscribed to a room.
func (h *Hub) RoomSubscribers(roomID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
