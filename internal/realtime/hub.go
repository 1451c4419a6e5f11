package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub maintains room -> set of connections and fans events out. Rooms are
// transient: a room exists only while at least one connection is joined.
//
// Events are marshaled once per dispatch; marshal failures are logged and
// dropped so a bad payload can never corrupt room bookkeeping.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]*Client
	clients map[string]*Client
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:   make(map[string]map[string]*Client),
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Add starts tracking a connection. The connection is not in any room yet.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("connection added", zap.String("conn_id", c.ID), zap.String("user_id", c.UserID))
}

// Remove drops a connection from every room and from the hub, and closes its
// send channel so the write pump exits.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	for room := range c.rooms {
		h.removeFromRoomLocked(room, c.ID)
	}
	c.rooms = make(map[string]struct{})
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	h.mu.Unlock()
	h.logger.Debug("connection removed", zap.String("conn_id", c.ID), zap.String("user_id", c.UserID))
}

// JoinRoom joins a connection to a room. It reports whether membership
// changed; joining an already-joined room is a no-op.
func (h *Hub) JoinRoom(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := c.rooms[room]; ok {
		return false
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][c.ID] = c
	c.rooms[room] = struct{}{}
	return true
}

// LeaveRoom removes a connection from a room. It reports whether membership
// changed; leaving a room the connection is not in is a no-op.
func (h *Hub) LeaveRoom(c *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := c.rooms[room]; !ok {
		return false
	}
	delete(c.rooms, room)
	h.removeFromRoomLocked(room, c.ID)
	return true
}

func (h *Hub) removeFromRoomLocked(room, connID string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// InRoom reports whether a connection is currently joined to a room.
func (h *Hub) InRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := c.rooms[room]
	return ok
}

// Rooms returns the rooms a connection is joined to.
func (h *Hub) Rooms(c *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// RoomMembers returns the members currently joined to a room, deduplicated
// by user (multiple devices of one member count once).
func (h *Hub) RoomMembers(room string) []UserRef {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	members := make([]UserRef, 0, len(h.rooms[room]))
	for _, c := range h.rooms[room] {
		if _, ok := seen[c.UserID]; ok {
			continue
		}
		seen[c.UserID] = struct{}{}
		members = append(members, UserRef{ID: c.UserID, Name: c.DisplayName})
	}
	return members
}

// BroadcastToRoom sends an event to every connection in a room.
func (h *Hub) BroadcastToRoom(room string, event any) {
	data, ok := h.marshal(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		c.trySend(data)
	}
}

// BroadcastToRoomExcept sends an event to every connection in a room except
// one (typically the originator).
func (h *Hub) BroadcastToRoomExcept(room, exceptConnID string, event any) {
	data, ok := h.marshal(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.rooms[room] {
		if id == exceptConnID {
			continue
		}
		c.trySend(data)
	}
}

// BroadcastToRooms fans an event out to each of the given rooms. A
// connection joined to several target rooms receives the event once.
func (h *Hub) BroadcastToRooms(rooms []string, event any) {
	data, ok := h.marshal(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := make(map[string]struct{})
	for _, room := range rooms {
		for id, c := range h.rooms[room] {
			if _, dup := delivered[id]; dup {
				continue
			}
			delivered[id] = struct{}{}
			c.trySend(data)
		}
	}
}

// BroadcastAll sends an event to every live connection.
func (h *Hub) BroadcastAll(event any) {
	data, ok := h.marshal(event)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.trySend(data)
	}
}

// SendToClient sends an event to a single connection.
func (h *Hub) SendToClient(connID string, event any) {
	data, ok := h.marshal(event)
	if !ok {
		return
	}
	h.mu.RLock()
	c := h.clients[connID]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	c.trySend(data)
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll force-closes every live connection. Used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func (h *Hub) marshal(event any) ([]byte, bool) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("marshal event", zap.Error(err))
		return nil, false
	}
	return data, true
}
