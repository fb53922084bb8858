package services

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Sender is a single live transport connection. The WebSocket handler wraps
// *websocket.Conn behind this so the registry and engines never touch the
// transport directly.
type Sender interface {
	Send(data []byte) error
}

// Connection binds a physical transport connection to a user and, for game
// sessions, a room.
type Connection struct {
	ID     string
	UserID int64
	RoomID int64 // 0 when the connection is a notification-only session
	sender Sender
}

// Registry tracks live connections and their user/room indexes. One user may
// hold any number of simultaneous connections (multi-tab, multi-device).
// Constructed once per server process and injected everywhere it is needed.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	byUser      map[int64]map[string]struct{}
	byRoom      map[int64]map[string]struct{}
}

// NewRegistry creates an empty connection registry
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]*Connection),
		byUser:      make(map[int64]map[string]struct{}),
		byRoom:      make(map[int64]map[string]struct{}),
	}
}

// Register adds a connection to the global table and the per-user index, and
// to the per-room index when roomID is non-zero. Re-registering an existing
// connection id (a join after a user-session bind) updates its room binding.
func (r *Registry) Register(connID string, userID, roomID int64, sender Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.connections[connID]; ok && existing.RoomID != 0 {
		r.removeFromRoom(existing.RoomID, connID)
	}

	r.connections[connID] = &Connection{ID: connID, UserID: userID, RoomID: roomID, sender: sender}

	if _, ok := r.byUser[userID]; !ok {
		r.byUser[userID] = make(map[string]struct{})
	}
	r.byUser[userID][connID] = struct{}{}

	if roomID != 0 {
		if _, ok := r.byRoom[roomID]; !ok {
			r.byRoom[roomID] = make(map[string]struct{})
		}
		r.byRoom[roomID][connID] = struct{}{}
	}

	log.Debug().
		Str("connection_id", connID).
		Int64("user_id", userID).
		Int64("room_id", roomID).
		Msg("Connection registered")
}

// Unregister removes a connection from all indexes. Unknown ids are a no-op;
// a connection can legitimately close before any bind completes.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connID]
	if !ok {
		return
	}
	delete(r.connections, connID)

	if userConns, ok := r.byUser[conn.UserID]; ok {
		delete(userConns, connID)
		if len(userConns) == 0 {
			delete(r.byUser, conn.UserID)
		}
	}
	if conn.RoomID != 0 {
		r.removeFromRoom(conn.RoomID, connID)
	}

	log.Debug().
		Str("connection_id", connID).
		Int64("user_id", conn.UserID).
		Msg("Connection unregistered")
}

// removeFromRoom must be called with the write lock held
func (r *Registry) removeFromRoom(roomID int64, connID string) {
	roomConns, ok := r.byRoom[roomID]
	if !ok {
		return
	}
	delete(roomConns, connID)
	if len(roomConns) == 0 {
		delete(r.byRoom, roomID)
	}
}

// ConnectionsForUser returns all live connections of a user, regardless of
// room membership.
func (r *Registry) ConnectionsForUser(userID int64) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Connection
	for connID := range r.byUser[userID] {
		if conn, ok := r.connections[connID]; ok {
			out = append(out, conn)
		}
	}
	return out
}

// ConnectionsForRoom returns all live connections bound to a room, optionally
// excluding every connection belonging to one user (echo suppression).
// excludeUserID of 0 excludes nobody.
func (r *Registry) ConnectionsForRoom(roomID, excludeUserID int64) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Connection
	for connID := range r.byRoom[roomID] {
		conn, ok := r.connections[connID]
		if !ok || conn.UserID == excludeUserID {
			continue
		}
		out = append(out, conn)
	}
	return out
}

// IsOnline reports whether the user has at least one live connection
func (r *Registry) IsOnline(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// SendToUser delivers a JSON-encoded payload to every live connection of the
// user. Delivery is best-effort and at-most-once per connection; failed
// writes are logged, not retried.
func (r *Registry) SendToUser(userID int64, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to marshal message")
		return
	}
	for _, conn := range r.ConnectionsForUser(userID) {
		if err := conn.sender.Send(data); err != nil {
			log.Error().
				Err(err).
				Str("connection_id", conn.ID).
				Int64("user_id", userID).
				Msg("Failed to send message")
		}
	}
}

// BroadcastToRoom delivers a JSON-encoded payload to every connection bound
// to the room, optionally excluding one user's connections.
func (r *Registry) BroadcastToRoom(roomID int64, payload any, excludeUserID int64) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Int64("room_id", roomID).Msg("Failed to marshal broadcast")
		return
	}
	for _, conn := range r.ConnectionsForRoom(roomID, excludeUserID) {
		if err := conn.sender.Send(data); err != nil {
			log.Error().
				Err(err).
				Str("connection_id", conn.ID).
				Int64("room_id", roomID).
				Msg("Failed to broadcast message")
		}
	}
}

// SendToConnection delivers a JSON-encoded payload to a single connection,
// used for the room snapshot on join.
func (r *Registry) SendToConnection(connID string, payload any) {
	r.mu.RLock()
	conn, ok := r.connections[connID]
	r.mu.RUnlock()
	if !ok {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("connection_id", connID).Msg("Failed to marshal message")
		return
	}
	if err := conn.sender.Send(data); err != nil {
		log.Error().Err(err).Str("connection_id", connID).Msg("Failed to send message")
	}
}
