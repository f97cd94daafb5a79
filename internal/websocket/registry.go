package websocket

import (
	"log"
	"sync"

	"liveroom/pkg/types"
)

// Registry tracks the connections of each room, keyed by role. A room
// has at most one teacher and one student; registering a second
// connection for an occupied role replaces the earlier one, which
// covers the reconnect-before-the-server-noticed case.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Connection // roomID -> role -> connection
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]*Connection),
	}
}

// Register adds a connection to its room's role slot. Returns the
// connection that was displaced, if any; the caller closes it outside
// the registry lock.
func (r *Registry) Register(conn *Connection) (*Connection, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	roomID := conn.RoomID()
	participants := r.rooms[roomID]
	if participants == nil {
		participants = make(map[string]*Connection)
		r.rooms[roomID] = participants
	}

	displaced := participants[conn.Role()]
	participants[conn.Role()] = conn

	if displaced != nil {
		log.Printf("Connection replaced: room=%s role=%s user=%s", roomID, conn.Role(), conn.UserID())
	}
	return displaced, nil
}

// Unregister removes the connection if it is still the one registered
// for its role slot. Idempotent; an old connection cannot evict the
// newer one that replaced it.
func (r *Registry) Unregister(conn *Connection) bool {
	if conn == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	participants, exists := r.rooms[conn.RoomID()]
	if !exists || participants[conn.Role()] != conn {
		return false
	}

	delete(participants, conn.Role())
	if len(participants) == 0 {
		delete(r.rooms, conn.RoomID())
	}
	return true
}

// RoomConnections returns every connection in a room.
func (r *Registry) RoomConnections(roomID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var connections []*Connection
	for _, conn := range r.rooms[roomID] {
		connections = append(connections, conn)
	}
	return connections
}

// Participant returns the room's connection for a role, if present.
func (r *Registry) Participant(roomID, role string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.rooms[roomID][role]
	return conn, exists
}

// Counterpart returns the other participant in the connection's room:
// the student for a teacher connection and vice versa.
func (r *Registry) Counterpart(conn *Connection) (*Connection, bool) {
	other := types.RoleStudent
	if conn.Role() == types.RoleStudent {
		other = types.RoleTeacher
	}
	return r.Participant(conn.RoomID(), other)
}

// Stats reports connection counts for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, participants := range r.rooms {
		total += len(participants)
	}
	return map[string]int{
		"total_connections": total,
		"active_rooms":      len(r.rooms),
	}
}
