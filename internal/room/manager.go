package room

import (
	"context"
	"log"
	"sync"

	"liveroom/pkg/interfaces"
)

// Manager owns the live rooms, keyed by lesson-session id. Room state
// itself is only touched from the hub goroutine; the manager's map is
// locked because joins arrive on HTTP handler goroutines.
type Manager struct {
	sessionLog interfaces.SessionLog
	rooms      map[string]*roomEntry
	mu         sync.RWMutex
}

type roomEntry struct {
	room     *Room
	refCount int
}

// NewManager creates a room manager backed by the given session log.
func NewManager(sessionLog interfaces.SessionLog) *Manager {
	return &Manager{
		sessionLog: sessionLog,
		rooms:      make(map[string]*roomEntry),
	}
}

// Join returns the room for roomID, creating it on the first join.
func (m *Manager) Join(roomID string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.rooms[roomID]
	if !exists {
		entry = &roomEntry{room: newRoom(roomID, m.sessionLog)}
		m.rooms[roomID] = entry
		log.Printf("Room created: room=%s", roomID)
	}
	entry.refCount++
	return entry.room
}

// Leave releases one participant's hold on the room. When the last
// participant disconnects the room state is discarded and its session
// log purged; there is no durability beyond the session.
func (m *Manager) Leave(ctx context.Context, roomID string) {
	m.mu.Lock()
	entry, exists := m.rooms[roomID]
	if !exists {
		m.mu.Unlock()
		return
	}
	entry.refCount--
	if entry.refCount > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.rooms, roomID)
	m.mu.Unlock()

	if err := m.sessionLog.Purge(ctx, roomID); err != nil {
		log.Printf("Failed to purge session log: room=%s err=%v", roomID, err)
	}
	log.Printf("Room destroyed: room=%s", roomID)
}

// Get returns the room if it currently exists.
func (m *Manager) Get(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, exists := m.rooms[roomID]
	if !exists {
		return nil, false
	}
	return entry.room, true
}

// Stats reports live room counts for the health endpoint.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	participants := 0
	for _, entry := range m.rooms {
		participants += entry.refCount
	}
	return map[string]int{
		"active_rooms": len(m.rooms),
		"participants": participants,
	}
}
