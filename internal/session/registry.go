package session

import "sync"

// Registry owns the room id -> Room mapping. A room is registered by the
// first join for its id (creation and first-participant insertion are one
// atomic step) and retired when its participant count returns to zero, so no
// room is ever registered empty and no state survives an empty->active cycle.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for id, creating it on miss. Callers must not
// hold the returned room across separate inbound events; re-fetch per
// operation.
func (reg *Registry) GetOrCreate(id string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.getOrCreateLocked(id)
}

func (reg *Registry) Get(id string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[id]
	return r, ok
}

// Remove drops a room unconditionally. Idempotent.
func (reg *Registry) Remove(id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, id)
	setRooms(len(reg.rooms))
}

// Join atomically creates the room on first join and inserts the
// participant, then lets the room emit its join broadcasts. Holding the
// registry lock here means a concurrent leave can never retire the room
// between creation and insertion.
func (reg *Registry) Join(id string, c *Client, userName string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room := reg.getOrCreateLocked(id)
	room.Join(c, userName)
	return room
}

// Leave removes the connection from the room, retiring the room when it
// empties. No-op when the room does not exist or the connection never
// joined. Reports whether the room was closed.
func (reg *Registry) Leave(id, connID string) (left, closed bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[id]
	if !ok {
		return false, false
	}
	left, remaining := room.Leave(connID)
	if remaining == 0 {
		delete(reg.rooms, id)
		setRooms(len(reg.rooms))
		return left, true
	}
	return left, false
}

func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

func (reg *Registry) getOrCreateLocked(id string) *Room {
	if r, ok := reg.rooms[id]; ok {
		return r
	}
	r := NewRoom(id)
	reg.rooms[id] = r
	setRooms(len(reg.rooms))
	return r
}
