package app

import (
	"sync"

	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/domain"
)

// RoomManager owns the room table. Rooms are created on first join and
// dropped when the last member leaves.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*core.Room
}

func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[domain.RoomID]*core.Room)}
}

func (m *RoomManager) GetOrCreate(id domain.RoomID) *core.Room {
	m.mu.RLock()
	room, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return room
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok = m.rooms[id]; ok {
		return room
	}
	room = core.NewRoom(id)
	m.rooms[id] = room
	return room
}

func (m *RoomManager) Get(id domain.RoomID) (*core.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

type RoomInfo struct {
	ID          domain.RoomID `json:"id"`
	MemberCount int           `json:"memberCount"`
}

func (m *RoomManager) List() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RoomInfo, 0, len(m.rooms))
	for id, r := range m.rooms {
		out = append(out, RoomInfo{ID: id, MemberCount: r.MemberCount()})
	}
	return out
}

func (m *RoomManager) Drop(id domain.RoomID) {
	m.mu.Lock()
	delete(m.rooms, id)
	m.mu.Unlock()
}
