package room

import (
	"fmt"

	"github.com/google/uuid"
)

// Roster is a membership snapshot taken right after a change.
type Roster struct {
	RoomID string
	Names  []string
	Count  int
	// Exists is false when the room is gone from the registry.
	Exists bool
}

func snapshot(r *Room) Roster {
	return Roster{
		RoomID: r.ID,
		Names:  r.Names(),
		Count:  r.Len(),
		Exists: true,
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDGenerator replaces the random room id source.
func WithIDGenerator(next func() string) Option {
	return func(m *Manager) {
		m.newID = next
	}
}

// Manager applies join and leave events to a Registry and enforces the room
// lifecycle: rooms appear on create or first join and vanish with their last
// member.
type Manager struct {
	rooms *Registry
	newID func() string
}

// NewManager returns a Manager mutating rooms.
func NewManager(rooms *Registry, opts ...Option) *Manager {
	m := &Manager{
		rooms: rooms,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry exposes the underlying registry for read-only consumers.
func (m *Manager) Registry() *Registry {
	return m.rooms
}

// CreateRoom reserves a fresh room id without adding anyone to it. The room
// stays registered until someone joins and leaves it, or until restart.
func (m *Manager) CreateRoom() (string, error) {
	id := m.newID()
	if err := m.rooms.Create(id); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	return id, nil
}

// Join adds connID to the room under name, creating the room if needed.
// Names are not required to be unique.
func (m *Manager) Join(roomID, connID, name string) Roster {
	r := m.rooms.Ensure(roomID)
	r.put(connID, name)
	return snapshot(r)
}

// Leave removes connID from the room and drops the room once it is empty.
// Unknown rooms and non-members are ignored, since a disconnect may arrive
// after the room is already gone.
func (m *Manager) Leave(roomID, connID string) Roster {
	r, err := m.rooms.Get(roomID)
	if err != nil {
		return Roster{RoomID: roomID}
	}
	if !r.remove(connID) {
		return snapshot(r)
	}
	if m.rooms.RemoveIfEmpty(roomID) {
		return Roster{RoomID: roomID}
	}
	return snapshot(r)
}

// Roster returns the current membership of a room.
func (m *Manager) Roster(roomID string) (Roster, error) {
	r, err := m.rooms.Get(roomID)
	if err != nil {
		return Roster{RoomID: roomID}, err
	}
	return snapshot(r), nil
}
