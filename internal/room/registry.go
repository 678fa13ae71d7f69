// Package room owns the in-memory room state: which connections belong to
// which room, and under which display name.
//
// Nothing in this package locks. Callers serialize access, which the server
// does by touching rooms only from the hub's event loop.
package room

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

var (
	// ErrRoomNotFound is returned when a room id is not in the registry.
	ErrRoomNotFound = errors.New("room not found")
	// ErrDuplicateRoom is returned when creating a room whose id is taken.
	ErrDuplicateRoom = errors.New("room already exists")
)

// Room is a named group of connections. Members keep their join order so the
// roster is displayed in the order people arrived.
type Room struct {
	ID    string
	order []string
	names map[string]string
}

func newRoom(id string) *Room {
	return &Room{
		ID:    id,
		names: make(map[string]string),
	}
}

// Len returns the number of members.
func (r *Room) Len() int {
	return len(r.order)
}

// Has reports whether connID is a member.
func (r *Room) Has(connID string) bool {
	_, ok := r.names[connID]
	return ok
}

// Name returns the display name of a member.
func (r *Room) Name(connID string) (string, bool) {
	name, ok := r.names[connID]
	return name, ok
}

// ConnectionIDs returns the member connection ids in join order.
func (r *Room) ConnectionIDs() []string {
	return append([]string(nil), r.order...)
}

// Names returns the member display names in join order.
func (r *Room) Names() []string {
	return lo.Map(r.order, func(connID string, _ int) string {
		return r.names[connID]
	})
}

// put inserts or renames a member. A rename keeps the original position.
func (r *Room) put(connID, name string) {
	if _, exists := r.names[connID]; !exists {
		r.order = append(r.order, connID)
	}
	r.names[connID] = name
}

func (r *Room) remove(connID string) bool {
	if _, exists := r.names[connID]; !exists {
		return false
	}
	delete(r.names, connID)
	r.order = lo.Without(r.order, connID)
	return true
}

// Registry maps room ids to rooms. It is the only owner of Room values.
type Registry struct {
	rooms map[string]*Room
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Create inserts an empty room under id.
func (g *Registry) Create(id string) error {
	if _, exists := g.rooms[id]; exists {
		return fmt.Errorf("create %q: %w", id, ErrDuplicateRoom)
	}
	g.rooms[id] = newRoom(id)
	return nil
}

// Ensure returns the room for id, creating an empty one if needed.
func (g *Registry) Ensure(id string) *Room {
	if r, ok := g.rooms[id]; ok {
		return r
	}
	r := newRoom(id)
	g.rooms[id] = r
	return r
}

// Get returns the room for id or ErrRoomNotFound.
func (g *Registry) Get(id string) (*Room, error) {
	r, ok := g.rooms[id]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", id, ErrRoomNotFound)
	}
	return r, nil
}

// RemoveIfEmpty deletes the room when it has no members and reports whether
// it did so.
func (g *Registry) RemoveIfEmpty(id string) bool {
	r, ok := g.rooms[id]
	if !ok || r.Len() > 0 {
		return false
	}
	delete(g.rooms, id)
	return true
}

// Len returns the number of rooms.
func (g *Registry) Len() int {
	return len(g.rooms)
}

// IDs returns the sorted room ids.
func (g *Registry) IDs() []string {
	ids := lo.Keys(g.rooms)
	sort.Strings(ids)
	return ids
}
