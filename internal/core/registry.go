package core

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Registry is the single source of truth for the rooms this client knows
// about. Rooms are keyed by server-assigned id, never by display name, and
// are listed in the order they were added.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	order []string
	log   *zerolog.Logger

	notifier
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		log:   logger,
	}
}

// UpsertRoom registers a room. It is idempotent: when id is already known
// the existing room, including its message log, is kept untouched and
// added is false.
func (r *Registry) UpsertRoom(id, name string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, coreError(ErrCodeInvalidRoom, "room id is required", ErrInvalidRoom)
	}
	if name == "" {
		name = id
	}

	r.mu.Lock()
	if existing, ok := r.rooms[id]; ok {
		r.mu.Unlock()
		if existing.Name != name {
			r.log.Debug().Str("room_id", id).Str("name", existing.Name).Str("ignored_name", name).Msg("room already registered")
		}
		return false, nil
	}
	r.rooms[id] = newRoom(id, name)
	r.order = append(r.order, id)
	r.mu.Unlock()

	r.log.Debug().Str("room_id", id).Str("name", name).Msg("room registered")
	r.notify(Change{Kind: ChangeRoomAdded, RoomID: id})
	return true, nil
}

// AppendMessage adds msg to the end of the room's log. Messages for rooms
// that are not registered are dropped and reported with ErrUnknownRoom;
// no room is ever created as a side effect.
func (r *Registry) AppendMessage(roomID string, msg Message) error {
	msg.RoomID = roomID

	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		r.log.Warn().Str("room_id", roomID).Str("author", msg.Author).Msg("dropping message for unknown room")
		return coreError(ErrCodeUnknownRoom, fmt.Sprintf("room %q is not registered", roomID), ErrUnknownRoom)
	}
	room.messages = append(room.messages, msg)
	r.mu.Unlock()

	r.notify(Change{Kind: ChangeMessageAppended, RoomID: roomID, Message: &msg})
	return nil
}

// ListRooms returns snapshots of all rooms in insertion order.
func (r *Registry) ListRooms() []RoomView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]RoomView, 0, len(r.order))
	for _, id := range r.order {
		views = append(views, r.rooms[id].view())
	}
	return views
}

// Room returns a snapshot of a single room.
func (r *Registry) Room(id string) (RoomView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return RoomView{}, false
	}
	return room.view(), true
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[id]
	return ok
}

// Len returns the number of registered rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Subscribe registers l for room and message changes.
func (r *Registry) Subscribe(l Listener) (unsubscribe func()) {
	return r.subscribe(l)
}
