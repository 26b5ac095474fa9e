package core

import "github.com/rs/zerolog"

// State is the owned session context: one per client session, shared by
// the push channel and the room action coordinator. Renderers read it and
// subscribe to it but never mutate it.
type State struct {
	Registry *Registry
	Active   *ActiveRoom
	Identity *Identity
}

// NewState builds an empty session state.
func NewState(logger *zerolog.Logger) *State {
	reg := NewRegistry(logger)
	return &State{
		Registry: reg,
		Active:   NewActiveRoom(reg),
		Identity: NewIdentity(),
	}
}

// Snapshot lists rooms in display order with Active derived from the
// pointer.
func (s *State) Snapshot() []RoomView {
	rooms := s.Registry.ListRooms()
	active, ok := s.Active.Current()
	if !ok {
		return rooms
	}
	for i := range rooms {
		rooms[i].Active = rooms[i].ID == active
	}
	return rooms
}

// ActiveRoomID returns the active room or an ErrNoActiveRoom coded error.
func (s *State) ActiveRoomID() (string, error) {
	id, ok := s.Active.Current()
	if !ok {
		return "", coreError(ErrCodeNoActiveRoom, "no room is selected", ErrNoActiveRoom)
	}
	return id, nil
}

// ActiveView returns the active room snapshot, if any.
func (s *State) ActiveView() (RoomView, bool) {
	id, ok := s.Active.Current()
	if !ok {
		return RoomView{}, false
	}
	view, ok := s.Registry.Room(id)
	if !ok {
		return RoomView{}, false
	}
	view.Active = true
	return view, true
}

// Subscribe registers l on every component of the state.
func (s *State) Subscribe(l Listener) (unsubscribe func()) {
	unsubs := []func(){
		s.Registry.Subscribe(l),
		s.Active.Subscribe(l),
		s.Identity.Subscribe(l),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
