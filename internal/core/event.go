package core

// ChangeKind describes a state change renderers may redraw on.
type ChangeKind int

const (
	// ChangeRoomAdded is emitted when a new room enters the registry.
	ChangeRoomAdded ChangeKind = iota
	// ChangeMessageAppended is emitted after a message lands in a room log.
	ChangeMessageAppended
	// ChangeActiveRoom is emitted when the active pointer moves or clears.
	ChangeActiveRoom
	// ChangeIdentity is emitted when the identity is assigned or reset.
	ChangeIdentity
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeRoomAdded:
		return "room_added"
	case ChangeMessageAppended:
		return "message_appended"
	case ChangeActiveRoom:
		return "active_room"
	case ChangeIdentity:
		return "identity"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers after the mutation is complete.
type Change struct {
	Kind     ChangeKind
	RoomID   string
	Message  *Message
	Identity string
}

// Listener receives changes. It runs on the mutating goroutine after locks
// are released and must not call back into the component that notified it
// with a mutation.
type Listener func(Change)
