package coordinator

import (
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// ActionKind names a user-initiated room lifecycle request.
type ActionKind int

const (
	ActionCreateRoom ActionKind = iota
	ActionJoinRoom
	ActionCreateInvite
)

func (k ActionKind) String() string {
	switch k {
	case ActionCreateRoom:
		return "create room"
	case ActionJoinRoom:
		return "join room"
	case ActionCreateInvite:
		return "create invite"
	default:
		return "unknown action"
	}
}

// ActionState is the per-action state machine:
// idle → pending → {succeeded, failed}.
type ActionState int

const (
	StateIdle ActionState = iota
	StatePending
	StateSucceeded
	StateFailed
)

func (s ActionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s ActionState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Action is the record of one request. Values handed out by the
// coordinator are copies.
type Action struct {
	ID         uuid.UUID
	Kind       ActionKind
	State      ActionState
	Input      string
	Room       *proto.RoomRef
	Invite     *proto.Invite
	Err        error
	Dismissed  bool
	StartedAt  time.Time
	FinishedAt time.Time
}
