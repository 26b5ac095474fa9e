package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInviteExpired is returned when an invite exists but has expired.
	ErrInviteExpired = errors.New("invite expired")
)

// User is a session owner. Users are created on first contact and carry
// the room they most recently created or joined.
type User struct {
	ID          string
	CurrentRoom string
	CreatedAt   time.Time
}

// Room is a chat room. ID is server-assigned and opaque to clients.
type Room struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// Invite grants membership of a room until ExpiresAt; a nil ExpiresAt
// never expires.
type Invite struct {
	Code      string
	RoomID    string
	CreatedBy string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Expired reports whether the invite is no longer redeemable at now.
func (i *Invite) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a user with the given id.
	CreateUser(ctx context.Context, id string) (*User, error)

	// GetUser retrieves a user by id.
	GetUser(ctx context.Context, id string) (*User, error)

	// SetCurrentRoom records the room the user is looking at.
	SetCurrentRoom(ctx context.Context, userID, roomID string) error
}

// RoomStore handles rooms and memberships.
type RoomStore interface {
	// CreateRoom creates a room owned by ownerID and adds the owner as a member.
	CreateRoom(ctx context.Context, id, name, ownerID string) (*Room, error)

	// GetRoom retrieves a room by id.
	GetRoom(ctx context.Context, id string) (*Room, error)

	// AddMember adds a user to a room. Adding an existing member is a no-op.
	AddMember(ctx context.Context, userID, roomID string) error

	// IsMember checks if user is a member of the room.
	IsMember(ctx context.Context, userID, roomID string) (bool, error)

	// ListMembers lists the user ids of a room.
	ListMembers(ctx context.Context, roomID string) ([]string, error)

	// ListUserRooms lists the rooms a user belongs to in join order.
	ListUserRooms(ctx context.Context, userID string) ([]*Room, error)
}

// InviteStore handles invites.
type InviteStore interface {
	// CreateInvite persists an invite.
	CreateInvite(ctx context.Context, invite *Invite) error

	// GetInvite retrieves an invite by code, expired or not.
	GetInvite(ctx context.Context, code string) (*Invite, error)

	// DeleteExpiredInvites removes invites that expired before now.
	DeleteExpiredInvites(ctx context.Context, now time.Time) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	RoomStore
	InviteStore

	// Close closes the underlying database connection.
	Close() error
}
