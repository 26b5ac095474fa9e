package core

import "time"

// MessageKind tags an entry in a room's log. Only text frames are logged.
type MessageKind string

const MessageText MessageKind = "text"

// Message is the domain model for an entry in a room's log.
type Message struct {
	Kind       MessageKind
	RoomID     string
	Author     string
	Body       string
	ReceivedAt time.Time
}
