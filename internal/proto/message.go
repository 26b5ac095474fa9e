package proto

// Kind tags a server → client push frame.
type Kind string

const (
	KindText             Kind = "text"
	KindIdentityAssigned Kind = "identity-assigned"
	KindRoomCreated      Kind = "room-created"
	KindJoinAccepted     Kind = "join-accepted"
	KindError            Kind = "error"
)

// Legacy servers tag frames with "MessageType" instead of "kind".
const (
	legacyTypeMessage = "message"
	legacyTypeID      = "id"
)

// MessageTypeText is the only messageType a client sends.
const MessageTypeText = "text"

// OutboundText is the frame a client sends to post a message into a room.
type OutboundText struct {
	Message     string `json:"message"`
	MessageType string `json:"messageType"`
	RoomID      string `json:"roomId"`
	User        string `json:"user"`
}

// NewOutboundText builds a text frame.
func NewOutboundText(text, roomID, user string) OutboundText {
	return OutboundText{
		Message:     text,
		MessageType: MessageTypeText,
		RoomID:      roomID,
		User:        user,
	}
}

// Inbound is a decoded server → client frame.
type Inbound struct {
	Kind    Kind   `json:"kind"`
	RoomID  string `json:"roomId,omitempty"`
	Message string `json:"message,omitempty"`
	Author  string `json:"author,omitempty"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
}

// rawInbound accepts both the current and the legacy field spellings.
type rawInbound struct {
	Kind        Kind   `json:"kind"`
	MessageType string `json:"MessageType"`
	RoomID      string `json:"roomId"`
	Chatroom    string `json:"ChatroomName"`
	Message     string `json:"message"`
	Content     string `json:"Content"`
	Author      string `json:"author"`
	UserID      string `json:"UserId"`
	ID          string `json:"id"`
	Name        string `json:"name"`
}
