package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Form fields and values of the request/response endpoints.
const (
	FieldChatroomName    = "chatroom_name"
	FieldInviteCode      = "invite_code"
	FieldInviteTimeLimit = "invite_timelimit"

	InviteOneDay  = "1 day"
	InviteOneWeek = "1 week"
	InviteForever = "Forever"

	invitePathMarker = "/room/join/"
)

// InviteTimeLimits lists the accepted invite_timelimit values.
var InviteTimeLimits = []string{InviteOneDay, InviteOneWeek, InviteForever}

// ErrEmptyRoom is returned when a room payload carries no identifier.
var ErrEmptyRoom = errors.New("room payload has no id")

// RoomRef identifies a room in API responses. Older servers answer with
// a bare JSON string, which is then both id and name.
type RoomRef struct {
	ID   string `json:"roomId"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts either {"roomId","name"} or a JSON string.
func (r *RoomRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		r.ID, r.Name = s, s
		return nil
	}

	var obj struct {
		RoomID string `json:"roomId"`
		ID     string `json:"id"`
		Name   string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.ID = firstNonEmpty(obj.RoomID, obj.ID)
	r.Name = obj.Name
	if r.Name == "" {
		r.Name = r.ID
	}
	return nil
}

// Validate reports whether the reference is usable as a registry key.
func (r RoomRef) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyRoom
	}
	return nil
}

// UserChatrooms is the /user/chatrooms response used to hydrate the client.
type UserChatrooms struct {
	Name        string    `json:"name,omitempty"`
	Chatrooms   []RoomRef `json:"chatrooms"`
	CurrentRoom *string   `json:"current_room"`
}

// Invite is a created invitation. URL is empty when the server returned
// only the code.
type Invite struct {
	Code string `json:"code"`
	URL  string `json:"url,omitempty"`
}

// ParseInvite turns the create-invite body (a code or an invite URL) into
// an Invite.
func ParseInvite(value string) (Invite, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Invite{}, fmt.Errorf("empty invite")
	}
	code := InviteCodeFrom(value)
	if code == value {
		return Invite{Code: code}, nil
	}
	return Invite{Code: code, URL: value}, nil
}

// InviteCodeFrom extracts the code from an invite URL; plain codes are
// returned trimmed and unchanged.
func InviteCodeFrom(value string) string {
	value = strings.TrimSpace(value)
	if idx := strings.LastIndex(value, invitePathMarker); idx >= 0 {
		return strings.Trim(value[idx+len(invitePathMarker):], "/")
	}
	if u, err := url.Parse(value); err == nil && u.Scheme != "" && u.Host != "" {
		return strings.Trim(u.Path[strings.LastIndex(u.Path, "/")+1:], "/")
	}
	return value
}

// InviteURL renders the shareable URL for a code.
func InviteURL(base, code string) string {
	return strings.TrimSuffix(base, "/") + invitePathMarker + code
}

// ValidInviteTimeLimit reports whether v is an accepted invite_timelimit.
func ValidInviteTimeLimit(v string) bool {
	for _, limit := range InviteTimeLimits {
		if v == limit {
			return true
		}
	}
	return false
}

// NormalizeInviteTimeLimit maps console shorthands (1d, 1w, forever) to
// the form values.
func NormalizeInviteTimeLimit(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1d", "day", "1 day":
		return InviteOneDay
	case "1w", "week", "1 week":
		return InviteOneWeek
	case "forever", "never", "0":
		return InviteForever
	default:
		return strings.TrimSpace(v)
	}
}

// Endpoint paths of the request/response API.
const (
	PathCreateRoom    = "/create-room"
	PathJoinRoom      = "/join-room"
	PathCreateInvite  = "/create-invite"
	PathUserChatrooms = "/user/chatrooms"
)

// SessionCookieName carries the session token on HTTP and push requests.
const SessionCookieName = "wirechat_session"
