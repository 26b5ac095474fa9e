package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedFrame is returned for frames that are not a JSON object.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownKind is returned for frames without a recognized kind.
	ErrUnknownKind = errors.New("unknown frame kind")
)

// Decode parses a push frame. It never panics; every failure wraps
// ErrMalformedFrame or ErrUnknownKind.
func Decode(data []byte) (Inbound, error) {
	var raw rawInbound
	if err := json.Unmarshal(data, &raw); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	kind := raw.Kind
	if kind == "" {
		switch raw.MessageType {
		case legacyTypeMessage:
			kind = KindText
		case legacyTypeID:
			kind = KindIdentityAssigned
		}
	}

	in := Inbound{
		Kind:    kind,
		RoomID:  firstNonEmpty(raw.RoomID, raw.Chatroom),
		Message: firstNonEmpty(raw.Message, raw.Content),
		Author:  firstNonEmpty(raw.Author, raw.UserID),
		ID:      raw.ID,
		Name:    raw.Name,
	}

	switch kind {
	case KindText, KindIdentityAssigned, KindRoomCreated, KindJoinAccepted, KindError:
		return in, nil
	case "":
		return in, fmt.Errorf("%w: missing kind", ErrUnknownKind)
	default:
		return in, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
