package core

import (
	"errors"
	"fmt"
)

// Error codes for client-side domain errors.
const (
	ErrCodeUnknownRoom    = "unknown_room"
	ErrCodeNoActiveRoom   = "no_active_room"
	ErrCodeInvalidRoom    = "invalid_room"
	ErrCodeRoutingAnomaly = "routing_anomaly"
)

var (
	ErrUnknownRoom  = errors.New("unknown room")
	ErrNoActiveRoom = errors.New("no active room")
	ErrInvalidRoom  = errors.New("invalid room")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

// RoutingAnomaly marks a frame for a room the registry does not know.
// It wraps the registry error, so errors.Is(err, ErrUnknownRoom) still
// holds.
func RoutingAnomaly(roomID string, err error) *CoreError {
	return coreError(ErrCodeRoutingAnomaly, fmt.Sprintf("message for room %q has nowhere to go", roomID), err)
}

// Code returns the CoreError code carried by err, or "".
func Code(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

func coreError(code, msg string, err error) *CoreError {
	return &CoreError{Code: code, Message: msg, Err: err}
}
