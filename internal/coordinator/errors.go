package coordinator

import (
	"errors"
	"fmt"
)

// ErrDismissed ends an action whose result arrived after the user
// dismissed it.
var ErrDismissed = errors.New("action dismissed")

// ErrUnknownAction is returned by Dismiss for ids it never issued.
var ErrUnknownAction = errors.New("unknown action")

// ValidationError rejects input before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ActionError attributes a failure to the action that caused it.
type ActionError struct {
	Kind ActionKind
	Err  error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("could not %s: %v", e.Kind, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
