package core

import (
	"fmt"
	"sync"
)

// ActiveRoom is the authoritative "currently viewed room" pointer. It can
// only point at rooms present in the registry.
type ActiveRoom struct {
	mu  sync.RWMutex
	reg *Registry
	id  string
	set bool

	notifier
}

// NewActiveRoom creates an unset pointer bound to reg.
func NewActiveRoom(reg *Registry) *ActiveRoom {
	return &ActiveRoom{reg: reg}
}

// SetActive moves the pointer to id. Unknown ids are rejected and leave the
// previous pointer unchanged.
func (a *ActiveRoom) SetActive(id string) error {
	if !a.reg.Has(id) {
		return coreError(ErrCodeUnknownRoom, fmt.Sprintf("cannot activate unknown room %q", id), ErrUnknownRoom)
	}

	a.mu.Lock()
	changed := !a.set || a.id != id
	a.id, a.set = id, true
	a.mu.Unlock()

	if changed {
		a.notify(Change{Kind: ChangeActiveRoom, RoomID: id})
	}
	return nil
}

// Current returns the active room id; ok is false when no room is selected.
func (a *ActiveRoom) Current() (id string, ok bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.id, a.set
}

// Clear unsets the pointer.
func (a *ActiveRoom) Clear() {
	a.mu.Lock()
	changed := a.set
	a.id, a.set = "", false
	a.mu.Unlock()

	if changed {
		a.notify(Change{Kind: ChangeActiveRoom})
	}
}

// Subscribe registers l for pointer changes.
func (a *ActiveRoom) Subscribe(l Listener) (unsubscribe func()) {
	return a.subscribe(l)
}
