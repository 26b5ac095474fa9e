package core

import "sync"

// Anonymous is the placeholder identity used until the server assigns one.
const Anonymous = "anonymous"

// Identity holds the display identity for the current connection.
type Identity struct {
	mu       sync.RWMutex
	value    string
	assigned bool

	notifier
}

// NewIdentity returns an anonymous identity.
func NewIdentity() *Identity {
	return &Identity{value: Anonymous}
}

// Assign replaces the identity with a server-assigned value. Later
// assignments overwrite earlier ones. Empty values are ignored.
func (i *Identity) Assign(id string) bool {
	if id == "" {
		return false
	}

	i.mu.Lock()
	i.value, i.assigned = id, true
	i.mu.Unlock()

	i.notify(Change{Kind: ChangeIdentity, Identity: id})
	return true
}

// Reset goes back to the anonymous placeholder, e.g. when a new connection
// opens and the server has to assign identity again.
func (i *Identity) Reset() {
	i.mu.Lock()
	changed := i.assigned
	i.value, i.assigned = Anonymous, false
	i.mu.Unlock()

	if changed {
		i.notify(Change{Kind: ChangeIdentity, Identity: Anonymous})
	}
}

// Current returns the display identity.
func (i *Identity) Current() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.value
}

// Assigned reports whether the server has assigned an identity on this
// connection.
func (i *Identity) Assigned() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.assigned
}

// Subscribe registers l for identity changes.
func (i *Identity) Subscribe(l Listener) (unsubscribe func()) {
	return i.subscribe(l)
}
