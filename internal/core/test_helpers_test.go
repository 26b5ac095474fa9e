package core

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func newTestState(t *testing.T) *State {
	t.Helper()
	logger := zerolog.Nop()
	return NewState(&logger)
}

func mustUpsert(t *testing.T, reg *Registry, id, name string) {
	t.Helper()
	if _, err := reg.UpsertRoom(id, name); err != nil {
		t.Fatalf("upsert %s: %v", id, err)
	}
}

func bodies(view RoomView) []string {
	out := make([]string, 0, len(view.Messages))
	for _, m := range view.Messages {
		out = append(out, m.Body)
	}
	return out
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *changeRecorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) kinds() []ChangeKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ChangeKind, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.Kind)
	}
	return out
}
