package coordinator

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/transport/rest"
)

type fakeAPI struct {
	mu sync.Mutex

	createRoom   func(ctx context.Context, name string) (proto.RoomRef, error)
	joinRoom     func(ctx context.Context, code string) (proto.RoomRef, error)
	createInvite func(ctx context.Context, room, limit string) (proto.Invite, error)
	chatrooms    func(ctx context.Context) (proto.UserChatrooms, error)

	calls []string
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeAPI) CreateRoom(ctx context.Context, name string) (proto.RoomRef, error) {
	f.record("create:" + name)
	return f.createRoom(ctx, name)
}

func (f *fakeAPI) JoinRoom(ctx context.Context, code string) (proto.RoomRef, error) {
	f.record("join:" + code)
	return f.joinRoom(ctx, code)
}

func (f *fakeAPI) CreateInvite(ctx context.Context, room, limit string) (proto.Invite, error) {
	f.record("invite:" + room + ":" + limit)
	return f.createInvite(ctx, room, limit)
}

func (f *fakeAPI) UserChatrooms(ctx context.Context) (proto.UserChatrooms, error) {
	f.record("chatrooms")
	return f.chatrooms(ctx)
}

func newTestCoordinator(t *testing.T, api *fakeAPI) (*Coordinator, *core.State) {
	t.Helper()
	logger := zerolog.Nop()
	state := core.NewState(&logger)
	return New(api, state, &logger), state
}

func strPtr(s string) *string { return &s }

func TestCreateRoomRegistersAndActivates(t *testing.T) {
	api := &fakeAPI{createRoom: func(_ context.Context, name string) (proto.RoomRef, error) {
		return proto.RoomRef{ID: "r1", Name: name}, nil
	}}
	coord, state := newTestCoordinator(t, api)

	action, err := coord.CreateRoom(context.Background(), "  general ")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if action.State != StateSucceeded || action.Room == nil || action.Room.ID != "r1" {
		t.Fatalf("unexpected action: %+v", action)
	}

	rooms := state.Registry.ListRooms()
	if len(rooms) != 1 || rooms[0].ID != "r1" || rooms[0].Name != "general" || len(rooms[0].Messages) != 0 {
		t.Fatalf("unexpected registry: %+v", rooms)
	}
	if id, ok := state.Active.Current(); !ok || id != "r1" {
		t.Fatalf("expected r1 active, got %q", id)
	}
}

func TestValidationRejectsBeforeNetwork(t *testing.T) {
	api := &fakeAPI{}
	coord, state := newTestCoordinator(t, api)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() (Action, error)
	}{
		{"empty room name", func() (Action, error) { return coord.CreateRoom(ctx, "   ") }},
		{"long room name", func() (Action, error) {
			return coord.CreateRoom(ctx, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
		}},
		{"empty invite code", func() (Action, error) { return coord.JoinRoom(ctx, " ") }},
		{"spaced invite code", func() (Action, error) { return coord.JoinRoom(ctx, "ab cd") }},
		{"bad time limit", func() (Action, error) { return coord.CreateInvite(ctx, "r1", "2 days") }},
		{"no active room", func() (Action, error) { return coord.CreateInviteForActive(ctx, "1d") }},
		{"unknown room", func() (Action, error) { return coord.CreateInvite(ctx, "ghost", "1d") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := tt.run()
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if action.State != StateIdle {
				t.Fatalf("expected idle action, got %s", action.State)
			}
		})
	}

	if api.callCount() != 0 {
		t.Fatalf("validation failures must not reach the network, got %v", api.calls)
	}
	if len(coord.Actions()) != 0 {
		t.Fatalf("validation failures must not be recorded as actions")
	}
	if state.Registry.Len() != 0 {
		t.Fatalf("registry must be untouched")
	}
}

func TestFailedJoinLeavesStateUnchanged(t *testing.T) {
	api := &fakeAPI{
		createRoom: func(_ context.Context, name string) (proto.RoomRef, error) {
			return proto.RoomRef{ID: "r1", Name: name}, nil
		},
		joinRoom: func(_ context.Context, _ string) (proto.RoomRef, error) {
			return proto.RoomRef{}, &rest.StatusError{Op: "join room", Status: 404, Body: "invite not found"}
		},
	}
	coord, state := newTestCoordinator(t, api)
	ctx := context.Background()

	if _, err := coord.CreateRoom(ctx, "general"); err != nil {
		t.Fatalf("create room: %v", err)
	}
	_ = state.Registry.AppendMessage("r1", core.Message{Kind: core.MessageText, Author: "u1", Body: "hi"})

	before := state.Snapshot()
	beforeActive, beforeSet := state.Active.Current()

	action, err := coord.JoinRoom(ctx, "http://localhost:8000/room/join/NOPE1234")
	var actionErr *ActionError
	if !errors.As(err, &actionErr) || actionErr.Kind != ActionJoinRoom {
		t.Fatalf("expected join ActionError, got %v", err)
	}
	var statusErr *rest.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != 404 {
		t.Fatalf("expected wrapped status error, got %v", err)
	}
	if err.Error() != "could not join room: join room: unexpected status 404: invite not found" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if action.State != StateFailed || action.Input != "NOPE1234" {
		t.Fatalf("unexpected action: %+v", action)
	}

	if after := state.Snapshot(); !reflect.DeepEqual(before, after) {
		t.Fatalf("registry changed after failed join:\nbefore %+v\nafter  %+v", before, after)
	}
	if id, set := state.Active.Current(); id != beforeActive || set != beforeSet {
		t.Fatalf("active pointer changed after failed join: %q", id)
	}
}

func TestInvalidServerRoomIsAFailure(t *testing.T) {
	api := &fakeAPI{joinRoom: func(_ context.Context, _ string) (proto.RoomRef, error) {
		return proto.RoomRef{Name: "nameless"}, nil
	}}
	coord, state := newTestCoordinator(t, api)

	action, err := coord.JoinRoom(context.Background(), "CODE")
	if err == nil || action.State != StateFailed {
		t.Fatalf("expected failure, got %+v %v", action, err)
	}
	if state.Registry.Len() != 0 {
		t.Fatalf("registry must be untouched")
	}
	if _, ok := state.Active.Current(); ok {
		t.Fatalf("active pointer must stay null")
	}
}

func TestCreateInviteDoesNotTouchRegistry(t *testing.T) {
	api := &fakeAPI{
		createRoom: func(_ context.Context, name string) (proto.RoomRef, error) {
			return proto.RoomRef{ID: "r1", Name: name}, nil
		},
		createInvite: func(_ context.Context, room, limit string) (proto.Invite, error) {
			return proto.Invite{Code: "Xy12Ab34"}, nil
		},
	}
	coord, state := newTestCoordinator(t, api)
	ctx := context.Background()

	if _, err := coord.CreateRoom(ctx, "general"); err != nil {
		t.Fatalf("create room: %v", err)
	}
	before := state.Snapshot()

	action, err := coord.CreateInviteForActive(ctx, "1w")
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if action.Invite == nil || action.Invite.Code != "Xy12Ab34" || action.Room != nil {
		t.Fatalf("unexpected action: %+v", action)
	}
	if !reflect.DeepEqual(before, state.Snapshot()) {
		t.Fatalf("invite creation must not change the registry")
	}
	if api.calls[len(api.calls)-1] != "invite:r1:1 week" {
		t.Fatalf("unexpected api call: %v", api.calls)
	}
}

func TestConcurrentActionsAreIndependent(t *testing.T) {
	releaseInvite := make(chan struct{})
	inviteStarted := make(chan struct{})
	api := &fakeAPI{
		createRoom: func(_ context.Context, name string) (proto.RoomRef, error) {
			return proto.RoomRef{ID: "id-" + name, Name: name}, nil
		},
		createInvite: func(ctx context.Context, _, _ string) (proto.Invite, error) {
			close(inviteStarted)
			select {
			case <-releaseInvite:
			case <-ctx.Done():
				return proto.Invite{}, ctx.Err()
			}
			return proto.Invite{}, errors.New("invite service down")
		},
	}
	coord, state := newTestCoordinator(t, api)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := coord.CreateRoom(ctx, "first"); err != nil {
		t.Fatalf("create first: %v", err)
	}

	inviteDone := make(chan Action, 1)
	go func() {
		a, _ := coord.CreateInvite(ctx, "id-first", "forever")
		inviteDone <- a
	}()
	<-inviteStarted

	second, err := coord.CreateRoom(ctx, "second")
	if err != nil || second.State != StateSucceeded {
		t.Fatalf("second create should succeed while invite is pending: %+v %v", second, err)
	}

	var pendingInvite *Action
	for _, a := range coord.Actions() {
		if a.Kind == ActionCreateInvite {
			a := a
			pendingInvite = &a
		}
	}
	if pendingInvite == nil || pendingInvite.State != StatePending {
		t.Fatalf("expected invite still pending, got %+v", pendingInvite)
	}

	close(releaseInvite)
	invite := <-inviteDone
	if invite.State != StateFailed {
		t.Fatalf("expected invite to fail, got %s", invite.State)
	}

	got, _ := coord.Action(second.ID)
	if got.State != StateSucceeded {
		t.Fatalf("invite failure must not affect the room creation, got %s", got.State)
	}
	if id, _ := state.Active.Current(); id != "id-second" {
		t.Fatalf("expected second room active, got %q", id)
	}
	if len(coord.Actions()) != 3 {
		t.Fatalf("expected 3 recorded actions, got %d", len(coord.Actions()))
	}
}

func TestDismissedActionIsNotMerged(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{joinRoom: func(_ context.Context, _ string) (proto.RoomRef, error) {
		close(started)
		<-release
		return proto.RoomRef{ID: "late", Name: "late room"}, nil
	}}
	coord, state := newTestCoordinator(t, api)

	var mu sync.Mutex
	var seen []ActionState
	coord.Subscribe(func(a Action) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, a.State)
	})

	done := make(chan Action, 1)
	go func() {
		a, _ := coord.JoinRoom(context.Background(), "LATE")
		done <- a
	}()
	<-started

	actions := coord.Actions()
	if len(actions) != 1 {
		t.Fatalf("expected one action, got %d", len(actions))
	}
	if err := coord.Dismiss(actions[0].ID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	close(release)

	final := <-done
	if final.State != StateFailed || !errors.Is(final.Err, ErrDismissed) || !final.Dismissed {
		t.Fatalf("expected dismissed failure, got %+v", final)
	}
	if state.Registry.Has("late") {
		t.Fatalf("dismissed join must not resurrect the room")
	}
	if err := coord.Dismiss(final.ID); err == nil {
		t.Fatalf("expected error dismissing a finished action")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []ActionState{StatePending, StatePending, StateFailed}
	if !reflect.DeepEqual(seen, want) {
		t.Fatalf("expected transitions %v, got %v", want, seen)
	}
}

func TestHydrate(t *testing.T) {
	api := &fakeAPI{chatrooms: func(_ context.Context) (proto.UserChatrooms, error) {
		return proto.UserChatrooms{
			Chatrooms: []proto.RoomRef{
				{ID: "r1", Name: "general"},
				{ID: "", Name: "broken"},
				{ID: "r2", Name: "random"},
			},
			CurrentRoom: strPtr("r2"),
		}, nil
	}}
	coord, state := newTestCoordinator(t, api)

	res, err := coord.Hydrate(context.Background())
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if res.Rooms != 2 || res.Added != 2 || res.Active != "r2" {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = coord.Hydrate(context.Background())
	if err != nil {
		t.Fatalf("second hydrate: %v", err)
	}
	if res.Added != 0 || state.Registry.Len() != 2 {
		t.Fatalf("second hydrate must be idempotent: %+v", res)
	}
}

func TestHydrateNullsAndFailures(t *testing.T) {
	fail := true
	api := &fakeAPI{chatrooms: func(_ context.Context) (proto.UserChatrooms, error) {
		if fail {
			return proto.UserChatrooms{}, errors.New("boom")
		}
		return proto.UserChatrooms{Chatrooms: nil, CurrentRoom: strPtr("ghost")}, nil
	}}
	coord, state := newTestCoordinator(t, api)

	if _, err := coord.Hydrate(context.Background()); err == nil {
		t.Fatalf("expected hydrate error")
	}

	fail = false
	res, err := coord.Hydrate(context.Background())
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if res.Rooms != 0 || res.Active != "" || state.Registry.Len() != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
