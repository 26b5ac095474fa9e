package rest

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

func newTestClient(t *testing.T, handler stdhttp.HandlerFunc) *Client {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	logger := zerolog.Nop()
	client, err := NewClient(ts.URL, Options{Timeout: 2 * time.Second, SessionToken: "tok"}, &logger)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCreateRoomSendsFormAndDecodes(t *testing.T) {
	client := newTestClient(t, func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if r.Method != stdhttp.MethodPost || r.URL.Path != proto.PathCreateRoom {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.FormValue(proto.FieldChatroomName); got != "general" {
			t.Errorf("expected chatroom_name general, got %q", got)
		}
		if cookie, err := r.Cookie(proto.SessionCookieName); err != nil || cookie.Value != "tok" {
			t.Errorf("expected session cookie, got %v %v", cookie, err)
		}
		w.WriteHeader(stdhttp.StatusCreated)
		fmt.Fprint(w, `{"roomId":"r1","name":"general"}`)
	})

	room, err := client.CreateRoom(context.Background(), "general")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.ID != "r1" || room.Name != "general" {
		t.Fatalf("unexpected room: %+v", room)
	}
}

func TestJoinRoomRequiresAccepted(t *testing.T) {
	status := stdhttp.StatusOK
	client := newTestClient(t, func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if got := r.FormValue(proto.FieldInviteCode); got != "abc123" {
			t.Errorf("expected invite_code abc123, got %q", got)
		}
		w.WriteHeader(status)
		fmt.Fprint(w, `"general"`)
	})

	_, err := client.JoinRoom(context.Background(), "abc123")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != stdhttp.StatusOK {
		t.Fatalf("expected status error for 200, got %v", err)
	}

	status = stdhttp.StatusAccepted
	room, err := client.JoinRoom(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("join room: %v", err)
	}
	if room.ID != "general" || room.Name != "general" {
		t.Fatalf("unexpected room: %+v", room)
	}
}

func TestCreateInviteParsesURLAndCode(t *testing.T) {
	body := `"http://localhost:8000/room/join/Xy12Ab34"`
	client := newTestClient(t, func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if r.FormValue(proto.FieldChatroomName) != "general" || r.FormValue(proto.FieldInviteTimeLimit) != proto.InviteOneWeek {
			t.Errorf("unexpected form: %v", r.Form)
		}
		w.WriteHeader(stdhttp.StatusAccepted)
		fmt.Fprint(w, body)
	})

	invite, err := client.CreateInvite(context.Background(), "general", proto.InviteOneWeek)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if invite.Code != "Xy12Ab34" || invite.URL != "http://localhost:8000/room/join/Xy12Ab34" {
		t.Fatalf("unexpected invite: %+v", invite)
	}

	body = "Zz99"
	invite, err = client.CreateInvite(context.Background(), "general", proto.InviteOneWeek)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if invite.Code != "Zz99" {
		t.Fatalf("unexpected invite: %+v", invite)
	}
}

func TestBadBodiesAreReported(t *testing.T) {
	client := newTestClient(t, func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusCreated)
		fmt.Fprint(w, `{"name":"no id"}`)
	})

	if _, err := client.CreateRoom(context.Background(), "x"); !errors.Is(err, ErrBadResponse) {
		t.Fatalf("expected ErrBadResponse, got %v", err)
	}
}

func TestServerErrorsCarryStatusAndBody(t *testing.T) {
	client := newTestClient(t, func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		stdhttp.Error(w, "room exists", stdhttp.StatusConflict)
	})

	_, err := client.CreateRoom(context.Background(), "general")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != stdhttp.StatusConflict || statusErr.Body != "room exists" || statusErr.Op != "create room" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}
}

func TestUserChatrooms(t *testing.T) {
	client := newTestClient(t, func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if r.URL.Path != proto.PathUserChatrooms {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"chatrooms":[{"roomId":"r1","name":"general"},"legacy"],"current_room":"r1"}`)
	})

	resp, err := client.UserChatrooms(context.Background())
	if err != nil {
		t.Fatalf("user chatrooms: %v", err)
	}
	if len(resp.Chatrooms) != 2 || resp.Chatrooms[1].ID != "legacy" {
		t.Fatalf("unexpected chatrooms: %+v", resp.Chatrooms)
	}
	if resp.CurrentRoom == nil || *resp.CurrentRoom != "r1" {
		t.Fatalf("unexpected current room: %v", resp.CurrentRoom)
	}
}

func TestTransportErrorsAreWrapped(t *testing.T) {
	logger := zerolog.Nop()
	client, err := NewClient("http://127.0.0.1:1", Options{Timeout: 500 * time.Millisecond}, &logger)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.JoinRoom(context.Background(), "abc")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Fatalf("transport failure must not look like a status error: %v", err)
	}
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	logger := zerolog.Nop()
	if _, err := NewClient("localhost:8000", Options{}, &logger); err == nil {
		t.Fatalf("expected error for url without scheme")
	}
}
