package devserver

import (
	"context"
	"errors"
	stdhttp "net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/auth"
	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store/sqlite"
	"github.com/vovakirdan/wirechat-client/internal/transport/rest"
)

const testTimeout = 3 * time.Second

type testEnv struct {
	srv *Server
	ts  *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewWithSetup(":memory:", sqlite.ApplySchema)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	logger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})

	srv := New(st, authService, Options{}, &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{srv: srv, ts: ts}
}

// session is one browser-like user: a cookie jar shared by REST and push.
type session struct {
	http *stdhttp.Client
	api  *rest.Client
}

func (e *testEnv) newSession(t *testing.T) *session {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	httpClient := &stdhttp.Client{Jar: jar, Timeout: testTimeout}
	logger := zerolog.Nop()
	api, err := rest.NewClient(e.ts.URL, rest.Options{HTTPClient: httpClient}, &logger)
	if err != nil {
		t.Fatalf("rest client: %v", err)
	}
	return &session{http: httpClient, api: api}
}

func (e *testEnv) dial(ctx context.Context, t *testing.T, s *session) (*websocket.Conn, string) {
	t.Helper()
	// The push connection must reuse the REST session cookie.
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(e.ts.URL, "http")+"/ws", &websocket.DialOptions{
		HTTPClient: &stdhttp.Client{Jar: s.http.Jar},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	frame := mustRead(ctx, t, conn)
	if frame.Kind != proto.KindIdentityAssigned || frame.ID == "" {
		t.Fatalf("expected identity frame first, got %+v", frame)
	}
	return conn, frame.ID
}

func mustRead(ctx context.Context, t *testing.T, conn *websocket.Conn) proto.Inbound {
	t.Helper()
	var frame proto.Inbound
	if err := wsjson.Read(ctx, conn, &frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func mustCreateRoom(ctx context.Context, t *testing.T, s *session, name string) proto.RoomRef {
	t.Helper()
	room, err := s.api.CreateRoom(ctx, name)
	if err != nil {
		t.Fatalf("create room %s: %v", name, err)
	}
	return room
}

func TestRoomLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	alice := env.newSession(t)
	bob := env.newSession(t)

	room := mustCreateRoom(ctx, t, alice, "general")
	if room.ID == "" || room.Name != "general" {
		t.Fatalf("unexpected room: %+v", room)
	}

	listing, err := alice.api.UserChatrooms(ctx)
	if err != nil {
		t.Fatalf("alice chatrooms: %v", err)
	}
	if len(listing.Chatrooms) != 1 || listing.Chatrooms[0].ID != room.ID {
		t.Fatalf("unexpected listing: %+v", listing)
	}
	if listing.CurrentRoom == nil || *listing.CurrentRoom != room.ID {
		t.Fatalf("expected current room %s, got %v", room.ID, listing.CurrentRoom)
	}

	invite, err := alice.api.CreateInvite(ctx, room.ID, proto.InviteOneWeek)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if invite.Code == "" || !strings.HasPrefix(invite.URL, env.ts.URL+"/room/join/") {
		t.Fatalf("unexpected invite: %+v", invite)
	}

	joined, err := bob.api.JoinRoom(ctx, invite.Code)
	if err != nil {
		t.Fatalf("join room: %v", err)
	}
	if joined != room {
		t.Fatalf("expected to join %+v, got %+v", room, joined)
	}

	bobRooms, err := bob.api.UserChatrooms(ctx)
	if err != nil {
		t.Fatalf("bob chatrooms: %v", err)
	}
	if len(bobRooms.Chatrooms) != 1 || bobRooms.Chatrooms[0].ID != room.ID {
		t.Fatalf("unexpected bob listing: %+v", bobRooms)
	}

	_, err = bob.api.JoinRoom(ctx, "doesnotexist")
	var statusErr *rest.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != stdhttp.StatusNotFound {
		t.Fatalf("expected 404 for unknown invite, got %v", err)
	}
}

func TestCreateInviteRules(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	alice := env.newSession(t)
	bob := env.newSession(t)
	room := mustCreateRoom(ctx, t, alice, "private")

	_, err := bob.api.CreateInvite(ctx, room.ID, proto.InviteOneDay)
	var statusErr *rest.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != stdhttp.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %v", err)
	}

	_, err = alice.api.CreateInvite(ctx, room.ID, "2 days")
	if !errors.As(err, &statusErr) || statusErr.Status != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %v", err)
	}
	if !strings.Contains(statusErr.Body, "not one of the possible choices") {
		t.Fatalf("unexpected body: %q", statusErr.Body)
	}
}

func TestExpiredInvites(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	alice := env.newSession(t)
	bob := env.newSession(t)
	room := mustCreateRoom(ctx, t, alice, "general")

	daily, err := alice.api.CreateInvite(ctx, room.ID, proto.InviteOneDay)
	if err != nil {
		t.Fatalf("create daily invite: %v", err)
	}
	forever, err := alice.api.CreateInvite(ctx, room.ID, proto.InviteForever)
	if err != nil {
		t.Fatalf("create forever invite: %v", err)
	}

	later := time.Now().Add(48 * time.Hour)
	env.srv.now = func() time.Time { return later }

	_, err = bob.api.JoinRoom(ctx, daily.Code)
	var statusErr *rest.StatusError
	if !errors.As(err, &statusErr) || statusErr.Status != stdhttp.StatusGone {
		t.Fatalf("expected 410 for expired invite, got %v", err)
	}

	env.srv.cleanupInvites(ctx)
	_, err = bob.api.JoinRoom(ctx, daily.Code)
	if !errors.As(err, &statusErr) || statusErr.Status != stdhttp.StatusNotFound {
		t.Fatalf("expected expired invite to be removed, got %v", err)
	}

	if _, err := bob.api.JoinRoom(ctx, forever.URL); err != nil {
		t.Fatalf("forever invite should still work: %v", err)
	}
}

func TestPushBroadcastsToMembers(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	alice := env.newSession(t)
	bob := env.newSession(t)
	carol := env.newSession(t)

	room := mustCreateRoom(ctx, t, alice, "general")
	invite, err := alice.api.CreateInvite(ctx, room.ID, proto.InviteForever)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if _, err := bob.api.JoinRoom(ctx, invite.Code); err != nil {
		t.Fatalf("join: %v", err)
	}
	// carol only gets a session
	if _, err := carol.api.UserChatrooms(ctx); err != nil {
		t.Fatalf("carol chatrooms: %v", err)
	}

	aliceConn, aliceID := env.dial(ctx, t, alice)
	bobConn, _ := env.dial(ctx, t, bob)
	carolConn, _ := env.dial(ctx, t, carol)

	if err := wsjson.Write(ctx, aliceConn, proto.NewOutboundText("hello", room.ID, "someone-else")); err != nil {
		t.Fatalf("write: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"alice": aliceConn, "bob": bobConn} {
		frame := mustRead(ctx, t, conn)
		if frame.Kind != proto.KindText || frame.RoomID != room.ID || frame.Message != "hello" || frame.Author != aliceID {
			t.Fatalf("%s got unexpected frame %+v", name, frame)
		}
	}

	if err := wsjson.Write(ctx, carolConn, proto.NewOutboundText("let me in", room.ID, "carol")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if frame := mustRead(ctx, t, carolConn); frame.Kind != proto.KindError {
		t.Fatalf("expected error frame for non-member, got %+v", frame)
	}

	if err := carolConn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if frame := mustRead(ctx, t, carolConn); frame.Kind != proto.KindError || frame.Message != "malformed frame" {
		t.Fatalf("expected malformed frame error, got %+v", frame)
	}
}

func TestPushFirstCreatesSession(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	// No REST call yet: the upgrade itself must issue the guest session.
	alice := env.newSession(t)
	conn, aliceID := env.dial(ctx, t, alice)

	room := mustCreateRoom(ctx, t, alice, "general")
	frame := mustRead(ctx, t, conn)
	if frame.Kind != proto.KindRoomCreated || frame.RoomID != room.ID {
		t.Fatalf("expected room-created on the same session, got %+v", frame)
	}

	if err := wsjson.Write(ctx, conn, proto.NewOutboundText("first", room.ID, "")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if frame := mustRead(ctx, t, conn); frame.Kind != proto.KindText || frame.Author != aliceID {
		t.Fatalf("unexpected frame %+v", frame)
	}
}

func TestPushEndpointRejectsNonGet(t *testing.T) {
	env := newTestEnv(t)

	resp, err := stdhttp.Post(env.ts.URL+"/ws", "text/plain", strings.NewReader("hi"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != stdhttp.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}
