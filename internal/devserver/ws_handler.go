package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// pushHandler serves GET /ws next to the gin engine; gin cannot hand the
// raw connection over once its writer has started.
func (s *Server) pushHandler() stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if r.Method != stdhttp.MethodGet {
			w.Header().Set("Allow", stdhttp.MethodGet)
			stdhttp.Error(w, "method not allowed", stdhttp.StatusMethodNotAllowed)
			return
		}
		uid, err := resolveSession(s.auth, w, r, s.log)
		if err != nil {
			stdhttp.Error(w, "internal server error", stdhttp.StatusInternalServerError)
			return
		}
		s.serveWS(w, r, uid)
	})
}

// serveWS upgrades the request and bridges the connection to the hub.
func (s *Server) serveWS(w stdhttp.ResponseWriter, r *stdhttp.Request, uid string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	conn.SetReadLimit(s.opts.MaxMessageBytes)

	p := newPeer(uid)
	s.hub.register(p)
	defer s.hub.unregister(p)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Identity goes first so the client can author messages.
	p.events <- proto.Inbound{Kind: proto.KindIdentityAssigned, ID: uid}
	s.log.Info().Str("user_id", uid).Msg("ws client connected")

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.readLoop(ctx, conn, p)
	}()
	go func() {
		errCh <- s.writeLoop(ctx, conn, p)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	select {
	case <-p.done:
		status, reason = websocket.StatusGoingAway, "server shutting down"
	default:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			err = nil
		}
		if err != nil {
			status = websocket.StatusInternalError
			reason = err.Error()
			s.log.Warn().Err(err).Str("user_id", uid).Msg("ws connection closed with error")
		}
	}

	s.log.Info().Str("user_id", uid).Msg("ws client disconnected")
	conn.Close(status, reason)
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, p *peer) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var frame proto.OutboundText
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Debug().Err(err).Str("user_id", p.userID).Msg("malformed client frame")
			s.reject(p, "malformed frame")
			continue
		}
		s.route(ctx, p, frame)
	}
}

// route broadcasts a text frame to every member of its room, sender
// included. The author is the session user, not the claimed one.
func (s *Server) route(ctx context.Context, p *peer, frame proto.OutboundText) {
	if frame.MessageType != "" && frame.MessageType != proto.MessageTypeText {
		s.reject(p, "unsupported messageType")
		return
	}
	if frame.RoomID == "" || strings.TrimSpace(frame.Message) == "" {
		s.reject(p, "roomId and message are required")
		return
	}

	member, err := s.store.IsMember(ctx, p.userID, frame.RoomID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to check membership")
		s.reject(p, "internal server error")
		return
	}
	if !member {
		s.reject(p, "not a member of this room")
		return
	}

	members, err := s.store.ListMembers(ctx, frame.RoomID)
	if err != nil {
		s.log.Error().Err(err).Str("room_id", frame.RoomID).Msg("failed to list members")
		s.reject(p, "internal server error")
		return
	}

	n := s.hub.deliver(members, proto.Inbound{
		Kind:    proto.KindText,
		RoomID:  frame.RoomID,
		Message: frame.Message,
		Author:  p.userID,
	})
	s.log.Debug().Str("room_id", frame.RoomID).Str("user_id", p.userID).Int("delivered", n).Msg("message routed")
}

// reject reports a problem to the offending connection only.
func (s *Server) reject(p *peer, msg string) {
	select {
	case p.events <- proto.Inbound{Kind: proto.KindError, Message: msg}:
	default:
		s.log.Warn().Str("user_id", p.userID).Msg("peer buffer full, dropping error frame")
	}
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, p *peer) error {
	for {
		select {
		case frame := <-p.events:
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				s.log.Error().Err(err).Str("user_id", p.userID).Msg("write ws frame")
				return err
			}
		case <-p.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
