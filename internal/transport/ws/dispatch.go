package ws

import (
	"errors"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

// dispatch applies one inbound frame. It runs on the read goroutine only,
// so frames are applied strictly in arrival order. Counters are updated
// before callbacks run.
func (c *Channel) dispatch(data []byte) {
	in, err := proto.Decode(data)
	if err != nil {
		c.stats.malformed.Add(1)
		c.log.Warn().Err(err).Int("bytes", len(data)).Msg("discarding inbound frame")
		return
	}

	cb := c.opts.Callbacks
	switch in.Kind {
	case proto.KindIdentityAssigned:
		if !c.state.Identity.Assign(in.ID) {
			c.stats.malformed.Add(1)
			c.log.Warn().Msg("identity frame without id")
			return
		}
		c.stats.dispatched.Add(1)
		c.log.Info().Str("user_id", in.ID).Msg("identity assigned")
		if cb.OnIdentityAssigned != nil {
			cb.OnIdentityAssigned(in.ID)
		}

	case proto.KindText:
		msg := core.Message{
			Kind:       core.MessageText,
			RoomID:     in.RoomID,
			Author:     in.Author,
			Body:       in.Message,
			ReceivedAt: c.now(),
		}
		if err := c.state.Registry.AppendMessage(in.RoomID, msg); err != nil {
			if errors.Is(err, core.ErrUnknownRoom) || errors.Is(err, core.ErrInvalidRoom) {
				c.stats.anomalies.Add(1)
				if cb.OnAnomaly != nil {
					cb.OnAnomaly(in.RoomID, core.RoutingAnomaly(in.RoomID, err))
				}
			}
			return
		}
		c.stats.dispatched.Add(1)
		if cb.OnTextMessage != nil {
			cb.OnTextMessage(msg)
		}

	case proto.KindError:
		c.stats.dispatched.Add(1)
		c.log.Warn().Str("message", in.Message).Msg("server reported error")
		if cb.OnServerError != nil {
			cb.OnServerError(in.Message)
		}

	case proto.KindRoomCreated, proto.KindJoinAccepted:
		c.stats.dispatched.Add(1)
		c.log.Info().Str("kind", string(in.Kind)).Str("room_id", in.RoomID).Msg("server control frame")
		if cb.OnControl != nil {
			cb.OnControl(in)
		}
	}
}
