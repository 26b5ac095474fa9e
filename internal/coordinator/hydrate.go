package coordinator

import (
	"context"
	"fmt"
)

// HydrateResult summarizes a sync with the server's membership list.
type HydrateResult struct {
	Rooms  int
	Added  int
	Active string
}

// Hydrate loads the rooms the server says the user belongs to, in server
// order, and activates the server's current room when it is registered.
// It runs at session start and after every reconnect; local rooms are
// never deleted because no leave-room contract exists.
func (c *Coordinator) Hydrate(ctx context.Context) (HydrateResult, error) {
	resp, err := c.api.UserChatrooms(ctx)
	if err != nil {
		return HydrateResult{}, fmt.Errorf("hydrate rooms: %w", err)
	}

	var res HydrateResult
	for _, room := range resp.Chatrooms {
		if err := room.Validate(); err != nil {
			c.log.Warn().Err(err).Msg("skipping room without id")
			continue
		}
		added, err := c.state.Registry.UpsertRoom(room.ID, room.Name)
		if err != nil {
			c.log.Warn().Err(err).Str("room_id", room.ID).Msg("skipping room")
			continue
		}
		res.Rooms++
		if added {
			res.Added++
		}
	}

	if resp.CurrentRoom != nil && *resp.CurrentRoom != "" {
		if err := c.state.Active.SetActive(*resp.CurrentRoom); err != nil {
			c.log.Warn().Err(err).Str("room_id", *resp.CurrentRoom).Msg("server current room is not registered")
		}
	}
	res.Active, _ = c.state.Active.Current()

	c.log.Info().Int("rooms", res.Rooms).Int("added", res.Added).Str("active", res.Active).Msg("rooms hydrated")
	return res, nil
}
