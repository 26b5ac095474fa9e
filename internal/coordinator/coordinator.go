package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

const (
	maxRoomNameRunes = 64
	maxHistory       = 128
)

// API is the request/response surface the coordinator drives.
type API interface {
	CreateRoom(ctx context.Context, name string) (proto.RoomRef, error)
	JoinRoom(ctx context.Context, inviteCode string) (proto.RoomRef, error)
	CreateInvite(ctx context.Context, roomName, timeLimit string) (proto.Invite, error)
	UserChatrooms(ctx context.Context) (proto.UserChatrooms, error)
}

// ActionListener observes action transitions.
type ActionListener func(Action)

type entry struct {
	action   Action
	settling bool
}

// Coordinator bridges user intents to the API and merges confirmed results
// into the session state. Actions are independent and may run
// concurrently from different goroutines.
type Coordinator struct {
	api   API
	state *core.State
	log   *zerolog.Logger
	now   func() time.Time

	mu        sync.Mutex
	actions   map[uuid.UUID]*entry
	order     []uuid.UUID
	listeners []ActionListener
}

// New creates a coordinator bound to one session state.
func New(api API, state *core.State, logger *zerolog.Logger) *Coordinator {
	return &Coordinator{
		api:     api,
		state:   state,
		log:     logger,
		now:     time.Now,
		actions: make(map[uuid.UUID]*entry),
	}
}

// CreateRoom creates a room and, once the server confirms it, registers it
// and makes it active.
func (c *Coordinator) CreateRoom(ctx context.Context, name string) (Action, error) {
	name = strings.TrimSpace(name)
	if err := validateRoomName(name); err != nil {
		return idle(ActionCreateRoom), err
	}

	return c.run(ctx, ActionCreateRoom, name, func(ctx context.Context, a *Action) error {
		room, err := c.api.CreateRoom(ctx, name)
		if err != nil {
			return err
		}
		a.Room = &room
		return nil
	})
}

// JoinRoom redeems an invite code (or invite URL) and, once the server
// accepts, registers the room and makes it active.
func (c *Coordinator) JoinRoom(ctx context.Context, invite string) (Action, error) {
	code := proto.InviteCodeFrom(invite)
	if code == "" {
		return idle(ActionJoinRoom), &ValidationError{Field: "invite code", Reason: "must not be empty"}
	}
	if strings.IndexFunc(code, unicode.IsSpace) >= 0 {
		return idle(ActionJoinRoom), &ValidationError{Field: "invite code", Reason: "must not contain spaces"}
	}

	return c.run(ctx, ActionJoinRoom, code, func(ctx context.Context, a *Action) error {
		room, err := c.api.JoinRoom(ctx, code)
		if err != nil {
			return err
		}
		a.Room = &room
		return nil
	})
}

// CreateInvite requests an invite for a registered room. The invite is
// returned on the action and never stored in the registry.
func (c *Coordinator) CreateInvite(ctx context.Context, roomID, timeLimit string) (Action, error) {
	limit := proto.NormalizeInviteTimeLimit(timeLimit)
	if !proto.ValidInviteTimeLimit(limit) {
		return idle(ActionCreateInvite), &ValidationError{
			Field:  "invite time limit",
			Reason: fmt.Sprintf("must be one of %s", strings.Join(proto.InviteTimeLimits, ", ")),
		}
	}
	if roomID == "" {
		return idle(ActionCreateInvite), &ValidationError{Field: "room", Reason: "no room selected"}
	}
	if !c.state.Registry.Has(roomID) {
		return idle(ActionCreateInvite), &ValidationError{Field: "room", Reason: fmt.Sprintf("%q is not one of your rooms", roomID)}
	}

	return c.run(ctx, ActionCreateInvite, roomID, func(ctx context.Context, a *Action) error {
		invite, err := c.api.CreateInvite(ctx, roomID, limit)
		if err != nil {
			return err
		}
		a.Invite = &invite
		return nil
	})
}

// CreateInviteForActive is CreateInvite for the active room.
func (c *Coordinator) CreateInviteForActive(ctx context.Context, timeLimit string) (Action, error) {
	id, _ := c.state.Active.Current()
	return c.CreateInvite(ctx, id, timeLimit)
}

// Dismiss marks a pending action as abandoned by the user. A success that
// arrives later is not merged into the session state.
func (c *Coordinator) Dismiss(id uuid.UUID) error {
	c.mu.Lock()
	e, ok := c.actions[id]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownAction
	}
	if e.action.State != StatePending || e.settling {
		c.mu.Unlock()
		return fmt.Errorf("action %s is %s", id, e.action.State)
	}
	e.action.Dismissed = true
	snapshot := e.action
	c.mu.Unlock()

	c.log.Info().Str("action_id", id.String()).Str("action", snapshot.Kind.String()).Msg("action dismissed")
	c.notify(snapshot)
	return nil
}

// Action returns a copy of the action with the given id.
func (c *Coordinator) Action(id uuid.UUID) (Action, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.actions[id]
	if !ok {
		return Action{}, false
	}
	return e.action, true
}

// Actions lists known actions in the order they were issued.
func (c *Coordinator) Actions() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Action, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.actions[id].action)
	}
	return out
}

// Subscribe registers l for action transitions. Listeners run on the
// goroutine driving the action, outside the coordinator's lock.
func (c *Coordinator) Subscribe(l ActionListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func idle(kind ActionKind) Action {
	return Action{Kind: kind, State: StateIdle}
}

// run drives one action through pending → {succeeded, failed}. call fills
// the result fields of the scratch action; merge only happens when the
// action was not dismissed meanwhile.
func (c *Coordinator) run(ctx context.Context, kind ActionKind, input string, call func(context.Context, *Action) error) (Action, error) {
	id := uuid.New()
	pending := Action{
		ID:        id,
		Kind:      kind,
		State:     StatePending,
		Input:     input,
		StartedAt: c.now(),
	}

	c.mu.Lock()
	c.actions[id] = &entry{action: pending}
	c.order = append(c.order, id)
	c.pruneLocked()
	c.mu.Unlock()

	logger := c.log.With().Str("action_id", id.String()).Str("action", kind.String()).Logger()
	logger.Debug().Str("input", input).Msg("action pending")
	c.notify(pending)

	result := pending
	callErr := call(ctx, &result)

	c.mu.Lock()
	e := c.actions[id]
	dismissed := e.action.Dismissed
	e.settling = true
	c.mu.Unlock()

	var err error
	switch {
	case callErr != nil:
		err = &ActionError{Kind: kind, Err: callErr}
	case dismissed:
		err = &ActionError{Kind: kind, Err: ErrDismissed}
	default:
		if mergeErr := c.merge(result); mergeErr != nil {
			err = &ActionError{Kind: kind, Err: mergeErr}
		}
	}

	c.mu.Lock()
	final := e.action
	final.Room, final.Invite = result.Room, result.Invite
	final.FinishedAt = c.now()
	if err != nil {
		final.State = StateFailed
		final.Err = err
	} else {
		final.State = StateSucceeded
	}
	e.action = final
	e.settling = false
	c.mu.Unlock()

	if err != nil {
		logger.Warn().Err(err).Msg("action failed")
	} else {
		logger.Info().Msg("action succeeded")
	}
	c.notify(final)
	return final, err
}

// merge applies a confirmed result. Create and join register the room and
// activate it; invites leave the state alone.
func (c *Coordinator) merge(a Action) error {
	if a.Room == nil {
		return nil
	}
	if err := a.Room.Validate(); err != nil {
		return err
	}
	if _, err := c.state.Registry.UpsertRoom(a.Room.ID, a.Room.Name); err != nil {
		return err
	}
	return c.state.Active.SetActive(a.Room.ID)
}

func (c *Coordinator) notify(a Action) {
	c.mu.Lock()
	listeners := make([]ActionListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(a)
	}
}

// pruneLocked drops the oldest finished actions once history grows past
// maxHistory. Pending actions are always kept.
func (c *Coordinator) pruneLocked() {
	if len(c.order) <= maxHistory {
		return
	}
	kept := c.order[:0]
	excess := len(c.order) - maxHistory
	for _, id := range c.order {
		if excess > 0 && c.actions[id].action.State.Terminal() {
			delete(c.actions, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	c.order = kept
}

func validateRoomName(name string) error {
	if name == "" {
		return &ValidationError{Field: "room name", Reason: "must not be empty"}
	}
	if utf8.RuneCountInString(name) > maxRoomNameRunes {
		return &ValidationError{Field: "room name", Reason: fmt.Sprintf("must be at most %d characters", maxRoomNameRunes)}
	}
	return nil
}
