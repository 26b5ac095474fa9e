package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/coordinator"
	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/transport/ws"
)

const helpText = `commands:
  /create <name>           create a room and switch to it
  /join <code|url>         join a room with an invite
  /invite [1d|1w|forever]  create an invite for the current room
  /switch <room>           show another room (id or name)
  /rooms                   list your rooms
  /whoami                  show your identity and connection
  /dismiss                 stop waiting for pending requests
  /help                    show this help
  /quit                    leave
anything else is sent to the current room`

// ErrUnknownCommand is returned for lines starting with an unknown slash
// command.
var ErrUnknownCommand = errors.New("unknown command")

// Console is a line-oriented terminal front end. It renders from state
// and action notifications and turns input lines into commands.
type Console struct {
	in  io.Reader
	out io.Writer
	log *zerolog.Logger

	mu      sync.Mutex // serializes output
	app     *App
	actions sync.WaitGroup
}

// NewConsole creates a console reading commands from in and rendering to out.
func NewConsole(in io.Reader, out io.Writer, logger *zerolog.Logger) *Console {
	return &Console{in: in, out: out, log: logger}
}

// Callbacks renders push events that are not state changes.
func (c *Console) Callbacks() ws.Callbacks {
	return ws.Callbacks{
		OnAnomaly: func(roomID string, _ error) {
			c.printf("! dropped a message for unknown room %q\n", roomID)
		},
		OnServerError: func(msg string) {
			c.printf("! server: %s\n", msg)
		},
		OnControl: func(in proto.Inbound) {
			c.log.Debug().Str("kind", string(in.Kind)).Str("room_id", in.RoomID).Msg("control frame")
		},
		OnClosed: func(err error) {
			if err != nil {
				c.printf("! %v\n", err)
			}
		},
	}
}

// Attach binds the console to a session and subscribes to its
// notifications.
func (c *Console) Attach(a *App) {
	c.app = a
	a.State.Subscribe(c.onChange)
	a.Coordinator.Subscribe(c.onAction)
}

// Run reads lines until /quit, EOF or ctx cancellation. Room actions run
// in the background so input stays responsive while they are pending.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.printf("%s\n", helpText)
	defer c.actions.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := c.execute(ctx, line, true)
			if err != nil {
				c.printf("! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// Execute runs one input line to completion.
func (c *Console) Execute(ctx context.Context, line string) (quit bool, err error) {
	return c.execute(ctx, line, false)
}

func (c *Console) execute(ctx context.Context, line string, background bool) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, c.app.Channel.SendActive(line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	var action func(context.Context) (coordinator.Action, error)
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		c.printf("%s\n", helpText)
		return false, nil
	case "/rooms":
		c.printRooms()
		return false, nil
	case "/whoami":
		c.printf("you are %s (%s)\n", c.app.State.Identity.Current(), c.app.Channel.State())
		return false, nil
	case "/switch":
		return false, c.switchRoom(arg)
	case "/dismiss":
		c.dismissPending()
		return false, nil
	case "/create":
		action = func(ctx context.Context) (coordinator.Action, error) {
			return c.app.Coordinator.CreateRoom(ctx, arg)
		}
	case "/join":
		action = func(ctx context.Context) (coordinator.Action, error) {
			return c.app.Coordinator.JoinRoom(ctx, arg)
		}
	case "/invite":
		limit := arg
		if limit == "" {
			limit = c.app.Config().InviteTimeLimit
		}
		action = func(ctx context.Context) (coordinator.Action, error) {
			return c.app.Coordinator.CreateInviteForActive(ctx, limit)
		}
	default:
		return false, fmt.Errorf("%w %s, try /help", ErrUnknownCommand, cmd)
	}

	if !background {
		_, err := action(ctx)
		return false, validationOnly(err)
	}
	c.actions.Add(1)
	go func() {
		defer c.actions.Done()
		if _, err := action(ctx); validationOnly(err) != nil {
			c.printf("! %v\n", err)
		}
	}()
	return false, nil
}

// validationOnly keeps input errors; action failures are already
// rendered from the action notification.
func validationOnly(err error) error {
	var vErr *coordinator.ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	return nil
}

func (c *Console) switchRoom(target string) error {
	if target == "" {
		return errors.New("usage: /switch <room>")
	}
	state := c.app.State
	if state.Registry.Has(target) {
		return state.Active.SetActive(target)
	}
	for _, room := range state.Registry.ListRooms() {
		if strings.EqualFold(room.Name, target) {
			return state.Active.SetActive(room.ID)
		}
	}
	return fmt.Errorf("no room named %q, see /rooms", target)
}

func (c *Console) dismissPending() {
	n := 0
	for _, a := range c.app.Coordinator.Actions() {
		if a.State == coordinator.StatePending && !a.Dismissed {
			if err := c.app.Coordinator.Dismiss(a.ID); err == nil {
				n++
			}
		}
	}
	c.printf("dismissed %d pending request(s)\n", n)
}

func (c *Console) printRooms() {
	rooms := c.app.State.Snapshot()
	if len(rooms) == 0 {
		c.printf("no rooms yet, /create one or /join with an invite\n")
		return
	}
	var b strings.Builder
	for _, room := range rooms {
		marker := " "
		if room.Active {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %s (%s) %d message(s)\n", marker, room.Name, room.ID, len(room.Messages))
	}
	c.printf("%s", b.String())
}

func (c *Console) onChange(ch core.Change) {
	state := c.app.State
	switch ch.Kind {
	case core.ChangeRoomAdded:
		c.printf("+ room %s\n", c.roomName(ch.RoomID))

	case core.ChangeMessageAppended:
		if ch.Message == nil {
			return
		}
		if active, ok := state.Active.Current(); ok && active == ch.RoomID {
			c.printf("%s\n", c.formatMessage(*ch.Message))
			return
		}
		c.printf("* new message in %s\n", c.roomName(ch.RoomID))

	case core.ChangeActiveRoom:
		view, ok := state.ActiveView()
		if !ok {
			c.printf("== no room selected ==\n")
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "== %s ==\n", view.Name)
		for _, msg := range view.Messages {
			b.WriteString(c.formatMessage(msg))
			b.WriteByte('\n')
		}
		c.printf("%s", b.String())

	case core.ChangeIdentity:
		if ch.Identity != core.Anonymous {
			c.printf("connected as %s\n", ch.Identity)
		}
	}
}

func (c *Console) onAction(a coordinator.Action) {
	switch a.State {
	case coordinator.StatePending:
		if a.Dismissed {
			return
		}
		c.printf("... %s %s\n", a.Kind, a.Input)
	case coordinator.StateSucceeded:
		switch {
		case a.Invite != nil && a.Invite.URL != "":
			c.printf("invite: %s\n", a.Invite.URL)
		case a.Invite != nil:
			c.printf("invite code: %s\n", a.Invite.Code)
		case a.Room != nil:
			c.printf("ok, %s %s\n", a.Kind, a.Room.Name)
		}
	case coordinator.StateFailed:
		c.printf("! %v\n", a.Err)
	}
}

func (c *Console) formatMessage(msg core.Message) string {
	author := msg.Author
	if author == c.app.State.Identity.Current() {
		author = "you"
	}
	return fmt.Sprintf("[%s] %s: %s", msg.ReceivedAt.Format("15:04"), author, msg.Body)
}

func (c *Console) roomName(id string) string {
	if room, ok := c.app.State.Registry.Room(id); ok && room.Name != "" {
		return room.Name
	}
	return id
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
