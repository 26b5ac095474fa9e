package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/core"
	"github.com/vovakirdan/wirechat-client/internal/proto"
)

const (
	defaultQueueSize = 32
	maxFrameBytes    = 1 << 20
)

var (
	// ErrNotConnected rejects sends on a closed channel.
	ErrNotConnected = errors.New("channel is not connected")
	// ErrSendQueueFull rejects sends once the outbound queue is full.
	ErrSendQueueFull = errors.New("send queue is full")
	// ErrAlreadyConnected is returned by Connect while connecting or open.
	ErrAlreadyConnected = errors.New("channel is already connected")
	// ErrNoRoom rejects a send without a target room.
	ErrNoRoom = errors.New("message has no room")
	// ErrEmptyMessage rejects a blank message body.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrConnectionLost wraps the cause of an unexpected close.
	ErrConnectionLost = errors.New("connection lost")
)

// DroppedError reports queued frames that were discarded because the
// connection ended before they could be written. Err is the reason the
// connection ended, nil after Close.
type DroppedError struct {
	Dropped int
	Err     error
}

func (e *DroppedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%d queued frame(s) discarded", e.Dropped)
	}
	return fmt.Sprintf("%v: %d queued frame(s) discarded", e.Err, e.Dropped)
}

func (e *DroppedError) Unwrap() error {
	return e.Err
}

// Callbacks are invoked on the read goroutine, in frame order. They must
// not block for long and must not call back into the dispatcher.
type Callbacks struct {
	OnTextMessage      func(core.Message)
	OnIdentityAssigned func(id string)
	OnAnomaly          func(roomID string, err error)
	OnServerError      func(message string)
	OnControl          func(proto.Inbound)
	OnClosed           func(err error)
}

// Options configures a Channel.
type Options struct {
	SessionToken string
	QueueSize    int
	DialTimeout  time.Duration
	// HTTPClient is used for the handshake; sharing the REST client's
	// cookie jar keeps both on the same session.
	HTTPClient *stdhttp.Client
	Callbacks  Callbacks
}

// Channel is the client side of the push connection. It owns one
// websocket at a time and routes inbound frames into the session state.
type Channel struct {
	state *core.State
	log   *zerolog.Logger
	opts  Options
	now   func() time.Time
	stats counters

	mu      sync.Mutex
	status  State
	out     chan proto.OutboundText
	conn    *websocket.Conn
	cancel  context.CancelFunc
	closing bool
	done    chan struct{}
	err     error

	// discarded counts frames drained by the last finish.
	discarded int
}

// NewChannel builds an idle channel bound to state.
func NewChannel(state *core.State, opts Options, logger *zerolog.Logger) *Channel {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	return &Channel{
		state:  state,
		log:    logger,
		opts:   opts,
		now:    time.Now,
		status: StateIdle,
		out:    make(chan proto.OutboundText, opts.QueueSize),
		done:   make(chan struct{}),
	}
}

// Connect dials endpoint and starts the read and write loops. It is
// allowed from idle and closed; the connection lives until Close, ctx
// cancellation or a transport failure. A new connection starts with an
// anonymous identity.
func (c *Channel) Connect(ctx context.Context, endpoint string) error {
	c.mu.Lock()
	switch c.status {
	case StateConnecting, StateOpen:
		c.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		c.out = make(chan proto.OutboundText, c.opts.QueueSize)
		c.done = make(chan struct{})
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.status = StateConnecting
	c.cancel = cancel
	c.closing = false
	c.err = nil
	c.discarded = 0
	out, done := c.out, c.done
	c.mu.Unlock()

	c.state.Identity.Reset()
	c.log.Debug().Str("endpoint", endpoint).Msg("ws dialing")

	dialCtx := runCtx
	if c.opts.DialTimeout > 0 {
		var dialCancel context.CancelFunc
		dialCtx, dialCancel = context.WithTimeout(runCtx, c.opts.DialTimeout)
		defer dialCancel()
	}

	conn, _, err := websocket.Dial(dialCtx, endpoint, &websocket.DialOptions{
		HTTPClient: c.opts.HTTPClient,
		HTTPHeader: c.header(),
	})
	if err != nil {
		cancel()
		err = fmt.Errorf("dial %s: %w", endpoint, err)
		c.log.Warn().Err(err).Msg("ws dial failed")
		if ferr := c.finish(err, false); ferr != nil {
			err = ferr
		}
		return err
	}
	conn.SetReadLimit(maxFrameBytes)

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		cancel()
		conn.Close(websocket.StatusNormalClosure, "client closing")
		c.finish(nil, false)
		return ErrNotConnected
	}
	c.status = StateOpen
	c.conn = conn
	c.mu.Unlock()

	c.log.Info().Str("endpoint", endpoint).Int("queued", len(out)).Msg("ws connected")
	go c.serve(ctx, runCtx, cancel, conn, out, done)
	return nil
}

// Close performs a normal closure and waits for the loops to stop.
// Queued frames that were never written are counted as dropped and
// reported with a DroppedError.
func (c *Channel) Close() error {
	c.mu.Lock()
	switch c.status {
	case StateIdle:
		c.mu.Unlock()
		c.finish(nil, false)
	case StateClosed:
		c.mu.Unlock()
		return nil
	default:
		c.closing = true
		conn, cancel, done := c.conn, c.cancel, c.done
		c.mu.Unlock()

		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "client closing")
		}
		cancel()
		<-done
	}

	c.mu.Lock()
	dropped := c.discarded
	c.mu.Unlock()
	if dropped > 0 {
		return &DroppedError{Dropped: dropped}
	}
	return nil
}

// Send queues a text frame for roomID. Frames sent before the connection
// opens are flushed in order once it does.
func (c *Channel) Send(text, roomID, author string) error {
	if roomID == "" {
		return ErrNoRoom
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	frame := proto.NewOutboundText(text, roomID, author)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StateClosed {
		return ErrNotConnected
	}
	select {
	case c.out <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// SendActive sends text to the active room as the current identity.
func (c *Channel) SendActive(text string) error {
	roomID, err := c.state.ActiveRoomID()
	if err != nil {
		return err
	}
	return c.Send(text, roomID, c.state.Identity.Current())
}

// State reports the lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Done is closed when the current connection attempt ends.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err is the reason the last connection ended; nil after a normal
// client-side close.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Stats returns the frame counters.
func (c *Channel) Stats() Stats {
	return c.stats.snapshot()
}

func (c *Channel) header() stdhttp.Header {
	header := stdhttp.Header{}
	if c.opts.SessionToken != "" {
		header.Set("Authorization", "Bearer "+c.opts.SessionToken)
		header.Add("Cookie", (&stdhttp.Cookie{Name: proto.SessionCookieName, Value: c.opts.SessionToken}).String())
	}
	return header
}

func (c *Channel) serve(parent, ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan proto.OutboundText, done chan struct{}) {
	errCh := make(chan error, 2)
	go func() {
		errCh <- c.readLoop(ctx, conn)
	}()
	go func() {
		errCh <- c.writeLoop(ctx, conn, out)
	}()

	err := <-errCh
	cancel() // stop the other loop
	<-errCh

	conn.Close(websocket.StatusNormalClosure, "closing")
	c.finish(c.classify(parent, err), true)
}

// classify turns the loop error into the channel's terminal error. A
// client-initiated close or a cancelled parent context ends without error.
func (c *Channel) classify(parent context.Context, err error) error {
	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()
	if closing || parent.Err() != nil {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return ErrConnectionLost
	}
	return fmt.Errorf("%w: %w", ErrConnectionLost, err)
}

// finish moves the channel to closed and returns the error it recorded:
// err, wrapped in a DroppedError when queued frames were discarded.
func (c *Channel) finish(err error, notify bool) error {
	c.mu.Lock()
	if c.status == StateClosed {
		c.mu.Unlock()
		return err
	}
	if c.closing {
		err = nil
	}
	dropped := drain(c.out)
	if dropped > 0 && err != nil {
		err = &DroppedError{Dropped: dropped, Err: err}
	}
	c.status = StateClosed
	c.conn = nil
	c.err = err
	c.discarded = dropped
	done := c.done
	c.mu.Unlock()

	if dropped > 0 {
		c.stats.dropped.Add(uint64(dropped))
		c.log.Warn().Int("dropped", dropped).Msg("discarded unsent frames")
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("ws connection closed")
	} else {
		c.log.Info().Msg("ws connection closed")
	}
	if notify && c.opts.Callbacks.OnClosed != nil {
		c.opts.Callbacks.OnClosed(err)
	}
	close(done)
	return err
}

func drain(out chan proto.OutboundText) int {
	n := 0
	for {
		select {
		case <-out:
			n++
		default:
			return n
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				c.log.Debug().Err(err).Msg("ws closed by peer")
			default:
				if ctx.Err() == nil {
					c.log.Warn().Err(err).Msg("read ws frame")
				}
			}
			return err
		}
		c.stats.received.Add(1)
		c.dispatch(data)
	}
}

func (c *Channel) writeLoop(ctx context.Context, conn *websocket.Conn, out chan proto.OutboundText) error {
	for {
		select {
		case frame := <-out:
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				c.stats.dropped.Add(1)
				c.log.Error().Err(err).Str("room_id", frame.RoomID).Msg("write ws frame")
				return err
			}
			c.stats.sent.Add(1)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
