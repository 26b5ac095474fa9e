package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-client/internal/proto"
)

const maxResponseBytes = 1 << 20

// ErrBadResponse is returned when a success response cannot be decoded.
var ErrBadResponse = errors.New("bad response body")

// StatusError reports a non-success HTTP status for an operation.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// Options configures the API client.
type Options struct {
	Timeout      time.Duration
	SessionToken string
	HTTPClient   *stdhttp.Client
}

// Client talks to the room request/response endpoints.
type Client struct {
	base  *url.URL
	http  *stdhttp.Client
	token string
	log   *zerolog.Logger
}

// NewClient builds a client for the server at baseURL.
func NewClient(baseURL string, opts Options, logger *zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse server url: %q is not absolute", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		httpClient = &stdhttp.Client{Timeout: opts.Timeout, Jar: jar}
	}

	return &Client{
		base:  base,
		http:  httpClient,
		token: opts.SessionToken,
		log:   logger,
	}, nil
}

// CreateRoom creates a room named name. Any 2xx status is a success.
func (c *Client) CreateRoom(ctx context.Context, name string) (proto.RoomRef, error) {
	form := url.Values{proto.FieldChatroomName: {name}}
	body, err := c.postForm(ctx, "create room", proto.PathCreateRoom, form, anySuccess)
	if err != nil {
		return proto.RoomRef{}, err
	}
	return decodeRoom("create room", body)
}

// JoinRoom redeems an invite code. Only 202 Accepted is a success.
func (c *Client) JoinRoom(ctx context.Context, inviteCode string) (proto.RoomRef, error) {
	form := url.Values{proto.FieldInviteCode: {inviteCode}}
	body, err := c.postForm(ctx, "join room", proto.PathJoinRoom, form, exactly(stdhttp.StatusAccepted))
	if err != nil {
		return proto.RoomRef{}, err
	}
	return decodeRoom("join room", body)
}

// CreateInvite asks for an invite to roomName valid for timeLimit. Only 202
// Accepted is a success.
func (c *Client) CreateInvite(ctx context.Context, roomName, timeLimit string) (proto.Invite, error) {
	form := url.Values{
		proto.FieldChatroomName:    {roomName},
		proto.FieldInviteTimeLimit: {timeLimit},
	}
	body, err := c.postForm(ctx, "create invite", proto.PathCreateInvite, form, exactly(stdhttp.StatusAccepted))
	if err != nil {
		return proto.Invite{}, err
	}

	var value string
	if err := json.Unmarshal(body, &value); err != nil {
		// Some servers answer with the bare code as text.
		value = string(body)
	}
	invite, err := proto.ParseInvite(value)
	if err != nil {
		return proto.Invite{}, fmt.Errorf("create invite: %w: %v", ErrBadResponse, err)
	}
	return invite, nil
}

// UserChatrooms fetches the rooms the user belongs to and the current room.
func (c *Client) UserChatrooms(ctx context.Context) (proto.UserChatrooms, error) {
	body, err := c.postForm(ctx, "list chatrooms", proto.PathUserChatrooms, url.Values{}, anySuccess)
	if err != nil {
		return proto.UserChatrooms{}, err
	}

	var resp proto.UserChatrooms
	if err := json.Unmarshal(body, &resp); err != nil {
		return proto.UserChatrooms{}, fmt.Errorf("list chatrooms: %w: %v", ErrBadResponse, err)
	}
	return resp, nil
}

type statusCheck func(int) bool

func anySuccess(status int) bool { return status >= 200 && status < 300 }

func exactly(want int) statusCheck {
	return func(status int) bool { return status == want }
}

func (c *Client) postForm(ctx context.Context, op, path string, form url.Values, ok statusCheck) ([]byte, error) {
	endpoint := c.base.JoinPath(path).String()

	req, err := stdhttp.NewRequestWithContext(ctx, stdhttp.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.AddCookie(&stdhttp.Cookie{Name: proto.SessionCookieName, Value: c.token})
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("op", op).Str("url", endpoint).Msg("request failed")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}

	c.log.Debug().
		Str("op", op).
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("api request")

	if !ok(resp.StatusCode) {
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func decodeRoom(op string, body []byte) (proto.RoomRef, error) {
	var room proto.RoomRef
	if err := json.Unmarshal(body, &room); err != nil {
		return proto.RoomRef{}, fmt.Errorf("%s: %w: %v", op, ErrBadResponse, err)
	}
	if err := room.Validate(); err != nil {
		return proto.RoomRef{}, fmt.Errorf("%s: %w: %v", op, ErrBadResponse, err)
	}
	return room, nil
}
