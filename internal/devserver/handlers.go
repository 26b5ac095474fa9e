package devserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/wirechat-client/internal/proto"
	"github.com/vovakirdan/wirechat-client/internal/store"
	"github.com/vovakirdan/wirechat-client/internal/utils"
)

// CreateRoomRequest is the create-room form.
type CreateRoomRequest struct {
	Name string `form:"chatroom_name" binding:"required,max=64"`
}

// JoinRoomRequest is the join-room form.
type JoinRoomRequest struct {
	InviteCode string `form:"invite_code" binding:"required"`
}

// CreateInviteRequest is the create-invite form. Room carries the room id.
type CreateInviteRequest struct {
	Room      string `form:"chatroom_name" binding:"required"`
	TimeLimit string `form:"invite_timelimit" binding:"required"`
}

// UserChatroomsResponse lists the session user's rooms.
type UserChatroomsResponse struct {
	Name        string          `json:"name"`
	Chatrooms   []proto.RoomRef `json:"chatrooms"`
	CurrentRoom *string         `json:"current_room"`
}

// createRoom handles room creation.
// POST /create-room
func (s *Server) createRoom(c *gin.Context) {
	uid := userID(c)

	var req CreateRoomRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		s.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "chatroom name is required and must be at most 64 characters"})
		return
	}
	name := strings.TrimSpace(req.Name)

	ctx := c.Request.Context()
	room, err := s.store.CreateRoom(ctx, utils.NewRoomID(), name, uid)
	if err != nil {
		s.log.Error().Err(err).Str("room_name", name).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if err := s.store.SetCurrentRoom(ctx, uid, room.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", uid).Msg("failed to set current room")
	}

	ref := proto.RoomRef{ID: room.ID, Name: room.Name}
	s.hub.deliver([]string{uid}, proto.Inbound{Kind: proto.KindRoomCreated, RoomID: room.ID, Name: room.Name})

	s.log.Info().Str("room_id", room.ID).Str("room_name", room.Name).Str("owner_id", uid).Msg("room created")
	c.JSON(http.StatusCreated, ref)
}

// joinRoom redeems an invite.
// POST /join-room
func (s *Server) joinRoom(c *gin.Context) {
	uid := userID(c)

	var req JoinRoomRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invite code is required"})
		return
	}

	ctx := c.Request.Context()
	invite, err := s.store.GetInvite(ctx, proto.InviteCodeFrom(req.InviteCode))
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "invite not found"})
		return
	case err != nil:
		s.log.Error().Err(err).Msg("failed to load invite")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	case invite.Expired(s.now()):
		c.JSON(http.StatusGone, ErrorResponse{Error: store.ErrInviteExpired.Error()})
		return
	}

	room, err := s.store.GetRoom(ctx, invite.RoomID)
	if err != nil {
		s.log.Error().Err(err).Str("room_id", invite.RoomID).Msg("invite points to missing room")
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	if err := s.store.AddMember(ctx, uid, room.ID); err != nil {
		s.log.Error().Err(err).Str("room_id", room.ID).Msg("failed to add member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if err := s.store.SetCurrentRoom(ctx, uid, room.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", uid).Msg("failed to set current room")
	}

	s.hub.deliver([]string{uid}, proto.Inbound{Kind: proto.KindJoinAccepted, RoomID: room.ID, Name: room.Name})

	s.log.Info().Str("room_id", room.ID).Str("user_id", uid).Msg("room joined")
	c.JSON(http.StatusAccepted, proto.RoomRef{ID: room.ID, Name: room.Name})
}

// createInvite issues an invite to a room the caller belongs to. The
// response is the invite URL as a JSON string.
// POST /create-invite
func (s *Server) createInvite(c *gin.Context) {
	uid := userID(c)

	var req CreateInviteRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "chatroom name and invite time limit are required"})
		return
	}

	now := s.now()
	var expires *time.Time
	switch req.TimeLimit {
	case proto.InviteOneDay:
		t := now.Add(24 * time.Hour)
		expires = &t
	case proto.InviteOneWeek:
		t := now.Add(7 * 24 * time.Hour)
		expires = &t
	case proto.InviteForever:
	default:
		c.String(http.StatusBadRequest, "Expiry value is not one of the possible choices")
		return
	}

	ctx := c.Request.Context()
	member, err := s.store.IsMember(ctx, uid, req.Room)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a member of this room"})
		return
	}

	code, err := utils.NewInviteCode()
	if err != nil {
		s.log.Error().Err(err).Msg("failed to generate invite code")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	invite := &store.Invite{Code: code, RoomID: req.Room, CreatedBy: uid, ExpiresAt: expires, CreatedAt: now}
	if err := s.store.CreateInvite(ctx, invite); err != nil {
		s.log.Error().Err(err).Msg("failed to store invite")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	s.log.Info().Str("room_id", req.Room).Str("time_limit", req.TimeLimit).Msg("invite created")
	c.JSON(http.StatusAccepted, proto.InviteURL(s.publicURL(c), code))
}

// userChatrooms lists the caller's rooms and current room.
// POST /user/chatrooms
func (s *Server) userChatrooms(c *gin.Context) {
	uid := userID(c)
	ctx := c.Request.Context()

	rooms, err := s.store.ListUserRooms(ctx, uid)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", uid).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	user, err := s.store.GetUser(ctx, uid)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", uid).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := UserChatroomsResponse{Name: uid, Chatrooms: make([]proto.RoomRef, 0, len(rooms))}
	for _, room := range rooms {
		resp.Chatrooms = append(resp.Chatrooms, proto.RoomRef{ID: room.ID, Name: room.Name})
	}
	if user.CurrentRoom != "" {
		resp.CurrentRoom = &user.CurrentRoom
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) publicURL(c *gin.Context) string {
	if s.opts.PublicURL != "" {
		return s.opts.PublicURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
