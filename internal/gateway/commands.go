package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/crickdraft/server/internal/room"
	"github.com/crickdraft/server/internal/session"
	"github.com/rs/zerolog/log"
)

// CommandType names an inbound client request.
type CommandType string

const (
	CommandJoin      CommandType = "join-room"
	CommandStart     CommandType = "start-selection"
	CommandPick      CommandType = "select-item"
	CommandReconnect CommandType = "reconnect"
	CommandLeave     CommandType = "leave-room"
)

// Command is the wire shape of every client request.
type Command struct {
	Type     CommandType `json:"type"`
	RoomID   string      `json:"room_id,omitempty"`
	UserID   string      `json:"user_id,omitempty"`
	UserName string      `json:"user_name,omitempty"`
	ItemID   int         `json:"item_id,omitempty"`
}

func validationError(msg string) *room.Error {
	return &room.Error{Kind: room.KindValidation, Code: "bad_request", Message: msg}
}

// handleCommand decodes and dispatches one inbound frame. Malformed input is
// rejected before any room state is touched; every failure comes back to the
// caller as a single error event.
func (c *Connection) handleCommand(data []byte) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		c.sendError("", validationError("malformed command"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cmd.Type {
	case CommandJoin:
		c.handleJoin(ctx, cmd)
	case CommandStart:
		c.handleStart(ctx)
	case CommandPick:
		c.handlePick(ctx, cmd)
	case CommandReconnect:
		c.handleReconnect(ctx, cmd)
	case CommandLeave:
		c.handleLeave(ctx)
	default:
		c.sendError(c.RoomID, validationError("unknown command type"))
	}
}

func (c *Connection) sendError(roomID string, err error) {
	c.sendEvent(session.ErrorEvent(roomID, err, c.manager.coord.Now()))
}

func (c *Connection) handleJoin(ctx context.Context, cmd Command) {
	if cmd.RoomID == "" || cmd.UserID == "" || cmd.UserName == "" {
		c.sendError(cmd.RoomID, validationError("room_id, user_id and user_name are required"))
		return
	}
	// Dropping out of the previous room first mirrors a client switching
	// rooms on one connection.
	if c.RoomID != "" && c.RoomID != cmd.RoomID {
		c.handleLeave(ctx)
	}

	// Bind before joining so the coordinator's private room-joined event has
	// a registered connection to land on.
	c.manager.bind(c, cmd.RoomID, cmd.UserID)
	if err := c.manager.coord.Join(ctx, cmd.RoomID, cmd.UserID, cmd.UserName); err != nil {
		c.manager.unbind(c)
		c.UserID = ""
		c.sendError(cmd.RoomID, err)
		return
	}
	log.Info().
		Str("connection_id", c.ID).
		Str("room_id", cmd.RoomID).
		Str("user_id", cmd.UserID).
		Msg("join handled")
}

func (c *Connection) handleStart(ctx context.Context) {
	if c.RoomID == "" || c.UserID == "" {
		c.sendError("", validationError("not in a room"))
		return
	}
	if err := c.manager.coord.StartSelection(ctx, c.RoomID, c.UserID); err != nil {
		c.sendError(c.RoomID, err)
	}
}

func (c *Connection) handlePick(ctx context.Context, cmd Command) {
	if c.RoomID == "" || c.UserID == "" {
		c.sendError("", validationError("not in a room"))
		return
	}
	if cmd.ItemID <= 0 {
		c.sendError(c.RoomID, validationError("item_id is required"))
		return
	}
	if err := c.manager.coord.SelectItem(ctx, c.RoomID, c.UserID, cmd.ItemID); err != nil {
		c.sendError(c.RoomID, err)
	}
}

func (c *Connection) handleReconnect(ctx context.Context, cmd Command) {
	if cmd.UserID == "" {
		c.sendError("", validationError("user_id is required for reconnection"))
		return
	}
	roomID, err := c.manager.coord.LookupUserRoom(ctx, cmd.UserID)
	if err != nil {
		c.sendError("", err)
		return
	}
	c.manager.bind(c, roomID, cmd.UserID)
	if _, err := c.manager.coord.Reconnect(ctx, cmd.UserID); err != nil {
		c.manager.unbind(c)
		c.UserID = ""
		c.sendError(roomID, err)
		return
	}
	log.Info().
		Str("connection_id", c.ID).
		Str("room_id", roomID).
		Str("user_id", cmd.UserID).
		Msg("reconnect handled")
}

func (c *Connection) handleLeave(ctx context.Context) {
	if c.RoomID == "" || c.UserID == "" {
		return
	}
	roomID, userID := c.RoomID, c.UserID
	c.manager.unbind(c)
	if err := c.manager.coord.Leave(ctx, roomID, userID); err != nil {
		c.sendError(roomID, err)
	}
}
