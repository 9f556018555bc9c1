package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/crickdraft/server/internal/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Connection is one websocket client. UserID/RoomID are empty until the
// client's first successful join or reconnect binds it to a room.
type Connection struct {
	ID          string
	UserID      string
	RoomID      string
	Conn        *websocket.Conn
	Send        chan []byte
	ConnectedAt time.Time

	manager   *ConnectionManager
	closeOnce sync.Once
}

// enqueue queues raw bytes for the write pump. Slow consumers are dropped
// rather than allowed to stall the room.
func (c *Connection) enqueue(data []byte) {
	select {
	case c.Send <- data:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("user_id", c.UserID).
			Msg("send buffer full, closing connection")
		c.manager.drop(c)
		c.Conn.Close()
	}
}

// sendEvent serializes and queues a single event on this connection,
// bypassing the room pools. Used for private errors before a bind exists.
func (c *Connection) sendEvent(ev *session.Event) {
	if ev == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal event")
		return
	}
	c.enqueue(data)
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.disconnect()
		c.manager.drop(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("websocket read failed")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		c.handleCommand(data)
	}
}

// disconnect runs the transport-level drop path. The user room pointer is
// kept so the user can reconnect into the same room later.
func (c *Connection) disconnect() {
	if c.RoomID == "" || c.UserID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.manager.coord.Disconnect(ctx, c.RoomID, c.UserID); err != nil {
		log.Error().
			Err(err).
			Str("room_id", c.RoomID).
			Str("user_id", c.UserID).
			Msg("disconnect handling failed")
	}
}
