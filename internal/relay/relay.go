// Package relay fans room events out over NATS so multiple gateway instances
// can serve the same rooms. The coordinator publishes through the relay
// instead of straight into the local connection manager; every instance
// (including the publisher) consumes `room.events.>` and delivers to its own
// connections.
package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/crickdraft/server/internal/session"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const subjectPrefix = "room.events."

const (
	targetAll    = "all"
	targetUser   = "user"
	targetExcept = "except"
)

type message struct {
	Target string         `json:"target"`
	UserID string         `json:"user_id,omitempty"`
	Event  *session.Event `json:"event"`
}

// LocalSink is where consumed events get delivered; in practice the gateway
// connection manager.
type LocalSink interface {
	Broadcast(roomID string, ev *session.Event)
	BroadcastExcept(roomID, exceptUserID string, ev *session.Event)
	SendToUser(roomID, userID string, ev *session.Event)
}

// Relay is a session.Broadcaster that routes through NATS.
type Relay struct {
	nc   *nats.Conn
	sink LocalSink
	sub  *nats.Subscription
}

// New connects to NATS with reconnect handling.
func New(url string, sink LocalSink) (*Relay, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Relay{nc: nc, sink: sink}, nil
}

// Start subscribes to room events and forwards them into the local sink.
func (r *Relay) Start() error {
	sub, err := r.nc.Subscribe(subjectPrefix+">", r.handle)
	if err != nil {
		return fmt.Errorf("subscribe room events: %w", err)
	}
	r.sub = sub
	log.Info().Msg("relay consuming room events")
	return nil
}

// Close drains the subscription and connection.
func (r *Relay) Close() {
	if r.sub != nil {
		_ = r.sub.Unsubscribe()
	}
	r.nc.Close()
}

func (r *Relay) handle(m *nats.Msg) {
	var msg message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		log.Error().Err(err).Str("subject", m.Subject).Msg("malformed relay message")
		return
	}
	if msg.Event == nil {
		return
	}
	switch msg.Target {
	case targetUser:
		r.sink.SendToUser(msg.Event.RoomID, msg.UserID, msg.Event)
	case targetExcept:
		r.sink.BroadcastExcept(msg.Event.RoomID, msg.UserID, msg.Event)
	default:
		r.sink.Broadcast(msg.Event.RoomID, msg.Event)
	}
}

func (r *Relay) publish(roomID string, msg message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to marshal relay message")
		return
	}
	if err := r.nc.Publish(subjectPrefix+roomID, data); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to publish room event")
	}
}

// Broadcast implements session.Broadcaster.
func (r *Relay) Broadcast(roomID string, ev *session.Event) {
	r.publish(roomID, message{Target: targetAll, Event: ev})
}

// BroadcastExcept implements session.Broadcaster.
func (r *Relay) BroadcastExcept(roomID, exceptUserID string, ev *session.Event) {
	r.publish(roomID, message{Target: targetExcept, UserID: exceptUserID, Event: ev})
}

// SendToUser implements session.Broadcaster.
func (r *Relay) SendToUser(roomID, userID string, ev *session.Event) {
	r.publish(roomID, message{Target: targetUser, UserID: userID, Event: ev})
}

var _ session.Broadcaster = (*Relay)(nil)
