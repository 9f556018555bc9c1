package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/crickdraft/server/internal/catalog"
	"github.com/crickdraft/server/internal/room"
	"github.com/google/uuid"
)

// EventType names an outbound notification. The values are the wire-level
// event names clients subscribe to.
type EventType string

const (
	EventRoomJoined       EventType = "room-joined"       // private to the joining user
	EventUserJoined       EventType = "user-joined"       // membership changed: someone joined/reconnected
	EventUserLeft         EventType = "user-left"         // membership changed: someone disconnected
	EventSelectionStarted EventType = "selection-started" // draft began, includes turn order
	EventTurnStarted      EventType = "turn-started"      // a new turn opened
	EventItemPicked       EventType = "item-picked"       // manual pick
	EventItemAutoPicked   EventType = "item-auto-picked"  // timeout/disconnect pick
	EventSelectionEnded   EventType = "selection-ended"   // draft complete, includes standings
	EventRoomUpdated      EventType = "room-updated"      // full state refresh
	EventError            EventType = "error"
)

// Event is the envelope for every outbound notification.
type Event struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps a payload in an envelope.
func NewEvent(roomID string, typ EventType, now time.Time, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      typ,
		Timestamp: now,
		Data:      data,
	}, nil
}

// ParticipantState is a participant as serialized to clients.
type ParticipantState struct {
	UserID    string         `json:"user_id"`
	Name      string         `json:"name"`
	IsHost    bool           `json:"is_host"`
	Connected bool           `json:"connected"`
	Picks     []catalog.Item `json:"picks"`
	PickCount int            `json:"pick_count"`
}

// RoomState is the full room snapshot included in most events.
type RoomState struct {
	ID                  string             `json:"id"`
	HostID              string             `json:"host_id"`
	Status              room.Status        `json:"status"`
	Users               []ParticipantState `json:"users"`
	AvailableItems      []catalog.Item     `json:"available_items"`
	AvailableItemCount  int                `json:"available_item_count"`
	TurnOrder           []string           `json:"turn_order"`
	CurrentTurnUserID   string             `json:"current_turn_user_id,omitempty"`
	CurrentTurnIndex    int                `json:"current_turn_index"`
	Round               int                `json:"round"`
	MaxRounds           int                `json:"max_rounds"`
	TurnTimeRemainingMS int64              `json:"turn_time_remaining_ms"`
	CreatedAt           time.Time          `json:"created_at"`
}

// StateOf serializes a room for clients.
func StateOf(r *room.Room, now time.Time) *RoomState {
	users := make([]ParticipantState, 0, len(r.Participants))
	for _, p := range r.Participants {
		users = append(users, ParticipantState{
			UserID:    p.UserID,
			Name:      p.Name,
			IsHost:    p.IsHost,
			Connected: p.Connected,
			Picks:     p.Picks,
			PickCount: len(p.Picks),
		})
	}
	return &RoomState{
		ID:                  r.ID,
		HostID:              r.HostID,
		Status:              r.Status,
		Users:               users,
		AvailableItems:      r.AvailableItems,
		AvailableItemCount:  len(r.AvailableItems),
		TurnOrder:           r.TurnOrder,
		CurrentTurnUserID:   r.CurrentTurnUserID,
		CurrentTurnIndex:    r.CurrentTurnIndex,
		Round:               r.Round,
		MaxRounds:           r.MaxRounds,
		TurnTimeRemainingMS: r.RemainingTurnBudget(now).Milliseconds(),
		CreatedAt:           r.CreatedAt,
	}
}

// RoomJoinedPayload is sent privately to a user who joined or reconnected.
type RoomJoinedPayload struct {
	Room        *RoomState `json:"room"`
	UserID      string     `json:"user_id"`
	Reconnected bool       `json:"reconnected,omitempty"`
}

// UserJoinedPayload announces a join or reconnection to the room.
type UserJoinedPayload struct {
	User        ParticipantState `json:"user"`
	Room        *RoomState       `json:"room"`
	Reconnected bool             `json:"reconnected,omitempty"`
}

// UserLeftPayload announces a disconnect to the room.
type UserLeftPayload struct {
	UserID   string     `json:"user_id"`
	UserName string     `json:"user_name"`
	Room     *RoomState `json:"room"`
}

// SelectionStartedPayload announces the draft start.
type SelectionStartedPayload struct {
	Room      *RoomState `json:"room"`
	TurnOrder []string   `json:"turn_order"`
}

// TurnStartedPayload announces a newly opened turn.
type TurnStartedPayload struct {
	UserID      string     `json:"user_id"`
	UserName    string     `json:"user_name"`
	TimeLimitMS int64      `json:"time_limit_ms"`
	Room        *RoomState `json:"room"`
}

// ItemPickedPayload carries a manual or automatic pick. The event type
// distinguishes the two.
type ItemPickedPayload struct {
	UserID   string       `json:"user_id"`
	UserName string       `json:"user_name"`
	Item     catalog.Item `json:"item"`
	Room     *RoomState   `json:"room"`
}

// SelectionEndedPayload carries the final standings.
type SelectionEndedPayload struct {
	Results []room.Result `json:"results"`
	Room    *RoomState    `json:"room"`
}

// RoomUpdatedPayload is a bare state refresh.
type RoomUpdatedPayload struct {
	Room *RoomState `json:"room"`
}

// ErrorPayload tells one user why their operation was rejected.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Broadcaster delivers outbound events to room members. Implementations are
// the websocket gateway (single process) and the NATS relay (fanout across
// instances).
type Broadcaster interface {
	// Broadcast delivers an event to every connected member of the room.
	Broadcast(roomID string, ev *Event)
	// BroadcastExcept delivers to every member but one.
	BroadcastExcept(roomID, exceptUserID string, ev *Event)
	// SendToUser delivers privately to one member.
	SendToUser(roomID, userID string, ev *Event)
}
