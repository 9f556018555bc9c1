package room

import (
	"time"

	"github.com/crickdraft/server/internal/catalog"
)

// Participant is a joined user within a room. A participant slot is never
// removed mid-session; disconnects only flip Connected so the slot survives
// for reconnection and turn-order integrity.
type Participant struct {
	UserID         string         `json:"user_id"`
	Name           string         `json:"name"`
	IsHost         bool           `json:"is_host"`
	Picks          []catalog.Item `json:"picks"`
	Connected      bool           `json:"connected"`
	JoinedAt       time.Time      `json:"joined_at"`
	DisconnectedAt *time.Time     `json:"disconnected_at,omitempty"`
}

func newParticipant(userID, name string, isHost bool, now time.Time) *Participant {
	return &Participant{
		UserID:    userID,
		Name:      name,
		IsHost:    isHost,
		Picks:     []catalog.Item{},
		Connected: true,
		JoinedAt:  now,
	}
}
