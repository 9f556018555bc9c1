package room

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/crickdraft/server/internal/catalog"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a room. Transitions only move forward:
// WAITING -> IN_PROGRESS -> COMPLETED.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

const (
	// Capacity is the maximum number of connected participants in a room.
	Capacity = 6
	// MinParticipants is the minimum connected participants required to start.
	MinParticipants = 2
	// PicksPerParticipant is each participant's item quota (maxRounds).
	PicksPerParticipant = 5
	// TurnTimeLimit is the fixed budget for a single turn.
	TurnTimeLimit = 10 * time.Second
)

// Room is the draft session aggregate. All mutation goes through its methods;
// a failed operation leaves the room untouched. Room carries no timers and no
// locks: per-room serialization is the coordinator's job, and scheduling is
// the turn scheduler's.
type Room struct {
	ID                string                  `json:"id"`
	HostID            string                  `json:"host_id"`
	Status            Status                  `json:"status"`
	Participants      map[string]*Participant `json:"participants"`
	AvailableItems    []catalog.Item          `json:"available_items"`
	TurnOrder         []string                `json:"turn_order"`
	CurrentTurnIndex  int                     `json:"current_turn_index"`
	CurrentTurnUserID string                  `json:"current_turn_user_id,omitempty"`
	TurnStartedAt     *time.Time              `json:"turn_started_at,omitempty"`
	Round             int                     `json:"round"`
	MaxRounds         int                     `json:"max_rounds"`
	CreatedAt         time.Time               `json:"created_at"`
}

// New creates a WAITING room with the host as its first participant. Room ids
// are lowercase UUIDs so store keys are case-insensitive by construction.
func New(hostID, hostName string, now time.Time) *Room {
	r := &Room{
		ID:             strings.ToLower(uuid.New().String()),
		HostID:         hostID,
		Status:         StatusWaiting,
		Participants:   make(map[string]*Participant),
		AvailableItems: catalog.All(),
		TurnOrder:      []string{},
		Round:          1,
		MaxRounds:      PicksPerParticipant,
		CreatedAt:      now,
	}
	r.Participants[hostID] = newParticipant(hostID, hostName, true, now)
	return r
}

// Participant returns the participant with the given user id, if any.
func (r *Room) Participant(userID string) (*Participant, bool) {
	p, ok := r.Participants[userID]
	return p, ok
}

// ConnectedParticipants returns connected participants sorted by join time
// (ties broken by user id) so callers get a stable order.
func (r *Room) ConnectedParticipants() []*Participant {
	out := make([]*Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		if p.Connected {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// ConnectedCount returns the number of connected participants.
func (r *Room) ConnectedCount() int {
	n := 0
	for _, p := range r.Participants {
		if p.Connected {
			n++
		}
	}
	return n
}

// AddParticipant joins a new user, or reconnects a known one. Rejoining with
// an existing user id never duplicates the slot; it only flips the connected
// flag back on.
func (r *Room) AddParticipant(userID, name string, now time.Time) (*Participant, error) {
	if p, ok := r.Participants[userID]; ok {
		p.Connected = true
		p.DisconnectedAt = nil
		return p, nil
	}
	if r.Status != StatusWaiting {
		return nil, ErrRoomNotAcceptingJoins
	}
	if r.ConnectedCount() >= Capacity {
		return nil, ErrRoomFull
	}
	p := newParticipant(userID, name, false, now)
	r.Participants[userID] = p
	return p, nil
}

// MarkDisconnected flags a participant as disconnected. The slot persists.
// If the host drops while the room is still WAITING, the host role migrates
// to the earliest-joined connected participant so the room stays joinable.
func (r *Room) MarkDisconnected(userID string, now time.Time) error {
	p, ok := r.Participants[userID]
	if !ok {
		return ErrParticipantNotFound
	}
	p.Connected = false
	t := now
	p.DisconnectedAt = &t

	if p.IsHost && r.Status == StatusWaiting {
		if next := r.ConnectedParticipants(); len(next) > 0 {
			p.IsHost = false
			next[0].IsHost = true
			r.HostID = next[0].UserID
		}
	}
	return nil
}

// MarkConnected flags a participant as connected again.
func (r *Room) MarkConnected(userID string) error {
	p, ok := r.Participants[userID]
	if !ok {
		return ErrParticipantNotFound
	}
	p.Connected = true
	p.DisconnectedAt = nil
	return nil
}

// CanStart reports whether the draft can begin.
func (r *Room) CanStart() bool {
	n := r.ConnectedCount()
	return r.Status == StatusWaiting && n >= MinParticipants && n <= Capacity
}

// StartSelection freezes the turn order as a random permutation of the
// currently connected participants and opens the first turn. The order is
// never recomputed afterwards, even across disconnects.
func (r *Room) StartSelection(rng *rand.Rand, now time.Time) error {
	if !r.CanStart() {
		return ErrInvalidTransition
	}
	connected := r.ConnectedParticipants()
	order := make([]string, len(connected))
	for i, p := range connected {
		order[i] = p.UserID
	}
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	r.Status = StatusInProgress
	r.TurnOrder = order
	r.CurrentTurnIndex = 0
	r.Round = 1
	r.openTurn(now)
	return nil
}

func (r *Room) openTurn(now time.Time) {
	r.CurrentTurnUserID = r.TurnOrder[r.CurrentTurnIndex]
	t := now
	r.TurnStartedAt = &t
}

// Pick moves an item from the pool into the acting participant's picks. It
// does not advance the turn; callers broadcast the pick first and then call
// AdvanceTurn. All validation happens before any mutation.
func (r *Room) Pick(userID string, itemID int) (catalog.Item, error) {
	p, ok := r.Participants[userID]
	if !ok {
		return catalog.Item{}, ErrParticipantNotFound
	}
	if userID != r.CurrentTurnUserID {
		return catalog.Item{}, ErrNotYourTurn
	}
	idx := -1
	for i, it := range r.AvailableItems {
		if it.ID == itemID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return catalog.Item{}, ErrItemUnavailable
	}
	if len(p.Picks) >= r.MaxRounds {
		return catalog.Item{}, ErrQuotaExceeded
	}

	item := r.AvailableItems[idx]
	r.AvailableItems = append(r.AvailableItems[:idx], r.AvailableItems[idx+1:]...)
	p.Picks = append(p.Picks, item)
	return item, nil
}

// AutoPick selects a uniformly random available item on behalf of the current
// turn holder. Used by the scheduler path when a turn times out.
func (r *Room) AutoPick(userID string, rng *rand.Rand) (catalog.Item, error) {
	if userID != r.CurrentTurnUserID {
		return catalog.Item{}, ErrNotYourTurn
	}
	if len(r.AvailableItems) == 0 {
		return catalog.Item{}, ErrNoItemsAvailable
	}
	itemID := r.AvailableItems[rng.Intn(len(r.AvailableItems))].ID
	return r.Pick(userID, itemID)
}

// AdvanceTurn moves to the next slot in the turn order. Completing a full
// cycle increments the round; passing the final round completes the room and
// returns an empty user id.
func (r *Room) AdvanceTurn(now time.Time) (string, error) {
	if r.Status != StatusInProgress {
		return "", ErrInvalidTransition
	}
	r.CurrentTurnIndex = (r.CurrentTurnIndex + 1) % len(r.TurnOrder)
	if r.CurrentTurnIndex == 0 {
		r.Round++
	}
	if r.Round > r.MaxRounds {
		r.Status = StatusCompleted
		r.CurrentTurnUserID = ""
		r.TurnStartedAt = nil
		return "", nil
	}
	r.openTurn(now)
	return r.CurrentTurnUserID, nil
}

// IsComplete reports whether the draft has finished.
func (r *Room) IsComplete() bool {
	return r.Status == StatusCompleted
}

// RemainingTurnBudget returns how much of the turn time limit is left, or 0
// when no turn is active.
func (r *Room) RemainingTurnBudget(now time.Time) time.Duration {
	if r.TurnStartedAt == nil {
		return 0
	}
	rem := TurnTimeLimit - now.Sub(*r.TurnStartedAt)
	if rem < 0 {
		return 0
	}
	return rem
}

// Result is one participant's final standing.
type Result struct {
	UserID   string         `json:"user_id"`
	UserName string         `json:"user_name"`
	IsHost   bool           `json:"is_host"`
	Picks    []catalog.Item `json:"picks"`
}

// FinalResults returns all participants' standings sorted by display name
// ascending (ties broken by user id) for deterministic output.
func (r *Room) FinalResults() []Result {
	out := make([]Result, 0, len(r.Participants))
	for _, p := range r.Participants {
		out = append(out, Result{
			UserID:   p.UserID,
			UserName: p.Name,
			IsHost:   p.IsHost,
			Picks:    p.Picks,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserName == out[j].UserName {
			return out[i].UserID < out[j].UserID
		}
		return out[i].UserName < out[j].UserName
	})
	return out
}

// Stats is a lightweight summary for the admin query surface.
type Stats struct {
	ID             string    `json:"id"`
	Status         Status    `json:"status"`
	TotalUsers     int       `json:"total_users"`
	ConnectedUsers int       `json:"connected_users"`
	AvailableItems int       `json:"available_items"`
	CurrentRound   int       `json:"current_round"`
	MaxRounds      int       `json:"max_rounds"`
	CreatedAt      time.Time `json:"created_at"`
}

// Stats computes the room's summary statistics.
func (r *Room) Stats() Stats {
	return Stats{
		ID:             r.ID,
		Status:         r.Status,
		TotalUsers:     len(r.Participants),
		ConnectedUsers: r.ConnectedCount(),
		AvailableItems: len(r.AvailableItems),
		CurrentRound:   r.Round,
		MaxRounds:      r.MaxRounds,
		CreatedAt:      r.CreatedAt,
	}
}
