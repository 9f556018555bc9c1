package room

import (
	"encoding/json"
	"fmt"

	"github.com/crickdraft/server/internal/catalog"
)

// Snapshot serializes the full aggregate for storage. Timers are process-local
// and are deliberately not part of the snapshot.
func (r *Room) Snapshot() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal room %s: %w", r.ID, err)
	}
	return data, nil
}

// FromSnapshot revives a room from its stored form. Restored rooms never have
// a pending timer; the coordinator re-arms the turn clock after a reload.
func FromSnapshot(data []byte) (*Room, error) {
	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("unmarshal room: %w", err)
	}
	if r.Participants == nil {
		r.Participants = make(map[string]*Participant)
	}
	if r.AvailableItems == nil {
		r.AvailableItems = []catalog.Item{}
	}
	if r.TurnOrder == nil {
		r.TurnOrder = []string{}
	}
	for _, p := range r.Participants {
		if p.Picks == nil {
			p.Picks = []catalog.Item{}
		}
	}
	return &r, nil
}
