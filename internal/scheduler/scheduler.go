// Package scheduler owns the per-room turn clock: at most one pending timer
// per room, replaced on every arm and cancelled on disarm. The timer facility
// is inherently racy around cancellation, so the timeout callback is treated
// as advisory: the coordinator re-validates the expected turn holder before
// acting on a fire.
package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// TimeoutFunc is invoked when a room's turn budget expires. expectedUserID is
// the turn holder the timer was armed for; callers must treat a mismatch with
// the live room state as a stale fire and do nothing.
type TimeoutFunc func(roomID, expectedUserID string)

type armed struct {
	expectedUserID string
	timer          clockwork.Timer
}

// TurnScheduler keeps one pending timer per room.
type TurnScheduler struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	timers map[string]*armed
}

// New creates a scheduler driven by the given clock.
func New(clock clockwork.Clock) *TurnScheduler {
	return &TurnScheduler{
		clock:  clock,
		timers: make(map[string]*armed),
	}
}

// Arm schedules a timeout for the room, cancelling any previously pending
// timer for it (replace, never stack). When the timer fires, onTimeout runs
// on the timer goroutine.
func (s *TurnScheduler) Arm(roomID, expectedUserID string, d time.Duration, onTimeout TimeoutFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[roomID]; ok {
		prev.timer.Stop()
		delete(s.timers, roomID)
	}

	a := &armed{expectedUserID: expectedUserID}
	a.timer = s.clock.AfterFunc(d, func() {
		if !s.claimFire(roomID, a) {
			// Superseded or disarmed between expiry and this callback.
			return
		}
		log.Debug().
			Str("room_id", roomID).
			Str("expected_user_id", expectedUserID).
			Msg("turn timer fired")
		onTimeout(roomID, expectedUserID)
	})
	s.timers[roomID] = a

	log.Debug().
		Str("room_id", roomID).
		Str("expected_user_id", expectedUserID).
		Dur("budget", d).
		Msg("turn timer armed")
}

// claimFire atomically checks that the firing timer is still the registered
// one for the room and unregisters it. Stop racing with the fire cannot make
// the callback run twice or run after a successful Disarm.
func (s *TurnScheduler) claimFire(roomID string, a *armed) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.timers[roomID]
	if !ok || cur != a {
		return false
	}
	delete(s.timers, roomID)
	return true
}

// Disarm cancels the room's pending timer, if any.
func (s *TurnScheduler) Disarm(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.timers[roomID]; ok {
		a.timer.Stop()
		delete(s.timers, roomID)
		log.Debug().Str("room_id", roomID).Msg("turn timer disarmed")
	}
}

// Pending reports whether the room currently has an armed timer.
func (s *TurnScheduler) Pending(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[roomID]
	return ok
}
