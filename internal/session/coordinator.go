// Package session hosts the boundary-facing coordinator: it receives inbound
// events (join, start, pick, disconnect, reconnect), drives the room state
// machine, persists results, arms the turn scheduler, and emits outbound
// notifications. Every mutating operation is serialized per room; operations
// on different rooms run fully in parallel.
package session

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/crickdraft/server/internal/room"
	"github.com/crickdraft/server/internal/scheduler"
	"github.com/crickdraft/server/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	errRoomNotFound  = &room.Error{Kind: room.KindNotFound, Code: "room_not_found", Message: "room not found"}
	errNoActiveRoom  = &room.Error{Kind: room.KindNotFound, Code: "no_active_room", Message: "no active room for user"}
	errNotHost       = &room.Error{Kind: room.KindAuthorization, Code: "not_host", Message: "only the host can do that"}
	errAlreadyInRoom = &room.Error{Kind: room.KindStateConflict, Code: "already_in_room", Message: "user is already in another room"}
	errStoreFailure  = &room.Error{Kind: room.KindInfrastructure, Code: "store_unavailable", Message: "storage is temporarily unavailable"}
)

// Coordinator orchestrates all room mutations. It never shares room objects
// across operations: each operation loads a fresh snapshot from the store,
// mutates it, and persists the result under the room's lock.
type Coordinator struct {
	store store.RoomStore
	sched *scheduler.TurnScheduler
	bc    Broadcaster
	clock clockwork.Clock
	rng   *rand.Rand
	locks *roomLocks
}

// New wires a coordinator. The rng must be safe for concurrent use (see
// NewRand); tests inject a seeded one for deterministic turn order and
// auto-picks.
func New(st store.RoomStore, sched *scheduler.TurnScheduler, bc Broadcaster, clock clockwork.Clock, rng *rand.Rand) *Coordinator {
	return &Coordinator{
		store: st,
		sched: sched,
		bc:    bc,
		clock: clock,
		rng:   rng,
		locks: newRoomLocks(),
	}
}

// ErrorEvent converts a rejected operation into the error notification sent
// back to the initiating user.
func ErrorEvent(roomID string, err error, now time.Time) *Event {
	payload := ErrorPayload{Kind: string(room.KindInfrastructure), Code: "internal", Message: "something went wrong"}
	var de *room.Error
	if errors.As(err, &de) {
		payload = ErrorPayload{Kind: string(de.Kind), Code: de.Code, Message: de.Message}
	}
	ev, mErr := NewEvent(roomID, EventError, now, payload)
	if mErr != nil {
		log.Error().Err(mErr).Msg("failed to build error event")
		return nil
	}
	return ev
}

func (c *Coordinator) emit(roomID string, typ EventType, payload any) *Event {
	ev, err := NewEvent(roomID, typ, c.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Str("type", string(typ)).Msg("failed to build event")
		return nil
	}
	return ev
}

func (c *Coordinator) broadcast(roomID string, typ EventType, payload any) {
	if ev := c.emit(roomID, typ, payload); ev != nil {
		c.bc.Broadcast(roomID, ev)
	}
}

func (c *Coordinator) loadRoom(ctx context.Context, roomID string) (*room.Room, error) {
	rm, err := c.store.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errRoomNotFound
	}
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("store load failed")
		return nil, errStoreFailure
	}
	return rm, nil
}

func (c *Coordinator) saveRoom(ctx context.Context, rm *room.Room) error {
	if err := c.store.SaveRoom(ctx, rm); err != nil {
		log.Error().Err(err).Str("room_id", rm.ID).Msg("store save failed")
		return errStoreFailure
	}
	return nil
}

// CreateRoom creates a WAITING room with the given host. The host still joins
// through the transport afterwards; creation only establishes the aggregate.
func (c *Coordinator) CreateRoom(ctx context.Context, hostID, hostName string) (*room.Room, error) {
	if _, err := c.store.GetUserRoom(ctx, hostID); err == nil {
		return nil, errAlreadyInRoom
	}
	rm := room.New(hostID, hostName, c.clock.Now())
	if err := c.saveRoom(ctx, rm); err != nil {
		return nil, err
	}
	if err := c.store.SetUserRoom(ctx, hostID, rm.ID); err != nil {
		log.Error().Err(err).Str("room_id", rm.ID).Msg("failed to set user room pointer")
		return nil, errStoreFailure
	}
	log.Info().Str("room_id", rm.ID).Str("host_id", hostID).Msg("room created")
	return rm, nil
}

// Join adds a user to a room (or reconnects a known participant). The joiner
// gets the full state privately; everyone else gets a membership event and a
// state refresh.
func (c *Coordinator) Join(ctx context.Context, roomID, userID, name string) error {
	c.locks.acquire(roomID)
	defer c.locks.release(roomID)

	if cur, err := c.store.GetUserRoom(ctx, userID); err == nil && cur != "" && cur != roomID {
		return errAlreadyInRoom
	}

	rm, err := c.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	_, existed := rm.Participant(userID)
	p, err := rm.AddParticipant(userID, name, c.clock.Now())
	if err != nil {
		return err
	}
	if err := c.saveRoom(ctx, rm); err != nil {
		return err
	}
	if err := c.store.SetUserRoom(ctx, userID, rm.ID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to set user room pointer")
		return errStoreFailure
	}

	now := c.clock.Now()
	state := StateOf(rm, now)
	if ev := c.emit(rm.ID, EventRoomJoined, RoomJoinedPayload{Room: state, UserID: userID, Reconnected: existed}); ev != nil {
		c.bc.SendToUser(rm.ID, userID, ev)
	}
	if ev := c.emit(rm.ID, EventUserJoined, UserJoinedPayload{User: participantState(p), Room: state, Reconnected: existed}); ev != nil {
		c.bc.BroadcastExcept(rm.ID, userID, ev)
	}
	c.broadcast(rm.ID, EventRoomUpdated, RoomUpdatedPayload{Room: state})

	log.Info().Str("room_id", rm.ID).Str("user_id", userID).Bool("rejoin", existed).Msg("user joined room")
	return nil
}

// StartSelection begins the draft. Host only.
func (c *Coordinator) StartSelection(ctx context.Context, roomID, requesterID string) error {
	c.locks.acquire(roomID)
	defer c.locks.release(roomID)

	rm, err := c.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	p, ok := rm.Participant(requesterID)
	if !ok || !p.IsHost {
		return errNotHost
	}
	if err := rm.StartSelection(c.rng, c.clock.Now()); err != nil {
		return err
	}
	if err := c.saveRoom(ctx, rm); err != nil {
		return err
	}

	state := StateOf(rm, c.clock.Now())
	c.broadcast(rm.ID, EventSelectionStarted, SelectionStartedPayload{Room: state, TurnOrder: rm.TurnOrder})
	c.openTurn(rm)

	log.Info().Str("room_id", rm.ID).Strs("turn_order", rm.TurnOrder).Msg("selection started")
	return nil
}

// openTurn announces the current turn and arms its timer. Callers must hold
// the room lock and have persisted the room already.
func (c *Coordinator) openTurn(rm *room.Room) {
	current := rm.CurrentTurnUserID
	if current == "" {
		return
	}
	p, _ := rm.Participant(current)
	name := ""
	if p != nil {
		name = p.Name
	}
	now := c.clock.Now()
	c.broadcast(rm.ID, EventTurnStarted, TurnStartedPayload{
		UserID:      current,
		UserName:    name,
		TimeLimitMS: room.TurnTimeLimit.Milliseconds(),
		Room:        StateOf(rm, now),
	})
	c.sched.Arm(rm.ID, current, room.TurnTimeLimit, c.HandleTimeout)
}

// SelectItem performs a manual pick for the current turn holder, then
// advances the turn (or completes the draft).
func (c *Coordinator) SelectItem(ctx context.Context, roomID, userID string, itemID int) error {
	c.locks.acquire(roomID)
	defer c.locks.release(roomID)

	rm, err := c.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	item, err := rm.Pick(userID, itemID)
	if err != nil {
		return err
	}
	pickedState := StateOf(rm, c.clock.Now())
	if _, err := rm.AdvanceTurn(c.clock.Now()); err != nil {
		return err
	}
	if err := c.saveRoom(ctx, rm); err != nil {
		// In-memory mutation discarded; pre-pick persisted state stays
		// authoritative and the timer keeps running.
		return err
	}

	c.sched.Disarm(rm.ID)

	p, _ := rm.Participant(userID)
	c.broadcast(rm.ID, EventItemPicked, ItemPickedPayload{
		UserID:   userID,
		UserName: p.Name,
		Item:     item,
		Room:     pickedState,
	})
	c.finishOrContinue(rm)

	log.Info().
		Str("room_id", rm.ID).
		Str("user_id", userID).
		Int("item_id", item.ID).
		Str("item", item.Name).
		Msg("item picked")
	return nil
}

// finishOrContinue broadcasts completion with final standings, or opens the
// next turn.
func (c *Coordinator) finishOrContinue(rm *room.Room) {
	if rm.IsComplete() {
		c.broadcast(rm.ID, EventSelectionEnded, SelectionEndedPayload{
			Results: rm.FinalResults(),
			Room:    StateOf(rm, c.clock.Now()),
		})
		log.Info().Str("room_id", rm.ID).Msg("selection completed")
		return
	}
	c.openTurn(rm)
}

// HandleTimeout is the scheduler's fire callback. It re-validates that the
// expected user still holds the turn; a stale fire is a no-op. Auto-picks are
// normal-path notifications, never user-visible errors.
func (c *Coordinator) HandleTimeout(roomID, expectedUserID string) {
	ctx := context.Background()
	c.locks.acquire(roomID)
	defer c.locks.release(roomID)

	rm, err := c.loadRoom(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("room_id", roomID).Msg("timeout fired for unloadable room")
		return
	}
	if rm.Status != room.StatusInProgress || rm.CurrentTurnUserID != expectedUserID {
		log.Debug().
			Str("room_id", roomID).
			Str("expected_user_id", expectedUserID).
			Str("current_user_id", rm.CurrentTurnUserID).
			Msg("stale turn timeout ignored")
		return
	}
	c.resolveTimeoutLocked(ctx, rm, expectedUserID)
}

// resolveTimeoutLocked runs the auto-pick path for the given turn holder.
// Callers hold the room lock and have already validated the turn.
func (c *Coordinator) resolveTimeoutLocked(ctx context.Context, rm *room.Room, userID string) {
	item, err := rm.AutoPick(userID, c.rng)
	if err != nil {
		log.Error().Err(err).Str("room_id", rm.ID).Str("user_id", userID).Msg("auto-pick failed")
		return
	}
	pickedState := StateOf(rm, c.clock.Now())
	if _, err := rm.AdvanceTurn(c.clock.Now()); err != nil {
		log.Error().Err(err).Str("room_id", rm.ID).Msg("advance after auto-pick failed")
		return
	}
	if err := c.saveRoom(ctx, rm); err != nil {
		return
	}

	p, _ := rm.Participant(userID)
	c.broadcast(rm.ID, EventItemAutoPicked, ItemPickedPayload{
		UserID:   userID,
		UserName: p.Name,
		Item:     item,
		Room:     pickedState,
	})
	c.finishOrContinue(rm)

	log.Info().
		Str("room_id", rm.ID).
		Str("user_id", userID).
		Int("item_id", item.ID).
		Msg("item auto-picked")
}

// Leave removes a user on explicit request: the user room pointer goes away
// so they can join another room. If it was their turn, the turn resolves
// immediately through the auto-pick path instead of waiting out the clock.
func (c *Coordinator) Leave(ctx context.Context, roomID, userID string) error {
	return c.detach(ctx, roomID, userID, true)
}

// Disconnect marks a user offline after a dropped connection. The participant
// slot and the user room pointer both persist so Reconnect can find the room
// again. A host dropping from a WAITING room migrates the host role inside
// the aggregate.
func (c *Coordinator) Disconnect(ctx context.Context, roomID, userID string) error {
	return c.detach(ctx, roomID, userID, false)
}

func (c *Coordinator) detach(ctx context.Context, roomID, userID string, removePointer bool) error {
	c.locks.acquire(roomID)
	defer c.locks.release(roomID)

	rm, err := c.loadRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, errRoomNotFound) {
			return nil
		}
		return err
	}
	p, ok := rm.Participant(userID)
	if !ok {
		return nil
	}
	wasTurn := rm.Status == room.StatusInProgress && rm.CurrentTurnUserID == userID

	if err := rm.MarkDisconnected(userID, c.clock.Now()); err != nil {
		return err
	}
	if err := c.saveRoom(ctx, rm); err != nil {
		return err
	}
	if removePointer {
		if err := c.store.RemoveUserRoom(ctx, userID); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("failed to remove user room pointer")
		}
	}

	state := StateOf(rm, c.clock.Now())
	if ev := c.emit(rm.ID, EventUserLeft, UserLeftPayload{UserID: userID, UserName: p.Name, Room: state}); ev != nil {
		c.bc.BroadcastExcept(rm.ID, userID, ev)
	}
	c.broadcast(rm.ID, EventRoomUpdated, RoomUpdatedPayload{Room: state})

	if wasTurn {
		c.sched.Disarm(rm.ID)
		c.resolveTimeoutLocked(ctx, rm, userID)
	}

	log.Info().Str("room_id", rm.ID).Str("user_id", userID).Bool("was_turn", wasTurn).Msg("user left room")
	return nil
}

// Reconnect looks up the user's current room, marks them connected, re-sends
// the full snapshot privately, and announces the reconnection. If the process
// restarted and the room has an open turn with no pending timer, the timer is
// re-armed with the remaining budget.
func (c *Coordinator) Reconnect(ctx context.Context, userID string) (string, error) {
	roomID, err := c.store.GetUserRoom(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", errNoActiveRoom
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("user room lookup failed")
		return "", errStoreFailure
	}

	c.locks.acquire(roomID)
	defer c.locks.release(roomID)

	rm, err := c.loadRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, errRoomNotFound) {
			_ = c.store.RemoveUserRoom(ctx, userID)
			return "", errNoActiveRoom
		}
		return "", err
	}
	p, ok := rm.Participant(userID)
	if !ok {
		_ = c.store.RemoveUserRoom(ctx, userID)
		return "", errNoActiveRoom
	}
	if err := rm.MarkConnected(userID); err != nil {
		return "", err
	}
	if err := c.saveRoom(ctx, rm); err != nil {
		return "", err
	}
	if err := c.store.SetUserRoom(ctx, userID, rm.ID); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to refresh user room pointer")
	}

	now := c.clock.Now()
	state := StateOf(rm, now)
	if ev := c.emit(rm.ID, EventRoomJoined, RoomJoinedPayload{Room: state, UserID: userID, Reconnected: true}); ev != nil {
		c.bc.SendToUser(rm.ID, userID, ev)
	}
	if ev := c.emit(rm.ID, EventUserJoined, UserJoinedPayload{User: participantState(p), Room: state, Reconnected: true}); ev != nil {
		c.bc.BroadcastExcept(rm.ID, userID, ev)
	}

	if rm.Status == room.StatusInProgress && rm.CurrentTurnUserID != "" {
		remaining := rm.RemainingTurnBudget(now)
		if cp, _ := rm.Participant(rm.CurrentTurnUserID); cp != nil {
			if ev := c.emit(rm.ID, EventTurnStarted, TurnStartedPayload{
				UserID:      rm.CurrentTurnUserID,
				UserName:    cp.Name,
				TimeLimitMS: remaining.Milliseconds(),
				Room:        state,
			}); ev != nil {
				c.bc.SendToUser(rm.ID, userID, ev)
			}
		}
		// Timers are process-local; a room revived after a restart has none.
		if !c.sched.Pending(rm.ID) {
			c.sched.Arm(rm.ID, rm.CurrentTurnUserID, remaining, c.HandleTimeout)
		}
	}

	log.Info().Str("room_id", rm.ID).Str("user_id", userID).Msg("user reconnected")
	return rm.ID, nil
}

// DeleteRoom tears a room down. Host only.
func (c *Coordinator) DeleteRoom(ctx context.Context, roomID, requesterID string) error {
	c.locks.acquire(roomID)
	defer c.locks.release(roomID)

	rm, err := c.loadRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if requesterID != rm.HostID {
		return errNotHost
	}
	c.sched.Disarm(rm.ID)
	for uid := range rm.Participants {
		if err := c.store.RemoveUserRoom(ctx, uid); err != nil {
			log.Error().Err(err).Str("user_id", uid).Msg("failed to remove user room pointer")
		}
	}
	if err := c.store.DeleteRoom(ctx, rm.ID); err != nil {
		log.Error().Err(err).Str("room_id", rm.ID).Msg("store delete failed")
		return errStoreFailure
	}
	log.Info().Str("room_id", rm.ID).Msg("room deleted")
	return nil
}

// LookupUserRoom resolves which room a user currently belongs to.
func (c *Coordinator) LookupUserRoom(ctx context.Context, userID string) (string, error) {
	roomID, err := c.store.GetUserRoom(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", errNoActiveRoom
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("user room lookup failed")
		return "", errStoreFailure
	}
	return roomID, nil
}

// RoomSummary loads a room read-only for the query surface.
func (c *Coordinator) RoomSummary(ctx context.Context, roomID string) (*room.Room, error) {
	return c.loadRoom(ctx, roomID)
}

// RoomStats loads a room and returns its summary statistics.
func (c *Coordinator) RoomStats(ctx context.Context, roomID string) (room.Stats, error) {
	rm, err := c.loadRoom(ctx, roomID)
	if err != nil {
		return room.Stats{}, err
	}
	return rm.Stats(), nil
}

// Now exposes the coordinator's clock to transports that stamp error events.
func (c *Coordinator) Now() time.Time {
	return c.clock.Now()
}

func participantState(p *room.Participant) ParticipantState {
	return ParticipantState{
		UserID:    p.UserID,
		Name:      p.Name,
		IsHost:    p.IsHost,
		Connected: p.Connected,
		Picks:     p.Picks,
		PickCount: len(p.Picks),
	}
}
