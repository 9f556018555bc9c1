// Package memory is an in-process RoomStore with TTL semantics. It is the
// default backend for development and the workhorse for tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/crickdraft/server/internal/room"
	"github.com/crickdraft/server/internal/store"
	"github.com/jonboulle/clockwork"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Store holds serialized rooms and user pointers in a single keyed map.
// Expiry is lazy: expired entries are treated as absent on read and
// overwritten on write.
type Store struct {
	mu    sync.Mutex
	items map[string]entry
	clock clockwork.Clock
}

// New creates an empty in-memory store using the given clock for expiry.
func New(clock clockwork.Clock) *Store {
	return &Store{
		items: make(map[string]entry),
		clock: clock,
	}
}

func (s *Store) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, false
	}
	if s.clock.Now().After(e.expiresAt) {
		delete(s.items, key)
		return nil, false
	}
	return e.data, true
}

func (s *Store) set(key string, data []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry{data: data, expiresAt: s.clock.Now().Add(ttl)}
}

func (s *Store) delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// GetRoom loads and revives a room aggregate.
func (s *Store) GetRoom(_ context.Context, roomID string) (*room.Room, error) {
	data, ok := s.get(store.RoomKey(roomID))
	if !ok {
		return nil, store.ErrNotFound
	}
	return room.FromSnapshot(data)
}

// SaveRoom persists the full aggregate and refreshes its TTL.
func (s *Store) SaveRoom(_ context.Context, r *room.Room) error {
	data, err := r.Snapshot()
	if err != nil {
		return err
	}
	s.set(store.RoomKey(r.ID), data, store.RoomTTL)
	return nil
}

// DeleteRoom removes a room record. Deleting an absent room is not an error.
func (s *Store) DeleteRoom(_ context.Context, roomID string) error {
	s.delete(store.RoomKey(roomID))
	return nil
}

// RoomExists reports whether a live (unexpired) room record exists.
func (s *Store) RoomExists(_ context.Context, roomID string) (bool, error) {
	_, ok := s.get(store.RoomKey(roomID))
	return ok, nil
}

// GetUserRoom returns the room id the user currently belongs to.
func (s *Store) GetUserRoom(_ context.Context, userID string) (string, error) {
	data, ok := s.get(store.UserRoomKey(userID))
	if !ok {
		return "", store.ErrNotFound
	}
	return string(data), nil
}

// SetUserRoom points a user at a room.
func (s *Store) SetUserRoom(_ context.Context, userID, roomID string) error {
	s.set(store.UserRoomKey(userID), []byte(roomID), store.UserRoomTTL)
	return nil
}

// RemoveUserRoom clears a user's room pointer.
func (s *Store) RemoveUserRoom(_ context.Context, userID string) error {
	s.delete(store.UserRoomKey(userID))
	return nil
}

var _ store.RoomStore = (*Store)(nil)
