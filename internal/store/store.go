// Package store defines the persistence boundary for rooms: a key-value
// store with expiry. Rooms are stored as full serialized aggregates under
// room:<id>; a separate user_room:<userId> pointer maps a user to their
// current room. Both records expire independently.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/crickdraft/server/internal/room"
)

// ErrNotFound is returned when a room or user pointer is absent or expired.
var ErrNotFound = errors.New("store: not found")

const (
	// RoomTTL is how long a room record survives without a save refreshing it.
	RoomTTL = time.Hour
	// UserRoomTTL bounds how long a user->room pointer outlives activity.
	UserRoomTTL = time.Hour
)

// RoomStore is the persistence abstraction the coordinator works against.
// Every save rewrites the full aggregate and re-arms its TTL.
type RoomStore interface {
	GetRoom(ctx context.Context, roomID string) (*room.Room, error)
	SaveRoom(ctx context.Context, r *room.Room) error
	DeleteRoom(ctx context.Context, roomID string) error
	RoomExists(ctx context.Context, roomID string) (bool, error)

	GetUserRoom(ctx context.Context, userID string) (string, error)
	SetUserRoom(ctx context.Context, userID, roomID string) error
	RemoveUserRoom(ctx context.Context, userID string) error
}

// RoomKey builds the storage key for a room. Room ids are normalized to
// lowercase so lookups are case-insensitive.
func RoomKey(roomID string) string {
	return "room:" + strings.ToLower(roomID)
}

// UserRoomKey builds the storage key for a user->room pointer.
func UserRoomKey(userID string) string {
	return "user_room:" + userID
}
