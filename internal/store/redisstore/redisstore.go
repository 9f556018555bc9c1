// Package redisstore backs the RoomStore with Redis, the backend the service
// runs against in production. TTLs map directly onto SET EX.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/crickdraft/server/internal/room"
	"github.com/crickdraft/server/internal/store"
	"github.com/redis/go-redis/v9"
)

// Store is a Redis-backed RoomStore.
type Store struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return &Store{client: client}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// GetRoom loads and revives a room aggregate.
func (s *Store) GetRoom(ctx context.Context, roomID string) (*room.Room, error) {
	data, err := s.client.Get(ctx, store.RoomKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return room.FromSnapshot(data)
}

// SaveRoom persists the full aggregate, refreshing the room TTL.
func (s *Store) SaveRoom(ctx context.Context, r *room.Room) error {
	data, err := r.Snapshot()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, store.RoomKey(r.ID), data, store.RoomTTL).Err(); err != nil {
		return fmt.Errorf("save room %s: %w", r.ID, err)
	}
	return nil
}

// DeleteRoom removes a room record.
func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, store.RoomKey(roomID)).Err(); err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	return nil
}

// RoomExists reports whether a room record exists.
func (s *Store) RoomExists(ctx context.Context, roomID string) (bool, error) {
	n, err := s.client.Exists(ctx, store.RoomKey(roomID)).Result()
	if err != nil {
		return false, fmt.Errorf("exists room %s: %w", roomID, err)
	}
	return n > 0, nil
}

// GetUserRoom returns the room id the user currently belongs to.
func (s *Store) GetUserRoom(ctx context.Context, userID string) (string, error) {
	roomID, err := s.client.Get(ctx, store.UserRoomKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get user room %s: %w", userID, err)
	}
	return roomID, nil
}

// SetUserRoom points a user at a room with the pointer TTL.
func (s *Store) SetUserRoom(ctx context.Context, userID, roomID string) error {
	if err := s.client.Set(ctx, store.UserRoomKey(userID), roomID, store.UserRoomTTL).Err(); err != nil {
		return fmt.Errorf("set user room %s: %w", userID, err)
	}
	return nil
}

// RemoveUserRoom clears a user's room pointer.
func (s *Store) RemoveUserRoom(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, store.UserRoomKey(userID)).Err(); err != nil {
		return fmt.Errorf("remove user room %s: %w", userID, err)
	}
	return nil
}

var _ store.RoomStore = (*Store)(nil)
