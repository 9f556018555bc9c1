// Package postgres backs the RoomStore with Postgres for deployments that
// already run one. Rooms live in a jsonb column with an expires_at stamp;
// expired rows are invisible to reads and reaped by a periodic sweep.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crickdraft/server/internal/room"
	"github.com/crickdraft/server/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Store is a Postgres-backed RoomStore.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS user_rooms (
	user_id    TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS rooms_expires_at_idx ON rooms (expires_at);
CREATE INDEX IF NOT EXISTS user_rooms_expires_at_idx ON user_rooms (expires_at);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// GetRoom loads and revives a room aggregate.
func (s *Store) GetRoom(ctx context.Context, roomID string) (*room.Room, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM rooms WHERE id = $1 AND expires_at > now()`,
		strings.ToLower(roomID),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return room.FromSnapshot(data)
}

// SaveRoom upserts the full aggregate and refreshes its TTL.
func (s *Store) SaveRoom(ctx context.Context, r *room.Room) error {
	data, err := r.Snapshot()
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO rooms (id, data, expires_at) VALUES ($1, $2, now() + $3)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`,
		strings.ToLower(r.ID), data, store.RoomTTL,
	)
	if err != nil {
		return fmt.Errorf("save room %s: %w", r.ID, err)
	}
	return nil
}

// DeleteRoom removes a room row.
func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, strings.ToLower(roomID)); err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	return nil
}

// RoomExists reports whether a live room row exists.
func (s *Store) RoomExists(ctx context.Context, roomID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1 AND expires_at > now())`,
		strings.ToLower(roomID),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists room %s: %w", roomID, err)
	}
	return exists, nil
}

// GetUserRoom returns the room id the user currently belongs to.
func (s *Store) GetUserRoom(ctx context.Context, userID string) (string, error) {
	var roomID string
	err := s.pool.QueryRow(ctx,
		`SELECT room_id FROM user_rooms WHERE user_id = $1 AND expires_at > now()`,
		userID,
	).Scan(&roomID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get user room %s: %w", userID, err)
	}
	return roomID, nil
}

// SetUserRoom points a user at a room with the pointer TTL.
func (s *Store) SetUserRoom(ctx context.Context, userID, roomID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_rooms (user_id, room_id, expires_at) VALUES ($1, $2, now() + $3)
		 ON CONFLICT (user_id) DO UPDATE SET room_id = EXCLUDED.room_id, expires_at = EXCLUDED.expires_at`,
		userID, strings.ToLower(roomID), store.UserRoomTTL,
	)
	if err != nil {
		return fmt.Errorf("set user room %s: %w", userID, err)
	}
	return nil
}

// RemoveUserRoom clears a user's room pointer.
func (s *Store) RemoveUserRoom(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_rooms WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("remove user room %s: %w", userID, err)
	}
	return nil
}

// Sweep deletes expired rows. Expiry is lazy on read, so this only reclaims
// space; it is safe to run at any cadence.
func (s *Store) Sweep(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE expires_at <= now()`); err != nil {
		return fmt.Errorf("sweep rooms: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM user_rooms WHERE expires_at <= now()`); err != nil {
		return fmt.Errorf("sweep user_rooms: %w", err)
	}
	return nil
}

// RunSweeper sweeps on the given interval until the context is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("store sweep failed")
			}
		}
	}
}

var _ store.RoomStore = (*Store)(nil)
