package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crickdraft/server/internal/room"
	"github.com/crickdraft/server/internal/store"
)

func TestSaveAndGetRoom(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := New(clock)

	rm := room.New("host-1", "Alice", clock.Now())
	require.NoError(t, s.SaveRoom(ctx, rm))

	got, err := s.GetRoom(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, rm.ID, got.ID)
	assert.Equal(t, rm.HostID, got.HostID)
	assert.Len(t, got.Participants, 1)

	exists, err := s.RoomExists(ctx, rm.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetRoomNotFound(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	_, err := s.GetRoom(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRoomKeyIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := New(clock)

	rm := room.New("host-1", "Alice", clock.Now())
	require.NoError(t, s.SaveRoom(ctx, rm))

	got, err := s.GetRoom(ctx, strings.ToUpper(rm.ID))
	require.NoError(t, err)
	assert.Equal(t, rm.ID, got.ID)
}

func TestRoomExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := New(clock)

	rm := room.New("host-1", "Alice", clock.Now())
	require.NoError(t, s.SaveRoom(ctx, rm))

	clock.Advance(store.RoomTTL - time.Second)
	exists, err := s.RoomExists(ctx, rm.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	clock.Advance(2 * time.Second)
	_, err = s.GetRoom(ctx, rm.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := New(clock)

	rm := room.New("host-1", "Alice", clock.Now())
	require.NoError(t, s.SaveRoom(ctx, rm))

	clock.Advance(store.RoomTTL - time.Minute)
	require.NoError(t, s.SaveRoom(ctx, rm))

	clock.Advance(store.RoomTTL - time.Minute)
	exists, err := s.RoomExists(ctx, rm.ID)
	require.NoError(t, err)
	assert.True(t, exists, "every save restarts the clock")
}

func TestDeleteRoom(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := New(clock)

	rm := room.New("host-1", "Alice", clock.Now())
	require.NoError(t, s.SaveRoom(ctx, rm))
	require.NoError(t, s.DeleteRoom(ctx, rm.ID))

	_, err := s.GetRoom(ctx, rm.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Idempotent.
	assert.NoError(t, s.DeleteRoom(ctx, rm.ID))
}

func TestUserRoomPointer(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := New(clock)

	_, err := s.GetUserRoom(ctx, "user-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SetUserRoom(ctx, "user-1", "room-abc"))
	got, err := s.GetUserRoom(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "room-abc", got)

	require.NoError(t, s.RemoveUserRoom(ctx, "user-1"))
	_, err = s.GetUserRoom(ctx, "user-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserRoomPointerExpires(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := New(clock)

	require.NoError(t, s.SetUserRoom(ctx, "user-1", "room-abc"))
	clock.Advance(store.UserRoomTTL + time.Second)

	_, err := s.GetUserRoom(ctx, "user-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
