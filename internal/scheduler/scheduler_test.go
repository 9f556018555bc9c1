package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fireRecorder struct {
	mu    sync.Mutex
	fires []string
}

func (f *fireRecorder) record(roomID, expectedUserID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fires = append(f.fires, roomID+"/"+expectedUserID)
}

func (f *fireRecorder) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fires...)
}

func TestArmFiresAfterBudget(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)
	rec := &fireRecorder{}

	s.Arm("room-1", "user-a", 10*time.Second, rec.record)
	require.True(t, s.Pending("room-1"))

	clock.Advance(9 * time.Second)
	assert.Empty(t, rec.all())

	clock.Advance(time.Second)
	assert.Equal(t, []string{"room-1/user-a"}, rec.all())
	assert.False(t, s.Pending("room-1"), "fired timer unregisters itself")
}

func TestArmReplacesPendingTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)
	rec := &fireRecorder{}

	// Re-arming many times must leave exactly one live timer.
	for i := 0; i < 5; i++ {
		s.Arm("room-1", "user-a", 10*time.Second, rec.record)
		clock.Advance(time.Second)
	}
	s.Arm("room-1", "user-b", 10*time.Second, rec.record)

	clock.Advance(10 * time.Second)
	assert.Equal(t, []string{"room-1/user-b"}, rec.all())

	clock.Advance(time.Minute)
	assert.Len(t, rec.all(), 1, "superseded timers never fire")
}

func TestDisarm(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)
	rec := &fireRecorder{}

	s.Arm("room-1", "user-a", 10*time.Second, rec.record)
	s.Disarm("room-1")
	assert.False(t, s.Pending("room-1"))

	clock.Advance(time.Minute)
	assert.Empty(t, rec.all())
}

func TestDisarmUnknownRoomIsNoop(t *testing.T) {
	s := New(clockwork.NewFakeClock())
	s.Disarm("nope")
	assert.False(t, s.Pending("nope"))
}

func TestRoomsScheduleIndependently(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)
	rec := &fireRecorder{}

	s.Arm("room-1", "user-a", 5*time.Second, rec.record)
	s.Arm("room-2", "user-b", 10*time.Second, rec.record)

	clock.Advance(5 * time.Second)
	assert.Equal(t, []string{"room-1/user-a"}, rec.all())
	assert.True(t, s.Pending("room-2"))

	clock.Advance(5 * time.Second)
	assert.ElementsMatch(t, []string{"room-1/user-a", "room-2/user-b"}, rec.all())
}
