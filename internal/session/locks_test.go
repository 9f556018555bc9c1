package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomLocksSerializePerRoom(t *testing.T) {
	l := newRoomLocks()
	counter := 0
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.acquire("room-1")
			defer l.release("room-1")
			counter++
		}()
	}
	wg.Wait()

	// The unguarded increment races unless the lock actually serializes.
	assert.Equal(t, 100, counter)
}

func TestRoomLocksMapDoesNotLeak(t *testing.T) {
	l := newRoomLocks()
	for i := 0; i < 10; i++ {
		l.acquire("room-1")
		l.release("room-1")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}
