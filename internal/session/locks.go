package session

import "sync"

// roomLocks serializes operations per room id. Entries are refcounted so the
// map does not grow with every room ever seen. No operation ever holds two
// room locks at once, so there is no lock ordering to get wrong.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	mu   sync.Mutex
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*roomLock)}
}

// acquire blocks until the caller holds the room's lock.
func (l *roomLocks) acquire(roomID string) {
	l.mu.Lock()
	rl, ok := l.locks[roomID]
	if !ok {
		rl = &roomLock{}
		l.locks[roomID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.mu.Lock()
}

// release unlocks the room and drops the entry once nobody is waiting.
func (l *roomLocks) release(roomID string) {
	l.mu.Lock()
	rl := l.locks[roomID]
	rl.refs--
	if rl.refs == 0 {
		delete(l.locks, roomID)
	}
	l.mu.Unlock()

	rl.mu.Unlock()
}
