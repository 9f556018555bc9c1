package session

import (
	"math/rand"
	"sync"
)

// lockedSource makes a rand.Source safe for use from concurrent per-room
// operations. Same trick the standard library uses for its global source.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// NewRand builds a concurrency-safe *rand.Rand from a seed. Tests pass a
// fixed seed to pin turn order and auto-pick choices.
func NewRand(seed int64) *rand.Rand {
	return rand.New(&lockedSource{src: rand.NewSource(seed).(rand.Source64)})
}
