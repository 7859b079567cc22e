// Package dedupe suppresses bursts of identical pop URLs inside a sliding
// window. Only exact URL strings match; no normalization is performed, so
// trailing-slash or query-order variants are distinct on purpose.
package dedupe

import (
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// sweepEvery is the number of non-suppressed admissions between lazy
// garbage-collection sweeps of stale entries.
const sweepEvery = 200

// Store tracks the last-seen time for each URL digest. URLs are stored as
// fixed-size blake3 digests so memory per entry is bounded regardless of
// URL length.
type Store struct {
	mu         sync.Mutex
	lastSeen   map[[32]byte]time.Time
	admissions int

	now func() time.Time // injectable for tests
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		lastSeen: make(map[[32]byte]time.Time),
		now:      time.Now,
	}
}

// ShouldSuppress reports whether a pop for url should be suppressed given
// the current dedupe window. A window <= 0 disables deduplication entirely
// and performs no bookkeeping. On admission (return false) the entry's
// timestamp is refreshed; suppressed lookups leave the timestamp untouched
// so the window slides from the last admitted pop.
func (s *Store) ShouldSuppress(url string, window time.Duration) bool {
	if window <= 0 {
		return false
	}

	key := blake3.Sum256([]byte(url))
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastSeen[key]; ok && now.Sub(last) < window {
		return true
	}

	s.lastSeen[key] = now
	s.admissions++
	if s.admissions%sweepEvery == 0 {
		s.sweepLocked(now, window)
	}
	return false
}

// Len returns the number of tracked entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lastSeen)
}

// sweepLocked drops entries older than 10x the window. Called with s.mu held.
func (s *Store) sweepLocked(now time.Time, window time.Duration) {
	if window < time.Second {
		window = time.Second
	}
	cutoff := now.Add(-10 * window)
	for key, seen := range s.lastSeen {
		if seen.Before(cutoff) {
			delete(s.lastSeen, key)
		}
	}
}
