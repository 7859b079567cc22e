package dispatch

import "sync"

// PlacementState tracks whether the first pop window of this process
// lifetime has been opened. The transition to done is one-way; only an
// explicit external reset returns it to the initial state.
type PlacementState struct {
	mu   sync.Mutex
	done bool
}

// NewPlacementState starts in the no-window-yet state.
func NewPlacementState() *PlacementState {
	return &PlacementState{}
}

// FirstWindowDone reports whether the first window has been opened.
func (s *PlacementState) FirstWindowDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// markDone records that the first window has been opened.
func (s *PlacementState) markDone() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
}

// Reset returns the state to no-window-yet. Invoked by external
// collaborators (the reset HTTP action), never by the worker.
func (s *PlacementState) Reset() {
	s.mu.Lock()
	s.done = false
	s.mu.Unlock()
}
