package telemetry

import (
	"context"
	"sync"
	"time"
)

// State is the shared telemetry store. Writers apply whole-message updates
// through Apply; readers always observe a consistent snapshot, never a torn
// one. Every Apply bumps the generation counter and wakes blocked waiters.
type State struct {
	mu     sync.RWMutex
	snap   Snapshot
	notify chan struct{} // closed and replaced on every update
}

// NewState returns an empty store: every field starts unknown.
func NewState() *State {
	return &State{notify: make(chan struct{})}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Apply runs fn against the snapshot under the write lock, then publishes
// the new generation. fn must not block.
func (s *State) Apply(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	s.snap.Generation++
	s.snap.UpdatedAt = time.Now()
	prev := s.notify
	s.notify = make(chan struct{})
	s.mu.Unlock()

	close(prev)
}

// WaitUntil blocks until pred is satisfied by the current or a newly
// published snapshot, or until ctx is done. The satisfying snapshot is
// returned.
func (s *State) WaitUntil(ctx context.Context, pred func(Snapshot) bool) (Snapshot, error) {
	for {
		s.mu.RLock()
		snap := s.snap
		ch := s.notify
		s.mu.RUnlock()

		if pred(snap) {
			return snap, nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Position returns the current position or ErrUnavailableTelemetry before
// the first fix.
func (s *State) Position() (Snapshot, error) {
	snap := s.Snapshot()
	if !snap.HasPosition {
		return snap, ErrUnavailableTelemetry
	}
	return snap, nil
}
