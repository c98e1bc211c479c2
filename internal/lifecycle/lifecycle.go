// Package lifecycle broadcasts foreground and background transitions.
package lifecycle

import "sync"

// State is the app's visibility.
type State int

// Lifecycle states.
const (
	Background State = iota
	Foreground
)

func (s State) String() string {
	if s == Foreground {
		return "foreground"
	}
	return "background"
}

// Signal fans lifecycle transitions out to subscribers.
type Signal struct {
	mu    sync.Mutex
	state State
	next  int
	subs  map[int]func(State)
}

// NewSignal creates a Signal in the given initial state.
func NewSignal(initial State) *Signal {
	return &Signal{state: initial, subs: make(map[int]func(State))}
}

// State returns the last emitted state.
func (s *Signal) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for future transitions.
func (s *Signal) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Emit records st and notifies subscribers. Every foreground emission is delivered,
// even if the previous state was already foreground.
func (s *Signal) Emit(st State) {
	s.mu.Lock()
	s.state = st
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}
