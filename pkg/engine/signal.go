package engine

import (
	"sync"
	"time"
)

// Signal is a one-shot completion edge: the reader sets it once when the
// condition it represents becomes true, and the driver clears it before
// issuing a command and waits on it with a timeout. It is safe for
// concurrent Set/Clear/Wait from different goroutines (spec §5: shared
// between the driver and reader).
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewSignal returns a Signal in the cleared state.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Set marks the signal as satisfied, waking any current or future Wait
// call until the next Clear. Setting an already-set signal is a no-op.
func (s *Signal) Set() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.ch:
		// already set
	default:
		close(s.ch)
	}
}

// Clear resets the signal so a subsequent Wait blocks again.
func (s *Signal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.ch:
		s.ch = make(chan struct{})
	default:
	}
}

// IsSet reports whether the signal is currently set, without blocking.
func (s *Signal) IsSet() bool {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()

	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Wait blocks until Set is called or timeout elapses, returning true if
// the signal fired in time.
func (s *Signal) Wait(timeout time.Duration) bool {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()

	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}
