package eventloop

import (
	"sync/atomic"
)

// LoopState represents the current state of the event loop.
//
// State Machine:
//
//	StateAwake → StateRunning          [RunOnce() entry]
//	StateRunning → StateSleeping       [poll() via CAS]
//	StateSleeping → StateRunning       [poll() return via CAS]
//	StateRunning → StateAwake          [RunOnce() exit]
//	StateRunning/Sleeping → StateTerminating [Close()]
//	StateAwake/Terminating → StateTerminated [Close(), or RunOnce() exit]
//	StateTerminated → (terminal)
//
// Use TryTransition (CAS) for temporary states, and Store only for
// StateTerminated.
type LoopState uint64

const (
	// StateAwake indicates the loop is idle, between iterations.
	StateAwake LoopState = iota
	// StateTerminated indicates the loop has been closed, and its fds released.
	StateTerminated
	// StateSleeping indicates the loop is blocked in poll waiting for events.
	StateSleeping
	// StateRunning indicates the loop is processing an iteration.
	StateRunning
	// StateTerminating indicates Close was called during an iteration.
	StateTerminating
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// FastState is a lock-free state machine.
type FastState struct {
	v atomic.Uint64
}

// Load returns the current state atomically.
func (s *FastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store atomically stores a new state.
func (s *FastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was successful.
func (s *FastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}
