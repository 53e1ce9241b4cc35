package eventloop

import (
	"sync/atomic"
)

// LoopState represents the current state of the pump.
//
// State Machine:
//
//	StateAwake (0) → StateRunning (3)        [Run()]
//	StateRunning (3) → StateSleeping (2)     [wait() via CAS]
//	StateSleeping (2) → StateRunning (3)     [wait() wake via CAS]
//	StateAwake (0) → StateTerminated (1)     [Shutdown(), Close(), Fail()]
//	StateRunning (3) → StateTerminating (4)  [Shutdown(), Fail(), ctx]
//	StateSleeping (2) → StateTerminating (4) [Shutdown(), Fail(), ctx]
//	StateTerminating (4) → StateTerminated (1) [shutdown complete]
//	StateTerminated (1) → (terminal)
//
// Use TryTransition (CAS) for the temporary states (Running, Sleeping), and
// Store only for Terminated.
type LoopState uint64

const (
	// StateAwake indicates the pump has been created but not started.
	StateAwake LoopState = 0
	// StateTerminated indicates the pump has stopped and released its
	// descriptors.
	StateTerminated LoopState = 1
	// StateSleeping indicates the pump is blocked waiting for descriptors.
	StateSleeping LoopState = 2
	// StateRunning indicates the pump is handling events.
	StateRunning LoopState = 3
	// StateTerminating indicates a stop has been requested but not completed.
	StateTerminating LoopState = 4
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

// FastState is a lock-free state machine, padded to its own cache line, as
// it is read by every posting goroutine.
type FastState struct { // betteralign:ignore
	_ [sizeOfCacheLine]byte                      //nolint:unused
	v atomic.Uint64                              // State value
	_ [sizeOfCacheLine - sizeOfAtomicUint64]byte //nolint:unused
}

const (
	sizeOfCacheLine    = 128
	sizeOfAtomicUint64 = 8
)

// NewFastState creates a new state machine in the Awake state.
func NewFastState() *FastState {
	s := &FastState{}
	s.v.Store(uint64(StateAwake))
	return s
}

// Load returns the current state atomically.
func (s *FastState) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store atomically stores a new state, without validation.
func (s *FastState) Store(state LoopState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was successful.
func (s *FastState) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// TransitionAny attempts to transition from any of validFrom to the target,
// returning the state it transitioned from.
func (s *FastState) TransitionAny(validFrom []LoopState, to LoopState) (LoopState, bool) {
	for {
		current := s.Load()
		valid := false
		for _, from := range validFrom {
			if current == from {
				valid = true
				break
			}
		}
		if !valid {
			return current, false
		}
		if s.v.CompareAndSwap(uint64(current), uint64(to)) {
			return current, true
		}
	}
}

// IsTerminal returns true if the current state is terminal (Terminated).
func (s *FastState) IsTerminal() bool {
	return s.Load() == StateTerminated
}

// IsRunning returns true if the pump is currently running or sleeping.
func (s *FastState) IsRunning() bool {
	state := s.Load()
	return state == StateRunning || state == StateSleeping
}

// Stopping returns true once a stop has been requested.
func (s *FastState) Stopping() bool {
	state := s.Load()
	return state == StateTerminating || state == StateTerminated
}
