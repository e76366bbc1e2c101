// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"sync/atomic"
)

// Base holds the lifecycle state of a server. Concrete servers embed it.
//
// Unlike a single-use server, a Base returns to StateIdle after each stop and
// can be started again.
type Base struct {
	// State management (atomic for lock-free reads)
	state atomic.Int32

	hooks []TransitionHook
}

// NewBase creates a new Base in StateIdle.
func NewBase(opts ...Option) *Base {
	b := &Base{}
	b.state.Store(int32(StateIdle))

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// State returns the current server state (atomic, lock-free read).
func (b *Base) State() State {
	return State(b.state.Load())
}

// IsRunning returns true if the server is in the Running state.
func (b *Base) IsRunning() bool {
	return b.State() == StateRunning
}

// --- Lifecycle helpers for concrete implementations ---

// TransitionToStarting attempts Idle -> Starting.
// Returns a *TransitionError if the server is not idle.
// Must be called at the beginning of Start().
func (b *Base) TransitionToStarting() error {
	if !b.transition(StateIdle, StateStarting) {
		return &TransitionError{From: b.State(), To: StateStarting}
	}
	return nil
}

// TransitionToRunning marks a starting server as running.
// Returns false if the server was not starting.
func (b *Base) TransitionToRunning() bool {
	return b.transition(StateStarting, StateRunning)
}

// AbortStart returns a starting server to idle after a failed bind.
func (b *Base) AbortStart() bool {
	return b.transition(StateStarting, StateIdle)
}

// TransitionToStopping attempts Running -> Stopping.
// Returns true if this caller won the transition and must perform the close.
func (b *Base) TransitionToStopping() bool {
	return b.transition(StateRunning, StateStopping)
}

// TransitionToIdle marks a stopping server as idle once its close completed.
func (b *Base) TransitionToIdle() bool {
	return b.transition(StateStopping, StateIdle)
}

// Reset forces a settled server back to idle. States with an operation in
// flight (Starting, Stopping) are left alone so the owning goroutine can
// finish its transition. Returns the state observed before the reset.
func (b *Base) Reset() State {
	for {
		current := b.State()
		if current.IsTransitional() || current == StateIdle {
			return current
		}
		if b.transition(current, StateIdle) {
			return current
		}
	}
}

func (b *Base) transition(from, to State) bool {
	if !b.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	for _, hook := range b.hooks {
		hook(from, to)
	}
	return true
}
