// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"errors"
	"fmt"
)

const (
	// StateIdle is the initial state and the state after every completed stop.
	StateIdle State = iota
	// StateStarting indicates Start() was called and the bind has not settled yet.
	StateStarting
	// StateRunning indicates the listener is bound and accepting connections.
	StateRunning
	// StateStopping indicates Stop() was called and the listener close is in progress.
	StateStopping
)

var (
	// ErrInvalidState is returned when a State value is not one of the defined lifecycle states.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidTransition is the sentinel error wrapped by TransitionError.
	ErrInvalidTransition = errors.New("invalid state transition")
)

type (
	// State represents the lifecycle state of a server.
	State int32

	// InvalidStateError is returned when a State value is not recognized.
	// It wraps ErrInvalidState for errors.Is() compatibility.
	InvalidStateError struct {
		Value State
	}

	// TransitionError is returned when a transition is requested from a state
	// that does not allow it. It wraps ErrInvalidTransition.
	TransitionError struct {
		From State
		To   State
	}
)

// String returns a human-readable representation of the server state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Validate returns nil if the State is one of the defined lifecycle states,
// or an error wrapping ErrInvalidState if it is not.
func (s State) Validate() error {
	switch s {
	case StateIdle, StateStarting, StateRunning, StateStopping:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// IsTransitional returns true while a start or stop is in flight.
func (s State) IsTransitional() bool {
	return s == StateStarting || s == StateStopping
}

// Error implements the error interface for InvalidStateError.
func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %d (valid: 0=idle, 1=starting, 2=running, 3=stopping)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// Error implements the error interface for TransitionError.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// Unwrap returns ErrInvalidTransition for errors.Is() compatibility.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
