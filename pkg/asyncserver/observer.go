// SPDX-License-Identifier: MPL-2.0

package asyncserver

import "github.com/speedup/asynchttp/internal/core/serverbase"

// State is the lifecycle state of a Server.
type State = serverbase.State

// Lifecycle states.
const (
	StateIdle     = serverbase.StateIdle
	StateStarting = serverbase.StateStarting
	StateRunning  = serverbase.StateRunning
	StateStopping = serverbase.StateStopping
)

// Observer receives lifecycle notifications from a Server. Calls are made
// synchronously from the goroutine driving the transition, so implementations
// must be quick and must not call back into the server.
type Observer interface {
	// ObserveTransition is called after every successful state change.
	ObserveTransition(server string, from, to State)
	// ObserveStart is called once per Start call with its result.
	ObserveStart(server string, err error)
	// ObserveStop is called once per Stop call with its result.
	ObserveStop(server string, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveTransition(string, State, State) {}
func (noopObserver) ObserveStart(string, error)             {}
func (noopObserver) ObserveStop(string, error)              {}
