// SPDX-License-Identifier: MPL-2.0

package asyncserver

import "errors"

var (
	// ErrConfigurationMissing is returned when neither a base nor an override config was given.
	ErrConfigurationMissing = errors.New("no configuration has been provided")
	// ErrEndpointMissing is returned when no port or socket path is set in either config.
	ErrEndpointMissing = errors.New("no port/pipe is defined in the config")
	// ErrHandlerMissing is returned when no handler is set in either config.
	ErrHandlerMissing = errors.New("no handler is defined in the config")
	// ErrInvalidEndpoint is returned by ParseEndpoint for malformed input.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrAlreadyStarted is returned by Start unless the server is idle.
	ErrAlreadyStarted = errors.New("server has been already started")
	// ErrNotStarted is returned by Stop when the server is not running.
	ErrNotStarted = errors.New("server is not started")

	// ErrStartCancelled is returned by Start when its context ends, or the
	// startup timeout elapses, before the listener reports an outcome.
	ErrStartCancelled = errors.New("server start cancelled")
)

// ErrorClass groups lifecycle errors by who has to fix them.
type ErrorClass int

const (
	// ClassNone is the class of a nil error.
	ClassNone ErrorClass = iota
	// ClassConfiguration errors come from resolving configs; fix the config.
	ClassConfiguration
	// ClassSequencing errors come from calling Start or Stop in the wrong state.
	ClassSequencing
	// ClassEnvironment errors come from the listener or the OS (address in use,
	// permission denied, start cancelled before the bind settled).
	ClassEnvironment
)

// Classify returns the class of err.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrConfigurationMissing),
		errors.Is(err, ErrEndpointMissing),
		errors.Is(err, ErrHandlerMissing),
		errors.Is(err, ErrInvalidEndpoint):
		return ClassConfiguration
	case errors.Is(err, ErrAlreadyStarted), errors.Is(err, ErrNotStarted):
		return ClassSequencing
	default:
		return ClassEnvironment
	}
}

// String returns the class name.
func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassConfiguration:
		return "configuration"
	case ClassSequencing:
		return "sequencing"
	case ClassEnvironment:
		return "environment"
	default:
		return "unknown"
	}
}
