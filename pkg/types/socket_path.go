// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
)

// namedPipePrefix marks a Windows named pipe path.
const namedPipePrefix = `\\.\pipe\`

// ErrInvalidSocketPath is the sentinel error wrapped by InvalidSocketPathError.
var ErrInvalidSocketPath = errors.New("invalid socket path")

type (
	// SocketPath is a local named endpoint: a unix domain socket path or,
	// on Windows, a named pipe such as \\.\pipe\asynchttp.
	// A valid path must be non-empty and not whitespace-only.
	SocketPath string

	// InvalidSocketPathError is returned when a SocketPath value is
	// empty or whitespace-only.
	InvalidSocketPathError struct {
		Value SocketPath
	}
)

// String returns the string representation of the SocketPath.
func (p SocketPath) String() string { return string(p) }

// IsNamedPipe reports whether the path addresses a Windows named pipe.
func (p SocketPath) IsNamedPipe() bool {
	return strings.HasPrefix(strings.ToLower(string(p)), namedPipePrefix)
}

// Validate returns nil if the SocketPath is non-empty and not whitespace-only.
func (p SocketPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" {
		return &InvalidSocketPathError{Value: p}
	}
	return nil
}

// Error implements the error interface for InvalidSocketPathError.
func (e *InvalidSocketPathError) Error() string {
	return fmt.Sprintf("invalid socket path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidSocketPath for errors.Is() compatibility.
func (e *InvalidSocketPathError) Unwrap() error { return ErrInvalidSocketPath }
