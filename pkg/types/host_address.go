// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidHostAddress is the sentinel error wrapped by InvalidHostAddressError.
var ErrInvalidHostAddress = errors.New("invalid host address")

type (
	// HostAddress is a network host (IP or hostname) a TCP listener binds to.
	// The zero value ("") is valid and means "all interfaces".
	// Non-zero values must not be whitespace-only or contain whitespace.
	HostAddress string

	// InvalidHostAddressError is returned when a HostAddress value is
	// whitespace-only or contains whitespace.
	InvalidHostAddressError struct {
		Value HostAddress
	}
)

// String returns the string representation of the HostAddress.
func (h HostAddress) String() string { return string(h) }

// IsAny reports whether the address binds all interfaces.
func (h HostAddress) IsAny() bool { return h == "" }

// Validate returns nil if the HostAddress is empty or a plausible host,
// or an error wrapping ErrInvalidHostAddress if it is not.
func (h HostAddress) Validate() error {
	if h == "" {
		return nil
	}
	if strings.ContainsAny(string(h), " \t\r\n") {
		return &InvalidHostAddressError{Value: h}
	}
	return nil
}

// Error implements the error interface for InvalidHostAddressError.
func (e *InvalidHostAddressError) Error() string {
	return fmt.Sprintf("invalid host address %q: must not contain whitespace", e.Value)
}

// Unwrap returns ErrInvalidHostAddress for errors.Is() compatibility.
func (e *InvalidHostAddressError) Unwrap() error { return ErrInvalidHostAddress }
