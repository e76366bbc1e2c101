// SPDX-License-Identifier: MPL-2.0

// Package types defines value types shared by the lifecycle core, the listener
// collaborators and the CLI. Each type carries its own validation and returns a
// typed error wrapping a package sentinel.
//
// This package is a leaf dependency: it imports only the standard library.
package types
