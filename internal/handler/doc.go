// SPDX-License-Identifier: MPL-2.0

// Package handler builds the handlers the CLI serves: a fixed text response,
// a static file tree, optional gzip compression and an SSH greeting.
package handler
