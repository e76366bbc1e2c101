// SPDX-License-Identifier: MPL-2.0

// Package issue turns start and configuration failures into user-facing output:
// ActionableError adds operation, resource and suggestions to an error, and the
// catalog maps well-known causes (address in use, permission denied, ...) onto
// Markdown explanations rendered with glamour.
package issue
