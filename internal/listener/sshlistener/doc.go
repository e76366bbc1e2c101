// SPDX-License-Identifier: MPL-2.0

// Package sshlistener is an asyncserver.Listener serving SSH sessions with
// charmbracelet/wish.
//
// Authentication is not configured, so any client may connect. Use it on
// loopback or unix socket endpoints.
package sshlistener
