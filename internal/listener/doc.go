// SPDX-License-Identifier: MPL-2.0

// Package listener holds the pieces shared by the listener collaborators:
// one-shot event subscriptions, the ready/failure outcome pair and socket binding
// for tcp, unix and Windows named pipe targets.
//
// Concrete listeners live in the httplistener and sshlistener subpackages.
package listener
