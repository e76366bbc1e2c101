// SPDX-License-Identifier: MPL-2.0

// Package httplistener is an asyncserver.Listener serving a net/http handler.
//
// Bind runs in the background and reports through the ready and failure
// events. Close performs a graceful http.Server.Shutdown; unix socket files are
// removed when the underlying listener closes.
package httplistener
