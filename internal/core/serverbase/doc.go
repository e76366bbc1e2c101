// SPDX-License-Identifier: MPL-2.0

// Package serverbase provides a reusable lifecycle state machine for
// listener-owning servers.
//
// States cycle Idle -> Starting -> Running -> Stopping -> Idle. Every transition
// is a compare-and-swap on an atomic value, so concurrent callers racing for the
// same transition see exactly one winner and state reads never block.
package serverbase
