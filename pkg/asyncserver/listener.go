// SPDX-License-Identifier: MPL-2.0

package asyncserver

import (
	"context"
	"net"
)

type (
	// Listener is a bindable network listener that reports its bind outcome
	// through one-shot events instead of a return value.
	//
	// Implementations must emit at most one of ready and failure per Bind. The
	// subscription functions return a stop func shaped like the one from
	// context.AfterFunc: it reports whether it removed a pending subscription.
	Listener interface {
		// Bind starts binding target and returns without waiting.
		Bind(target Target)
		// OnReady subscribes to "bound and accepting".
		OnReady(fn func()) (stop func() bool)
		// OnFailure subscribes to a bind or listen error.
		OnFailure(fn func(error)) (stop func() bool)
		// Close stops accepting, waits for in-flight work until ctx ends and
		// releases the endpoint.
		Close(ctx context.Context) error
		// Addr is the bound address, or nil before ready.
		Addr() net.Addr
	}

	// Factory builds a fresh, unbound Listener serving handler.
	Factory[H any] func(handler H) (Listener, error)
)
