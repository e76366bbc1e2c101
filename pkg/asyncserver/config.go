// SPDX-License-Identifier: MPL-2.0

package asyncserver

import (
	"reflect"

	"github.com/speedup/asynchttp/pkg/types"
)

// Config describes where a server listens and what serves requests.
// Every field is optional until resolved; H is opaque to this package.
type Config[H any] struct {
	// Host restricts TCP binding to one interface. Empty means all interfaces.
	// Ignored for socket path endpoints.
	Host types.HostAddress
	// Endpoint is the TCP port or socket path to bind.
	Endpoint Endpoint
	// Handler is passed to the listener factory. A nil func, pointer, map,
	// slice, chan or interface counts as absent.
	Handler H
}

// HasHandler reports whether Handler is present.
func (c Config[H]) HasHandler() bool {
	return !isNil(c.Handler)
}

// Target returns the bind target for the config's endpoint.
func (c Config[H]) Target() Target {
	return c.Endpoint.Target(c.Host)
}

// Resolve merges override over base. Checks run in a fixed order:
// ErrConfigurationMissing when both are nil, then ErrEndpointMissing, then
// ErrHandlerMissing. Each field of the result comes from override when it is
// present there and from base otherwise.
func Resolve[H any](base, override *Config[H]) (Config[H], error) {
	if base == nil && override == nil {
		return Config[H]{}, ErrConfigurationMissing
	}

	var b, o Config[H]
	if base != nil {
		b = *base
	}
	if override != nil {
		o = *override
	}

	if !o.Endpoint.IsSet() && !b.Endpoint.IsSet() {
		return Config[H]{}, ErrEndpointMissing
	}
	if !o.HasHandler() && !b.HasHandler() {
		return Config[H]{}, ErrHandlerMissing
	}

	resolved := b
	if o.Host != "" {
		resolved.Host = o.Host
	}
	if o.Endpoint.IsSet() {
		resolved.Endpoint = o.Endpoint
	}
	if o.HasHandler() {
		resolved.Handler = o.Handler
	}
	return resolved, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice, reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}
