// SPDX-License-Identifier: MPL-2.0

package asyncserver

import (
	"fmt"
	"net"
	"strconv"

	"github.com/speedup/asynchttp/pkg/types"
)

// Network names used in a Target.
const (
	NetworkTCP  = "tcp"
	NetworkUnix = "unix"
	// NetworkPipe is a Windows named pipe.
	NetworkPipe = "npipe"
)

type (
	endpointKind uint8

	// Endpoint is where a listener binds: either a TCP port or a local socket path.
	// The zero value is an absent endpoint.
	Endpoint struct {
		kind endpointKind
		port types.ListenPort
		path types.SocketPath
	}

	// Target is a resolved bind address handed to Listener.Bind.
	Target struct {
		Network string
		Address string
	}
)

const (
	endpointNone endpointKind = iota
	endpointPort
	endpointPath
)

// PortEndpoint returns a TCP endpoint. Port 0 asks the OS for a free port.
func PortEndpoint(port types.ListenPort) Endpoint {
	return Endpoint{kind: endpointPort, port: port}
}

// PathEndpoint returns a unix socket (or Windows named pipe) endpoint.
// An empty path yields an absent endpoint.
func PathEndpoint(path types.SocketPath) Endpoint {
	if path == "" {
		return Endpoint{}
	}
	return Endpoint{kind: endpointPath, path: path}
}

// ParseEndpoint interprets s as a port when it is a decimal integer and as a
// socket path otherwise. An empty string yields an absent endpoint.
func ParseEndpoint(s string) (Endpoint, error) {
	if s == "" {
		return Endpoint{}, nil
	}

	if _, err := strconv.Atoi(s); err == nil {
		port, err := types.ParseListenPort(s)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
		}
		return PortEndpoint(port), nil
	}

	path := types.SocketPath(s)
	if err := path.Validate(); err != nil {
		return Endpoint{}, fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	return PathEndpoint(path), nil
}

// IsSet reports whether the endpoint is present.
func (e Endpoint) IsSet() bool { return e.kind != endpointNone }

// Port returns the TCP port and true for a port endpoint.
func (e Endpoint) Port() (types.ListenPort, bool) {
	return e.port, e.kind == endpointPort
}

// Path returns the socket path and true for a path endpoint.
func (e Endpoint) Path() (types.SocketPath, bool) {
	return e.path, e.kind == endpointPath
}

// String renders the endpoint the way ParseEndpoint accepts it.
func (e Endpoint) String() string {
	switch e.kind {
	case endpointPort:
		return e.port.String()
	case endpointPath:
		return e.path.String()
	default:
		return ""
	}
}

// Target maps the endpoint to a bind target. host only applies to port endpoints.
func (e Endpoint) Target(host types.HostAddress) Target {
	switch e.kind {
	case endpointPort:
		return Target{Network: NetworkTCP, Address: net.JoinHostPort(host.String(), e.port.String())}
	case endpointPath:
		if e.path.IsNamedPipe() {
			return Target{Network: NetworkPipe, Address: e.path.String()}
		}
		return Target{Network: NetworkUnix, Address: e.path.String()}
	default:
		return Target{}
	}
}

// String returns network://address.
func (t Target) String() string {
	if t.Network == "" {
		return ""
	}
	return t.Network + "://" + t.Address
}
