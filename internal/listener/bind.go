// SPDX-License-Identifier: MPL-2.0

package listener

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/speedup/asynchttp/pkg/asyncserver"
)

const (
	// socketFileMode restricts unix sockets to the owning user.
	socketFileMode = 0o600

	staleProbeTimeout = 250 * time.Millisecond
)

// ErrUnsupportedNetwork is returned by Listen for a target network it cannot bind.
var ErrUnsupportedNetwork = errors.New("unsupported network")

// Listen binds target and returns the raw listener.
//
// Unix socket targets get a stale socket file removed before binding (a socket
// nobody answers on) and are chmod'ed to 0600 after. A live socket is left in
// place so the bind fails with the OS error. Named pipe targets are only
// available on Windows.
//
// Bind errors are returned unwrapped so callers can match on syscall errors.
func Listen(ctx context.Context, target asyncserver.Target) (net.Listener, error) {
	switch target.Network {
	case asyncserver.NetworkTCP:
		var lc net.ListenConfig
		return lc.Listen(ctx, target.Network, target.Address)
	case asyncserver.NetworkUnix:
		return listenUnix(ctx, target.Address)
	case asyncserver.NetworkPipe:
		return listenPipe(target.Address)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, target.Network)
	}
}

func listenUnix(ctx context.Context, path string) (net.Listener, error) {
	removeStaleSocket(ctx, path)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, asyncserver.NetworkUnix, path)
	if err != nil {
		return nil, err
	}

	if err := os.Chmod(path, socketFileMode); err != nil {
		_ = ln.Close()
		return nil, err
	}
	return ln, nil
}

// removeStaleSocket deletes path when it is a socket file that refuses
// connections. Any other dial failure leaves the file alone.
func removeStaleSocket(ctx context.Context, path string) {
	info, err := os.Lstat(path)
	if err != nil || info.Mode().Type() != fs.ModeSocket {
		return
	}

	dialCtx, cancel := context.WithTimeout(ctx, staleProbeTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(dialCtx, asyncserver.NetworkUnix, path)
	if err == nil {
		_ = conn.Close()
		return
	}
	if isConnRefused(err) {
		_ = os.Remove(path)
	}
}

// Dial connects to target, the client side of Listen.
func Dial(ctx context.Context, target asyncserver.Target) (net.Conn, error) {
	switch target.Network {
	case asyncserver.NetworkTCP, asyncserver.NetworkUnix:
		var d net.Dialer
		return d.DialContext(ctx, target.Network, target.Address)
	case asyncserver.NetworkPipe:
		return dialPipe(ctx, target.Address)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedNetwork, target.Network)
	}
}
