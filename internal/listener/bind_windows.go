// SPDX-License-Identifier: MPL-2.0

//go:build windows

package listener

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/Microsoft/go-winio"
)

// pipeSecurity grants the pipe owner full access and nobody else.
const pipeSecurity = "D:P(A;;GA;;;OW)"

// wsaeconnrefused is WSAECONNREFUSED, what winsock reports for a socket file
// nobody is listening on.
const wsaeconnrefused syscall.Errno = 10061

func listenPipe(path string) (net.Listener, error) {
	return winio.ListenPipe(path, &winio.PipeConfig{SecurityDescriptor: pipeSecurity})
}

func dialPipe(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}

func isConnRefused(err error) bool {
	return errors.Is(err, wsaeconnrefused) || errors.Is(err, syscall.ECONNREFUSED)
}
