// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package listener

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/speedup/asynchttp/pkg/asyncserver"
)

func listenPipe(string) (net.Listener, error) {
	return nil, errPipeUnsupported()
}

func dialPipe(context.Context, string) (net.Conn, error) {
	return nil, errPipeUnsupported()
}

func errPipeUnsupported() error {
	return fmt.Errorf("%w: %q requires windows", ErrUnsupportedNetwork, asyncserver.NetworkPipe)
}

func isConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
