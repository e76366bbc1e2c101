// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"io"
	"net"
	"testing"
	"time"
)

// StopTimeout bounds how long MustStop and DeferStop wait for a shutdown.
const StopTimeout = 5 * time.Second

// Stopper is an interface for types that have a context-aware Stop method.
// This is commonly used for server types.
type Stopper interface {
	Stop(ctx context.Context) error
}

// MustClose closes the given io.Closer.
// The test fails immediately if the close fails.
func MustClose(t testing.TB, c io.Closer) {
	t.Helper()
	if err := c.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}
}

// MustStop stops the given Stopper (typically a server).
// Unlike MustClose, this logs errors but doesn't fail the test,
// as shutdown errors during cleanup are typically non-fatal.
func MustStop(t testing.TB, s Stopper) {
	t.Helper()
	// t.Context is already canceled when cleanups run.
	ctx, cancel := context.WithTimeout(context.Background(), StopTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Logf("warning: stop returned error: %v", err)
	}
}

// DeferClose returns a cleanup function that closes the given io.Closer,
// logging any errors. Useful for defer statements in tests.
func DeferClose(t testing.TB, c io.Closer) func() {
	t.Helper()
	return func() {
		t.Helper()
		if err := c.Close(); err != nil {
			t.Logf("warning: close returned error: %v", err)
		}
	}
}

// DeferStop returns a cleanup function that stops the given Stopper,
// logging any errors. Useful with t.Cleanup.
func DeferStop(t testing.TB, s Stopper) func() {
	t.Helper()
	return func() {
		t.Helper()
		MustStop(t, s)
	}
}

// FreeTCPAddr reserves a loopback port, releases it and returns its address.
// Another process may grab the port in between, so only use it where a
// collision fails the test loudly.
func FreeTCPAddr(t testing.TB) *net.TCPAddr {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	addr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		t.Fatalf("unexpected listener address %T", ln.Addr())
	}
	MustClose(t, ln)
	return addr
}
