// SPDX-License-Identifier: MPL-2.0

package httplistener

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/speedup/asynchttp/internal/listener"
	"github.com/speedup/asynchttp/pkg/asyncserver"
)

var loopback = asyncserver.Target{Network: asyncserver.NetworkTCP, Address: "127.0.0.1:0"}

func bindAndWait(t *testing.T, l *Listener, target asyncserver.Target) error {
	t.Helper()

	result := make(chan error, 1)
	l.OnReady(func() { result <- nil })
	l.OnFailure(func(err error) { result <- err })
	l.Bind(target)

	select {
	case err := <-result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not report ready or failure")
		return nil
	}
}

func hello(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	})
}

func TestListener_ServeAndClose(t *testing.T) {
	t.Parallel()

	l := New(hello("hi"))
	if l.Addr() != nil {
		t.Error("Addr() should be nil before bind")
	}
	if err := bindAndWait(t, l, loopback); err != nil {
		t.Fatalf("bind: %v", err)
	}

	addr := l.Addr()
	if addr == nil {
		t.Fatal("Addr() should be set after ready")
	}

	resp, err := http.Get("http://" + addr.String() + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "hi" {
		t.Errorf("body = %q, want %q", body, "hi")
	}

	if err := l.Close(t.Context()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := net.DialTimeout("tcp", addr.String(), time.Second); err == nil {
		t.Error("port should be released after Close")
	}
	if err := l.Close(t.Context()); !errors.Is(err, net.ErrClosed) {
		t.Errorf("second Close = %v, want net.ErrClosed", err)
	}
}

func TestListener_BindFailure(t *testing.T) {
	t.Parallel()

	first := New(hello("first"))
	if err := bindAndWait(t, first, loopback); err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer func() { _ = first.Close(context.Background()) }()

	second := New(hello("second"))
	err := bindAndWait(t, second, asyncserver.Target{Network: asyncserver.NetworkTCP, Address: first.Addr().String()})
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *net.OpError, got %T: %v", err, err)
	}
	if second.Addr() != nil {
		t.Error("failed listener should have no address")
	}
	if err := second.Close(t.Context()); err != nil {
		t.Errorf("Close after failed bind = %v, want nil", err)
	}
}

func TestListener_BindTwice(t *testing.T) {
	t.Parallel()

	l := New(hello("x"))
	if err := bindAndWait(t, l, loopback); err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer func() { _ = l.Close(context.Background()) }()

	// The outcome already settled, so a second Bind has nobody to tell; it
	// must not replace the running server.
	addr := l.Addr()
	l.Bind(loopback)
	if l.Addr() != addr {
		t.Error("second Bind must not rebind")
	}
}

func TestListener_CloseBeforeBind(t *testing.T) {
	t.Parallel()

	l := New(hello("x"))
	if err := l.Close(t.Context()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	err := bindAndWait(t, l, loopback)
	if !errors.Is(err, listener.ErrAlreadyBound) {
		t.Errorf("Bind after Close = %v, want ErrAlreadyBound", err)
	}
}

func TestListener_ShutdownWaitsForRequests(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	l := New(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
		_, _ = io.WriteString(w, "done")
	}))
	if err := bindAndWait(t, l, loopback); err != nil {
		t.Fatalf("bind: %v", err)
	}

	got := make(chan string, 1)
	go func() {
		resp, err := http.Get("http://" + l.Addr().String() + "/")
		if err != nil {
			got <- err.Error()
			return
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		got <- string(body)
	}()
	<-started

	closed := make(chan error, 1)
	go func() { closed <- l.Close(context.Background()) }()

	select {
	case err := <-closed:
		t.Fatalf("Close returned before the request finished: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-closed; err != nil {
		t.Errorf("Close: %v", err)
	}
	if body := <-got; body != "done" {
		t.Errorf("in-flight request got %q, want done", body)
	}
}

func TestListener_CloseDeadline(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	l := New(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	if err := bindAndWait(t, l, loopback); err != nil {
		t.Fatalf("bind: %v", err)
	}

	go func() {
		resp, err := http.Get("http://" + l.Addr().String() + "/")
		if err == nil {
			_ = resp.Body.Close()
		}
	}()
	<-started

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	if err := l.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close = %v, want DeadlineExceeded", err)
	}
}

func TestFactory(t *testing.T) {
	t.Parallel()

	factory := Factory(WithMaxConnections(4), WithIdleTimeout(time.Second))

	if _, err := factory(nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("factory(nil) = %v, want ErrNilHandler", err)
	}

	ln, err := factory(hello("x"))
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	hl, ok := ln.(*Listener)
	if !ok {
		t.Fatalf("factory returned %T, want *Listener", ln)
	}
	if hl.Handler() == nil {
		t.Error("Handler() should return the served handler")
	}
}
