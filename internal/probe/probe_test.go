// SPDX-License-Identifier: MPL-2.0

package probe

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/speedup/asynchttp/internal/testutil"
	"github.com/speedup/asynchttp/pkg/asyncserver"
)

func tcpTarget(addr string) asyncserver.Target {
	return asyncserver.Target{Network: asyncserver.NetworkTCP, Address: addr}
}

func TestWait_Open(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	res, err := Wait(t.Context(), tcpTarget(ln.Addr().String()), ExpectOpen, WithInterval(time.Millisecond))
	if err != nil {
		t.Fatalf("Wait(open) error = %v", err)
	}
	if !res.Open || res.Attempts != 1 {
		t.Errorf("Result = %+v, want open after one attempt", res)
	}
}

func TestWait_Closed(t *testing.T) {
	t.Parallel()

	addr := testutil.FreeTCPAddr(t).String()

	res, err := Wait(t.Context(), tcpTarget(addr), ExpectClosed, WithInterval(time.Millisecond))
	if err != nil {
		t.Fatalf("Wait(closed) error = %v", err)
	}
	if res.Open {
		t.Errorf("Result = %+v, want closed", res)
	}
}

func TestWait_GivesUp(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	res, err := Wait(t.Context(), tcpTarget(ln.Addr().String()), ExpectClosed,
		WithAttempts(3), WithInterval(time.Millisecond))
	if !errors.Is(err, ErrUnexpectedState) {
		t.Fatalf("Wait() error = %v, want ErrUnexpectedState", err)
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
}

func TestWait_BecomesOpen(t *testing.T) {
	t.Parallel()

	addr := testutil.FreeTCPAddr(t).String()

	rebound := make(chan net.Listener, 1)
	go func() {
		time.Sleep(50 * time.Millisecond)
		late, err := net.Listen("tcp", addr)
		if err != nil {
			late = nil
		}
		rebound <- late
	}()

	res, err := Wait(t.Context(), tcpTarget(addr), ExpectOpen, WithAttempts(50), WithInterval(5*time.Millisecond))
	if late := <-rebound; late != nil {
		_ = late.Close()
	}
	if err != nil {
		t.Skipf("port was taken by another process before rebinding: %v", err)
	}
	if !res.Open || res.Attempts < 2 {
		t.Errorf("Result = %+v, want open after several attempts", res)
	}
}

func TestWait_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Wait(ctx, tcpTarget("127.0.0.1:1"), ExpectOpen)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait() error = %v, want context.Canceled", err)
	}
}

func TestExpect_Validate(t *testing.T) {
	t.Parallel()

	for _, e := range []Expect{ExpectOpen, ExpectClosed} {
		if err := e.Validate(); err != nil {
			t.Errorf("%q.Validate() = %v", e, err)
		}
	}

	_, err := Wait(t.Context(), tcpTarget("127.0.0.1:1"), "half-open")
	if !errors.Is(err, ErrInvalidExpect) {
		t.Fatalf("Wait() error = %v, want ErrInvalidExpect", err)
	}
	var ie *InvalidExpectError
	if !errors.As(err, &ie) || ie.Value != "half-open" {
		t.Errorf("error = %#v", err)
	}
}
