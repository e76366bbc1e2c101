// SPDX-License-Identifier: MPL-2.0

// Package probe waits for an endpoint to start or stop accepting connections.
package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"

	"github.com/speedup/asynchttp/internal/listener"
	"github.com/speedup/asynchttp/pkg/asyncserver"
)

const (
	// ExpectOpen waits until the endpoint accepts a connection.
	ExpectOpen Expect = "open"
	// ExpectClosed waits until connections to the endpoint are refused.
	ExpectClosed Expect = "closed"

	// DefaultAttempts is the number of dials before Wait gives up.
	DefaultAttempts uint = 10
	// DefaultInterval is the linear backoff step between dials.
	DefaultInterval = 100 * time.Millisecond
	// DefaultDialTimeout bounds a single dial.
	DefaultDialTimeout = time.Second
)

var (
	// ErrInvalidExpect is the sentinel wrapped by InvalidExpectError.
	ErrInvalidExpect = errors.New("invalid expected state")
	// ErrUnexpectedState is returned when every attempt saw the wrong state.
	ErrUnexpectedState = errors.New("endpoint did not reach the expected state")
)

type (
	// Expect is the endpoint state Wait waits for.
	Expect string

	// InvalidExpectError is returned for an unknown Expect value.
	InvalidExpectError struct {
		Value Expect
	}

	// Result describes the last observation.
	Result struct {
		Attempts uint
		Open     bool
	}

	// Option configures Wait.
	Option func(*options)

	options struct {
		attempts    uint
		interval    time.Duration
		dialTimeout time.Duration
	}
)

// WithAttempts caps the number of dials. Zero keeps the default.
func WithAttempts(n uint) Option {
	return func(o *options) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// WithInterval sets the linear backoff step between dials.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithDialTimeout bounds each dial.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// Validate returns an *InvalidExpectError unless e is ExpectOpen or ExpectClosed.
func (e Expect) Validate() error {
	switch e {
	case ExpectOpen, ExpectClosed:
		return nil
	default:
		return &InvalidExpectError{Value: e}
	}
}

// Error implements the error interface.
func (e *InvalidExpectError) Error() string {
	return fmt.Sprintf("invalid expected state %q (valid: open, closed)", e.Value)
}

// Unwrap returns ErrInvalidExpect for errors.Is compatibility.
func (e *InvalidExpectError) Unwrap() error { return ErrInvalidExpect }

// Wait dials target until it is in the expected state, backing off linearly
// between attempts. It fails with ErrUnexpectedState once the attempts are
// used up, or with the context error when ctx ends first.
func Wait(ctx context.Context, target asyncserver.Target, expect Expect, opts ...Option) (Result, error) {
	if err := expect.Validate(); err != nil {
		return Result{}, err
	}

	o := options{attempts: DefaultAttempts, interval: DefaultInterval, dialTimeout: DefaultDialTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	var res Result
	err := retry.Retry(
		func(attempt uint) error {
			res.Attempts = attempt + 1
			res.Open = dial(ctx, target, o.dialTimeout)
			if res.Open == (expect == ExpectOpen) {
				return nil
			}
			return ErrUnexpectedState
		},
		strategy.Limit(o.attempts),
		func(uint) bool { return ctx.Err() == nil },
		strategy.Backoff(backoff.Linear(o.interval)),
	)
	if ctxErr := ctx.Err(); ctxErr != nil && (err != nil || res.Attempts == 0) {
		return res, ctxErr
	}
	if err != nil {
		return res, fmt.Errorf("%w: %s is not %s after %d attempts", err, target, expect, res.Attempts)
	}
	return res, nil
}

func dial(ctx context.Context, target asyncserver.Target, timeout time.Duration) bool {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := listener.Dial(dialCtx, target)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
