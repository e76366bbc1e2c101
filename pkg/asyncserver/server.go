// SPDX-License-Identifier: MPL-2.0

package asyncserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/speedup/asynchttp/internal/core/serverbase"
)

// Server runs one listener at a time through an idle, starting, running,
// stopping cycle. It is safe for concurrent use; overlapping Start calls are
// rejected with ErrAlreadyStarted rather than queued.
type Server[H any] struct {
	state   *serverbase.Base
	factory Factory[H]
	base    *Config[H]

	id             string
	logger         *log.Logger
	observer       Observer
	startupTimeout time.Duration

	// mu guards listener and target, and orders them against the
	// Running/Stopping transitions.
	mu       sync.Mutex
	listener Listener
	target   Target
}

// New creates an idle Server. base may be nil when every Start supplies a
// complete override. base is copied; later changes to it have no effect.
func New[H any](factory Factory[H], base *Config[H], opts ...Option) *Server[H] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server[H]{
		factory:        factory,
		id:             o.id,
		logger:         o.logger.With("server", o.id),
		observer:       o.observer,
		startupTimeout: o.startupTimeout,
	}
	if base != nil {
		c := *base
		s.base = &c
	}
	s.state = serverbase.NewBase(serverbase.WithTransitionHook(func(from, to State) {
		s.logger.Debug("state transition", "from", from, "to", to)
		s.observer.ObserveTransition(s.id, from, to)
	}))
	return s
}

// ID returns the instance ID used in logs and metrics.
func (s *Server[H]) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Server[H]) State() State { return s.state.State() }

// IsRunning reports whether the server is running. It never blocks.
func (s *Server[H]) IsRunning() bool { return s.state.IsRunning() }

// Listener returns the active listener, or nil when not running.
func (s *Server[H]) Listener() Listener {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listener
}

// Addr returns the bound address of the active listener, or nil.
func (s *Server[H]) Addr() net.Addr {
	if ln := s.Listener(); ln != nil {
		return ln.Addr()
	}
	return nil
}

// Start resolves override against the base config, binds a new listener and
// waits for it to report. It returns s on success so calls can be chained.
//
// Errors:
//   - ErrAlreadyStarted unless the server is idle; the running listener is untouched.
//   - ErrConfigurationMissing, ErrEndpointMissing or ErrHandlerMissing from Resolve.
//   - the factory or listener error as reported, unwrapped.
//   - ErrStartCancelled when ctx ends or the startup timeout elapses first.
//
// On any error the server is idle again.
func (s *Server[H]) Start(ctx context.Context, override *Config[H]) (*Server[H], error) {
	if err := s.state.TransitionToStarting(); err != nil {
		var trErr *serverbase.TransitionError
		state := s.state.State()
		if errors.As(err, &trErr) {
			state = trErr.From
		}
		err = fmt.Errorf("%w (state %s)", ErrAlreadyStarted, state)
		s.logger.Debug("start rejected", "state", state)
		s.observer.ObserveStart(s.id, err)
		return nil, err
	}

	ln, target, err := s.open(ctx, override)
	if err != nil {
		s.state.AbortStart()
		s.logger.Error("start failed", "target", target, "err", err)
		s.observer.ObserveStart(s.id, err)
		return nil, err
	}

	s.mu.Lock()
	s.listener = ln
	s.target = target
	s.state.TransitionToRunning()
	s.mu.Unlock()

	s.logger.Info("server started", "target", target, "addr", ln.Addr())
	s.observer.ObserveStart(s.id, nil)
	return s, nil
}

// open resolves, builds and binds a listener. The returned target is set
// whenever resolution succeeded, for logging.
func (s *Server[H]) open(ctx context.Context, override *Config[H]) (Listener, Target, error) {
	if err := ctx.Err(); err != nil {
		return nil, Target{}, fmt.Errorf("%w: %w", ErrStartCancelled, err)
	}

	cfg, err := Resolve(s.base, override)
	if err != nil {
		return nil, Target{}, err
	}
	target := cfg.Target()

	ln, err := s.build(cfg.Handler)
	if err != nil {
		return nil, target, err
	}

	arb := newArbiter()
	arb.track(ln.OnReady(func() { arb.settle(nil) }))
	arb.track(ln.OnFailure(func(err error) {
		if err == nil {
			err = errors.New("listener reported a failure without an error")
		}
		arb.settle(err)
	}))

	if err := guard("listener bind", func() error {
		ln.Bind(target)
		return nil
	}); err != nil {
		arb.settle(err)
	}

	waitCtx := ctx
	if s.startupTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.startupTimeout)
		defer cancel()
	}

	select {
	case <-arb.done:
	case <-waitCtx.Done():
		arb.settle(fmt.Errorf("%w: %w", ErrStartCancelled, context.Cause(waitCtx)))
	}

	if err := arb.result(); err != nil {
		if errors.Is(err, ErrStartCancelled) {
			// The bind may still complete in the background; release whatever it holds.
			if cerr := ln.Close(context.WithoutCancel(ctx)); cerr != nil {
				s.logger.Debug("closing abandoned listener", "err", cerr)
			}
		}
		return nil, target, err
	}
	return ln, target, nil
}

func (s *Server[H]) build(handler H) (ln Listener, err error) {
	if s.factory == nil {
		return nil, errors.New("no listener factory configured")
	}
	err = guard("listener factory", func() error {
		var ferr error
		ln, ferr = s.factory(handler)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if ln == nil {
		return nil, errors.New("listener factory returned a nil listener")
	}
	return ln, nil
}

// Stop closes the active listener and waits for Close to return. The
// listener is detached and the server marked stopping before Close runs, and
// the server ends idle whether or not Close fails; a Close error is returned
// as is.
//
// If the server is not running, Stop returns ErrNotStarted and forces any
// inconsistent leftover state back to idle. A Start or Stop in progress on
// another goroutine is left to finish.
func (s *Server[H]) Stop(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	if ln == nil || !s.state.TransitionToStopping() {
		if prev := s.state.Reset(); !prev.IsTransitional() {
			s.listener = nil
			s.target = Target{}
		}
		s.mu.Unlock()

		s.logger.Debug("stop rejected", "state", s.state.State())
		s.observer.ObserveStop(s.id, ErrNotStarted)
		return ErrNotStarted
	}
	target := s.target
	s.listener = nil
	s.target = Target{}
	s.mu.Unlock()

	err := ln.Close(ctx)
	s.state.TransitionToIdle()

	if err != nil {
		s.logger.Error("stop failed", "target", target, "err", err)
	} else {
		s.logger.Info("server stopped", "target", target)
	}
	s.observer.ObserveStop(s.id, err)
	return err
}

// guard runs fn, turning a panic into an error.
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", op, r)
		}
	}()
	return fn()
}
