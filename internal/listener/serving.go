// SPDX-License-Identifier: MPL-2.0

package listener

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/speedup/asynchttp/pkg/asyncserver"
)

// ErrAlreadyBound is reported through the failure event when Bind is called
// more than once, or after Close.
var ErrAlreadyBound = errors.New("listener has already been bound")

type (
	// Server is the serve/shutdown surface shared by http.Server and ssh.Server.
	Server interface {
		Serve(ln net.Listener) error
		Shutdown(ctx context.Context) error
		Close() error
	}

	// ServingConfig describes how a Serving listener builds and runs its server.
	ServingConfig struct {
		// Build creates the server once the socket is bound.
		Build func() (Server, error)
		// ClosedErr is what Serve returns after Shutdown; it is not logged.
		ClosedErr error
		// Wrap optionally decorates the bound listener (connection limits).
		Wrap func(net.Listener) net.Listener
		Logger *log.Logger
	}

	// Serving implements the bind, close and addr part of asyncserver.Listener
	// for any Server. Concrete listeners embed it. Each Serving binds once.
	Serving struct {
		*Outcome

		cfg    ServingConfig
		logger *log.Logger

		mu       sync.Mutex
		binding  bool
		closed   bool
		cancel   context.CancelFunc
		netLn    net.Listener
		server   Server
		serveErr chan error
	}
)

// NewServing creates an unbound Serving listener.
func NewServing(cfg ServingConfig) *Serving {
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}
	return &Serving{
		Outcome: NewOutcome(),
		cfg:     cfg,
		logger:  cfg.Logger,
	}
}

// Bind binds target in the background, then emits ready once the server is
// accepting or failure with the bind error, unwrapped.
func (s *Serving) Bind(target asyncserver.Target) {
	s.mu.Lock()
	if s.binding || s.closed {
		s.mu.Unlock()
		s.Fail(ErrAlreadyBound)
		return
	}
	s.binding = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	go s.bind(ctx, target)
}

func (s *Serving) bind(ctx context.Context, target asyncserver.Target) {
	ln, err := Listen(ctx, target)
	if err != nil {
		s.logger.Debug("bind failed", "target", target, "err", err)
		s.Fail(err)
		return
	}

	srv, err := s.cfg.Build()
	if err != nil {
		_ = ln.Close()
		s.Fail(err)
		return
	}
	if s.cfg.Wrap != nil {
		ln = s.cfg.Wrap(ln)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		s.Fail(net.ErrClosed)
		return
	}
	s.netLn = ln
	s.server = srv
	s.serveErr = make(chan error, 1)
	serveErr := s.serveErr
	s.mu.Unlock()

	go func() {
		err := srv.Serve(ln)
		if s.isClosedErr(err) {
			err = nil
		}
		if err != nil {
			s.logger.Error("serve stopped", "err", err)
		}
		serveErr <- err
	}()

	s.logger.Debug("bound", "addr", ln.Addr())
	s.Ready()
}

// Close shuts the server down gracefully, waiting for active work until ctx
// ends, after which remaining connections are cut. Closing before the bind
// completed aborts it. A second Close returns net.ErrClosed.
func (s *Serving) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return net.ErrClosed
	}
	s.closed = true
	cancel := s.cancel
	srv := s.server
	ln := s.netLn
	serveErr := s.serveErr
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if srv == nil {
		return nil
	}

	if err := srv.Shutdown(ctx); err != nil && !s.isClosedErr(err) {
		_ = srv.Close()
		_ = ln.Close()
		return err
	}
	// Shutdown only closes listeners Serve has registered. A Serve goroutine
	// that has not reached Accept yet must find the listener closed.
	if err := ln.Close(); err != nil && !s.isClosedErr(err) {
		s.logger.Debug("close listener", "err", err)
	}
	return <-serveErr
}

// Addr returns the bound address, or nil before ready.
func (s *Serving) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.netLn == nil {
		return nil
	}
	return s.netLn.Addr()
}

func (s *Serving) isClosedErr(err error) bool {
	if err == nil {
		return false
	}
	if s.cfg.ClosedErr != nil && errors.Is(err, s.cfg.ClosedErr) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
