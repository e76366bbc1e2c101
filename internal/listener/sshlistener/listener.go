// SPDX-License-Identifier: MPL-2.0

package sshlistener

import (
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"github.com/speedup/asynchttp/internal/listener"
	"github.com/speedup/asynchttp/pkg/asyncserver"
	"github.com/speedup/asynchttp/pkg/types"
)

// ErrNilHandler is returned by Factory when the handler is nil.
var ErrNilHandler = errors.New("ssh handler is nil")

type (
	// Option configures a Listener.
	Option func(*config)

	config struct {
		hostKeyPath types.FilesystemPath
		idleTimeout time.Duration
		maxTimeout  time.Duration
		logger      *log.Logger
	}

	// Listener serves an ssh.Handler on a bound target.
	Listener struct {
		*listener.Serving

		handler ssh.Handler
	}
)

// WithHostKeyPath loads the host key from path, generating it there if
// missing. Without it an ephemeral key is generated per listener.
func WithHostKeyPath(path types.FilesystemPath) Option {
	return func(c *config) { c.hostKeyPath = path }
}

// WithIdleTimeout disconnects sessions idle for d.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) { c.idleTimeout = d }
}

// WithMaxTimeout disconnects sessions after d regardless of activity.
func WithMaxTimeout(d time.Duration) Option {
	return func(c *config) { c.maxTimeout = d }
}

// WithLogger sets the logger for session and serve events.
func WithLogger(logger *log.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an unbound Listener for handler.
func New(handler ssh.Handler, opts ...Option) *Listener {
	cfg := config{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.With("listener", "ssh")

	l := &Listener{handler: handler}
	l.Serving = listener.NewServing(listener.ServingConfig{
		Build: func() (listener.Server, error) {
			return newServer(handler, cfg, logger)
		},
		ClosedErr: ssh.ErrServerClosed,
		Logger:    logger,
	})
	return l
}

// Factory returns an asyncserver.Factory producing SSH listeners.
func Factory(opts ...Option) asyncserver.Factory[ssh.Handler] {
	return func(handler ssh.Handler) (asyncserver.Listener, error) {
		if handler == nil {
			return nil, ErrNilHandler
		}
		return New(handler, opts...), nil
	}
}

func newServer(handler ssh.Handler, cfg config, logger *log.Logger) (*ssh.Server, error) {
	opts := []ssh.Option{
		wish.WithMiddleware(
			serve(handler),
			accessLog(logger),
		),
	}
	if cfg.hostKeyPath.IsSet() {
		opts = append(opts, wish.WithHostKeyPath(cfg.hostKeyPath.String()))
	}
	if cfg.idleTimeout > 0 {
		opts = append(opts, wish.WithIdleTimeout(cfg.idleTimeout))
	}
	if cfg.maxTimeout > 0 {
		opts = append(opts, wish.WithMaxTimeout(cfg.maxTimeout))
	}
	return wish.NewServer(opts...)
}

// serve turns the session handler into the innermost middleware.
func serve(handler ssh.Handler) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			handler(sess)
			next(sess)
		}
	}
}

func accessLog(logger *log.Logger) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			start := time.Now()
			logger.Info("session opened", "user", sess.User(), "remote", sess.RemoteAddr(), "command", sess.Command())
			next(sess)
			logger.Info("session closed", "user", sess.User(), "duration", time.Since(start))
		}
	}
}

// Handler returns the session handler being served.
func (l *Listener) Handler() ssh.Handler {
	return l.handler
}
