// SPDX-License-Identifier: MPL-2.0

package httplistener

import (
	"errors"
	"net"
	"net/http"

	"github.com/charmbracelet/log"
	"golang.org/x/net/netutil"

	"github.com/speedup/asynchttp/internal/listener"
	"github.com/speedup/asynchttp/pkg/asyncserver"
)

// ErrNilHandler is returned by Factory when the handler is nil.
var ErrNilHandler = errors.New("http handler is nil")

// Listener serves an http.Handler on a bound target. asyncserver builds a
// fresh one for every start.
type Listener struct {
	*listener.Serving

	handler http.Handler
}

// New creates an unbound Listener for handler.
func New(handler http.Handler, opts ...Option) *Listener {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.With("listener", "http")

	l := &Listener{handler: handler}
	l.Serving = listener.NewServing(listener.ServingConfig{
		Build: func() (listener.Server, error) {
			return &http.Server{
				Handler:           handler,
				ReadHeaderTimeout: cfg.readHeaderTimeout,
				ReadTimeout:       cfg.readTimeout,
				WriteTimeout:      cfg.writeTimeout,
				IdleTimeout:       cfg.idleTimeout,
				ErrorLog:          logger.StandardLog(log.StandardLogOptions{ForceLevel: log.WarnLevel}),
			}, nil
		},
		ClosedErr: http.ErrServerClosed,
		Wrap:      limit(cfg.maxConnections),
		Logger:    logger,
	})
	return l
}

// Factory returns an asyncserver.Factory producing HTTP listeners.
func Factory(opts ...Option) asyncserver.Factory[http.Handler] {
	return func(handler http.Handler) (asyncserver.Listener, error) {
		if handler == nil {
			return nil, ErrNilHandler
		}
		return New(handler, opts...), nil
	}
}

// Handler returns the handler being served.
func (l *Listener) Handler() http.Handler {
	return l.handler
}

func limit(n int) func(net.Listener) net.Listener {
	if n <= 0 {
		return nil
	}
	return func(ln net.Listener) net.Listener {
		return netutil.LimitListener(ln, n)
	}
}
