// SPDX-License-Identifier: MPL-2.0

package httplistener

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// DefaultReadHeaderTimeout bounds how long a client may take to send headers.
	DefaultReadHeaderTimeout = 10 * time.Second
	// DefaultIdleTimeout closes keep-alive connections idle for this long.
	DefaultIdleTimeout = 60 * time.Second
)

type (
	// Option configures a Listener.
	Option func(*config)

	config struct {
		readHeaderTimeout time.Duration
		readTimeout       time.Duration
		writeTimeout      time.Duration
		idleTimeout       time.Duration
		maxConnections    int
		logger            *log.Logger
	}
)

// WithReadHeaderTimeout sets http.Server.ReadHeaderTimeout.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(c *config) { c.readHeaderTimeout = d }
}

// WithReadTimeout sets http.Server.ReadTimeout. Zero means no timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(c *config) { c.readTimeout = d }
}

// WithWriteTimeout sets http.Server.WriteTimeout. Zero means no timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *config) { c.writeTimeout = d }
}

// WithIdleTimeout sets http.Server.IdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) { c.idleTimeout = d }
}

// WithMaxConnections caps simultaneously accepted connections. Zero means unlimited.
func WithMaxConnections(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.maxConnections = n
		}
	}
}

// WithLogger sets the logger used for serve errors.
func WithLogger(logger *log.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func defaultConfig() config {
	return config{
		readHeaderTimeout: DefaultReadHeaderTimeout,
		idleTimeout:       DefaultIdleTimeout,
		logger:            log.New(io.Discard),
	}
}
