// SPDX-License-Identifier: MPL-2.0

package asyncserver

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

type (
	// Option configures a Server.
	Option func(*options)

	options struct {
		id             string
		logger         *log.Logger
		observer       Observer
		startupTimeout time.Duration
	}
)

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver registers an observer for transitions and start/stop results.
func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithStartupTimeout bounds how long Start waits for the listener to report.
// Zero, the default, waits until the Start context ends.
func WithStartupTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.startupTimeout = d
		}
	}
}

// WithID overrides the generated instance ID used in logs and metrics.
func WithID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.id = id
		}
	}
}

func defaultOptions() options {
	return options{
		id:       uuid.NewString(),
		logger:   log.New(io.Discard),
		observer: noopObserver{},
	}
}
