// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/speedup/asynchttp/pkg/types"
)

const (
	// ProtocolHTTP serves an HTTP handler.
	ProtocolHTTP Protocol = "http"
	// ProtocolSSH serves SSH sessions.
	ProtocolSSH Protocol = "ssh"

	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	LogFormatText   LogFormat = "text"
	LogFormatJSON   LogFormat = "json"
	LogFormatLogfmt LogFormat = "logfmt"
)

var (
	// ErrInvalidProtocol is the sentinel error wrapped by InvalidProtocolError.
	ErrInvalidProtocol = errors.New("invalid protocol")
	// ErrInvalidLogLevel is the sentinel error wrapped by InvalidLogLevelError.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat is the sentinel error wrapped by InvalidLogFormatError.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrConflictingEndpoint is returned when both server.port and server.socket are set.
	ErrConflictingEndpoint = errors.New("server.port and server.socket are mutually exclusive")
)

type (
	// Protocol selects the listener served by "asynchttp serve".
	Protocol string

	// InvalidProtocolError is returned when a Protocol value is not recognized.
	InvalidProtocolError struct {
		Value Protocol
	}

	// LogLevel is the minimum level written to stderr.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// LogFormat selects the log line encoding.
	LogFormat string

	// InvalidLogFormatError is returned when a LogFormat value is not recognized.
	InvalidLogFormatError struct {
		Value LogFormat
	}

	// Config is the root configuration.
	Config struct {
		Server  ServerConfig  `json:"server" mapstructure:"server"`
		HTTP    HTTPConfig    `json:"http" mapstructure:"http"`
		SSH     SSHConfig     `json:"ssh" mapstructure:"ssh"`
		Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
		Log     LogConfig     `json:"log" mapstructure:"log"`
	}

	// ServerConfig is the base endpoint of the served lifecycle. Command-line
	// flags override it per start.
	ServerConfig struct {
		Host types.HostAddress `json:"host,omitempty" mapstructure:"host"`
		// Port is nil when unset; 0 asks the OS for a free port.
		Port            *types.ListenPort `json:"port,omitempty" mapstructure:"port"`
		Socket          types.SocketPath  `json:"socket,omitempty" mapstructure:"socket"`
		Protocol        Protocol          `json:"protocol,omitempty" mapstructure:"protocol"`
		StartupTimeout  time.Duration     `json:"startup_timeout,omitempty" mapstructure:"startup_timeout"`
		ShutdownTimeout time.Duration     `json:"shutdown_timeout,omitempty" mapstructure:"shutdown_timeout"`
	}

	// HTTPConfig configures the HTTP handler and listener.
	HTTPConfig struct {
		Status            int                  `json:"status,omitempty" mapstructure:"status"`
		Body              string               `json:"body,omitempty" mapstructure:"body"`
		Root              types.FilesystemPath `json:"root,omitempty" mapstructure:"root"`
		Gzip              bool                 `json:"gzip,omitempty" mapstructure:"gzip"`
		ReadHeaderTimeout time.Duration        `json:"read_header_timeout,omitempty" mapstructure:"read_header_timeout"`
		IdleTimeout       time.Duration        `json:"idle_timeout,omitempty" mapstructure:"idle_timeout"`
		MaxConnections    int                  `json:"max_connections,omitempty" mapstructure:"max_connections"`
	}

	// SSHConfig configures the SSH listener.
	SSHConfig struct {
		HostKeyPath types.FilesystemPath `json:"host_key_path,omitempty" mapstructure:"host_key_path"`
		IdleTimeout time.Duration        `json:"idle_timeout,omitempty" mapstructure:"idle_timeout"`
		Body        string               `json:"body,omitempty" mapstructure:"body"`
	}

	// MetricsConfig configures the Prometheus endpoint, which runs as its
	// own lifecycle next to the main server.
	MetricsConfig struct {
		Enabled bool              `json:"enabled,omitempty" mapstructure:"enabled"`
		Host    types.HostAddress `json:"host,omitempty" mapstructure:"host"`
		Port    types.ListenPort  `json:"port,omitempty" mapstructure:"port"`
	}

	// LogConfig configures the stderr logger.
	LogConfig struct {
		Level  LogLevel  `json:"level,omitempty" mapstructure:"level"`
		Format LogFormat `json:"format,omitempty" mapstructure:"format"`
	}
)

// DefaultConfig returns the built-in defaults. No endpoint is set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Protocol:        ProtocolHTTP,
			StartupTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		HTTP: HTTPConfig{
			Status:            200,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		SSH: SSHConfig{
			IdleTimeout: 5 * time.Minute,
		},
		Metrics: MetricsConfig{
			Host: "127.0.0.1",
			Port: 9090,
		},
		Log: LogConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}
}

// Validate checks constraints the schema cannot see once environment
// overrides are merged in.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port != nil && c.Server.Socket != "" {
		errs = append(errs, ErrConflictingEndpoint)
	}
	if c.Server.Port != nil {
		errs = append(errs, c.Server.Port.Validate())
	}
	if c.Server.Socket != "" {
		errs = append(errs, c.Server.Socket.Validate())
	}
	errs = append(errs,
		c.Server.Host.Validate(),
		c.Server.Protocol.Validate(),
		c.Metrics.Port.Validate(),
		c.Log.Level.Validate(),
		c.Log.Format.Validate(),
	)
	return errors.Join(errs...)
}

// HasEndpoint reports whether the file or environment set a port or socket.
func (s ServerConfig) HasEndpoint() bool {
	return s.Port != nil || s.Socket != ""
}

// String returns the string representation of the Protocol.
func (p Protocol) String() string { return string(p) }

// Validate returns an error if the Protocol is not http or ssh.
func (p Protocol) Validate() error {
	switch p {
	case ProtocolHTTP, ProtocolSSH:
		return nil
	default:
		return &InvalidProtocolError{Value: p}
	}
}

// Error implements the error interface.
func (e *InvalidProtocolError) Error() string {
	return fmt.Sprintf("invalid protocol %q (valid: http, ssh)", e.Value)
}

// Unwrap returns ErrInvalidProtocol for errors.Is() compatibility.
func (e *InvalidProtocolError) Unwrap() error { return ErrInvalidProtocol }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Validate returns an error if the LogLevel is not recognized.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the LogFormat.
func (f LogFormat) String() string { return string(f) }

// Validate returns an error if the LogFormat is not recognized.
func (f LogFormat) Validate() error {
	switch f {
	case LogFormatText, LogFormatJSON, LogFormatLogfmt:
		return nil
	default:
		return &InvalidLogFormatError{Value: f}
	}
}

// Error implements the error interface.
func (e *InvalidLogFormatError) Error() string {
	return fmt.Sprintf("invalid log format %q (valid: text, json, logfmt)", e.Value)
}

// Unwrap returns ErrInvalidLogFormat for errors.Is() compatibility.
func (e *InvalidLogFormatError) Unwrap() error { return ErrInvalidLogFormat }
