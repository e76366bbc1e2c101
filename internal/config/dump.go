// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	FormatCUE  DumpFormat = "cue"
	FormatYAML DumpFormat = "yaml"
	FormatTOML DumpFormat = "toml"
)

// ErrInvalidDumpFormat is the sentinel wrapped by InvalidDumpFormatError.
var ErrInvalidDumpFormat = errors.New("invalid dump format")

type (
	// DumpFormat selects the encoding used by Dump.
	DumpFormat string

	// InvalidDumpFormatError is returned for an unknown DumpFormat.
	InvalidDumpFormatError struct {
		Value DumpFormat
	}

	// section is one top-level block of the file, in file order.
	section struct {
		name   string
		fields []field
	}

	field struct {
		key   string
		value any
	}
)

func (f DumpFormat) Validate() error {
	switch f {
	case FormatCUE, FormatYAML, FormatTOML:
		return nil
	default:
		return &InvalidDumpFormatError{Value: f}
	}
}

func (e *InvalidDumpFormatError) Error() string {
	return fmt.Sprintf("invalid dump format %q (valid: cue, yaml, toml)", e.Value)
}

func (e *InvalidDumpFormatError) Unwrap() error { return ErrInvalidDumpFormat }

// Dump encodes cfg in the given format using the same keys as the CUE file.
// Durations are written as strings such as "10s".
func Dump(cfg *Config, format DumpFormat) ([]byte, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}

	switch format {
	case FormatYAML:
		return yaml.Marshal(toMap(cfg))
	case FormatTOML:
		return toml.Marshal(toMap(cfg))
	default:
		return []byte(GenerateCUE(cfg)), nil
	}
}

// GenerateCUE renders cfg as a config.cue document that validates against #Config.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// asynchttp configuration file\n")
	sb.WriteString("// Set server.port or server.socket to give \"asynchttp serve\" a default endpoint.\n")

	for _, s := range sections(cfg) {
		fmt.Fprintf(&sb, "\n%s: {\n", s.name)
		for _, f := range s.fields {
			switch v := f.value.(type) {
			case string:
				fmt.Fprintf(&sb, "\t%s: %q\n", f.key, v)
			default:
				fmt.Fprintf(&sb, "\t%s: %v\n", f.key, v)
			}
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}

func toMap(cfg *Config) map[string]any {
	out := make(map[string]any)
	for _, s := range sections(cfg) {
		m := make(map[string]any, len(s.fields))
		for _, f := range s.fields {
			m[f.key] = f.value
		}
		out[s.name] = m
	}
	return out
}

// sections flattens cfg into file order. Unset optional values are skipped
// so that the output round-trips through the schema.
func sections(cfg *Config) []section {
	server := section{name: "server"}
	if !cfg.Server.Host.IsAny() {
		server.add("host", cfg.Server.Host.String())
	}
	if cfg.Server.Port != nil {
		server.add("port", int(*cfg.Server.Port))
	}
	if cfg.Server.Socket != "" {
		server.add("socket", cfg.Server.Socket.String())
	}
	server.add("protocol", cfg.Server.Protocol.String())
	server.add("startup_timeout", duration(cfg.Server.StartupTimeout))
	server.add("shutdown_timeout", duration(cfg.Server.ShutdownTimeout))

	http := section{name: "http"}
	http.add("status", cfg.HTTP.Status)
	if cfg.HTTP.Body != "" {
		http.add("body", cfg.HTTP.Body)
	}
	if cfg.HTTP.Root.IsSet() {
		http.add("root", cfg.HTTP.Root.String())
	}
	http.add("gzip", cfg.HTTP.Gzip)
	http.add("read_header_timeout", duration(cfg.HTTP.ReadHeaderTimeout))
	http.add("idle_timeout", duration(cfg.HTTP.IdleTimeout))
	if cfg.HTTP.MaxConnections > 0 {
		http.add("max_connections", cfg.HTTP.MaxConnections)
	}

	ssh := section{name: "ssh"}
	if cfg.SSH.HostKeyPath.IsSet() {
		ssh.add("host_key_path", cfg.SSH.HostKeyPath.String())
	}
	ssh.add("idle_timeout", duration(cfg.SSH.IdleTimeout))
	if cfg.SSH.Body != "" {
		ssh.add("body", cfg.SSH.Body)
	}

	metrics := section{name: "metrics"}
	metrics.add("enabled", cfg.Metrics.Enabled)
	metrics.add("host", cfg.Metrics.Host.String())
	metrics.add("port", int(cfg.Metrics.Port))

	logs := section{name: "log"}
	logs.add("level", cfg.Log.Level.String())
	logs.add("format", cfg.Log.Format.String())

	return []section{server, http, ssh, metrics, logs}
}

func (s *section) add(key string, value any) {
	s.fields = append(s.fields, field{key: key, value: value})
}

// duration formats d so that both the #Duration pattern and
// time.ParseDuration accept it.
func duration(d time.Duration) string {
	return d.String()
}
