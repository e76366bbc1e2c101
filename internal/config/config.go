// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"mvdan.cc/sh/v3/shell"

	"github.com/speedup/asynchttp/internal/issue"
	"github.com/speedup/asynchttp/pkg/cueutil"
	"github.com/speedup/asynchttp/pkg/types"
)

const (
	// AppName names the configuration directory.
	AppName = "asynchttp"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides: server.port becomes ASYNCHTTP_SERVER_PORT.
	EnvPrefix = "ASYNCHTTP"

	schemaPath = "#Config"
)

//go:embed config_schema.cue
var configSchema []byte

// keys lists every leaf setting. Each one is bound to its environment variable
// explicitly, since viper's AutomaticEnv only sees keys that already have a value.
var keys = []string{
	"server.host",
	"server.port",
	"server.socket",
	"server.protocol",
	"server.startup_timeout",
	"server.shutdown_timeout",
	"http.status",
	"http.body",
	"http.root",
	"http.gzip",
	"http.read_header_timeout",
	"http.idle_timeout",
	"http.max_connections",
	"ssh.host_key_path",
	"ssh.idle_timeout",
	"ssh.body",
	"metrics.enabled",
	"metrics.host",
	"metrics.port",
	"log.level",
	"log.format",
}

// ConfigDir returns the per-user configuration directory: %APPDATA% on
// Windows, ~/Library/Application Support on macOS and $XDG_CONFIG_HOME
// (default ~/.config) elsewhere.
//
//nolint:revive // ConfigDir reads better than Dir at call sites
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

// FilePath resolves which file Load would read. found is false when no file
// exists and the built-in defaults apply; an explicit ConfigFilePath that does
// not exist is an error.
func FilePath(opts LoadOptions) (path string, found bool, err error) {
	if opts.ConfigFilePath.IsSet() {
		p := string(opts.ConfigFilePath)
		if !fileExists(p) {
			return p, false, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(p).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'asynchttp --config " + p + " config init' to create it").
				Wrap(fmt.Errorf("%w: %s", os.ErrNotExist, p)).
				BuildError()
		}
		return p, true, nil
	}

	dir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", false, err
	}
	name := ConfigFileName + "." + ConfigFileExt
	if p := filepath.Join(dir, name); fileExists(p) {
		return p, true, nil
	}
	if fileExists(name) {
		return name, true, nil
	}
	return filepath.Join(dir, name), false, nil
}

func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	if err := opts.Validate(); err != nil {
		return nil, "", err
	}

	v := newViper()

	path, found, err := FilePath(opts)
	if err != nil {
		return nil, "", err
	}
	if found {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Compare it with the output of 'asynchttp config dump'").
				Wrap(err).
				BuildError()
		}
	} else {
		path = ""
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := expandPaths(&cfg); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("expand configuration paths").
			WithResource(path).
			WithSuggestion("Use $VAR or ${VAR} references to set environment variables").
			Wrap(err).
			BuildError()
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check " + EnvPrefix + "_* environment variables as well as the file").
			Wrap(err).
			BuildError()
	}

	return &cfg, path, nil
}

// newViper returns a viper instance carrying the defaults and env bindings.
func newViper() *viper.Viper {
	v := viper.New()

	d := DefaultConfig()
	v.SetDefault("server.protocol", string(d.Server.Protocol))
	v.SetDefault("server.startup_timeout", d.Server.StartupTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("http.status", d.HTTP.Status)
	v.SetDefault("http.read_header_timeout", d.HTTP.ReadHeaderTimeout)
	v.SetDefault("http.idle_timeout", d.HTTP.IdleTimeout)
	v.SetDefault("ssh.idle_timeout", d.SSH.IdleTimeout)
	v.SetDefault("metrics.host", string(d.Metrics.Host))
	v.SetDefault("metrics.port", int(d.Metrics.Port))
	v.SetDefault("log.level", string(d.Log.Level))
	v.SetDefault("log.format", string(d.Log.Format))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range keys {
		// BindEnv only fails without a key.
		_ = v.BindEnv(k)
	}
	return v
}

// loadCUEIntoViper validates the file against #Config and merges it over the
// defaults. Fields are optional, so the value need not be concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	res, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, schemaPath,
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(*res.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func expandPaths(cfg *Config) error {
	expand := func(s string) (string, error) {
		if s == "" {
			return "", nil
		}
		return shell.Expand(s, nil)
	}

	socket, err := expand(string(cfg.Server.Socket))
	if err != nil {
		return fmt.Errorf("server.socket: %w", err)
	}
	root, err := expand(string(cfg.HTTP.Root))
	if err != nil {
		return fmt.Errorf("http.root: %w", err)
	}
	hostKey, err := expand(string(cfg.SSH.HostKeyPath))
	if err != nil {
		return fmt.Errorf("ssh.host_key_path: %w", err)
	}

	cfg.Server.Socket = types.SocketPath(socket)
	cfg.HTTP.Root = types.FilesystemPath(root)
	cfg.SSH.HostKeyPath = types.FilesystemPath(hostKey)
	return nil
}

func configDirWithOverride(dir types.FilesystemPath) (string, error) {
	if dir.IsSet() {
		return string(dir), nil
	}
	return ConfigDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the defaults to path, or to the file in the config
// directory when path is empty. An existing file is left untouched unless force
// is set; created reports whether a file was written.
func CreateDefaultConfig(path types.FilesystemPath, force bool) (written string, created bool, err error) {
	target := string(path)
	if !path.IsSet() {
		dir, err := ConfigDir()
		if err != nil {
			return "", false, err
		}
		target = filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	}

	if !force && fileExists(target) {
		return target, false, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return target, false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return target, false, fmt.Errorf("failed to write config file: %w", err)
	}
	return target, true, nil
}
