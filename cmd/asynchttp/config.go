// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/speedup/asynchttp/internal/config"
	"github.com/speedup/asynchttp/pkg/types"
)

// newConfigCommand creates the "asynchttp config" command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the configuration file",
		Long: `Inspect and create the asynchttp configuration file.

The file is looked up in:
  - Linux: ~/.config/asynchttp/config.cue
  - macOS: ~/Library/Application Support/asynchttp/config.cue
  - Windows: %APPDATA%\asynchttp\config.cue
  - ./config.cue in the working directory

ASYNCHTTP_* environment variables override file values.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.showConfig(cmd.Context())
		},
	})

	var format string
	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration as CUE, YAML or TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.dumpConfig(cmd.Context(), config.DumpFormat(format))
		},
	}
	dumpCmd.Flags().StringVarP(&format, "format", "f", string(config.FormatCUE), "output format: cue, yaml or toml")
	cfgCmd.AddCommand(dumpCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.showConfigPath()
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.initConfig(force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	return cfgCmd
}

func (a *App) showConfig(ctx context.Context) error {
	loaded, err := a.loadConfig(ctx)
	if err != nil {
		return a.fail(err)
	}

	source := loaded.Source
	if source == "" {
		source = "(defaults)"
	}
	fmt.Fprintln(a.stdout, TitleStyle.Render("asynchttp configuration")+" "+SubtitleStyle.Render(source))

	for _, sec := range configSections(loaded.Config) {
		fmt.Fprintln(a.stdout, sectionStyle.Render(sec.name))
		for _, kv := range sec.values {
			fmt.Fprintf(a.stdout, "  %s %s\n", keyStyle.Render(kv[0]), kv[1])
		}
	}
	return nil
}

func (a *App) dumpConfig(ctx context.Context, format config.DumpFormat) error {
	if err := format.Validate(); err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}

	loaded, err := a.loadConfig(ctx)
	if err != nil {
		return a.fail(err)
	}
	out, err := config.Dump(loaded.Config, format)
	if err != nil {
		return a.fail(err)
	}
	_, err = a.stdout.Write(out)
	return err
}

func (a *App) showConfigPath() error {
	path, found, err := config.FilePath(a.loadOptions())
	if err != nil {
		return a.fail(err)
	}
	if found {
		fmt.Fprintln(a.stdout, path)
		return nil
	}
	fmt.Fprintln(a.stdout, path+" "+SubtitleStyle.Render("(not created yet)"))
	return nil
}

func (a *App) initConfig(force bool) error {
	path, created, err := config.CreateDefaultConfig(types.FilesystemPath(a.configPath), force)
	if err != nil {
		return a.fail(err)
	}
	if !created {
		fmt.Fprintln(a.stdout, WarningStyle.Render("!")+" "+path+" already exists, use --force to overwrite")
		return nil
	}
	fmt.Fprintln(a.stdout, SuccessStyle.Render("✓")+" wrote "+path)
	return nil
}

type configSection struct {
	name   string
	values [][2]string
}

func configSections(cfg *config.Config) []configSection {
	endpoint := "(none)"
	switch {
	case cfg.Server.Port != nil:
		endpoint = "port " + cfg.Server.Port.String()
	case cfg.Server.Socket != "":
		endpoint = "socket " + cfg.Server.Socket.String()
	}
	host := cfg.Server.Host.String()
	if host == "" {
		host = "(all interfaces)"
	}

	return []configSection{
		{"server", [][2]string{
			{"endpoint", endpoint},
			{"host", host},
			{"protocol", cfg.Server.Protocol.String()},
			{"startup_timeout", cfg.Server.StartupTimeout.String()},
			{"shutdown_timeout", cfg.Server.ShutdownTimeout.String()},
		}},
		{"http", [][2]string{
			{"status", fmt.Sprint(cfg.HTTP.Status)},
			{"body", quoteOrDefault(cfg.HTTP.Body, `"ok\n"`)},
			{"root", quoteOrDefault(cfg.HTTP.Root.String(), "(text response)")},
			{"gzip", fmt.Sprint(cfg.HTTP.Gzip)},
			{"max_connections", limitOrUnlimited(cfg.HTTP.MaxConnections)},
		}},
		{"ssh", [][2]string{
			{"host_key_path", quoteOrDefault(cfg.SSH.HostKeyPath.String(), "(ephemeral key)")},
			{"idle_timeout", cfg.SSH.IdleTimeout.String()},
		}},
		{"metrics", [][2]string{
			{"enabled", fmt.Sprint(cfg.Metrics.Enabled)},
			{"address", net.JoinHostPort(cfg.Metrics.Host.String(), cfg.Metrics.Port.String())},
		}},
		{"log", [][2]string{
			{"level", cfg.Log.Level.String()},
			{"format", cfg.Log.Format.String()},
		}},
	}
}

func quoteOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return fmt.Sprintf("%q", s)
}

func limitOrUnlimited(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}
