// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the asynchttp command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "asynchttp",
		Short: "Start and stop HTTP and SSH servers with a predictable lifecycle",
		Long: TitleStyle.Render("asynchttp") + SubtitleStyle.Render(" - servers that report ready only once bound") + `

asynchttp binds an endpoint (TCP port, unix socket or named pipe), reports
success only after the bind settled and surfaces bind errors unchanged.

` + SubtitleStyle.Render("Examples:") + `
  asynchttp serve --port 8080        Serve "ok" over HTTP on :8080
  asynchttp check --port 8080        Wait until :8080 accepts connections
  asynchttp config init              Write a default configuration file
  asynchttp config show              Show the effective configuration`,
		SilenceUsage: true,
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/asynchttp/config.cue)")
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "log at debug level and show error chains")

	root.AddCommand(
		newServeCommand(app),
		newCheckCommand(app),
		newConfigCommand(app),
	)
	return root
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the code carried by an ExitError.
// SIGINT and SIGTERM cancel the command context, which is how "serve" stops.
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(1)
	}
}
