// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/speedup/asynchttp/internal/config"
	"github.com/speedup/asynchttp/pkg/types"
)

type (
	// App is the composition root of the CLI. Command handlers receive it and
	// reach configuration and output through it, so tests can swap both.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer

		// configPath is the --config flag value.
		configPath string
		verbose    bool
	}

	// Dependencies are the injection points of NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp builds an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: types.FilesystemPath(a.configPath)}
}

func (a *App) loadConfig(ctx context.Context) (*config.Loaded, error) {
	return a.Config.Load(ctx, a.loadOptions())
}
