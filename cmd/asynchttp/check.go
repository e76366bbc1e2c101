// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/speedup/asynchttp/internal/issue"
	"github.com/speedup/asynchttp/internal/probe"
	"github.com/speedup/asynchttp/pkg/asyncserver"
	"github.com/speedup/asynchttp/pkg/types"
)

type checkFlags struct {
	host     string
	port     int
	socket   string
	expect   string
	attempts uint
	interval time.Duration
}

func newCheckCommand(app *App) *cobra.Command {
	var f checkFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Wait until an endpoint accepts or refuses connections",
		Long: `Dial an endpoint until it is in the expected state, backing off
between attempts. Without --port or --socket the configured server endpoint
is checked.

` + SubtitleStyle.Render("Examples:") + `
  asynchttp check --port 8080
  asynchttp check --socket /tmp/asynchttp.sock --expect closed --attempts 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.check(cmd.Context(), cmd.Flags(), f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.host, "host", "", "host to dial (default the configured host)")
	fl.IntVarP(&f.port, "port", "p", 0, "TCP port to dial")
	fl.StringVar(&f.socket, "socket", "", "unix socket or named pipe path to dial")
	fl.StringVar(&f.expect, "expect", string(probe.ExpectOpen), "state to wait for: open or closed")
	fl.UintVar(&f.attempts, "attempts", probe.DefaultAttempts, "maximum number of dials")
	fl.DurationVar(&f.interval, "interval", probe.DefaultInterval, "backoff step between dials")
	cmd.MarkFlagsMutuallyExclusive("port", "socket")

	return cmd
}

func (a *App) check(ctx context.Context, flags *pflag.FlagSet, f checkFlags) error {
	expect := probe.Expect(f.expect)
	if err := expect.Validate(); err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}

	target, err := a.checkTarget(ctx, flags, f)
	if err != nil {
		return err
	}

	res, err := probe.Wait(ctx, target, expect, probe.WithAttempts(f.attempts), probe.WithInterval(f.interval))
	if err != nil {
		if errors.Is(err, probe.ErrUnexpectedState) {
			renderIssue(a.stderr, issue.Get(issue.EndpointUnreachableId))
		}
		return &ExitError{Code: types.ExitFailure, Err: err}
	}

	fmt.Fprintf(a.stdout, "%s %s is %s (attempt %d)\n",
		SuccessStyle.Render("✓"), CmdStyle.Render(target.String()), expect, res.Attempts)
	return nil
}

// checkTarget resolves the endpoint to probe: flags first, then the
// configuration file.
func (a *App) checkTarget(ctx context.Context, flags *pflag.FlagSet, f checkFlags) (asyncserver.Target, error) {
	sf := serveFlags{port: f.port, socket: f.socket}
	override, err := sf.endpoint(flags)
	if err != nil {
		return asyncserver.Target{}, &ExitError{Code: types.ExitUsage, Err: err}
	}

	loaded, err := a.loadConfig(ctx)
	if err != nil {
		return asyncserver.Target{}, a.fail(err)
	}

	cfg := asyncserver.Config[struct{}]{
		Host:     loaded.Config.Server.Host,
		Endpoint: baseEndpoint(loaded.Config.Server),
	}
	if override.IsSet() {
		cfg.Endpoint = override
	}
	if flags.Changed("host") {
		cfg.Host = types.HostAddress(f.host)
	}
	if !cfg.Endpoint.IsSet() {
		return asyncserver.Target{}, a.fail(asyncserver.ErrEndpointMissing)
	}
	return cfg.Target(), nil
}
