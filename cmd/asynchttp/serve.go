// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/speedup/asynchttp/internal/config"
	"github.com/speedup/asynchttp/internal/handler"
	"github.com/speedup/asynchttp/internal/issue"
	"github.com/speedup/asynchttp/internal/listener/httplistener"
	"github.com/speedup/asynchttp/internal/listener/sshlistener"
	"github.com/speedup/asynchttp/internal/metrics"
	"github.com/speedup/asynchttp/internal/watch"
	"github.com/speedup/asynchttp/pkg/asyncserver"
	"github.com/speedup/asynchttp/pkg/types"
)

// serveFlags are the per-start overrides of "asynchttp serve". Only flags the
// user actually set take part in the override.
type serveFlags struct {
	host     string
	port     int
	socket   string
	protocol string
	status   int
	body     string
	root     string
	gzip     bool
	metrics  bool
	watch    bool
}

func newServeCommand(app *App) *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve HTTP or SSH until interrupted",
		Long: `Start a server and keep it running until SIGINT or SIGTERM.

The configuration file provides the base settings; flags override them for
this run only. The server is ready once the endpoint is bound, and a bind
failure (address in use, permission denied) is reported as-is.

` + SubtitleStyle.Render("Examples:") + `
  asynchttp serve --port 8080
  asynchttp serve --socket /tmp/asynchttp.sock --body "hello"
  asynchttp serve --protocol ssh --port 2222
  asynchttp serve --port 0 --root ./public --gzip
  asynchttp serve --config ./config.cue --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.serve(cmd.Context(), cmd.Flags(), f)
		},
	}

	bindServeFlags(cmd.Flags(), &f)
	cmd.MarkFlagsMutuallyExclusive("port", "socket")

	return cmd
}

func bindServeFlags(fl *pflag.FlagSet, f *serveFlags) {
	fl.StringVar(&f.host, "host", "", "interface to bind TCP ports on (default all)")
	fl.IntVarP(&f.port, "port", "p", 0, "TCP port to listen on, 0 picks a free one")
	fl.StringVar(&f.socket, "socket", "", "unix socket or named pipe path to listen on")
	fl.StringVar(&f.protocol, "protocol", "", "protocol to serve: http or ssh")
	fl.IntVar(&f.status, "status", 0, "HTTP status code of the text response")
	fl.StringVar(&f.body, "body", "", "response body (HTTP) or session greeting (SSH)")
	fl.StringVar(&f.root, "root", "", "serve files from this directory instead of a text response")
	fl.BoolVar(&f.gzip, "gzip", false, "gzip HTTP responses")
	fl.BoolVar(&f.metrics, "metrics", false, "expose Prometheus metrics on metrics.host:metrics.port")
	fl.BoolVar(&f.watch, "watch", false, "restart the server when the configuration file changes")
}

func (a *App) serve(ctx context.Context, flags *pflag.FlagSet, f serveFlags) error {
	loaded, err := a.loadConfig(ctx)
	if err != nil {
		return a.fail(err)
	}
	cfg := loaded.Config

	logger, err := newLogger(cfg.Log, a.stderr, a.verbose)
	if err != nil {
		return a.fail(err)
	}
	if loaded.Source != "" {
		logger.Debug("configuration loaded", "path", loaded.Source)
	}

	protocol := cfg.Server.Protocol
	if flags.Changed("protocol") {
		protocol = config.Protocol(f.protocol)
		if err := protocol.Validate(); err != nil {
			return &ExitError{Code: types.ExitUsage, Err: err}
		}
	}

	endpoint, err := f.endpoint(flags)
	if err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}
	host := types.HostAddress(f.host)
	if err := host.Validate(); err != nil {
		return &ExitError{Code: types.ExitUsage, Err: err}
	}
	if f.watch && loaded.Source == "" {
		return &ExitError{Code: types.ExitUsage, Err: errWatchWithoutFile}
	}

	var observer asyncserver.Observer
	if cfg.Metrics.Enabled || f.metrics {
		m := metrics.New(metrics.WithRuntimeCollectors())
		observer = m

		stopMetrics, err := a.startMetrics(ctx, cfg, m, logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	lc := lifecycle{
		app:      a,
		logger:   logger,
		observer: observer,
		startup:  cfg.Server.StartupTimeout,
		shutdown: cfg.Server.ShutdownTimeout,
	}
	if f.watch {
		lc.watchFile = loaded.Source
	}

	switch protocol {
	case config.ProtocolSSH:
		base := &asyncserver.Config[ssh.Handler]{
			Host:     cfg.Server.Host,
			Endpoint: baseEndpoint(cfg.Server),
			Handler:  handler.Greeting(cfg.SSH.Body),
		}
		override := &asyncserver.Config[ssh.Handler]{Host: host, Endpoint: endpoint}
		if flags.Changed("body") {
			override.Handler = handler.Greeting(f.body)
		}
		reload := func(ctx context.Context) (*asyncserver.Config[ssh.Handler], error) {
			next, err := a.reloadConfig(ctx, protocol, flags.Changed("protocol"))
			if err != nil {
				return nil, err
			}
			body := next.SSH.Body
			if flags.Changed("body") {
				body = f.body
			}
			return reloaded(next, host, endpoint, handler.Greeting(body)), nil
		}
		factory := sshlistener.Factory(sshOptions(cfg.SSH, logger)...)
		return runLifecycle(ctx, lc, "ssh", asyncserver.New(factory, base, lc.options()...), override, reload)

	default:
		baseHandler, err := handler.Build(httpSpec(cfg.HTTP))
		if err != nil {
			return a.fail(issue.WrapWithContext(err, "build http handler", "configuration"))
		}
		base := &asyncserver.Config[http.Handler]{
			Host:     cfg.Server.Host,
			Endpoint: baseEndpoint(cfg.Server),
			Handler:  baseHandler,
		}
		override := &asyncserver.Config[http.Handler]{Host: host, Endpoint: endpoint}
		if spec, changed := f.httpSpec(flags, cfg.HTTP); changed {
			h, err := handler.Build(spec)
			if err != nil {
				return &ExitError{Code: types.ExitUsage, Err: err}
			}
			override.Handler = h
		}
		reload := func(ctx context.Context) (*asyncserver.Config[http.Handler], error) {
			next, err := a.reloadConfig(ctx, protocol, flags.Changed("protocol"))
			if err != nil {
				return nil, err
			}
			spec, _ := f.httpSpec(flags, next.HTTP)
			h, err := handler.Build(spec)
			if err != nil {
				return nil, err
			}
			return reloaded(next, host, endpoint, h), nil
		}
		factory := httplistener.Factory(httpOptions(cfg.HTTP, logger)...)
		return runLifecycle(ctx, lc, "http", asyncserver.New(factory, base, lc.options()...), override, reload)
	}
}

// startMetrics runs the metrics endpoint as a lifecycle of its own. The
// returned func stops it.
func (a *App) startMetrics(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *log.Logger) (func(), error) {
	base := &asyncserver.Config[http.Handler]{
		Host:     cfg.Metrics.Host,
		Endpoint: asyncserver.PortEndpoint(cfg.Metrics.Port),
		Handler:  m.Mux(),
	}
	srv := asyncserver.New(
		httplistener.Factory(httplistener.WithLogger(logger)),
		base,
		asyncserver.WithID("metrics"),
		asyncserver.WithLogger(logger),
		asyncserver.WithObserver(m),
		asyncserver.WithStartupTimeout(cfg.Server.StartupTimeout),
	)
	if _, err := srv.Start(ctx, nil); err != nil {
		return nil, a.fail(issue.WrapWithContext(err, "start metrics server", base.Target().String()))
	}
	fmt.Fprintf(a.stdout, "%s metrics on %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(addrURL(srv.Addr())+metrics.Path))

	return func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Stop(stopCtx); err != nil {
			logger.Error("stopping metrics server", "err", err)
		}
	}, nil
}

var errWatchWithoutFile = errors.New("--watch needs a configuration file; create one with 'asynchttp config init'")

// errProtocolChanged rejects a reload that switches protocols, which needs a
// different listener factory and therefore a new serve process.
var errProtocolChanged = errors.New("changing server.protocol requires a restart")

// reloadConfig reads the configuration file again for serve --watch. pinned
// means --protocol was given, so the file's protocol no longer matters.
func (a *App) reloadConfig(ctx context.Context, protocol config.Protocol, pinned bool) (*config.Config, error) {
	loaded, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !pinned && loaded.Config.Server.Protocol != protocol {
		return nil, fmt.Errorf("%w: %s to %s", errProtocolChanged, protocol, loaded.Config.Server.Protocol)
	}
	return loaded.Config, nil
}

// reloaded is the override a restart applies: the reloaded file with the
// command-line host and endpoint still on top.
func reloaded[H any](cfg *config.Config, host types.HostAddress, endpoint asyncserver.Endpoint, h H) *asyncserver.Config[H] {
	next := &asyncserver.Config[H]{
		Host:     cfg.Server.Host,
		Endpoint: baseEndpoint(cfg.Server),
		Handler:  h,
	}
	if host != "" {
		next.Host = host
	}
	if endpoint.IsSet() {
		next.Endpoint = endpoint
	}
	return next
}

// lifecycle holds what every served protocol shares.
type lifecycle struct {
	app       *App
	logger    *log.Logger
	observer  asyncserver.Observer
	startup   time.Duration
	shutdown  time.Duration
	watchFile string
}

func (lc lifecycle) options() []asyncserver.Option {
	opts := []asyncserver.Option{
		asyncserver.WithLogger(lc.logger),
		asyncserver.WithStartupTimeout(lc.startup),
	}
	if lc.observer != nil {
		opts = append(opts, asyncserver.WithObserver(lc.observer))
	}
	return opts
}

// runLifecycle starts srv, blocks until ctx is done and stops it again. When
// lc.watchFile is set, every change to it restarts srv with what reload returns.
func runLifecycle[H any](
	ctx context.Context,
	lc lifecycle,
	name string,
	srv *asyncserver.Server[H],
	override *asyncserver.Config[H],
	reload func(context.Context) (*asyncserver.Config[H], error),
) error {
	a := lc.app
	if _, err := srv.Start(ctx, override); err != nil {
		return a.fail(issue.WrapWithContext(err, "start "+name+" server", ""))
	}
	fmt.Fprintf(a.stdout, "%s %s listening on %s\n", SuccessStyle.Render("✓"), name, CmdStyle.Render(addrURL(srv.Addr())))

	// mu orders restarts against the final stop.
	var mu sync.Mutex
	watchErr := make(chan error, 1)
	if lc.watchFile != "" {
		w, err := watch.New(watch.Config{
			Dir:      filepath.Dir(lc.watchFile),
			Patterns: []string{filepath.Base(lc.watchFile)},
			Logger:   lc.logger,
			OnChange: func(ctx context.Context, _ []string) error {
				mu.Lock()
				defer mu.Unlock()
				if ctx.Err() != nil {
					return nil
				}
				return restart(ctx, lc, name, srv, reload)
			},
		})
		if err != nil {
			_ = srv.Stop(context.WithoutCancel(ctx))
			return a.fail(issue.WrapWithContext(err, "watch configuration", lc.watchFile))
		}
		fmt.Fprintf(a.stdout, "%s watching %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(lc.watchFile))
		go func() { watchErr <- w.Run(ctx) }()
	}

	select {
	case <-ctx.Done():
		if lc.watchFile != "" {
			<-watchErr
		}
	case err := <-watchErr:
		if err != nil {
			lc.logger.Error("configuration watcher stopped", "err", err)
		}
		<-ctx.Done()
	}
	lc.logger.Info("shutting down", "server", srv.ID(), "timeout", lc.shutdown)

	mu.Lock()
	defer mu.Unlock()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lc.shutdown)
	defer cancel()
	// A failed restart leaves srv idle; there is nothing left to stop.
	if err := srv.Stop(stopCtx); err != nil && !errors.Is(err, asyncserver.ErrNotStarted) {
		return a.fail(issue.WrapWithContext(err, "stop "+name+" server", ""))
	}
	fmt.Fprintf(a.stdout, "%s %s stopped\n", SuccessStyle.Render("✓"), name)
	return nil
}

// restart stops srv and starts it again with the reloaded config. A config
// that fails to load leaves the running server untouched.
func restart[H any](
	ctx context.Context,
	lc lifecycle,
	name string,
	srv *asyncserver.Server[H],
	reload func(context.Context) (*asyncserver.Config[H], error),
) error {
	a := lc.app
	next, err := reload(ctx)
	if err != nil {
		fmt.Fprintf(a.stderr, "%s reload skipped: %v\n", ErrorStyle.Render("✗"), err)
		return err
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lc.shutdown)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil && !errors.Is(err, asyncserver.ErrNotStarted) {
		return fmt.Errorf("stop %s server: %w", name, err)
	}
	if _, err := srv.Start(ctx, next); err != nil {
		fmt.Fprintf(a.stderr, "%s %s restart failed: %v\n", ErrorStyle.Render("✗"), name, err)
		return fmt.Errorf("restart %s server: %w", name, err)
	}
	fmt.Fprintf(a.stdout, "%s %s restarted on %s\n", SuccessStyle.Render("✓"), name, CmdStyle.Render(addrURL(srv.Addr())))
	return nil
}

// endpoint returns the --port or --socket override, or an unset Endpoint.
func (f serveFlags) endpoint(flags *pflag.FlagSet) (asyncserver.Endpoint, error) {
	switch {
	case flags.Changed("port"):
		port := types.ListenPort(f.port)
		if err := port.Validate(); err != nil {
			return asyncserver.Endpoint{}, err
		}
		return asyncserver.PortEndpoint(port), nil
	case flags.Changed("socket"):
		path := types.SocketPath(f.socket)
		if err := path.Validate(); err != nil {
			return asyncserver.Endpoint{}, err
		}
		return asyncserver.PathEndpoint(path), nil
	default:
		return asyncserver.Endpoint{}, nil
	}
}

// httpSpec overlays the handler flags on the configured spec. changed is
// false when no handler flag was given.
func (f serveFlags) httpSpec(flags *pflag.FlagSet, base config.HTTPConfig) (handler.HTTPSpec, bool) {
	spec := httpSpec(base)
	changed := false
	if flags.Changed("status") {
		spec.Status, changed = f.status, true
	}
	if flags.Changed("body") {
		spec.Body, changed = f.body, true
	}
	if flags.Changed("root") {
		spec.Root, changed = types.FilesystemPath(f.root), true
	}
	if flags.Changed("gzip") {
		spec.Gzip, changed = f.gzip, true
	}
	return spec, changed
}

func baseEndpoint(s config.ServerConfig) asyncserver.Endpoint {
	switch {
	case s.Port != nil:
		return asyncserver.PortEndpoint(*s.Port)
	case s.Socket != "":
		return asyncserver.PathEndpoint(s.Socket)
	default:
		return asyncserver.Endpoint{}
	}
}

func httpSpec(c config.HTTPConfig) handler.HTTPSpec {
	return handler.HTTPSpec{Status: c.Status, Body: c.Body, Root: c.Root, Gzip: c.Gzip}
}

func httpOptions(c config.HTTPConfig, logger *log.Logger) []httplistener.Option {
	return []httplistener.Option{
		httplistener.WithReadHeaderTimeout(c.ReadHeaderTimeout),
		httplistener.WithIdleTimeout(c.IdleTimeout),
		httplistener.WithMaxConnections(c.MaxConnections),
		httplistener.WithLogger(logger),
	}
}

func sshOptions(c config.SSHConfig, logger *log.Logger) []sshlistener.Option {
	opts := []sshlistener.Option{
		sshlistener.WithIdleTimeout(c.IdleTimeout),
		sshlistener.WithLogger(logger),
	}
	if c.HostKeyPath.IsSet() {
		opts = append(opts, sshlistener.WithHostKeyPath(c.HostKeyPath))
	}
	return opts
}

// addrURL formats a bound address as network://address.
func addrURL(addr net.Addr) string {
	if addr == nil {
		return "<unbound>"
	}
	return addr.Network() + "://" + addr.String()
}
