// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/speedup/asynchttp/internal/config"
	"github.com/speedup/asynchttp/internal/issue"
	"github.com/speedup/asynchttp/internal/testutil"
	"github.com/speedup/asynchttp/pkg/asyncserver"
	"github.com/speedup/asynchttp/pkg/types"
)

type staticProvider struct {
	cfg *config.Config
	err error
}

func (p staticProvider) Load(context.Context, config.LoadOptions) (*config.Loaded, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &config.Loaded{Config: p.cfg}, nil
}

// lockedBuffer is written by the command goroutine while the test reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	app    *App
	stdout *lockedBuffer
	stderr *lockedBuffer
}

func newHarness(cfg *config.Config) *harness {
	h := &harness{stdout: &lockedBuffer{}, stderr: &lockedBuffer{}}
	h.app = NewApp(Dependencies{
		Config: staticProvider{cfg: cfg},
		Stdout: h.stdout,
		Stderr: h.stderr,
	})
	return h
}

func (h *harness) run(ctx context.Context, args ...string) error {
	root := NewRootCommand(h.app)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func exitCode(t *testing.T, err error) types.ExitCode {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error %v (%T) is not an ExitError", err, err)
	}
	return exitErr.Code
}

func TestConfigDump(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	port := types.ListenPort(8080)
	cfg.Server.Port = &port

	h := newHarness(cfg)
	if err := h.run(t.Context(), "config", "dump", "--format", "yaml"); err != nil {
		t.Fatalf("config dump: %v", err)
	}

	var got map[string]map[string]any
	if err := yaml.Unmarshal([]byte(h.stdout.String()), &got); err != nil {
		t.Fatalf("dump is not YAML: %v\n%s", err, h.stdout.String())
	}
	if got["server"]["port"] != 8080 {
		t.Errorf("server.port = %v", got["server"]["port"])
	}
}

func TestConfigDump_InvalidFormat(t *testing.T) {
	t.Parallel()

	h := newHarness(config.DefaultConfig())
	err := h.run(t.Context(), "config", "dump", "--format", "ini")
	if code := exitCode(t, err); code != types.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, types.ExitUsage)
	}
	if !errors.Is(err, config.ErrInvalidDumpFormat) {
		t.Errorf("error = %v, want ErrInvalidDumpFormat", err)
	}
}

func TestConfigShow(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Server.Socket = "/tmp/app.sock"

	h := newHarness(cfg)
	if err := h.run(t.Context(), "config", "show"); err != nil {
		t.Fatalf("config show: %v", err)
	}
	out := h.stdout.String()
	for _, want := range []string{"(defaults)", "socket /tmp/app.sock", "127.0.0.1:9090", "unlimited"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show output lacks %q:\n%s", want, out)
		}
	}
}

func TestConfigInitAndPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "asynchttp.cue")
	h := newHarness(config.DefaultConfig())

	if err := h.run(t.Context(), "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config init did not write %s: %v", path, err)
	}

	if err := h.run(t.Context(), "--config", path, "config", "path"); err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.Contains(h.stdout.String(), path+"\n") {
		t.Errorf("config path output lacks %s:\n%s", path, h.stdout.String())
	}

	if err := h.run(t.Context(), "--config", path, "config", "init"); err != nil {
		t.Fatalf("second config init: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "already exists") {
		t.Errorf("second init should refuse to overwrite:\n%s", h.stdout.String())
	}
}

func TestConfigLoadFailure(t *testing.T) {
	t.Parallel()

	loadErr := issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource("config.cue").
		WithSuggestion("fix it").
		Wrap(errors.New("bad")).
		BuildError()

	h := newHarness(nil)
	h.app.Config = staticProvider{err: loadErr}

	err := h.run(t.Context(), "config", "show")
	if code := exitCode(t, err); code != types.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, types.ExitUsage)
	}
	if !strings.Contains(h.stderr.String(), "fix it") {
		t.Errorf("stderr should list the suggestion:\n%s", h.stderr.String())
	}
}

func TestServe_EndpointMissing(t *testing.T) {
	t.Parallel()

	h := newHarness(config.DefaultConfig())
	err := h.run(t.Context(), "serve")
	if !errors.Is(err, asyncserver.ErrEndpointMissing) {
		t.Fatalf("serve without endpoint: %v", err)
	}
	if code := exitCode(t, err); code != types.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, types.ExitUsage)
	}
}

func TestServe_PortConflict(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer testutil.DeferClose(t, busy)()
	port := busy.Addr().(*net.TCPAddr).Port

	h := newHarness(config.DefaultConfig())
	err = h.run(t.Context(), "serve", "--host", "127.0.0.1", "--port", fmt.Sprint(port))
	if !errors.Is(err, syscall.EADDRINUSE) {
		t.Fatalf("serve on a busy port: %v, want EADDRINUSE", err)
	}
	if code := exitCode(t, err); code != types.ExitFailure {
		t.Errorf("exit code = %d, want %d", code, types.ExitFailure)
	}
}

func TestServe_UntilCanceled(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.HTTP.Body = "from config\n"
	h := newHarness(cfg)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- h.run(ctx, "serve", "--host", "127.0.0.1", "--port", "0", "--body", "from flag\n")
	}()

	addr := waitForAddr(t, h.stdout, "http listening on tcp://")

	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body := new(bytes.Buffer)
	_, _ = body.ReadFrom(resp.Body)
	_ = resp.Body.Close()
	if body.String() != "from flag\n" {
		t.Errorf("body = %q, want the flag override", body.String())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
	if !strings.Contains(h.stdout.String(), "http stopped") {
		t.Errorf("stdout lacks the stop line:\n%s", h.stdout.String())
	}
	if _, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		t.Error("port should be free after serve returned")
	}
}

func TestServe_WatchRestarts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.cue")
	writeAtomic := func(body string) {
		t.Helper()
		src := fmt.Sprintf("server: {\n\thost: \"127.0.0.1\"\n\tport: 0\n}\nhttp: body: %q\n", body)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Rename(tmp, path); err != nil {
			t.Fatal(err)
		}
	}
	writeAtomic("one\n")

	h := &harness{stdout: &lockedBuffer{}, stderr: &lockedBuffer{}}
	h.app = NewApp(Dependencies{Stdout: h.stdout, Stderr: h.stderr})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- h.run(ctx, "serve", "--config", path, "--watch") }()

	addr := waitForAddr(t, h.stdout, "http listening on tcp://")
	waitForAddr(t, h.stdout, "watching ")
	if got := getBody(t, addr); got != "one\n" {
		t.Fatalf("body = %q, want one", got)
	}

	writeAtomic("two\n")
	addr = waitForAddr(t, h.stdout, "http restarted on tcp://")
	if got := getBody(t, addr); got != "two\n" {
		t.Errorf("body after restart = %q, want two", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v\n%s", err, h.stderr.String())
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServe_WatchWithoutFile(t *testing.T) {
	t.Parallel()

	h := newHarness(config.DefaultConfig())
	err := h.run(t.Context(), "serve", "--port", "0", "--watch")
	if !errors.Is(err, errWatchWithoutFile) {
		t.Fatalf("error = %v, want errWatchWithoutFile", err)
	}
	if code := exitCode(t, err); code != types.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, types.ExitUsage)
	}
}

func TestReloaded(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	port := types.ListenPort(8080)
	cfg.Server.Host = "10.0.0.1"
	cfg.Server.Port = &port

	got := reloaded(cfg, "", asyncserver.Endpoint{}, "h")
	if got.Host != "10.0.0.1" || got.Endpoint.String() != asyncserver.PortEndpoint(8080).String() || got.Handler != "h" {
		t.Errorf("file values not applied: %+v", got)
	}

	got = reloaded(cfg, "127.0.0.1", asyncserver.PathEndpoint("/tmp/a.sock"), "h")
	if got.Host != "127.0.0.1" {
		t.Errorf("host = %q, want the flag value", got.Host)
	}
	if p, ok := got.Endpoint.Path(); !ok || p != "/tmp/a.sock" {
		t.Errorf("endpoint = %v, want the flag socket", got.Endpoint)
	}
}

func getBody(t *testing.T, addr string) string {
	t.Helper()
	resp, err := http.Get("http://" + addr + "/")
	if err != nil {
		t.Fatalf("GET %s: %v", addr, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body := new(bytes.Buffer)
	_, _ = body.ReadFrom(resp.Body)
	return body.String()
}

func TestCheck(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := fmt.Sprint(ln.Addr().(*net.TCPAddr).Port)

	h := newHarness(config.DefaultConfig())
	if err := h.run(t.Context(), "check", "--host", "127.0.0.1", "--port", port); err != nil {
		t.Fatalf("check open: %v", err)
	}
	if !strings.Contains(h.stdout.String(), "is open") {
		t.Errorf("stdout = %q", h.stdout.String())
	}

	err = h.run(t.Context(), "check", "--host", "127.0.0.1", "--port", port,
		"--expect", "closed", "--attempts", "2", "--interval", "1ms")
	if code := exitCode(t, err); code != types.ExitFailure {
		t.Errorf("exit code = %d, want %d", code, types.ExitFailure)
	}

	_ = ln.Close()
	if err := h.run(t.Context(), "check", "--host", "127.0.0.1", "--port", port, "--expect", "closed"); err != nil {
		t.Fatalf("check closed: %v", err)
	}
}

func TestExitCodeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want types.ExitCode
	}{
		{"missing endpoint", asyncserver.ErrEndpointMissing, types.ExitUsage},
		{"config load", issue.WrapWithContext(errors.New("x"), "load configuration", "c.cue"), types.ExitUsage},
		{"bind", &net.OpError{Op: "listen", Err: os.NewSyscallError("bind", syscall.EADDRINUSE)}, types.ExitFailure},
		{"already started", asyncserver.ErrAlreadyStarted, types.ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

// waitForAddr polls out for a line starting with prefix and returns the rest of it.
func waitForAddr(t *testing.T, out *lockedBuffer, prefix string) string {
	t.Helper()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		s := ansiEscape.ReplaceAllString(out.String(), "")
		if i := strings.Index(s, prefix); i >= 0 {
			rest := s[i+len(prefix):]
			if j := strings.IndexByte(rest, '\n'); j >= 0 {
				return strings.TrimSpace(rest[:j])
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no %q line in output:\n%s", prefix, out.String())
	return ""
}
