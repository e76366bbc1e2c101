// SPDX-License-Identifier: MPL-2.0

package benchmark

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/speedup/asynchttp/internal/config"
	"github.com/speedup/asynchttp/internal/handler"
	"github.com/speedup/asynchttp/internal/listener"
	"github.com/speedup/asynchttp/internal/listener/httplistener"
	"github.com/speedup/asynchttp/pkg/asyncserver"
	"github.com/speedup/asynchttp/pkg/types"
)

// sampleConfig is a representative config.cue touching every section.
const sampleConfig = `
server: {
	host: "127.0.0.1"
	port: 8080
	protocol: "http"
	startup_timeout: "5s"
}
http: {
	status: 200
	body: "hello\n"
	gzip: true
	idle_timeout: "30s"
}
metrics: {
	enabled: true
	port: 9090
}
log: {
	level: "warn"
	format: "logfmt"
}
`

// BenchmarkConfigLoad benchmarks viper defaults, CUE schema validation and decoding.
// This exercises the hot path in internal/config/config.go.
func BenchmarkConfigLoad(b *testing.B) {
	dir := b.TempDir()
	path := filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt)
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		b.Fatalf("Failed to write config: %v", err)
	}

	provider := config.NewProvider()
	opts := config.LoadOptions{ConfigFilePath: types.FilesystemPath(path)}

	b.ResetTimer()
	for b.Loop() {
		if _, err := provider.Load(b.Context(), opts); err != nil {
			b.Fatalf("Load failed: %v", err)
		}
	}
}

// BenchmarkResolve benchmarks merging a base config with an override.
func BenchmarkResolve(b *testing.B) {
	h := handler.Text(http.StatusOK, "")
	base := &asyncserver.Config[http.Handler]{Host: "127.0.0.1", Handler: h}
	override := &asyncserver.Config[http.Handler]{Endpoint: asyncserver.PortEndpoint(8080)}

	b.ResetTimer()
	for b.Loop() {
		if _, err := asyncserver.Resolve(base, override); err != nil {
			b.Fatalf("Resolve failed: %v", err)
		}
	}
}

// BenchmarkOutcomeRace benchmarks subscribing to both terminal events and
// racing ready against failure.
func BenchmarkOutcomeRace(b *testing.B) {
	errBind := errors.New("bind failed")

	b.ResetTimer()
	for b.Loop() {
		o := listener.NewOutcome()
		stopReady := o.OnReady(func() {})
		stopFail := o.OnFailure(func(error) {})
		o.Ready()
		if o.Fail(errBind) {
			b.Fatal("failure emitted after ready")
		}
		stopReady()
		stopFail()
	}
}

// BenchmarkHandler benchmarks the demo handler with gzip enabled.
func BenchmarkHandler(b *testing.B) {
	h, err := handler.Build(handler.HTTPSpec{Status: http.StatusOK, Body: "hello\n", Gzip: true})
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}

	b.ResetTimer()
	for b.Loop() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			b.Fatalf("status = %d", rec.Code)
		}
	}
}

// BenchmarkStartStop benchmarks the end-to-end lifecycle: bind an ephemeral
// port, serve one request and shut down.
func BenchmarkStartStop(b *testing.B) {
	srv := asyncserver.New(httplistener.Factory(), &asyncserver.Config[http.Handler]{
		Host:     "127.0.0.1",
		Endpoint: asyncserver.PortEndpoint(0),
		Handler:  handler.Text(http.StatusOK, "ok"),
	}, asyncserver.WithStartupTimeout(5*time.Second))

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}

	b.ResetTimer()
	for b.Loop() {
		if _, err := srv.Start(b.Context(), nil); err != nil {
			b.Fatalf("Start failed: %v", err)
		}

		resp, err := client.Get("http://" + srv.Addr().String() + "/")
		if err != nil {
			b.Fatalf("GET failed: %v", err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if err := srv.Stop(b.Context()); err != nil {
			b.Fatalf("Stop failed: %v", err)
		}
	}
}
