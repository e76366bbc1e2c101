// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
	fired chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) onChange(_ context.Context, changed []string) error {
	r.mu.Lock()
	r.calls = append(r.calls, changed)
	r.mu.Unlock()
	r.fired <- struct{}{}
	return nil
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

// start runs w until the test ends and reports Run's result.
func start(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})
}

func write(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestWatcher_Debounce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	w, err := New(Config{Dir: dir, Debounce: 100 * time.Millisecond, OnChange: rec.onChange})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	start(t, w)

	for _, name := range []string{"c.cue", "a.cue", "b.cue"} {
		write(t, dir, name)
		time.Sleep(10 * time.Millisecond)
	}
	rec.wait(t)
	time.Sleep(300 * time.Millisecond)

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("callbacks = %v, want one coalesced call", calls)
	}
	if want := []string{"a.cue", "b.cue", "c.cue"}; !slices.Equal(calls[0], want) {
		t.Errorf("changed = %v, want %v", calls[0], want)
	}
}

func TestWatcher_PatternsAndIgnores(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := newRecorder()
	w, err := New(Config{
		Dir:      dir,
		Patterns: []string{"config.cue"},
		Debounce: 50 * time.Millisecond,
		OnChange: rec.onChange,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	start(t, w)

	write(t, dir, "other.cue")
	write(t, dir, "config.cue.swp")
	write(t, dir, "config.cue")
	rec.wait(t)
	time.Sleep(150 * time.Millisecond)

	for _, call := range rec.snapshot() {
		if !slices.Equal(call, []string{"config.cue"}) {
			t.Errorf("unexpected change set %v", call)
		}
	}
}

func TestWatcher_Matches(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Dir: t.TempDir(), Patterns: []string{"*.cue"}, Ignore: []string{"draft-*"}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = w.fsw.Close() })

	tests := []struct {
		name string
		want bool
	}{
		{"config.cue", true},
		{"config.yaml", false},
		{"config.cue~", false},
		{".config.cue.swp", false},
		{"draft-config.cue", false},
		{".DS_Store", false},
	}
	for _, tt := range tests {
		if got := w.Matches(tt.name); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestWatcher_RunTwice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	start(t, w)
	// Let the first Run claim the watcher.
	for !w.started.Load() {
		time.Sleep(time.Millisecond)
	}

	if err := w.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing dir", Config{}},
		{"nonexistent dir", Config{Dir: filepath.Join(t.TempDir(), "gone")}},
		{"bad pattern", Config{Dir: t.TempDir(), Patterns: []string{"[unterminated"}}},
		{"bad ignore", Config{Dir: t.TempDir(), Ignore: []string{"{a,b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestDefaultIgnores_ReturnsCopy(t *testing.T) {
	t.Parallel()

	got := DefaultIgnores()
	got[0] = "mutated"
	if DefaultIgnores()[0] == "mutated" {
		t.Error("DefaultIgnores must return a copy")
	}
}
