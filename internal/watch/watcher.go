// SPDX-License-Identifier: MPL-2.0

// Package watch reports changes to the files of one directory with a debounce.
//
// serve --watch uses it to notice edits to the configuration file. Editors
// usually save through a temp file and a rename, so every event inside the
// debounce window is coalesced and the callback fires once with the full set
// of changed names.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is not positive.
const DefaultDebounce = 250 * time.Millisecond

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watch: Run called more than once")

// defaultIgnores are editor and OS artifacts that never count as a change.
var defaultIgnores = []string{
	"*.swp",
	"*.swo",
	"*~",
	".#*",
	"*.tmp",
	".DS_Store",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Dir is the directory to watch. It is not walked recursively.
		Dir string

		// Patterns are doublestar globs matched against base names. An empty
		// slice matches every non-ignored file.
		Patterns []string

		// Ignore adds globs to the built-in ignores.
		Ignore []string

		// Debounce is the quiet period after the last event before OnChange fires.
		Debounce time.Duration

		// OnChange receives the sorted, deduplicated base names that changed.
		// It never runs concurrently with itself.
		OnChange func(ctx context.Context, changed []string) error

		// Logger receives non-fatal watcher errors. nil discards them.
		Logger *log.Logger
	}

	// Watcher monitors one directory and fires a debounced callback when
	// matching files change. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		logger   *log.Logger
		debounce time.Duration
		dir      string
		started  atomic.Bool
	}
)

// New validates cfg and registers cfg.Dir with fsnotify.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, errors.New("watch: directory is required")
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve directory: %w", err)
	}

	if err := validatePatterns(cfg.Patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch: add directory %q: %w", dir, err)
	}

	return &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		logger:   logger,
		debounce: debounce,
		dir:      dir,
	}, nil
}

// Dir returns the absolute directory being watched.
func (w *Watcher) Dir() string { return w.dir }

// Run blocks until ctx is canceled, dispatching debounced callbacks. It
// returns nil on cancellation and an error when fsnotify breaks for good.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
		wg      sync.WaitGroup
	)

	fire := func() {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			// Retry later so the pending set is not lost.
			mu.Lock()
			if timer != nil {
				wg.Add(1)
				if timer.Reset(w.debounce) {
					wg.Done()
				}
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Error("watch callback failed", "err", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil && timer.Stop() {
			wg.Done()
		}
		mu.Unlock()
		wg.Wait()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("closing fsnotify watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(evt.Name)
			if !w.Matches(name) {
				continue
			}

			mu.Lock()
			pending[name] = struct{}{}
			wg.Add(1)
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else if timer.Reset(w.debounce) {
				// The previous schedule never ran; it is replaced by this one.
				wg.Done()
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// Matches reports whether a change to the base name would be reported.
func (w *Watcher) Matches(name string) bool {
	for _, pat := range w.ignores {
		if ok, _ := doublestar.Match(pat, name); ok {
			return false
		}
	}
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	for _, pat := range w.cfg.Patterns {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", label, pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}
