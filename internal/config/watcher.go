package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// ReloadFunc receives the hot-reloadable changes from a config file edit.
// diff carries only the fields that can take effect live (log level and game
// tuning); cfg is the full newly loaded config for anything else the caller
// wants to inspect.
type ReloadFunc func(diff ConfigDiff, cfg *Config)

// Watcher polls a config file and reports hot-reloadable changes through a
// ReloadFunc. Edits that only touch restart-bound fields (providers, storage,
// file paths) update Current but trigger no callback. An edit that breaks the
// file keeps the previous valid config.
//
// Polling (not fsnotify) keeps the dependency surface small and handles
// editors that replace the file rather than write in place.
type Watcher struct {
	path     string
	interval time.Duration
	onReload ReloadFunc

	mu       sync.Mutex
	current  *Config
	done     chan struct{}
	stopOnce sync.Once

	// snapshot of the file as of the last successful load
	mtime time.Time
	sum   [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path immediately and starts polling it in a background
// goroutine. The initial load failing is fatal; later failures only log.
func NewWatcher(path string, onReload ReloadFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, sum, mtime, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.sum = sum
	w.mtime = mtime

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends the polling goroutine. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check re-reads the file when it looks modified and pushes any
// hot-reloadable changes to the callback.
func (w *Watcher) check() {
	// Cheap mtime gate before reading and hashing the file.
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	seen := w.mtime
	w.mu.Unlock()

	if info.ModTime().Equal(seen) {
		return
	}

	cfg, sum, mtime, err := w.load()
	if err != nil {
		// Broken edit: keep serving the last valid config.
		slog.Warn("config watcher: file changed but failed to load, keeping previous config",
			"path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if sum == w.sum {
		// Touched without a content change.
		w.mtime = mtime
		w.mu.Unlock()
		return
	}
	diff := Diff(w.current, cfg)
	w.current = cfg
	w.sum = sum
	w.mtime = mtime
	w.mu.Unlock()

	if !diff.Any() {
		slog.Debug("config watcher: file changed, no hot-reloadable fields differ", "path", w.path)
		return
	}

	slog.Info("config watcher: applying hot reload",
		"path", w.path,
		"log_level_changed", diff.LogLevelChanged,
		"game_tuning_changed", diff.GameChanged,
	)

	// Callback runs outside the lock so it can call Current().
	if w.onReload != nil {
		w.onReload(diff, cfg)
	}
}

// load reads, hashes, and parses the config file in one pass so the recorded
// checksum always matches the bytes that produced the config.
func (w *Watcher) load() (*Config, [sha256.Size]byte, time.Time, error) {
	var zero [sha256.Size]byte

	f, err := os.Open(w.path)
	if err != nil {
		return nil, zero, time.Time{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, zero, time.Time{}, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, zero, time.Time{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, zero, time.Time{}, err
	}

	return cfg, sha256.Sum256(data), info.ModTime(), nil
}
