package config

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads the config file when it changes on disk and hands the
// result to a callback, so the daemon can pick up interpreter changes
// without a restart.
type Watcher struct {
	path     string
	log      zerolog.Logger
	onReload func(Config, error)
	mu       sync.RWMutex
	current  Config
	reloads  atomic.Uint32
}

// NewWatcher loads path once and starts watching it for writes.
func NewWatcher(path string, log zerolog.Logger, onReload func(Config, error)) (*Watcher, error) {
	w := &Watcher{path: path, log: log, onReload: onReload}
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}
	w.current = cfg

	go w.watch()
	return w, nil
}

func (w *Watcher) watch() {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Error().Err(err).Msg("failed to create file watcher")
		return
	}
	defer fw.Close()

	if err := fw.Add(w.path); err != nil {
		w.log.Error().Err(err).Str("path", w.path).Msg("failed to watch config file")
		return
	}

	var timer *time.Timer
	const debounce = 500 * time.Millisecond

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, w.reload)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	count := w.reloads.Add(1)
	cfg, err := Load(w.path)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to reload config")
		w.onReload(Config{}, err)
		return
	}
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	w.log.Info().Str("path", w.path).Uint32("count", count).Msg("config reloaded")
	w.onReload(cfg, nil)
}

// Snapshot returns the current config (thread-safe).
func (w *Watcher) Snapshot() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ReloadCount returns the number of completed reload attempts.
func (w *Watcher) ReloadCount() uint32 {
	return w.reloads.Load()
}
