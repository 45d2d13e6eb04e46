package cliconfig

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/canlabs/canmon/pkg/log"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher monitors the config file via fsnotify and reloads it on change.
// Editors replace files rather than writing in place, so the parent
// directory is watched and events are debounced.
type Watcher struct {
	path     string
	logger   log.Logger
	onReload func(FileConfig)

	mu       sync.Mutex
	debounce *time.Timer
}

// NewWatcher creates a watcher for the config file at path. onReload is
// called with the freshly parsed file after each change.
func NewWatcher(path string, logger log.Logger, onReload func(FileConfig)) *Watcher {
	return &Watcher{path: path, logger: logger, onReload: onReload}
}

// Run watches until the context is cancelled. It returns early if the
// watch cannot be established.
func (w *Watcher) Run(ctx context.Context) {
	if w.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("config watcher unavailable", log.Err(err))
		return
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		w.logger.Warn("config watch failed", log.String("dir", dir), log.Err(err))
		return
	}
	base := filepath.Base(w.path)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	fc, err := LoadFileConfig(w.path)
	if err != nil {
		w.logger.Warn("config reload failed", log.String("path", w.path), log.Err(err))
		return
	}
	w.logger.Info("config reloaded", log.String("path", w.path))
	w.onReload(fc)
}
