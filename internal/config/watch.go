package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/lotas/trackerguard/internal/applog"
)

// Watcher reloads the configuration when a file in the config directory
// changes and hands the result to a callback.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func(*Config)

	lastChange time.Time
}

// NewWatcher starts watching dir. The directory must exist.
func NewWatcher(dir string, debounce time.Duration, onChange func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{dir: dir, watcher: w, debounce: debounce, onChange: onChange}, nil
}

// Run blocks until ctx is cancelled, reloading on writes and creates.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isConfigFile(event.Name) {
				continue
			}
			w.handleChange(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			applog.Error("config.watch", err)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handleChange(file string) {
	if since := time.Since(w.lastChange); since < w.debounce {
		applog.Debug("config.debounced", "file", filepath.Base(file), "since", since)
		return
	}
	w.lastChange = time.Now()

	cfg, err := Load(w.dir)
	if err != nil {
		applog.Error("config.reload", err, "file", filepath.Base(file))
		return
	}
	applog.Info("config.reloaded", "file", filepath.Base(file))
	if w.onChange != nil {
		w.onChange(cfg)
	}
}

func isConfigFile(name string) bool {
	base := filepath.Base(name)
	for _, n := range fileNames {
		if base == n {
			return true
		}
	}
	return false
}
