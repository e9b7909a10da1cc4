package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the configuration file when it changes and publishes
// the result. Editors tend to emit several events per save, so changes
// are debounced before reloading.
type Watcher struct {
	path     string
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	changes  chan Config
	debounce time.Duration
}

// NewWatcher starts watching the directory of path. Watching the
// directory rather than the file survives rename-based saves.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	return &Watcher{
		path:     path,
		logger:   logger,
		watcher:  fw,
		changes:  make(chan Config, 1),
		debounce: 500 * time.Millisecond,
	}, nil
}

// Changes delivers each successfully reloaded configuration.
func (w *Watcher) Changes() <-chan Config {
	return w.changes
}

// Run processes filesystem events until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous", "error", err)
		return
	}
	// Drop the stale pending config if the consumer has not caught up.
	select {
	case <-w.changes:
	default:
	}
	w.changes <- cfg
	w.logger.Info("config reloaded", "sources", len(cfg.EnabledSources()))
}

// Close releases the filesystem watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
