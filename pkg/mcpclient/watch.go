package mcpclient

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/aretw0/toolbox/internal/logging"
	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// Watch reloads config whenever its file changes and then calls onReload. It blocks
// until ctx is done. The parent directory is watched so editors that replace the file
// by renaming are still seen. A reload that fails to parse keeps the previous state.
func Watch(ctx context.Context, config *Config, logger *slog.Logger, onReload func(context.Context) error) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With("component", "config_watch")

	path := config.Path()
	if path == "" {
		return ErrConfigPathRequired
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	logger.Info("Watching configuration", "path", abs)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || name != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", "err", err)

		case <-timer.C:
			if err := config.Reload(); err != nil {
				logger.Error("Reloading configuration failed", "err", err)
				continue
			}
			logger.Info("Configuration reloaded", "servers", len(config.Servers()))
			if onReload != nil {
				if err := onReload(ctx); err != nil {
					logger.Warn("Applying reloaded configuration failed", "err", err)
				}
			}
		}
	}
}
