package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watch monitors a config file and invokes onReload with the freshly
// parsed config after each write. Reload failures are logged and the
// previous config stays in effect. Watch returns when ctx is cancelled.
//
// Editors and config management tools often replace the file rather
// than writing in place, so the parent directory is watched and events
// are filtered by name.
func Watch(ctx context.Context, path string, log *logrus.Logger, onReload func(*Config)) error {
	if log == nil {
		log = logrus.New()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}

	target := filepath.Clean(path)

	// Debounce bursts of events from atomic-replace writes
	var pending *time.Timer
	reloads := make(chan struct{}, 1)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(100*time.Millisecond, func() {
				select {
				case reloads <- struct{}{}:
				default:
				}
			})

		case <-reloads:
			cfg, err := LoadFile(path)
			if err != nil {
				log.WithError(err).Warn("config reload failed, keeping previous config")
				continue
			}
			log.WithField("path", path).Info("config reloaded")
			onReload(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("config watcher error")

		case <-ctx.Done():
			return nil
		}
	}
}
