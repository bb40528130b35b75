package timing

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"docchaser/internal/shared/telemetry"
)

// Watch reloads the policy file into store whenever it changes, until ctx is
// done. The parent directory is watched so that editors replacing the file
// are picked up. An invalid file is logged and the previous policy kept.
func Watch(ctx context.Context, path string, store *Store) error {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			reload(path, store)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			telemetry.Warn("timing.watch.error", map[string]any{"path": path, "error": err})
		}
	}
}

func reload(path string, store *Store) {
	p, err := LoadFile(path)
	if err == nil {
		err = store.Replace(p)
	}
	if err != nil {
		telemetry.Warn("timing.policy.reload_rejected", map[string]any{"path": path, "error": err})
		return
	}
	telemetry.Info("timing.policy.reloaded", map[string]any{"path": path, "urgencies": p.Urgencies()})
}
