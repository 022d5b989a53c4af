// ABOUTME: Watches the records directory and kicks a pass for every record that changes.
// ABOUTME: Edits made by hand or by another process converge without an explicit kick.

package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch kicks r for every record created, written, renamed or removed in
// its records directory until ctx ends.
func Watch(ctx context.Context, r *Reconciler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.Records().Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", r.Records().Dir(), err)
	}
	logger.Info("watching records", "dir", r.Records().Dir())

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			id, ok := IDFromPath(event.Name)
			if !ok {
				continue
			}
			logger.Debug("record changed", "instance", id, "op", event.Op.String())
			r.Kick(id)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}
