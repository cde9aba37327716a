package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives the result of re-evaluating a watched build file.
type ReloadFunc func(file *File, err error)

// Watch evaluates the build file at path whenever it changes, calling
// reloadFn with each result. It returns after the initial watch is
// established; event processing continues until ctx is done.
func (l *Loader) Watch(ctx context.Context, pkg, path string, reloadFn ReloadFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	go l.processEvents(ctx, watcher, pkg, path, reloadFn)

	l.logger.Info().Str("path", path).Str("package", pkg).Msg("Watching build file")
	return nil
}

// processEvents processes file system events and triggers re-evaluation.
func (l *Loader) processEvents(ctx context.Context, watcher *fsnotify.Watcher, pkg, path string, reloadFn ReloadFunc) {
	// Editors often produce bursts of writes; debounce them.
	var reloadTimer *time.Timer
	reloadDelay := 500 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			_ = watcher.Close()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				l.logger.Debug().
					Str("file", event.Name).
					Str("op", event.Op.String()).
					Msg("Build file changed")

				if reloadTimer != nil {
					reloadTimer.Stop()
				}
				reloadTimer = time.AfterFunc(reloadDelay, func() {
					file, err := l.EvalFile(ctx, pkg, path)
					if err != nil {
						l.logger.Error().Err(err).Msg("Failed to re-evaluate build file")
					}
					reloadFn(file, err)
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}
