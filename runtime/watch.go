package runtime

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pithecene-io/flint/iox"
)

// DefaultDebounce is the quiet period after a source change before a rebuild.
const DefaultDebounce = 300 * time.Millisecond

// BuildFunc receives the result of each build Watch runs.
type BuildFunc func(*BuildResult, error)

// Watch builds the source once, then rebuilds it whenever it changes,
// until ctx is done, and then returns ctx.Err(). Bursts of events within
// debounce collapse into one build. Build failures are reported through
// onBuild and do not stop the watch.
func (o *Orchestrator) Watch(ctx context.Context, debounce time.Duration, onBuild BuildFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer iox.DiscardClose(watcher)

	// Editors often replace files by rename, so watch the directory.
	dir, err := filepath.Abs(o.layout.Dir)
	if err != nil {
		return fmt.Errorf("resolve source directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	o.logger.Info("watching source", map[string]any{"source": o.layout.Source})

	o.rebuild(ctx, onBuild)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	base := filepath.Base(o.layout.Source)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			o.logger.Debug("source changed", map[string]any{"event": ev.Op.String()})
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			o.rebuild(ctx, onBuild)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("file watcher error", map[string]any{"error": err.Error()})
		}
	}
}

func (o *Orchestrator) rebuild(ctx context.Context, onBuild BuildFunc) {
	res, err := o.Build(ctx)
	if ctx.Err() != nil {
		return
	}
	if onBuild != nil {
		onBuild(res, err)
	}
}
