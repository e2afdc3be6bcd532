package doctor

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces bursts of filesystem events into one re-check.
const watchDebounce = 500 * time.Millisecond

// Watch re-runs the checks whenever something under the managed tree
// changes and reports new findings through emit. It blocks until the
// context is canceled.
func (d *Doctor) Watch(ctx context.Context, opts Options, emit func(Finding)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	dirs := append(d.paths.InstallDirs(), d.paths.SymlinksDir, d.paths.MetadataDir)
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	// Baseline pass so the watcher starts from a known state.
	seen := map[string]bool{}
	report := func() {
		findings, err := d.Run(opts)
		if err != nil {
			d.log.Error("check failed", "err", err)
			return
		}
		current := make(map[string]bool, len(findings))
		for _, f := range findings {
			key := f.String()
			current[key] = true
			if !seen[key] {
				emit(f)
			}
		}
		seen = current
	}
	report()

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, func() {
			select {
			case pending <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			d.log.Debug("fs event", "op", event.Op.String(), "path", event.Name)
			schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			d.log.Warn("watch error", "err", err)
		case <-pending:
			report()
		}
	}
}
