// Package watch re-runs a job whenever matching files in a directory change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the directory must be quiet before fn runs.
const DefaultDebounce = 2 * time.Second

// Options configures Dir.
type Options struct {
	// Match selects the file names (base names) that trigger a run.
	// nil matches everything.
	Match    func(name string) bool
	Debounce time.Duration
	Log      zerolog.Logger
}

// Dir runs fn once, then again after every burst of changes to matching
// files in dir, until ctx is cancelled. Runs never overlap. Errors from fn
// are logged and do not stop the watch.
func Dir(ctx context.Context, dir string, opts Options, fn func(context.Context) error) error {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	log := opts.Log.With().Str("dir", dir).Logger()
	log.Info().Dur("debounce", debounce).Msg("watching for changes")

	run := func() {
		start := time.Now()
		if err := fn(ctx); err != nil {
			log.Error().Err(err).Msg("run failed")
			return
		}
		log.Debug().Dur("took", time.Since(start)).Msg("run complete")
	}
	run()

	timer := time.NewTimer(debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if opts.Match != nil && !opts.Match(filepath.Base(event.Name)) {
				continue
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("change")
			timer.Reset(debounce)
		case <-timer.C:
			if ctx.Err() != nil {
				return nil
			}
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch error")
		}
	}
}
