package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/emotu/nacex/internal/log"
)

// Watcher re-ingests the source document when it changes on disk.
// Editors and atomic writers produce bursts of events, so triggers are
// debounced.
type Watcher struct {
	runner   *Runner
	source   string
	debounce time.Duration
}

func NewWatcher(runner *Runner, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		runner:   runner,
		source:   runner.cfg.SourcePath,
		debounce: debounce,
	}
}

// Run blocks until ctx is done, triggering an ingest after each
// debounced change to the source file. The parent directory is watched
// because rename-based writes replace the inode.
func (w *Watcher) Run(ctx context.Context) error {
	logger := log.WithComponentFromContext(ctx, "watcher")

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("jobs: create watcher: %w", err)
	}
	defer fw.Close() //nolint:errcheck

	dir := filepath.Dir(w.source)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("jobs: watch %s: %w", dir, err)
	}
	logger.Info().Str("dir", dir).Str("source", w.source).Msg("watching source document")

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.source) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.Debug().Str("op", event.Op.String()).Msg("source change detected")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			if _, err := w.runner.Refresh(ctx, "watcher", false); err != nil {
				switch {
				case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrUnchanged):
					logger.Debug().Err(err).Msg("watcher trigger skipped")
				default:
					logger.Error().Err(err).Msg("watcher-triggered ingest failed")
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watcher error")
		}
	}
}
