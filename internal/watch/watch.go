package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Debounce is how long a file must stay quiet before fn runs again.
const Debounce = 100 * time.Millisecond

// Watch calls fn each time the file at path is written or recreated, until
// ctx is cancelled. The parent directory is watched so editors that replace
// the file on save are still seen. Errors from fn are logged, not returned.
func Watch(ctx context.Context, path string, log zerolog.Logger, fn func() error) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	log.Debug().Str("file", abs).Msg("watching")

	ticker := time.NewTicker(Debounce)
	defer ticker.Stop()

	var pending time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending = time.Now()
			}

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < Debounce {
				continue
			}
			pending = time.Time{}
			log.Info().Str("file", abs).Msg("change detected")
			if err := fn(); err != nil {
				log.Error().Err(err).Str("file", abs).Msg("reschedule failed")
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch error")
		}
	}
}
