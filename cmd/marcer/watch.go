package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"marcer/internal/logging"
)

// watchDebounce groups the burst of events an editor produces on save.
const watchDebounce = 150 * time.Millisecond

// watchInstructions calls run once, then again after every change to the
// file at path, until ctx is cancelled. Run errors are logged and do not
// stop the watch.
func watchInstructions(ctx context.Context, path string, run func(context.Context) error) error {
	log := logging.For(logger, logging.CategoryBoot)

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file instead of
	// writing it in place.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	runLogged := func() {
		if err := run(ctx); err != nil && ctx.Err() == nil {
			log.Error("run failed", zap.String("instructions", path), zap.Error(err))
		}
	}

	runLogged()
	log.Info("watching instruction file", zap.String("path", abs))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pending:
			pending = nil
			log.Info("instruction file changed, running again", zap.String("path", abs))
			runLogged()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				pending = time.After(watchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))
		}
	}
}
