package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CacheWatcher monitors the profile cache directory and nudges the poll loop
// as soon as a new profile lands, instead of waiting out the poll interval.
type CacheWatcher struct {
	dir          string
	nudge        func()
	watcher      *fsnotify.Watcher
	stopChan     chan struct{}
	pendingChan  chan struct{}
	debounceTime time.Duration
}

// NewCacheWatcher creates a watcher over the cache directory. nudge is called
// after events settle; it must be safe to call from a separate goroutine.
func NewCacheWatcher(dir string, nudge func()) (*CacheWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve cache path: %w", err)
	}
	return &CacheWatcher{
		dir:          absDir,
		nudge:        nudge,
		watcher:      watcher,
		stopChan:     make(chan struct{}),
		pendingChan:  make(chan struct{}, 1),
		debounceTime: 2 * time.Second, // the fetch tooling writes several files per profile
	}, nil
}

// Start begins monitoring the cache directory.
func (cw *CacheWatcher) Start(ctx context.Context) error {
	if err := cw.watcher.Add(cw.dir); err != nil {
		return fmt.Errorf("failed to watch cache directory %s: %w", cw.dir, err)
	}
	slog.Info("Starting profile cache watcher", "cache_dir", cw.dir)

	go cw.watchLoop(ctx)
	go cw.nudgeLoop(ctx)
	return nil
}

// Stop stops the watcher.
func (cw *CacheWatcher) Stop() {
	close(cw.stopChan)
	if err := cw.watcher.Close(); err != nil {
		slog.Error("Error closing cache watcher", "error", err)
	}
}

func (cw *CacheWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case cw.pendingChan <- struct{}{}:
			default:
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("cache watcher error", "error", err)
		}
	}
}

// nudgeLoop debounces bursts of file events into one nudge.
func (cw *CacheWatcher) nudgeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case <-cw.pendingChan:
			timer := time.NewTimer(cw.debounceTime)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-cw.stopChan:
				timer.Stop()
				return
			case <-timer.C:
				slog.Debug("cache change detected, nudging poll loop")
				cw.nudge()
			}
		}
	}
}
