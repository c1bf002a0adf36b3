package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// watchDebounce coalesces the burst of events an editor save produces.
	watchDebounce = 500 * time.Millisecond

	watchErrInitBackoff = 1 * time.Second
	watchErrMaxBackoff  = 30 * time.Second
)

// fsWatcher is the subset of fsnotify.Watcher used by watchFile.
type fsWatcher interface {
	Add(name string) error
	Close() error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
}

type fsnotifyWatcher struct {
	w *fsnotify.Watcher
}

func newFsnotifyWatcher() (fsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	return &fsnotifyWatcher{w: w}, nil
}

func (f *fsnotifyWatcher) Add(name string) error { return f.w.Add(name) }
func (f *fsnotifyWatcher) Close() error { return f.w.Close() }
func (f *fsnotifyWatcher) Events() <-chan fsnotify.Event { return f.w.Events }
func (f *fsnotifyWatcher) Errors() <-chan error { return f.w.Errors }

// watchFile calls run once, then again after every settled change to path,
// until ctx is canceled. The parent directory is watched rather than the
// file itself because editors commonly save by rename, which would drop a
// watch on the old inode. A failing run is logged and does not end the loop.
func watchFile(
	ctx context.Context, watcher fsWatcher, path string, debounce time.Duration,
	logger *slog.Logger, run func(context.Context) error,
) error {
	defer watcher.Close()

	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	runOnce := func() {
		if err := run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("analysis failed", slog.String("file", path), slog.String("error", err.Error()))
		}
	}

	runOnce()

	logger.Info("watching for changes", slog.String("file", target))

	// A stopped timer whose channel is nil until the first relevant event.
	var (
		settle     *time.Timer
		settleC    <-chan time.Time
		errBackoff = watchErrInitBackoff
	)

	for {
		select {
		case <-ctx.Done():
			if settle != nil {
				settle.Stop()
			}

			return nil

		case ev, ok := <-watcher.Events():
			if !ok {
				return nil
			}

			if !isContentChange(ev, target) {
				continue
			}

			logger.Debug("file changed", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))

			if settle == nil {
				settle = time.NewTimer(debounce)
			} else {
				settle.Reset(debounce)
			}

			settleC = settle.C
			errBackoff = watchErrInitBackoff

		case <-settleC:
			settleC = nil
			runOnce()

		case watchErr, ok := <-watcher.Errors():
			if !ok {
				return nil
			}

			logger.Warn("file watcher error",
				slog.String("error", watchErr.Error()),
				slog.Duration("backoff", errBackoff),
			)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(errBackoff):
			}

			errBackoff = min(errBackoff*2, watchErrMaxBackoff)
		}
	}
}

// isContentChange reports whether ev may have changed the contents of target.
func isContentChange(ev fsnotify.Event, target string) bool {
	if filepath.Clean(ev.Name) != target {
		return false
	}

	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)
}
