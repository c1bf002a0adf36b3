package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWatcher struct {
	events chan fsnotify.Event
	errs   chan error
	added  []string
	closed atomic.Bool
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		events: make(chan fsnotify.Event, 16),
		errs:   make(chan error, 1),
	}
}

func (f *fakeWatcher) Add(name string) error {
	f.added = append(f.added, name)
	return nil
}

func (f *fakeWatcher) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeWatcher) Events() <-chan fsnotify.Event { return f.events }
func (f *fakeWatcher) Errors() <-chan error { return f.errs }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatchFile_RerunsAfterDebouncedChange(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "payload.json")
	w := newFakeWatcher()

	var runs atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- watchFile(ctx, w, target, 20*time.Millisecond, discardLogger(), func(context.Context) error {
			runs.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	// A burst of writes collapses into one run.
	for range 3 {
		w.events <- fsnotify.Event{Name: target, Op: fsnotify.Write}
	}

	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)

	// Other files in the directory are ignored.
	w.events <- fsnotify.Event{Name: filepath.Join(dir, "other.json"), Op: fsnotify.Write}
	w.events <- fsnotify.Event{Name: target, Op: fsnotify.Chmod}

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(2), runs.Load())

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{dir}, w.added)
	assert.True(t, w.closed.Load())
}

func TestWatchFile_RunFailureDoesNotStopWatching(t *testing.T) {
	target := filepath.Join(t.TempDir(), "payload.json")
	w := newFakeWatcher()

	var runs atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() {
		done <- watchFile(ctx, w, target, time.Millisecond, discardLogger(), func(context.Context) error {
			runs.Add(1)
			return errors.New("analysis failed")
		})
	}()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	w.events <- fsnotify.Event{Name: target, Op: fsnotify.Create}

	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchFile_ClosedEventsEndsLoop(t *testing.T) {
	target := filepath.Join(t.TempDir(), "payload.json")
	w := newFakeWatcher()
	close(w.events)

	err := watchFile(context.Background(), w, target, time.Millisecond, discardLogger(), func(context.Context) error {
		return nil
	})
	require.NoError(t, err)
}

func TestIsContentChange(t *testing.T) {
	target := "/tmp/p.json"

	assert.True(t, isContentChange(fsnotify.Event{Name: target, Op: fsnotify.Write}, target))
	assert.True(t, isContentChange(fsnotify.Event{Name: target, Op: fsnotify.Create}, target))
	assert.False(t, isContentChange(fsnotify.Event{Name: target, Op: fsnotify.Remove}, target))
	assert.False(t, isContentChange(fsnotify.Event{Name: "/tmp/q.json", Op: fsnotify.Write}, target))
}
