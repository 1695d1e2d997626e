package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceDelay = 500 * time.Millisecond

// snapshotWatcher signals on Changes when the snapshot file is written or replaced
type snapshotWatcher struct {
	path     string
	log      *zap.Logger
	watcher  *fsnotify.Watcher
	changes  chan struct{}
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func newSnapshotWatcher(path string, log *zap.Logger) (*snapshotWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("watch snapshot: no path configured")
	}
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("watch snapshot: %w", err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Atomic saves rename a temp file over the snapshot, so watch the directory
	if err := fsWatcher.Add(dir); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	log.Debug("watching snapshot", zap.String("path", path))
	return &snapshotWatcher{
		path:     path,
		log:      log,
		watcher:  fsWatcher,
		changes:  make(chan struct{}, 1),
		debounce: debounceDelay,
	}, nil
}

// Changes delivers at most one pending change notification
func (w *snapshotWatcher) Changes() <-chan struct{} {
	return w.changes
}

func (w *snapshotWatcher) run(ctx context.Context) {
	defer w.stopTimer()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug("snapshot file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()),
			)
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("file watcher error", zap.Error(err))

		case <-ctx.Done():
			return
		}
	}
}

// schedule coalesces bursts of events into one signal after the debounce delay
func (w *snapshotWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.signal)
}

func (w *snapshotWatcher) signal() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func (w *snapshotWatcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
}

// Close stops watching
func (w *snapshotWatcher) Close() error {
	return w.watcher.Close()
}
