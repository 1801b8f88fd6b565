package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"chapterbase/pkg/logging"
)

// DefaultWatchDebounce is how long the watcher waits for further writes
// before reloading the session.
const DefaultWatchDebounce = 100 * time.Millisecond

// Watch observes the session directory for writes by other processes, such
// as a second chapterbase login or logout. When the session document changes
// the cache is dropped and onChange, if non-nil, is called.
//
// Watch returns once the watch is set up; events are handled in the
// background until ctx is cancelled.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create session watcher: %w", err)
	}

	// Watch the directory, not the file: writes replace the file by rename.
	if err := watcher.Add(s.file.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", s.file.dir, err)
	}

	w := &sessionWatcher{
		store:    s,
		watcher:  watcher,
		onChange: onChange,
		debounce: DefaultWatchDebounce,
	}
	go w.run(ctx)

	logging.Debug("Session", "Watching %s for session changes", s.file.dir)
	return nil
}

type sessionWatcher struct {
	store    *FileStore
	watcher  *fsnotify.Watcher
	onChange func()
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func (w *sessionWatcher) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		_ = w.watcher.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != FileName {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("Session", err, "Session watcher error")
		}
	}
}

// schedule coalesces a burst of events into one reload.
func (w *sessionWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.store.Reload()
		logging.Debug("Session", "Session file changed, cache reloaded")
		if w.onChange != nil {
			w.onChange()
		}
	})
}
