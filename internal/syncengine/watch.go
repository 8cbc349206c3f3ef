package syncengine

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow batches a burst of filesystem events (a save touching
// several files, a branch checkout) into one Incremental run instead of one
// per event.
const debounceWindow = 500 * time.Millisecond

// Watch runs Incremental once, then keeps watching the working tree and
// re-running Incremental after each burst of changes settles, until ctx is
// cancelled. onSync is called after every run, including the first, with
// that run's Result and error. Grounded on
// pkg/rag/strategy/vector_store.go's StartFileWatcher/watchLoop
// debounce-timer pattern.
func (e *Engine) Watch(ctx context.Context, onSync func(Result, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("syncengine: watch: %w", err)
	}
	defer watcher.Close()

	if err := e.addDirsToWatcher(watcher); err != nil {
		return fmt.Errorf("syncengine: watch: %w", err)
	}

	var runMu sync.Mutex
	run := func() {
		runMu.Lock()
		defer runMu.Unlock()
		result, err := e.Incremental(ctx)
		if onSync != nil {
			onSync(result, err)
		}
	}
	run()

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if e.repo.ShouldIgnore(ev.Name, false) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if err := watcher.Add(ev.Name); err != nil {
						e.log.Warn("syncengine: could not watch new directory", "dir", ev.Name, "error", err)
					}
				}
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, run)

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.log.Warn("syncengine: watcher error", "error", werr)
		}
	}
}

// addDirsToWatcher registers every non-ignored directory under the repo
// root, since fsnotify watches directories rather than trees.
func (e *Engine) addDirsToWatcher(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(e.repo.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != e.repo.Root && e.repo.ShouldIgnore(path, true) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			e.log.Warn("syncengine: could not watch directory", "dir", path, "error", err)
		}
		return nil
	})
}
