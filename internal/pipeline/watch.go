package pipeline

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-runs a callback when Java sources under a root change.
// Bursts of events within the debounce window trigger one run.
type Watcher struct {
	root     string
	debounce time.Duration
	w        *fsnotify.Watcher
}

func NewWatcher(root string, debounce time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &Watcher{root: root, debounce: debounce, w: w}
	if err := fw.addTree(root); err != nil {
		w.Close()
		return nil, err
	}
	return fw, nil
}

// addTree registers dir and its subdirectories; fsnotify is not recursive.
func (fw *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.w.Add(path)
	})
}

// Run blocks until ctx is done, calling onChange after each settled burst
// of changes. Watch errors go to onError.
func (fw *Watcher) Run(ctx context.Context, onChange func(), onError func(error)) error {
	defer fw.w.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				// New directories need their own watch.
				_ = fw.addTree(ev.Name)
			}
			if !strings.HasSuffix(ev.Name, ".java") || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(fw.debounce)
			} else {
				timer.Reset(fw.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-fw.w.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
