package service

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettleDelay is how long the watcher waits for a burst of events to end
const DefaultSettleDelay = 10 * time.Millisecond

// Watcher reruns a callback whenever a watched CFG file changes
type Watcher struct {
	paths     []string
	recursive bool
	delay     time.Duration
	isCFG     func(string) bool
	logger    *log.Logger
}

// NewWatcher creates a watcher over files and directories
func NewWatcher(paths []string, recursive bool) *Watcher {
	reader := NewCFGReader()
	return &Watcher{
		paths:     paths,
		recursive: recursive,
		delay:     DefaultSettleDelay,
		isCFG:     reader.IsValidCFGFile,
		logger:    log.New(os.Stderr, "", 0),
	}
}

// SetLogger sets where rerun failures are reported
func (w *Watcher) SetLogger(logger *log.Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// SetSettleDelay changes the debounce delay
func (w *Watcher) SetSettleDelay(d time.Duration) {
	if d > 0 {
		w.delay = d
	}
}

// Run calls onChange once per burst of changes until ctx is done. The
// callback is not called for the initial state.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	files, err := w.addAll(watcher)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("watch error: %v", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.drain(ctx, watcher)

			if err := w.rerun(ctx, onChange); err != nil {
				w.logger.Printf("rerun failed: %v", err)
			}
			// Editors replace files by rename, which drops the watch
			for _, f := range files {
				_ = watcher.Add(f)
			}
			if event.Has(fsnotify.Create) && w.recursive {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
		}
	}
}

// drain swallows the events that follow the first one of a burst
func (w *Watcher) drain(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.delay):
		}
		select {
		case <-watcher.Events:
		default:
			return
		}
	}
}

func (w *Watcher) rerun(ctx context.Context, onChange func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during rerun: %v", r)
		}
	}()
	return onChange(ctx)
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	return w.isCFG(event.Name) || event.Has(fsnotify.Create)
}

// addAll registers every path; directories are walked when recursive.
// It returns the plain files, which must be re-added after each rerun.
func (w *Watcher) addAll(watcher *fsnotify.Watcher) ([]string, error) {
	var files []string
	for _, path := range w.paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot watch %s: %w", path, err)
		}
		if !info.IsDir() {
			if err := watcher.Add(path); err != nil {
				return nil, fmt.Errorf("cannot watch %s: %w", path, err)
			}
			files = append(files, path)
			continue
		}
		if !w.recursive {
			if err := watcher.Add(path); err != nil {
				return nil, fmt.Errorf("cannot watch %s: %w", path, err)
			}
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return err
			}
			if p != path && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return watcher.Add(p)
		})
		if err != nil {
			return nil, fmt.Errorf("cannot watch %s: %w", path, err)
		}
	}
	return files, nil
}
