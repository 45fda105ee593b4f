package service

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, w *Watcher, runs *atomic.Int32) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			runs.Add(1)
			return nil
		})
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// Give the watcher time to register its paths
	time.Sleep(100 * time.Millisecond)
	return cancel
}

func TestWatcher_FileChange(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "diamond.json", diamondJSON)

	var runs atomic.Int32
	startWatcher(t, NewWatcher([]string{path}, false), &runs)

	require.NoError(t, os.WriteFile(path, []byte(diamondJSON+"\n"), 0644))
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_DirectoryIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	createTestFile(t, dir, "sub/diamond.json", diamondJSON)
	notes := createTestFile(t, dir, "notes.txt", "x")

	var runs atomic.Int32
	startWatcher(t, NewWatcher([]string{dir}, true), &runs)

	require.NoError(t, os.WriteFile(notes, []byte("changed"), 0644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), runs.Load())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "diamond.json"), []byte(diamondJSON), 0644))
	assert.Eventually(t, func() bool { return runs.Load() >= 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_MissingPath(t *testing.T) {
	w := NewWatcher([]string{filepath.Join(t.TempDir(), "missing")}, true)
	err := w.Run(context.Background(), func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestWatcher_Relevant(t *testing.T) {
	w := NewWatcher(nil, true)
	assert.True(t, w.relevant(fsnotify.Event{Name: "a/main.json", Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "a/main.json", Op: fsnotify.Chmod}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "a/.main.json.swp", Op: fsnotify.Write}))
	assert.False(t, w.relevant(fsnotify.Event{Name: "a/notes.txt", Op: fsnotify.Write}))
	assert.True(t, w.relevant(fsnotify.Event{Name: "a/newdir", Op: fsnotify.Create}))
}

func TestWatcher_RerunRecoversPanics(t *testing.T) {
	w := NewWatcher(nil, false)
	err := w.rerun(context.Background(), func(context.Context) error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
