package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherFiresOnWatchedFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	fired := make(chan struct{}, 1)
	w := NewWatcher(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond) // let the watcher register its fsnotify.Add
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not invoked after the watched file was written")
	}
	cancel()
	<-done
}

func TestWatcherFiresOnFileInsideWatchedDirectory(t *testing.T) {
	assetsDir := t.TempDir()

	fired := make(chan struct{}, 1)
	w := NewWatcher(func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, assetsDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(assetsDir, "mask.png"), []byte("x"), 0o644))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not invoked after a file inside the watched directory changed")
	}
	cancel()
	<-done
}

func TestWatcherStopsOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	w := NewWatcher(func() {}, path)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
