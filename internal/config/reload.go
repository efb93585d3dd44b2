package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a settings file (and, optionally, asset directories
// alongside it, e.g. the matcher/weapon TOML files and their image
// directory) for writes, invoking onChange once for every matching write or
// create event; bursts of events are not coalesced. It
// generalizes the teacher's main.go pattern of watching its own executable
// with fsnotify to exit on rebuild: here, multiple targets are watched, and
// the reaction is a caller-supplied reload rather than a process exit.
type Watcher struct {
	paths    []string
	onChange func()
}

// NewWatcher constructs a Watcher for one or more files/directories. A
// matching Write/Create event on any of them (for a watched directory, any
// entry inside it) invokes onChange.
func NewWatcher(onChange func(), paths ...string) *Watcher {
	return &Watcher{paths: paths, onChange: onChange}
}

// Run watches until ctx is canceled. Errors from individual reload attempts
// are logged and do not stop the watch (per spec.md §7: config reload
// failures never bring down the frame loop).
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	watched := map[string]struct{}{}
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			dir = p
		}
		if _, ok := watched[dir]; ok {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return err
		}
		watched[dir] = struct{}{}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !w.matches(ev.Name) {
				continue
			}
			slog.Info("config", "op", "reload", "path", ev.Name)
			w.onChange()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Error("config", "op", "watch", "err", err)
		}
	}
}

// matches reports whether name is (or is inside) one of the watched paths.
func (w *Watcher) matches(name string) bool {
	name = filepath.Clean(name)
	for _, p := range w.paths {
		p = filepath.Clean(p)
		if name == p {
			return true
		}
		if rel, err := filepath.Rel(p, name); err == nil && rel != ".." && len(rel) > 0 && rel[0] != '.' {
			return true
		}
	}
	return false
}
