// Package watch turns filesystem notifications into a sequence of change
// events and dispatches them to pattern bindings.
package watch

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Event is a change to a single file. Path is slash separated and relative
// to the watched root.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// Watcher watches a directory tree.
type Watcher struct {
	root string
	fw   *fsnotify.Watcher
}

// New watches root and every directory below it.
func New(root string) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	if err := addDirsRecursive(fw, abs); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{root: abs, fw: fw}, nil
}

// Close stops watching. Any running Events sequence ends.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

// Events returns the change events as they happen. The sequence ends when
// ctx is done, the consumer stops, or the watcher is closed. It may be
// ranged over again to resume.
func (w *Watcher) Events(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.fw.Events:
				if !ok {
					return
				}
				e, ok := w.translate(ev)
				if !ok {
					continue
				}
				if !yield(e) {
					return
				}
			case err, ok := <-w.fw.Errors:
				if !ok {
					return
				}
				slog.Warn("watcher error", "error", err)
			}
		}
	}
}

func (w *Watcher) translate(ev fsnotify.Event) (Event, bool) {
	if ShouldIgnore(ev.Name) || ev.Op == fsnotify.Chmod {
		return Event{}, false
	}
	if ev.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = addDirsRecursive(w.fw, ev.Name)
			return Event{}, false
		}
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return Event{}, false
	}
	slog.Debug("file change detected", "file", rel, "op", ev.Op.String())
	return Event{Path: filepath.ToSlash(rel), Op: ev.Op}, true
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := w.Add(path); err != nil {
				slog.Warn("watch add failed", "dir", path, "error", err)
			}
		}
		return nil
	})
}

// ShouldIgnore reports whether a change to path should be ignored: hidden
// files, editor swap and backup files, and OS metadata files.
func ShouldIgnore(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}

	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}

	return base == "Thumbs.db"
}
