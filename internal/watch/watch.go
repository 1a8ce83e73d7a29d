// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch reports note changes under a vault directory. Bursts of
// file system events are collapsed into one Batch once the vault has been
// quiet for the debounce interval.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when New is given a non-positive interval.
const DefaultDebounce = 250 * time.Millisecond

// Tree maps file system paths to vault paths. host.Vault implements it.
type Tree interface {
	Root() string
	Rel(abs string) (string, bool)
	IgnoredDir(name string) bool
}

// Batch is a settled set of changes. A path appears in at most one list.
type Batch struct {
	// Changed lists notes created or written, sorted.
	Changed []string

	// Removed lists notes deleted or renamed away, sorted.
	Removed []string
}

// Empty reports whether the batch carries no changes.
func (b Batch) Empty() bool {
	return len(b.Changed) == 0 && len(b.Removed) == 0
}

// Watcher watches every non-ignored directory of a vault.
type Watcher struct {
	tree     Tree
	debounce time.Duration
	log      *slog.Logger
	fsw      *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]bool // vault path -> changed (true) or removed (false)
	closed  bool
}

// New starts watching tree's root and all of its subdirectories.
func New(tree Tree, debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	w := &Watcher{
		tree:     tree,
		debounce: debounce,
		log:      log,
		fsw:      fsw,
		pending:  make(map[string]bool),
	}
	if err := w.addTree(tree.Root(), false); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// addTree watches dir and its subdirectories. When markNotes is set, notes
// found on the way are recorded as changed; a directory that appears after
// watching began may already hold files whose events were missed.
func (w *Watcher) addTree(dir string, markNotes bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p != dir {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			if markNotes {
				w.mark(p, true)
			}
			return nil
		}
		if p != w.tree.Root() && w.tree.IgnoredDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watching %s: %w", p, err)
		}
		return nil
	})
}

// Run delivers batches to fn until ctx is done or the watcher is closed.
// fn runs on Run's goroutine; events arriving meanwhile are collected for
// the next batch. An error from fn stops Run.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context, Batch) error) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if w.handleEvent(ev) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", "err", err)

		case <-timer.C:
			batch := w.take()
			if batch.Empty() {
				continue
			}
			w.log.Debug("vault changed", "changed", len(batch.Changed), "removed", len(batch.Removed))
			if err := fn(ctx, batch); err != nil {
				return err
			}
		}
	}
}

// handleEvent records ev and reports whether it touched a note.
func (w *Watcher) handleEvent(ev fsnotify.Event) bool {
	switch {
	case ev.Has(fsnotify.Create):
		if isDir(ev.Name) {
			if w.tree.IgnoredDir(filepath.Base(ev.Name)) {
				return false
			}
			if err := w.addTree(ev.Name, true); err != nil {
				w.log.Warn("watching new directory", "dir", ev.Name, "err", err)
			}
			return true
		}
		return w.mark(ev.Name, true)
	case ev.Has(fsnotify.Write):
		return w.mark(ev.Name, true)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return w.mark(ev.Name, false)
	}
	return false
}

func (w *Watcher) mark(abs string, changed bool) bool {
	rel, ok := w.tree.Rel(abs)
	if !ok || !strings.EqualFold(filepath.Ext(rel), ".md") {
		return false
	}
	w.mu.Lock()
	w.pending[rel] = changed
	w.mu.Unlock()
	return true
}

// take drains the pending changes into a Batch.
func (w *Watcher) take() Batch {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b Batch
	for rel, changed := range w.pending {
		if changed {
			b.Changed = append(b.Changed, rel)
		} else {
			b.Removed = append(b.Removed, rel)
		}
	}
	clear(w.pending)
	slices.Sort(b.Changed)
	slices.Sort(b.Removed)
	return b
}

// Close stops watching. Run returns once the event stream closes.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	return w.fsw.Close()
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
