// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// watcher.go - config file watching for live catalog reload.
//
// Editing the config file while redcell is running replaces the static
// segment of the catalog without a restart. Discovery results (the dynamic
// suffix) are untouched by a reload.
package catalog

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the editor write-rename-write bursts that fsnotify
// reports for a single save.
const reloadDebounce = 250 * time.Millisecond

// LoadFunc reads the config file and returns the static descriptors it holds.
type LoadFunc func(path string) ([]Descriptor, error)

// Watcher reloads the catalog's static segment when the config file changes.
type Watcher struct {
	catalog *Catalog
	path    string
	load    LoadFunc
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer
	cancel  context.CancelFunc
}

// NewWatcher creates a watcher for the config file at path. Call Watch to
// start it.
func NewWatcher(c *Catalog, path string, load LoadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{catalog: c, path: path, load: load, watcher: fw}, nil
}

// Watch starts watching. The parent directory is watched rather than the file
// itself because editors replace files by rename, which drops a direct watch.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	go w.processEvents(ctx)
	return nil
}

// Close stops watching and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("catalog watcher: %v", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(reloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	static, err := w.load(w.path)
	if err != nil {
		// A half-written or broken file leaves the working catalog alone.
		log.Printf("catalog reload skipped: %v", err)
		return
	}
	if err := w.catalog.ReplaceStatic(static); err != nil {
		log.Printf("catalog reload rejected: %v", err)
		return
	}
	log.Printf("catalog reloaded: %d static endpoints", len(static))
}
