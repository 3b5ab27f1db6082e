// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transcripts

import (
	"fmt"
	"log"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a project's encoded transcript directory and notifies
// subscribers when a *.jsonl file is created or written, so a caller can
// react to new or growing transcripts instead of re-polling
// DiscoverSessions. It is purely additive: DiscoverSessions remains
// correct with no Watcher running.
type Watcher struct {
	fsw     *fsnotify.Watcher
	logger  *log.Logger
	changed chan string

	mu     sync.Mutex
	closed bool
}

// WatchProject starts watching cwd's encoded project directory under d's
// root. The directory must already exist.
func (d *Discovery) WatchProject(cwd string, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("transcripts: create watcher: %w", err)
	}
	dir := d.projectDir(cwd)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("transcripts: watch %s: %w", dir, err)
	}

	w := &Watcher{fsw: fsw, logger: logger, changed: make(chan string, 64)}
	go w.run()
	return w, nil
}

// Changed yields the session id of each transcript that was created or
// written to.
func (w *Watcher) Changed() <-chan string { return w.changed }

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				close(w.changed)
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			sid := sessionIDFromPath(event.Name)
			if sid == "" {
				continue
			}
			select {
			case w.changed <- sid:
			default:
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Printf("transcripts: watch error: %v", err)
		}
	}
}

func sessionIDFromPath(path string) string {
	const suffix = ".jsonl"
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			name := path[i+1:]
			if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
				return name[:len(name)-len(suffix)]
			}
			return ""
		}
	}
	return ""
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fsw.Close()
}
