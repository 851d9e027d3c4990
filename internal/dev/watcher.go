package dev

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Paths are the directories to watch, recursively.
	Paths []string

	// Ignore patterns to skip, matched against paths relative to the
	// watched directory (names, segments or globs).
	Ignore []string

	// Debounce is how long a path must stay quiet before its event fires.
	Debounce time.Duration

	// Logger receives watch errors.
	Logger *slog.Logger
}

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	".git",
	"node_modules",
	".statikapi",
	".DS_Store",
	"*.tmp",
	"*.swp",
	"*~",
}

// Watcher reports add, change and remove events for files below a set of
// directories. Bursts of writes to one path collapse into a single event.
type Watcher struct {
	config   WatcherConfig
	logger   *slog.Logger
	onChange func(Event)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	fsw     *fsnotify.Watcher
	known   map[string]bool
	pending map[string]*time.Timer
}

// NewWatcher creates a new file watcher.
func NewWatcher(config WatcherConfig) *Watcher {
	if config.Debounce <= 0 {
		config.Debounce = 75 * time.Millisecond
	}
	if config.Ignore == nil {
		config.Ignore = DefaultIgnore
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		config:  config,
		logger:  logger,
		known:   make(map[string]bool),
		pending: make(map[string]*time.Timer),
	}
}

// OnChange sets the callback for file events. It may be called from
// several goroutines, but never twice at once for the same path.
func (w *Watcher) OnChange(fn func(Event)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start watches until ctx is done or Stop is called. Files present when
// it starts produce no events.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		fsw.Close()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.fsw = fsw
	stopCh := w.stopCh
	w.mu.Unlock()

	for _, root := range w.config.Paths {
		if err := w.addTree(root, false); err != nil {
			w.Stop()
			return err
		}
	}

	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// Stop stops the watcher. Pending events are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.stopCh)
	for p, t := range w.pending {
		t.Stop()
		delete(w.pending, p)
	}
	w.fsw.Close()
	w.running = false
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// addTree watches dir and every directory below it. With emit set, files
// found are reported as added; a directory created after Start may already
// hold files by the time its watch is in place.
func (w *Watcher) addTree(dir string, emit bool) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if w.shouldIgnore(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			w.mu.Lock()
			fsw := w.fsw
			w.mu.Unlock()
			if fsw != nil {
				if err := fsw.Add(p); err != nil {
					w.logger.Warn("cannot watch directory", "dir", p, "err", err)
				}
			}
			return nil
		}
		if emit {
			w.schedule(p)
		} else {
			w.mu.Lock()
			w.known[p] = true
			w.mu.Unlock()
		}
		return nil
	})
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.shouldIgnore(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.addTree(ev.Name, true)
			return
		}
	}
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return
	}
	w.schedule(ev.Name)
}

// schedule (re)starts the quiet period for p.
func (w *Watcher) schedule(p string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if t, ok := w.pending[p]; ok {
		t.Reset(w.config.Debounce)
		return
	}
	w.pending[p] = time.AfterFunc(w.config.Debounce, func() { w.fire(p) })
}

// fire turns the settled state of p into events.
func (w *Watcher) fire(p string) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	delete(w.pending, p)
	callback := w.onChange

	var events []Event
	info, err := os.Stat(p)
	switch {
	case err == nil && info.IsDir():
	case err == nil:
		op := OpChange
		if !w.known[p] {
			op = OpAdd
			w.known[p] = true
		}
		events = append(events, Event{Op: op, Path: p})
	default:
		var gone []string
		prefix := p + string(filepath.Separator)
		for f := range w.known {
			if f == p || strings.HasPrefix(f, prefix) {
				gone = append(gone, f)
			}
		}
		sort.Strings(gone)
		for _, f := range gone {
			delete(w.known, f)
			events = append(events, Event{Op: OpRemove, Path: f})
		}
	}
	w.mu.Unlock()

	if callback == nil {
		return
	}
	for _, ev := range events {
		callback(ev)
	}
}

// shouldIgnore checks if a path should be ignored.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	name := filepath.Base(fullPath)
	normalized := filepath.ToSlash(w.relative(fullPath))

	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		if name == pattern {
			return true
		}

		hasPathSep := strings.Contains(pattern, "/") || strings.Contains(pattern, "\\")
		hasGlob := strings.ContainsAny(pattern, "*?[")

		if hasGlob {
			if hasPathSep {
				if matched, _ := path.Match(filepath.ToSlash(pattern), normalized); matched {
					return true
				}
			} else if matched, _ := filepath.Match(pattern, name); matched {
				return true
			}
			continue
		}

		if hasPathSep {
			if pathMatchesSegments(normalized, filepath.ToSlash(pattern)) {
				return true
			}
			continue
		}

		if pathHasSegment(normalized, pattern) {
			return true
		}
	}

	return false
}

// relative returns p relative to the watched directory containing it.
func (w *Watcher) relative(p string) string {
	for _, root := range w.config.Paths {
		rel, err := filepath.Rel(root, p)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return rel
		}
	}
	return p
}

func pathHasSegment(path, segment string) bool {
	if segment == "" {
		return false
	}
	for _, part := range splitPathSegments(path) {
		if part == segment {
			return true
		}
	}
	return false
}

func pathMatchesSegments(path, pattern string) bool {
	pathParts := splitPathSegments(path)
	patternParts := splitPathSegments(pattern)
	if len(patternParts) == 0 || len(patternParts) > len(pathParts) {
		return false
	}

	for i := 0; i <= len(pathParts)-len(patternParts); i++ {
		match := true
		for j := range patternParts {
			if pathParts[i+j] != patternParts[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}

	return false
}

func splitPathSegments(path string) []string {
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	result := parts[:0]
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}
