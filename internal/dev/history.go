package dev

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// History records the concrete routes each source file emitted last time
// it was handled. It is what lets a rebuild delete exactly the artifacts
// a file no longer produces.
type History struct {
	mu     sync.RWMutex
	files  map[string][]string
	owners map[string]string
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{
		files:  make(map[string][]string),
		owners: make(map[string]string),
	}
}

// Routes returns the routes file emitted, sorted.
func (h *History) Routes(file string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.files[file]...)
}

// Owner returns the file that emitted route.
func (h *History) Owner(route string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	file, ok := h.owners[route]
	return file, ok
}

// Set replaces the routes of file. An empty set keeps the file known with
// nothing emitted.
func (h *History) Set(file string, routes []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.release(file)
	sorted := append([]string(nil), routes...)
	sort.Strings(sorted)
	h.files[file] = sorted
	for _, r := range sorted {
		h.owners[r] = file
	}
}

// Delete forgets file and returns the routes it had emitted.
func (h *History) Delete(file string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	routes := h.files[file]
	h.release(file)
	delete(h.files, file)
	return routes
}

// Has reports whether file has been handled.
func (h *History) Has(file string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.files[file]
	return ok
}

// Files returns every known file, sorted.
func (h *History) Files() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	files := make([]string, 0, len(h.files))
	for f := range h.files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Under returns the known files inside dir.
func (h *History) Under(dir string) []string {
	prefix := strings.TrimRight(dir, string(filepath.Separator)) + string(filepath.Separator)
	var out []string
	for _, f := range h.Files() {
		if strings.HasPrefix(f, prefix) {
			out = append(out, f)
		}
	}
	return out
}

// Len returns the number of known files.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.files)
}

func (h *History) release(file string) {
	for _, r := range h.files[file] {
		if h.owners[r] == file {
			delete(h.owners, r)
		}
	}
}
