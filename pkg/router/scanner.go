package router

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Scanner walks a source root and builds the route table.
type Scanner struct {
	rootDir    string
	classifier *Classifier
	logger     *slog.Logger
}

// ScanOptions configures a Scanner.
type ScanOptions struct {
	// Extensions overrides DefaultExtensions.
	Extensions []string

	// Logger receives warnings about entries that could not be read.
	Logger *slog.Logger
}

// NewScanner creates a new route scanner.
func NewScanner(rootDir string) *Scanner {
	return NewScannerWithOptions(rootDir, ScanOptions{})
}

// NewScannerWithOptions creates a scanner with custom extensions or logger.
func NewScannerWithOptions(rootDir string, opts ScanOptions) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		rootDir:    rootDir,
		classifier: NewClassifier(opts.Extensions...),
		logger:     logger,
	}
}

// Root returns the source root the scanner walks.
func (s *Scanner) Root() string {
	return s.rootDir
}

// Classifier returns the classifier the scanner applies to every file.
func (s *Scanner) Classifier() *Classifier {
	return s.classifier
}

// InvalidRoute is a file whose name looks like a route but whose bracket
// markers do not form a valid pattern.
type InvalidRoute struct {
	File string
	Rel  string
	Err  error
}

// Table is the ordered route table of a source tree.
type Table struct {
	// Routes are sorted by the ordering contract (see SortRoutes).
	Routes []Route

	// Invalid lists files that failed classification.
	Invalid []InvalidRoute
}

// Scan walks the source root, classifies every file, and returns the
// route table. It fails only if the root itself cannot be read; entries
// below it that cannot be read are logged and skipped.
func (s *Scanner) Scan() (*Table, error) {
	info, err := os.Stat(s.rootDir)
	if err != nil {
		return nil, fmt.Errorf("reading source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", s.rootDir)
	}

	table := &Table{}
	err = filepath.WalkDir(s.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.rootDir {
				return err
			}
			s.logger.Warn("skipping unreadable entry", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != s.rootDir && strings.HasPrefix(d.Name(), PrivatePrefix) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		route, rel, err := s.ClassifyFile(path)
		if err != nil {
			table.Invalid = append(table.Invalid, InvalidRoute{File: path, Rel: rel, Err: err})
			return nil
		}
		if route != nil {
			table.Routes = append(table.Routes, *route)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking source root: %w", err)
	}

	SortRoutes(table.Routes)
	return table, nil
}

// ClassifyFile classifies an absolute path under the source root. It
// returns a nil route for ignored files and for paths outside the root.
func (s *Scanner) ClassifyFile(abs string) (*Route, string, error) {
	rel, err := filepath.Rel(s.rootDir, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return nil, "", nil
	}
	rel = filepath.ToSlash(rel)

	route, err := s.classifier.Classify(rel)
	if err != nil || route == nil {
		return nil, rel, err
	}
	route.File = abs
	return route, rel, nil
}

// Paths returns the pattern strings of the table in order.
func (t *Table) Paths() []string {
	paths := make([]string, len(t.Routes))
	for i, r := range t.Routes {
		paths[i] = r.Path()
	}
	return paths
}

// Lookup returns the route whose source file is abs.
func (t *Table) Lookup(abs string) (Route, bool) {
	for _, r := range t.Routes {
		if r.File == abs {
			return r, true
		}
	}
	return Route{}, false
}
