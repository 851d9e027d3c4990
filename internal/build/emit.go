package build

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/statikapi/statikapi/internal/errors"
)

// OutPath maps a concrete route to its artifact path relative to the
// output root: "/" is "index.json", "/a/b" is "a/b/index.json".
func OutPath(route string) string {
	trimmed := strings.Trim(route, "/")
	if trimmed == "" {
		return "index.json"
	}
	return path.Join(trimmed, "index.json")
}

// Emitter owns the output root: it writes and removes artifacts and the
// manifest. Every write goes through a temp file and a rename so readers
// never see a partial document.
type Emitter struct {
	outDir string
	root   string
}

// NewEmitter creates an emitter for outDir. Manifest paths are recorded
// relative to root, the project directory.
func NewEmitter(outDir, root string) *Emitter {
	return &Emitter{outDir: outDir, root: root}
}

// OutDir returns the output root.
func (e *Emitter) OutDir() string {
	return e.outDir
}

// File returns the absolute artifact path for route.
func (e *Emitter) File(route string) string {
	return filepath.Join(e.outDir, filepath.FromSlash(OutPath(route)))
}

// Write stores an artifact and returns its manifest entry. The artifact's
// modification time is set to the source file's, so rebuilding unchanged
// sources yields an identical manifest.
func (e *Emitter) Write(a Artifact, srcAbs string) (Entry, error) {
	file := e.File(a.Route)
	if _, ok := within(e.outDir, file); !ok {
		return Entry{}, errors.New("E204").WithDetailf("route %s resolves outside the output directory", a.Route)
	}
	if err := writeFileAtomic(file, a.Data); err != nil {
		return Entry{}, errors.New("E204").WithFile(e.rel(file)).Wrap(err)
	}

	mtime := time.Now()
	if info, err := os.Stat(srcAbs); err == nil {
		mtime = info.ModTime()
		_ = os.Chtimes(file, mtime, mtime)
	}

	sum := sha256.Sum256(a.Data)
	return Entry{
		Route:   a.Route,
		OutFile: e.rel(file),
		SrcFile: e.rel(srcAbs),
		Bytes:   len(a.Data),
		Mtime:   mtime.UnixMilli(),
		Hash:    hex.EncodeToString(sum[:]),
	}, nil
}

// Remove deletes the artifact for route and any directories it leaves
// empty. A missing artifact is not an error.
func (e *Emitter) Remove(route string) error {
	file := e.File(route)
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		return errors.New("E204").WithFile(e.rel(file)).Wrap(err)
	}
	for dir := filepath.Dir(file); dir != e.outDir && strings.HasPrefix(dir, e.outDir); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// Clear empties the output root, creating it if needed.
func (e *Emitter) Clear() error {
	if err := os.MkdirAll(e.outDir, 0755); err != nil {
		return errors.New("E204").WithFile(e.rel(e.outDir)).Wrap(err)
	}
	entries, err := os.ReadDir(e.outDir)
	if err != nil {
		return errors.New("E204").WithFile(e.rel(e.outDir)).Wrap(err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(e.outDir, entry.Name())); err != nil {
			return errors.New("E204").WithFile(e.rel(e.outDir)).Wrap(err)
		}
	}
	return nil
}

// WriteManifest stores m at ManifestPath.
func (e *Emitter) WriteManifest(m *Manifest, pretty bool) error {
	data, err := m.Encode(pretty)
	if err != nil {
		return errors.New("E204").WithFile(ManifestPath).Wrap(err)
	}
	file := filepath.Join(e.outDir, filepath.FromSlash(ManifestPath))
	if err := writeFileAtomic(file, data); err != nil {
		return errors.New("E204").WithFile(e.rel(file)).Wrap(err)
	}
	return nil
}

func (e *Emitter) rel(abs string) string {
	if rel, ok := within(e.root, abs); ok {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(abs)
}

// within returns p relative to base if p is base or below it.
func within(base, p string) (string, bool) {
	rel, err := filepath.Rel(base, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func writeFileAtomic(file string, data []byte) error {
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".statikapi-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0644); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, file); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
