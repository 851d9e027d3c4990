package build

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/statikapi/statikapi/internal/errors"
)

// ManifestPath is where the manifest lives, relative to the output root.
const ManifestPath = ".statikapi/manifest.json"

// Entry is the manifest record of one artifact.
type Entry struct {
	// Route is the concrete route, e.g. "/users/42".
	Route string `json:"route"`

	// OutFile is the artifact path relative to the project root.
	OutFile string `json:"outFile"`

	// SrcFile is the module path relative to the project root.
	SrcFile string `json:"srcFile"`

	// Bytes is the artifact size.
	Bytes int `json:"bytes"`

	// Mtime is the artifact modification time in Unix milliseconds.
	Mtime int64 `json:"mtime"`

	// Hash is the hex SHA-256 of the artifact bytes.
	Hash string `json:"hash"`
}

// Manifest is the set of artifacts keyed by route.
type Manifest struct {
	entries map[string]Entry
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{entries: make(map[string]Entry)}
}

// Set adds or replaces the entry for e.Route.
func (m *Manifest) Set(e Entry) {
	m.entries[e.Route] = e
}

// Delete removes route. It reports whether an entry was present.
func (m *Manifest) Delete(route string) bool {
	_, ok := m.entries[route]
	delete(m.entries, route)
	return ok
}

// Get returns the entry for route.
func (m *Manifest) Get(route string) (Entry, bool) {
	e, ok := m.entries[route]
	return e, ok
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.entries)
}

// Entries returns the entries sorted by route, byte-wise.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// Encode renders the manifest as a JSON array.
func (m *Manifest) Encode(pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(m.Entries()); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if !pretty {
		out = bytes.TrimSuffix(out, []byte{'\n'})
	}
	return out, nil
}

// ReadManifest loads the manifest of an output root.
func ReadManifest(outDir string) (*Manifest, error) {
	p := filepath.Join(outDir, filepath.FromSlash(ManifestPath))
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.New("E204").WithFile(ManifestPath).Wrap(err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.New("E204").WithFile(ManifestPath).
			WithDetail("manifest is not valid JSON: " + err.Error())
	}

	m := NewManifest()
	for _, e := range entries {
		m.Set(e)
	}
	return m, nil
}
