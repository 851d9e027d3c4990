package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statikapi/statikapi/internal/errors"
)

func TestOutPath(t *testing.T) {
	tests := []struct {
		route string
		want  string
	}{
		{"/", "index.json"},
		{"", "index.json"},
		{"/users", "users/index.json"},
		{"/blog/archive", "blog/archive/index.json"},
		{"/docs/a/b/", "docs/a/b/index.json"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutPath(tt.route), "OutPath(%q)", tt.route)
	}
}

func TestEmitter_WriteAndRemove(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "api-out")
	src := filepath.Join(root, "src-api", "docs", "[...slug].js")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0755))
	require.NoError(t, os.WriteFile(src, []byte("//"), 0644))

	e := NewEmitter(out, root)
	entry, err := e.Write(Artifact{Route: "/docs/a/b", Data: []byte(`{"x":1}`)}, src)
	require.NoError(t, err)
	assert.Equal(t, "api-out/docs/a/b/index.json", entry.OutFile)
	assert.Equal(t, "src-api/docs/[...slug].js", entry.SrcFile)
	assert.Equal(t, 7, entry.Bytes)

	srcInfo, err := os.Stat(src)
	require.NoError(t, err)
	assert.Equal(t, srcInfo.ModTime().UnixMilli(), entry.Mtime)

	_, err = e.Write(Artifact{Route: "/docs/c", Data: []byte(`1`)}, src)
	require.NoError(t, err)

	require.NoError(t, e.Remove("/docs/a/b"))
	_, err = os.Stat(filepath.Join(out, "docs", "a"))
	assert.True(t, os.IsNotExist(err), "empty parent directories are pruned")
	_, err = os.Stat(filepath.Join(out, "docs", "c", "index.json"))
	assert.NoError(t, err, "sibling artifacts survive")

	assert.NoError(t, e.Remove("/docs/a/b"), "removing twice is fine")

	leftovers, err := filepath.Glob(filepath.Join(out, "docs", "c", ".statikapi-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestEmitter_RejectsEscapingRoutes(t *testing.T) {
	root := t.TempDir()
	e := NewEmitter(filepath.Join(root, "out"), root)

	_, err := e.Write(Artifact{Route: "/../../etc", Data: []byte("{}")}, filepath.Join(root, "x.js"))
	require.Error(t, err)
	assert.Equal(t, errors.KindFilesystem, errors.KindOf(err))
}

func TestEmitter_Clear(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	e := NewEmitter(out, root)

	require.NoError(t, e.Clear(), "a missing output root is created")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "a", "b"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "index.json"), []byte("{}"), 0644))

	require.NoError(t, e.Clear())
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestManifest(t *testing.T) {
	m := NewManifest()
	m.Set(Entry{Route: "/users/2", Bytes: 2})
	m.Set(Entry{Route: "/", Bytes: 1})
	m.Set(Entry{Route: "/users/10", Bytes: 3})
	m.Set(Entry{Route: "/users/2", Bytes: 4})

	assert.Equal(t, 3, m.Len())
	assert.Equal(t, []string{"/", "/users/10", "/users/2"}, routesOf(m))
	e, _ := m.Get("/users/2")
	assert.Equal(t, 4, e.Bytes)

	assert.True(t, m.Delete("/users/10"))
	assert.False(t, m.Delete("/users/10"))

	data, err := m.Encode(false)
	require.NoError(t, err)
	assert.Equal(t,
		`[{"route":"/","outFile":"","srcFile":"","bytes":1,"mtime":0,"hash":""},{"route":"/users/2","outFile":"","srcFile":"","bytes":4,"mtime":0,"hash":""}]`,
		string(data))
}

func TestReadManifest(t *testing.T) {
	root := t.TempDir()
	e := NewEmitter(root, root)

	_, err := ReadManifest(root)
	require.Error(t, err)

	m := NewManifest()
	m.Set(Entry{Route: "/a&b", OutFile: "a&b/index.json"})
	require.NoError(t, e.WriteManifest(m, true))

	raw, err := os.ReadFile(filepath.Join(root, ".statikapi", "manifest.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"/a&b"`, "HTML characters are not escaped")

	got, err := ReadManifest(root)
	require.NoError(t, err)
	assert.Equal(t, m.Entries(), got.Entries())
}
