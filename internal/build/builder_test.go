package build

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statikapi/statikapi/internal/config"
	"github.com/statikapi/statikapi/internal/errors"
	"github.com/statikapi/statikapi/internal/jsonsafe"
	"github.com/statikapi/statikapi/internal/metrics"
	"github.com/statikapi/statikapi/internal/module"
)

type project struct {
	t    *testing.T
	dir  string
	cfg  *config.Config
	host *module.NativeHost
}

func newProject(t *testing.T) *project {
	t.Helper()
	dir := t.TempDir()
	cfg := config.New()
	cfg.SetRoot(dir)
	require.NoError(t, os.MkdirAll(cfg.SrcPath(), 0755))
	return &project{t: t, dir: dir, cfg: cfg, host: module.NewNativeHost(cfg.SrcPath())}
}

// add creates the source file and registers its definition.
func (p *project) add(rel string, def module.Definition) {
	p.t.Helper()
	p.touch(rel)
	p.host.Register(rel, def)
}

func (p *project) touch(rel string) {
	p.t.Helper()
	file := filepath.Join(p.cfg.SrcPath(), filepath.FromSlash(rel))
	require.NoError(p.t, os.MkdirAll(filepath.Dir(file), 0755))
	require.NoError(p.t, os.WriteFile(file, []byte("// "+rel+"\n"), 0644))
}

func (p *project) builder(opts Options) *Builder {
	return New(p.cfg, p.host, opts)
}

func (p *project) output(rel string) string {
	p.t.Helper()
	data, err := os.ReadFile(filepath.Join(p.cfg.OutPath(), filepath.FromSlash(rel)))
	require.NoError(p.t, err)
	return string(data)
}

func (p *project) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(p.cfg.OutPath(), filepath.FromSlash(rel)))
	return err == nil
}

func static(v any) module.Definition {
	return module.Definition{Default: v}
}

func echoParams(paths ...any) module.Definition {
	return module.Definition{
		Data: func(_ context.Context, args module.Args) (any, error) {
			return map[string]any{"params": map[string]any(args.Params)}, nil
		},
		Paths: func(context.Context) (any, error) { return paths, nil },
	}
}

func routesOf(m *Manifest) []string {
	var out []string
	for _, e := range m.Entries() {
		out = append(out, e.Route)
	}
	return out
}

func TestBuild(t *testing.T) {
	p := newProject(t)
	p.add("index.js", static(jsonsafe.ObjectOf("hello", "world")))
	p.add("blog/archive.ts", static([]any{"a", "b"}))
	p.add("users/[id].js", echoParams("1", "2"))
	p.add("docs/[...slug].js", echoParams([]any{"a", "b"}, []any{"guide"}))
	p.touch("_lib/util.js")
	p.touch("users/_draft.js")
	p.touch("README.md")

	result, err := p.builder(Options{}).Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.Err())

	assert.Equal(t, 6, result.Written)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, []string{"/", "/blog/archive", "/docs/a/b", "/docs/guide", "/users/1", "/users/2"}, routesOf(result.Manifest))

	assert.Equal(t, `{"hello":"world"}`, p.output("index.json"))
	assert.Equal(t, `["a","b"]`, p.output("blog/archive/index.json"))
	assert.Equal(t, `{"params":{"id":"1"}}`, p.output("users/1/index.json"))
	assert.Equal(t, `{"params":{"slug":["a","b"]}}`, p.output("docs/a/b/index.json"))
	assert.Equal(t, `{"params":{"slug":["guide"]}}`, p.output("docs/guide/index.json"))

	assert.False(t, p.exists("users/:id/index.json"))
	assert.False(t, p.exists("users/[id]/index.json"))
	assert.False(t, p.exists("_lib"))

	entry, ok := result.Manifest.Get("/users/2")
	require.True(t, ok)
	body := `{"params":{"id":"2"}}`
	sum := sha256.Sum256([]byte(body))
	assert.Equal(t, "api-out/users/2/index.json", entry.OutFile)
	assert.Equal(t, "src-api/users/[id].js", entry.SrcFile)
	assert.Equal(t, len(body), entry.Bytes)
	assert.Equal(t, hex.EncodeToString(sum[:]), entry.Hash)
	assert.NotZero(t, entry.Mtime)

	onDisk, err := ReadManifest(p.cfg.OutPath())
	require.NoError(t, err)
	assert.Equal(t, result.Manifest.Entries(), onDisk.Entries())
}

func TestBuild_ManifestIsStable(t *testing.T) {
	p := newProject(t)
	p.add("index.js", static(map[string]any{"b": 1, "a": 2}))
	p.add("users/[id].js", echoParams("2", "1", "2"))

	b := p.builder(Options{})
	_, err := b.Build(context.Background())
	require.NoError(t, err)
	first := p.output(ManifestPath)

	_, err = b.Build(context.Background())
	require.NoError(t, err)
	second := p.output(ManifestPath)

	assert.Equal(t, first, second)
}

func TestBuild_Pretty(t *testing.T) {
	p := newProject(t)
	p.cfg.Pretty = true
	p.add("index.js", static(jsonsafe.ObjectOf("hello", "world")))

	b := p.builder(Options{})
	assert.True(t, b.Pretty())
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "{\n  \"hello\": \"world\"\n}\n", p.output("index.json"))
	manifest := p.output(ManifestPath)
	assert.Contains(t, manifest, "[\n  {\n    \"route\": \"/\",")
	assert.Equal(t, byte('\n'), manifest[len(manifest)-1])
}

func TestBuild_ClearsOutput(t *testing.T) {
	p := newProject(t)
	p.add("index.js", static(true))

	stale := filepath.Join(p.cfg.OutPath(), "old", "index.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0755))
	require.NoError(t, os.WriteFile(stale, []byte("{}"), 0644))

	_, err := p.builder(Options{}).Build(context.Background())
	require.NoError(t, err)

	assert.False(t, p.exists("old"))
	assert.True(t, p.exists("index.json"))
}

func TestBuild_SkipsUnexpandedRoutes(t *testing.T) {
	p := newProject(t)
	p.add("users/[id].js", static(map[string]any{}))
	p.add("tags/[tag].js", echoParams())

	result, err := p.builder(Options{}).Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, result.Err())

	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Written)
	assert.Equal(t, "[]", p.output(ManifestPath))
}

func TestBuild_RouteFailures(t *testing.T) {
	p := newProject(t)
	p.add("a.js", module.Definition{
		Data: func(context.Context, module.Args) (any, error) { return nil, fmt.Errorf("boom") },
	})
	p.add("b.js", static(jsonsafe.ObjectOf("cb", jsonsafe.Function{Name: "cb"})))
	p.add("c.js", static("ok"))
	p.add("items/[id].js", module.Definition{
		Data: func(_ context.Context, args module.Args) (any, error) {
			if args.Params["id"] == "bad" {
				return nil, fmt.Errorf("no item")
			}
			return args.Params["id"], nil
		},
		Paths: func(context.Context) (any, error) { return []any{"good", "bad"}, nil },
	})
	p.add("shape/[id].js", echoParams("x/y"))

	reg := metrics.New()
	result, err := p.builder(Options{Metrics: reg}).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"/c", "/items/good"}, routesOf(result.Manifest))
	require.Len(t, result.Failures, 4)

	kinds := map[string]errors.Kind{}
	for _, f := range result.Failures {
		kinds[f.Route] = errors.KindOf(f.Err)
	}
	assert.Equal(t, map[string]errors.Kind{
		"/a":         errors.KindLoad,
		"/b":         errors.KindValidation,
		"/items/bad": errors.KindLoad,
		"/shape/:id": errors.KindEnumeration,
	}, kinds)

	err = result.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E151")
	assert.Contains(t, err.Error(), "4 route(s) failed")
}

func TestBuild_FailFast(t *testing.T) {
	p := newProject(t)
	p.add("a.js", module.Definition{
		Data: func(context.Context, module.Args) (any, error) { return nil, fmt.Errorf("boom") },
	})
	p.add("b.js", static("never written"))

	result, err := p.builder(Options{FailFast: true}).Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindLoad, errors.KindOf(err))
	assert.Len(t, result.Failures, 1)
	assert.False(t, p.exists("b/index.json"))
	assert.True(t, p.exists(ManifestPath))
}

func TestBuild_Conflicts(t *testing.T) {
	p := newProject(t)
	p.add("users.js", static("file"))
	p.add("users/index.js", static("index"))
	p.add("posts/first.js", static("static"))
	p.add("posts/[slug].js", echoParams("first", "second"))

	result, err := p.builder(Options{}).Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "\"file\"", p.output("users/index.json"))
	assert.Equal(t, "\"static\"", p.output("posts/first/index.json"))
	assert.True(t, p.exists("posts/second/index.json"))

	require.Len(t, result.Failures, 2)
	for _, f := range result.Failures {
		assert.Equal(t, errors.KindConflict, errors.KindOf(f.Err))
	}
	assert.Equal(t, "src-api/users/index.js", result.Failures[0].File)
	assert.Equal(t, "src-api/posts/[slug].js", result.Failures[1].File)
	assert.Equal(t, "/posts/first", result.Failures[1].Route)
}

func TestBuild_InvalidPattern(t *testing.T) {
	p := newProject(t)
	p.add("docs/[...rest]/edit.js", static(1))
	p.add("ok.js", static(1))

	result, err := p.builder(Options{}).Build(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, errors.KindPattern, errors.KindOf(result.Failures[0].Err))
	assert.Equal(t, "src-api/docs/[...rest]/edit.js", result.Failures[0].File)
	assert.Equal(t, 1, result.Written)
}

func TestBuild_MissingSourceRoot(t *testing.T) {
	p := newProject(t)
	require.NoError(t, os.RemoveAll(p.cfg.SrcPath()))

	_, err := p.builder(Options{}).Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.KindFilesystem, errors.KindOf(err))
}

func TestBuild_Progress(t *testing.T) {
	p := newProject(t)
	p.add("index.js", static(1))

	var steps []string
	_, err := p.builder(Options{OnProgress: func(s string) { steps = append(steps, s) }}).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Scanning routes...",
		"Cleaning output directory...",
		"Building 1 route(s)...",
		"Writing manifest...",
	}, steps)
}
