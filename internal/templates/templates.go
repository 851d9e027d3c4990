package templates

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/statikapi/statikapi/internal/config"
	"github.com/statikapi/statikapi/internal/errors"
)

// Config contains template configuration.
type Config struct {
	// ProjectName is the name of the project.
	ProjectName string

	// SrcDir defaults to config.DefaultSrcDir.
	SrcDir string

	// OutDir defaults to config.DefaultOutDir.
	OutDir string
}

// Template represents a project template.
type Template struct {
	// Name is the template name.
	Name string

	// Description describes the template.
	Description string

	// Files maps paths relative to the project root to file contents.
	// A leading "src/" is rewritten to the configured source directory.
	Files map[string]string
}

// DefaultTemplate is used when none is named.
const DefaultTemplate = "basic"

var templates = map[string]*Template{
	"basic":       basicTemplate(),
	"dynamic":     dynamicTemplate(),
	"remote-data": remoteDataTemplate(),
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	tmpl, ok := templates[name]
	if !ok {
		return nil, errors.New("E145").
			WithDetail("Template '" + name + "' not found").
			WithSuggestion("Available templates: basic, dynamic, remote-data")
	}
	return tmpl, nil
}

// List returns all available template names, sorted.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Paths returns the files Create writes for cfg, sorted.
func (t *Template) Paths(cfg Config) []string {
	cfg = cfg.withDefaults()
	out := make([]string, 0, len(t.Files))
	for rel := range t.Files {
		out = append(out, cfg.target(rel))
	}
	sort.Strings(out)
	return out
}

// Create generates a project from the template. Existing files are
// never overwritten: a target that already exists is E140.
func (t *Template) Create(dir string, cfg Config) error {
	cfg = cfg.withDefaults()

	for _, rel := range t.Paths(cfg) {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(rel))); err == nil {
			return errors.New("E140").WithFile(rel).
				WithSuggestion("Choose an empty directory or remove the file")
		}
	}

	for relPath, content := range t.Files {
		tmpl, err := template.New(relPath).Parse(content)
		if err != nil {
			return errors.Newf(errors.CategoryCLI, "invalid template %s: %v", relPath, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, cfg); err != nil {
			return errors.Newf(errors.CategoryCLI, "template execute error %s: %v", relPath, err)
		}

		fullPath := filepath.Join(dir, filepath.FromSlash(cfg.target(relPath)))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
			return err
		}
	}

	return nil
}

func (c Config) withDefaults() Config {
	if c.ProjectName == "" {
		c.ProjectName = "my-statikapi"
	}
	if c.SrcDir == "" {
		c.SrcDir = config.DefaultSrcDir
	}
	if c.OutDir == "" {
		c.OutDir = config.DefaultOutDir
	}
	return c
}

func (c Config) target(rel string) string {
	if len(rel) > 4 && rel[:4] == "src/" {
		return c.SrcDir + "/" + rel[4:]
	}
	return rel
}

const configFile = `{
  // {{.ProjectName}}
  "srcDir": "{{.SrcDir}}",
  "outDir": "{{.OutDir}}"
}
`

const gitignore = `{{.OutDir}}/
.env
`

func basicTemplate() *Template {
	return &Template{
		Name:        "basic",
		Description: "A single static endpoint",
		Files: map[string]string{
			"statikapi.json": configFile,
			".gitignore":     gitignore,
			"src/index.js": `export default {
  project: '{{.ProjectName}}',
  hello: 'world',
  generatedAt: new Date().toISOString(),
};
`,
		},
	}
}

func dynamicTemplate() *Template {
	return &Template{
		Name:        "dynamic",
		Description: "Parameterized and catch-all routes prebuilt from paths()",
		Files: map[string]string{
			"statikapi.json": configFile,
			".gitignore":     gitignore,
			"src/index.js": `export default {
  project: '{{.ProjectName}}',
  endpoints: ['/users/:id', '/docs/*slug'],
  note: 'Dynamic routes are prebuilt from paths()',
  generatedAt: new Date().toISOString(),
};
`,
			"src/users/[id].js": `export async function paths() {
  return ['1', '2', '3'];
}

export async function data({ params }) {
  return {
    id: params.id,
    role: Number(params.id) % 2 === 0 ? 'editor' : 'viewer',
    generatedAt: new Date().toISOString(),
  };
}
`,
			"src/docs/[...slug].js": `// Builds /docs/a/b and /docs/guide
export async function paths() {
  return [['a', 'b'], ['guide']];
}

export async function data({ params }) {
  return {
    slug: params.slug,
    path: params.slug.join('/'),
    kind: params.slug.length > 1 ? 'section' : 'page',
    generatedAt: new Date().toISOString(),
  };
}
`,
		},
	}
}

func remoteDataTemplate() *Template {
	return &Template{
		Name:        "remote-data",
		Description: "Endpoints fetched from an HTTP API at build time",
		Files: map[string]string{
			"statikapi.json": configFile,
			".gitignore":     gitignore,
			"src/_lib/fetch-json.js": `export async function fetchJSON(url) {
  const res = await fetch(url, { headers: { Accept: 'application/json' } });
  if (!res.ok) throw new Error('Upstream HTTP ' + res.status + ' for ' + url);
  return res.json();
}

export const API = process.env.API_BASE || 'https://jsonplaceholder.typicode.com';
`,
			"src/index.js": `export default {
  project: '{{.ProjectName}}',
  template: 'remote-data',
  endpoints: ['/posts', '/posts/:id'],
  note: 'Data fetched at build time; set API_BASE in .env to swap the source.',
};
`,
			"src/posts/index.js": `import { API, fetchJSON } from '../_lib/fetch-json.js';

export default async function data() {
  const posts = await fetchJSON(API + '/posts?_limit=10');
  return { source: 'remote', count: posts.length, posts };
}
`,
			"src/posts/[id].js": `import { API, fetchJSON } from '../_lib/fetch-json.js';

export async function paths() {
  return Array.from({ length: 10 }, (_, i) => String(i + 1));
}

export async function data({ params }) {
  const post = await fetchJSON(API + '/posts/' + params.id);
  return { source: 'remote', id: params.id, post };
}
`,
		},
	}
}
