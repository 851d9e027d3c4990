package module

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// nativeExtensions run as CommonJS without transformation.
var nativeExtensions = map[string]bool{".cjs": true}

// source is module code ready for the CommonJS wrapper, plus every file
// that went into it.
type source struct {
	code   string
	inputs []string
}

// transformError is a transpile failure with the position esbuild reported.
type transformError struct {
	File   string
	Line   int
	Column int
	Text   string
}

func (e *transformError) Error() string {
	if e.File == "" {
		return e.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Text)
}

// readSource loads abs as CommonJS. Native files are read as-is; the
// rest are bundled by esbuild so that private helpers and TypeScript
// resolve the way a bundler would.
func readSource(abs string) (*source, error) {
	if nativeExtensions[strings.ToLower(filepath.Ext(abs))] {
		data, err := os.ReadFile(abs)
		if err != nil {
			return nil, err
		}
		return &source{code: string(data), inputs: []string{abs}}, nil
	}
	return bundle(abs)
}

func bundle(abs string) (*source, error) {
	dir := filepath.Dir(abs)
	result := api.Build(api.BuildOptions{
		EntryPoints:   []string{abs},
		AbsWorkingDir: dir,
		Bundle:        true,
		Write:         false,
		Metafile:      true,
		Format:        api.FormatCommonJS,
		Platform:      api.PlatformNode,
		Target:        api.ES2017,
		Sourcemap:     api.SourceMapNone,
		LogLevel:      api.LogLevelSilent,
		Charset:       api.CharsetUTF8,
	})

	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		te := &transformError{Text: msg.Text}
		if loc := msg.Location; loc != nil {
			te.File = loc.File
			if te.File != "" && !filepath.IsAbs(te.File) {
				te.File = filepath.Join(dir, te.File)
			}
			te.Line = loc.Line
			te.Column = loc.Column + 1
		}
		return nil, te
	}
	if len(result.OutputFiles) == 0 {
		return nil, fmt.Errorf("esbuild produced no output for %s", abs)
	}

	return &source{
		code:   string(result.OutputFiles[0].Contents),
		inputs: metafileInputs(result.Metafile, dir, abs),
	}, nil
}

// metafileInputs lists the absolute paths esbuild read, sorted. The entry
// is always included.
func metafileInputs(metafile, dir, entry string) []string {
	var meta struct {
		Inputs map[string]json.RawMessage `json:"inputs"`
	}
	seen := map[string]bool{entry: true}
	inputs := []string{entry}

	if err := json.Unmarshal([]byte(metafile), &meta); err == nil {
		for p := range meta.Inputs {
			if strings.Contains(p, ":") && !filepath.IsAbs(p) {
				// namespaced inputs such as "<stdin>" or "data:" have no file
				continue
			}
			if !filepath.IsAbs(p) {
				p = filepath.Join(dir, filepath.FromSlash(p))
			}
			if !seen[p] {
				seen[p] = true
				inputs = append(inputs, p)
			}
		}
	}
	sort.Strings(inputs)
	return inputs
}
