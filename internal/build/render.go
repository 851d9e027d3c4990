package build

import (
	"context"

	"github.com/statikapi/statikapi/internal/errors"
	"github.com/statikapi/statikapi/internal/jsonsafe"
	"github.com/statikapi/statikapi/internal/loader"
	"github.com/statikapi/statikapi/internal/module"
	"github.com/statikapi/statikapi/pkg/router"
)

// Artifact is one rendered document, not yet on disk.
type Artifact struct {
	Route  string
	Params router.Params
	Data   []byte
}

// Failure is a route that could not be rendered or written.
type Failure struct {
	// Route is the concrete route, or the pattern when the failure
	// happened before expansion.
	Route string

	// File is the module path relative to the project root.
	File string

	Err error
}

// Rendering is everything one source file produces.
type Rendering struct {
	Source router.Route

	// Artifacts are in enumeration order.
	Artifacts []Artifact

	// Failures are concrete routes whose value failed to load or
	// validate. The file's other artifacts are unaffected.
	Failures []Failure

	// Skipped is set for a parameterized route with no paths export or an
	// empty enumeration.
	Skipped bool
}

// Routes returns the concrete routes of the rendered artifacts.
func (r *Rendering) Routes() []string {
	out := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		out[i] = a.Route
	}
	return out
}

// Renderer turns a route table entry into serialized artifacts: import,
// expand, bind, load, validate, encode.
type Renderer struct {
	loader *loader.Loader
	pretty bool
}

// NewRenderer creates a renderer. Pretty output is indented.
func NewRenderer(l *loader.Loader, pretty bool) *Renderer {
	return &Renderer{loader: l, pretty: pretty}
}

// Render produces the artifacts of route. The error is for failures that
// stop the whole file: import, the paths hook, or a binding that does not
// fit the pattern.
func (r *Renderer) Render(ctx context.Context, route router.Route, fresh module.Freshness) (*Rendering, error) {
	out := &Rendering{Source: route}

	m, err := r.loader.Import(ctx, route.File, fresh)
	if err != nil {
		return nil, err
	}

	if route.Type == router.Static {
		r.renderOne(ctx, m, out, route.Pattern.Concrete(), router.Params{})
		return out, nil
	}

	segs, ok, err := r.loader.Expand(ctx, m, route)
	if err != nil {
		return nil, err
	}
	if !ok || len(segs) == 0 {
		out.Skipped = true
		return out, nil
	}

	for _, s := range segs {
		params, concrete, err := route.Pattern.Bind(s)
		if err != nil {
			return nil, errors.New("E203").
				WithFile(r.loader.Rel(route.File)).
				WithParam(route.Pattern.ParamToken()).
				Wrap(err)
		}
		r.renderOne(ctx, m, out, concrete, params)
	}
	return out, nil
}

func (r *Renderer) renderOne(ctx context.Context, m module.Module, out *Rendering, concrete string, params router.Params) {
	fail := func(err error) {
		out.Failures = append(out.Failures, Failure{Route: concrete, File: r.loader.Rel(m.Path()), Err: err})
	}

	v, err := r.loader.Value(ctx, m, concrete, params)
	if err != nil {
		fail(err)
		return
	}
	data, err := jsonsafe.Marshal(v, r.pretty)
	if err != nil {
		fail(errors.New("E202").WithFile(r.loader.Rel(m.Path())).Wrap(err))
		return
	}
	out.Artifacts = append(out.Artifacts, Artifact{Route: concrete, Params: params, Data: data})
}
