package dev

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/statikapi/statikapi/internal/build"
	"github.com/statikapi/statikapi/internal/errors"
	"github.com/statikapi/statikapi/internal/metrics"
	"github.com/statikapi/statikapi/internal/module"
	"github.com/statikapi/statikapi/internal/notify"
	"github.com/statikapi/statikapi/pkg/router"
)

const tracerName = "github.com/statikapi/statikapi/internal/dev"

// Op is the kind of source file event.
type Op int

const (
	OpAdd Op = iota
	OpChange
	OpRemove
)

// String returns "add", "change" or "remove".
func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpChange:
		return "change"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Event is a change to one path under the source root.
type Event struct {
	Op   Op
	Path string
}

// Outcome reports what handling one event did to the output tree.
type Outcome struct {
	Op Op

	// File is the source path relative to the project root.
	File string

	// Pattern is the route pattern of File, "" when it is not a route.
	Pattern string

	// Written and Removed are concrete routes.
	Written []string
	Removed []string

	// Skipped is set for a parameterized route with nothing to expand.
	Skipped bool

	// Failures are routes that were not written. When any render failure
	// occurs the file's previous artifacts are left in place.
	Failures []build.Failure

	// Dependents are the outcomes of route files re-rendered because a
	// private helper changed.
	Dependents []*Outcome

	// Err is the first failure, or a filesystem error.
	Err error

	Duration time.Duration
}

// Changed reports whether the output tree was modified.
func (o *Outcome) Changed() bool {
	return len(o.Written) > 0 || len(o.Removed) > 0
}

func (o *Outcome) fail(f build.Failure) {
	o.Failures = append(o.Failures, f)
	if o.Err == nil {
		o.Err = f.Err
	}
}

// EngineOptions configures an Engine.
type EngineOptions struct {
	// Notifier receives one event per changed route. Delivery errors are
	// logged and otherwise ignored.
	Notifier notify.Notifier

	// Tracer defaults to otel's global tracer.
	Tracer trace.Tracer
}

// Engine keeps the output tree in sync with the source tree one file event
// at a time. Events are applied strictly one after another; a rebuild of
// one file never touches artifacts another file emitted.
type Engine struct {
	mu sync.Mutex

	builder  *build.Builder
	scanner  *router.Scanner
	renderer *build.Renderer
	emitter  *build.Emitter
	rel      func(string) string
	pretty   bool

	manifest *build.Manifest
	history  *History

	notifier notify.Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewEngine creates an engine sharing b's scanner, renderer and emitter.
func NewEngine(b *build.Builder, opts EngineOptions) *Engine {
	n := opts.Notifier
	if n == nil {
		n = notify.Discard
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Engine{
		builder:  b,
		scanner:  b.Scanner(),
		renderer: b.Renderer(),
		emitter:  b.Emitter(),
		rel:      b.Loader().Rel,
		pretty:   b.Pretty(),
		manifest: build.NewManifest(),
		history:  NewHistory(),
		notifier: notify.Logged(n, b.Logger()),
		logger:   b.Logger(),
		metrics:  b.Metrics(),
		tracer:   tracer,
	}
}

// Init runs a full build and seeds the emission history from it. Route
// failures are in the result; the error is for builds that could not run.
func (e *Engine) Init(ctx context.Context) (*build.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.builder.Build(ctx)
	if result == nil {
		return nil, err
	}

	e.manifest = result.Manifest
	e.history = NewHistory()

	emitted := make(map[string][]string)
	for _, entry := range result.Manifest.Entries() {
		abs := filepath.Join(e.builder.Config().Dir(), filepath.FromSlash(entry.SrcFile))
		emitted[abs] = append(emitted[abs], entry.Route)
	}
	if result.Table != nil {
		for _, route := range result.Table.Routes {
			e.history.Set(route.File, emitted[route.File])
		}
	}
	return result, err
}

// History returns the emission history.
func (e *Engine) History() *History {
	return e.history
}

// Manifest returns the encoded current manifest.
func (e *Engine) Manifest() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manifest.Encode(e.pretty)
}

// Handle applies one file event.
func (e *Engine) Handle(ctx context.Context, ev Event) *Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	abs := filepath.Clean(ev.Path)
	ctx, span := e.tracer.Start(ctx, "statikapi.dev.handle",
		trace.WithAttributes(
			attribute.String("statikapi.file", e.rel(abs)),
			attribute.String("statikapi.op", ev.Op.String()),
		))
	defer span.End()
	e.metrics.DevEvent(ev.Op.String())

	out := &Outcome{Op: ev.Op, File: e.rel(abs)}
	e.handle(ctx, ev.Op, abs, out)
	e.commit(ctx, out)
	out.Duration = time.Since(start)

	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Err.Error())
	}
	e.log(out)
	return out
}

func (e *Engine) handle(ctx context.Context, op Op, abs string, out *Outcome) {
	if op == OpRemove {
		e.forget(abs)
		files := append([]string{abs}, e.history.Under(abs)...)
		known := false
		for _, f := range files {
			if e.history.Has(f) {
				known = true
				e.retract(f, out)
			}
		}
		if !known && e.isHelper(abs) {
			e.refresh(ctx, out)
		}
		return
	}

	route, _, err := e.scanner.ClassifyFile(abs)
	switch {
	case err != nil:
		e.retract(abs, out)
		out.Err = errors.New("E206").WithFile(out.File).Wrap(err)
		e.metrics.RouteFailed(string(errors.KindPattern))
	case route == nil:
		if e.history.Has(abs) {
			e.retract(abs, out)
		} else if e.isHelper(abs) {
			e.refresh(ctx, out)
		}
	default:
		e.render(ctx, *route, out)
	}
}

// render re-executes route's module from current source and replaces its
// artifacts. When the import or the enumeration fails the file keeps its
// previous artifacts and history. Otherwise routes the enumeration no
// longer lists are removed, and a route whose value fails keeps its
// previous artifact.
func (e *Engine) render(ctx context.Context, route router.Route, out *Outcome) {
	out.Pattern = route.Path()

	if !e.history.Has(route.File) {
		e.history.Set(route.File, nil)
	}

	rendering, err := e.renderer.Render(ctx, route, module.NewFresh())
	if err != nil {
		out.fail(build.Failure{Route: route.Path(), File: out.File, Err: err})
		e.metrics.RouteFailed(string(errors.KindOf(err)))
		return
	}
	if rendering.Skipped {
		out.Skipped = true
		e.metrics.RouteSkipped()
	}

	old := e.history.Routes(route.File)
	had := make(map[string]bool, len(old))
	for _, r := range old {
		had[r] = true
	}

	var emitted []string
	current := make(map[string]bool, len(rendering.Artifacts)+len(rendering.Failures))
	for _, f := range rendering.Failures {
		current[f.Route] = true
		if had[f.Route] {
			emitted = append(emitted, f.Route)
		}
		out.fail(f)
		e.metrics.RouteFailed(string(errors.KindOf(f.Err)))
	}

	for _, a := range rendering.Artifacts {
		if owner, ok := e.history.Owner(a.Route); ok && owner != route.File {
			err := errors.New("E205").WithFile(out.File).
				WithDetailf("%s is already produced by %s", a.Route, e.rel(owner))
			out.fail(build.Failure{Route: a.Route, File: out.File, Err: err})
			e.metrics.RouteFailed(string(errors.KindConflict))
			continue
		}

		current[a.Route] = true
		entry, err := e.emitter.Write(a, route.File)
		if err != nil {
			out.fail(build.Failure{Route: a.Route, File: out.File, Err: err})
			if had[a.Route] {
				emitted = append(emitted, a.Route)
			}
			continue
		}
		e.manifest.Set(entry)
		emitted = append(emitted, a.Route)
		out.Written = append(out.Written, a.Route)
		e.metrics.RouteEmitted(route.Type.String())
	}

	for _, r := range old {
		if !current[r] {
			e.remove(r, route.File, out)
		}
	}
	e.history.Set(route.File, emitted)
}

// retract removes every artifact file emitted and forgets it.
func (e *Engine) retract(file string, out *Outcome) {
	for _, r := range e.history.Delete(file) {
		e.remove(r, file, out)
	}
}

// remove deletes route's artifact unless another file owns it now.
func (e *Engine) remove(route, file string, out *Outcome) {
	if entry, ok := e.manifest.Get(route); ok && entry.SrcFile != e.rel(file) {
		return
	}
	if err := e.emitter.Remove(route); err != nil {
		out.fail(build.Failure{Route: route, File: e.rel(file), Err: err})
		return
	}
	e.manifest.Delete(route)
	out.Removed = append(out.Removed, route)
}

// isHelper reports whether abs is a private module under the source root,
// one that route modules may import.
func (e *Engine) isHelper(abs string) bool {
	rel, err := filepath.Rel(e.scanner.Root(), abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	if !e.scanner.Classifier().Supports(rel) {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, router.PrivatePrefix) {
			return true
		}
	}
	return false
}

// refresh re-renders every known route file.
func (e *Engine) refresh(ctx context.Context, out *Outcome) {
	for _, file := range e.history.Files() {
		route, _, err := e.scanner.ClassifyFile(file)
		if err != nil || route == nil {
			continue
		}
		dep := &Outcome{Op: OpChange, File: e.rel(file)}
		e.render(ctx, *route, dep)
		out.Dependents = append(out.Dependents, dep)
		out.Written = append(out.Written, dep.Written...)
		out.Removed = append(out.Removed, dep.Removed...)
		out.Failures = append(out.Failures, dep.Failures...)
		if out.Err == nil {
			out.Err = dep.Err
		}
	}
}

// forget drops cached programs for abs when the host keeps any.
func (e *Engine) forget(abs string) {
	if f, ok := e.builder.Host().(interface{ Forget(string) }); ok {
		f.Forget(abs)
	}
}

// commit persists the manifest and notifies listeners when the output
// tree changed.
func (e *Engine) commit(ctx context.Context, out *Outcome) {
	if !out.Changed() {
		return
	}
	if err := e.emitter.WriteManifest(e.manifest, e.pretty); err != nil && out.Err == nil {
		out.Err = err
	}
	e.metrics.RoutesRemoved(len(out.Removed))

	for _, r := range out.Removed {
		_ = e.notifier.Notify(ctx, notify.Removed(r))
	}
	for _, r := range out.Written {
		_ = e.notifier.Notify(ctx, notify.Changed(r))
	}
}

func (e *Engine) log(out *Outcome) {
	attrs := []any{
		"op", out.Op.String(),
		"file", out.File,
		"written", len(out.Written),
		"removed", len(out.Removed),
		"duration", out.Duration,
	}
	if out.Err != nil {
		e.logger.Error("rebuild failed", append(attrs, "err", out.Err)...)
		return
	}
	if out.Changed() {
		e.logger.Info("rebuilt", attrs...)
		return
	}
	e.logger.Debug("no output changes", attrs...)
}
