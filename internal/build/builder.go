package build

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/statikapi/statikapi/internal/config"
	"github.com/statikapi/statikapi/internal/errors"
	"github.com/statikapi/statikapi/internal/loader"
	"github.com/statikapi/statikapi/internal/metrics"
	"github.com/statikapi/statikapi/internal/module"
	"github.com/statikapi/statikapi/pkg/router"
)

// Result contains the build output.
type Result struct {
	// Duration is how long the build took.
	Duration time.Duration

	// Table is the route table the build ran over.
	Table *router.Table

	// Manifest lists every artifact written.
	Manifest *Manifest

	// Written is the number of artifacts written.
	Written int

	// Skipped counts parameterized routes with nothing to expand.
	Skipped int

	// Bytes is the total artifact size.
	Bytes int64

	// Failures are routes that produced no artifact, in table order.
	Failures []Failure
}

// Err returns an E151 error when any route failed.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return errors.New("E151").WithDetailf("%d route(s) failed", len(r.Failures))
}

// Options configures the builder.
type Options struct {
	// Pretty indents artifacts and the manifest. Config's pretty applies
	// when false.
	Pretty bool

	// FailFast stops at the first failed route.
	FailFast bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Tracer defaults to otel's global tracer.
	Tracer trace.Tracer

	// OnProgress is called with progress updates.
	OnProgress func(step string)
}

// Builder runs full builds.
type Builder struct {
	config   *config.Config
	options  Options
	logger   *slog.Logger
	host     module.Host
	scanner  *router.Scanner
	loader   *loader.Loader
	renderer *Renderer
	emitter  *Emitter
}

// New creates a builder for the project described by cfg, executing
// modules through host.
func New(cfg *config.Config, host module.Host, options Options) *Builder {
	if !options.Pretty && cfg.Pretty {
		options.Pretty = true
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l := loader.New(host, loader.Options{
		Root:    cfg.Dir(),
		Tracer:  options.Tracer,
		Metrics: options.Metrics,
	})

	return &Builder{
		config:   cfg,
		options:  options,
		logger:   logger,
		host:     host,
		scanner:  router.NewScannerWithOptions(cfg.SrcPath(), router.ScanOptions{Logger: logger}),
		loader:   l,
		renderer: NewRenderer(l, options.Pretty),
		emitter:  NewEmitter(cfg.OutPath(), cfg.Dir()),
	}
}

// Config returns the project configuration.
func (b *Builder) Config() *config.Config { return b.config }

// Host returns the module host.
func (b *Builder) Host() module.Host { return b.host }

// Logger returns the build logger.
func (b *Builder) Logger() *slog.Logger { return b.logger }

// Metrics returns the metrics registry, which may be nil.
func (b *Builder) Metrics() *metrics.Metrics { return b.options.Metrics }

// Scanner returns the route table builder for the source root.
func (b *Builder) Scanner() *router.Scanner { return b.scanner }

// Loader returns the value loader.
func (b *Builder) Loader() *loader.Loader { return b.loader }

// Renderer returns the artifact renderer.
func (b *Builder) Renderer() *Renderer { return b.renderer }

// Emitter returns the output writer.
func (b *Builder) Emitter() *Emitter { return b.emitter }

// Pretty reports whether output is indented.
func (b *Builder) Pretty() bool { return b.options.Pretty }

// Scan builds the route table. Failure to read the source root is E204.
func (b *Builder) Scan() (*router.Table, error) {
	table, err := b.scanner.Scan()
	if err != nil {
		return nil, errors.New("E204").WithFile(b.config.SrcDir).Wrap(err)
	}
	return table, nil
}

// Build performs a full build: the output root is cleared, every route
// is rendered in table order, and the manifest is written last.
//
// Route failures are collected in the result and do not stop the build
// unless FailFast is set, in which case the first one is returned.
// Filesystem failures on the source root, the output root or the manifest
// are returned as errors.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{Manifest: NewManifest()}

	b.progress("Scanning routes...")
	table, err := b.Scan()
	if err != nil {
		return nil, err
	}
	result.Table = table

	b.progress("Cleaning output directory...")
	if err := b.emitter.Clear(); err != nil {
		return nil, err
	}

	for _, inv := range table.Invalid {
		err := errors.New("E206").WithFile(b.loader.Rel(inv.File)).Wrap(inv.Err)
		if b.fail(result, Failure{Route: inv.Rel, File: b.loader.Rel(inv.File), Err: err}) {
			return b.finish(result, start, err)
		}
	}

	b.progress(fmt.Sprintf("Building %d route(s)...", len(table.Routes)))
	owners := make(map[string]string)
	for _, route := range table.Routes {
		if err := ctx.Err(); err != nil {
			return b.finish(result, start, err)
		}
		if err := b.buildRoute(ctx, route, result, owners); err != nil {
			return b.finish(result, start, err)
		}
	}

	return b.finish(result, start, nil)
}

// buildRoute renders and writes one table entry. It returns an error
// only when the build must stop.
func (b *Builder) buildRoute(ctx context.Context, route router.Route, result *Result, owners map[string]string) error {
	rel := b.loader.Rel(route.File)

	rendering, err := b.renderer.Render(ctx, route, module.Cached)
	if err != nil {
		if b.fail(result, Failure{Route: route.Path(), File: rel, Err: err}) {
			return err
		}
		return nil
	}
	if rendering.Skipped {
		result.Skipped++
		b.options.Metrics.RouteSkipped()
		b.logger.Debug("no concrete routes", "route", route.Path(), "file", rel)
		return nil
	}

	for _, a := range rendering.Artifacts {
		if owner, taken := owners[a.Route]; taken {
			err := errors.New("E205").WithFile(rel).
				WithDetailf("%s is already produced by %s", a.Route, owner)
			if b.fail(result, Failure{Route: a.Route, File: rel, Err: err}) {
				return err
			}
			continue
		}

		entry, err := b.emitter.Write(a, route.File)
		if err != nil {
			if b.fail(result, Failure{Route: a.Route, File: rel, Err: err}) {
				return err
			}
			continue
		}
		owners[a.Route] = rel
		result.Manifest.Set(entry)
		result.Written++
		result.Bytes += int64(entry.Bytes)
		b.options.Metrics.RouteEmitted(route.Type.String())
		b.logger.Debug("wrote artifact", "route", a.Route, "file", entry.OutFile, "bytes", entry.Bytes)
	}

	for _, f := range rendering.Failures {
		if b.fail(result, f) {
			return f.Err
		}
	}
	return nil
}

// fail records a route failure and reports whether the build must stop.
func (b *Builder) fail(result *Result, f Failure) bool {
	result.Failures = append(result.Failures, f)
	b.options.Metrics.RouteFailed(string(errors.KindOf(f.Err)))
	b.logger.Error("route failed", "route", f.Route, "file", f.File, "err", f.Err)
	return b.options.FailFast
}

// finish writes the manifest of whatever was built and closes out the
// result.
func (b *Builder) finish(result *Result, start time.Time, cause error) (*Result, error) {
	b.progress("Writing manifest...")
	if err := b.emitter.WriteManifest(result.Manifest, b.options.Pretty); err != nil {
		return result, err
	}
	result.Duration = time.Since(start)
	b.options.Metrics.ObserveBuild(result.Duration)
	return result, cause
}

// Clean removes the build output directory's contents.
func (b *Builder) Clean() error {
	return b.emitter.Clear()
}

func (b *Builder) progress(step string) {
	if b.options.OnProgress != nil {
		b.options.OnProgress(step)
	}
}
