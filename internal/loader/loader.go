package loader

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/statikapi/statikapi/internal/errors"
	"github.com/statikapi/statikapi/internal/jsonsafe"
	"github.com/statikapi/statikapi/internal/metrics"
	"github.com/statikapi/statikapi/internal/module"
	"github.com/statikapi/statikapi/pkg/router"
)

const tracerName = "github.com/statikapi/statikapi/internal/loader"

// Options configures a Loader.
type Options struct {
	// Root is the directory error file paths are shown relative to,
	// usually the project root.
	Root string

	// Tracer records spans for imports and hook calls. otel's global
	// tracer if nil.
	Tracer trace.Tracer

	// Metrics records load durations. Optional.
	Metrics *metrics.Metrics
}

// Loader is the single path through which module values reach disk:
// every value it returns has passed jsonsafe.Check.
type Loader struct {
	host    module.Host
	root    string
	tracer  trace.Tracer
	metrics *metrics.Metrics
}

// New creates a loader over host.
func New(host module.Host, opts Options) *Loader {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Loader{
		host:    host,
		root:    opts.Root,
		tracer:  tracer,
		metrics: opts.Metrics,
	}
}

// Rel returns abs relative to the loader root, slash-separated. Paths
// outside the root are returned unchanged.
func (l *Loader) Rel(abs string) string {
	if l.root == "" {
		return abs
	}
	rel, err := filepath.Rel(l.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return abs
	}
	return filepath.ToSlash(rel)
}

// Import loads the module at abs through the host.
func (l *Loader) Import(ctx context.Context, abs string, fresh module.Freshness) (module.Module, error) {
	ctx, span := l.tracer.Start(ctx, "statikapi.import",
		trace.WithAttributes(
			attribute.String("statikapi.file", l.Rel(abs)),
			attribute.Bool("statikapi.fresh", fresh.IsFresh()),
		))
	defer span.End()

	start := time.Now()
	m, err := l.host.Load(ctx, abs, fresh)
	l.metrics.ObserveLoad("import", time.Since(start))
	if err != nil {
		err = l.tag(abs, errors.FromError(err, "E201"))
		endSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("statikapi.producer", m.Producer().String()))
	endSpan(span, nil)
	return m, nil
}

// Value invokes the module's producer with params and validates the
// result. Load failures are E201, validation failures E202.
func (l *Loader) Value(ctx context.Context, m module.Module, route string, params router.Params) (any, error) {
	ctx, span := l.tracer.Start(ctx, "statikapi.data",
		trace.WithAttributes(
			attribute.String("statikapi.file", l.Rel(m.Path())),
			attribute.String("statikapi.route", route),
		))
	defer span.End()

	start := time.Now()
	v, err := m.LoadValue(ctx, module.Args{Params: params})
	l.metrics.ObserveLoad("data", time.Since(start))
	if err != nil {
		err = l.tag(m.Path(), errors.FromError(err, "E201"))
		endSpan(span, err)
		return nil, err
	}

	if err := jsonsafe.Check(v); err != nil {
		verr := errors.New("E202").WithFile(m.Path()).Wrap(err)
		var ce *jsonsafe.Error
		if errors.As(err, &ce) {
			verr.WithLocator(ce.Locator)
		}
		l.tag(m.Path(), verr)
		endSpan(span, verr)
		return nil, verr
	}

	endSpan(span, nil)
	return v, nil
}

// LoadValue imports abs and returns its validated value for params.
func (l *Loader) LoadValue(ctx context.Context, abs string, fresh module.Freshness, params router.Params) (any, error) {
	m, err := l.Import(ctx, abs, fresh)
	if err != nil {
		return nil, err
	}
	return l.Value(ctx, m, "", params)
}

// tag points err at the module's project-relative path.
func (l *Loader) tag(abs string, err *errors.Error) *errors.Error {
	err.File = l.Rel(abs)
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if k := errors.KindOf(err); k != errors.KindNone {
			span.SetAttributes(attribute.String("statikapi.error_kind", string(k)))
		}
		return
	}
	span.SetStatus(codes.Ok, "")
}
