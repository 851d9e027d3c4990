package loader

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/statikapi/statikapi/internal/errors"
	"github.com/statikapi/statikapi/internal/module"
	"github.com/statikapi/statikapi/pkg/router"
)

// Expand runs the module's paths hook for a dynamic or catch-all route
// and returns one segment list per concrete route, de-duplicated by
// concrete route with the first occurrence kept.
//
// The bool is false when there is nothing to expand: a static route, or
// a module without a paths export. That is not an error; the route just
// cannot be built without enumerated values.
//
// Shape rules:
//   - dynamic: every entry is a non-empty string without '/'
//   - catch-all: every entry is such a string, or a non-empty array of them
//
// "." and ".." are rejected as segments since they would address another
// route's artifact.
func (l *Loader) Expand(ctx context.Context, m module.Module, route router.Route) ([][]string, bool, error) {
	if route.Type == router.Static {
		return nil, false, nil
	}

	ctx, span := l.tracer.Start(ctx, "statikapi.paths",
		trace.WithAttributes(
			attribute.String("statikapi.file", l.Rel(m.Path())),
			attribute.String("statikapi.pattern", route.Path()),
		))
	defer span.End()

	start := time.Now()
	raw, ok, err := m.LoadEnumeration(ctx)
	l.metrics.ObserveLoad("paths", time.Since(start))
	if err != nil {
		err = l.tag(m.Path(), errors.FromError(err, "E201"))
		endSpan(span, err)
		return nil, true, err
	}
	if !ok {
		endSpan(span, nil)
		return nil, false, nil
	}

	segs, err := shape(raw, route)
	if err != nil {
		err = l.tag(m.Path(), err.(*errors.Error))
		endSpan(span, err)
		return nil, true, err
	}

	out := dedupe(segs)
	span.SetAttributes(attribute.Int("statikapi.paths", len(out)))
	endSpan(span, nil)
	return out, true, nil
}

// shape validates an enumeration against the route type.
func shape(raw any, route router.Route) ([][]string, error) {
	entries, ok := asList(raw)
	if !ok {
		return nil, shapeError(route, "paths() must return an array")
	}

	label := paramLabel(route.Pattern)
	out := make([][]string, 0, len(entries))

	switch route.Type {
	case router.Dynamic:
		for _, entry := range entries {
			s, ok := entry.(string)
			if !ok {
				return nil, shapeError(route, "paths() for %s must be string[]", route.Path())
			}
			if err := checkSegment(route, s, "paths() entry for "+label); err != nil {
				return nil, err
			}
			out = append(out, []string{s})
		}

	case router.CatchAll:
		for _, entry := range entries {
			if s, ok := entry.(string); ok {
				if err := checkSegment(route, s, "paths() entry for "+label); err != nil {
					return nil, err
				}
				out = append(out, []string{s})
				continue
			}
			v, ok := asList(entry)
			if !ok {
				return nil, shapeError(route, "paths() for %s must be (string | string[])[]", route.Path())
			}
			if len(v) == 0 {
				return nil, shapeError(route, "paths() entry for %s must be non-empty", label)
			}
			list := make([]string, len(v))
			for i, item := range v {
				s, ok := item.(string)
				if !ok || s == "" {
					return nil, shapeError(route, "paths() entry for %s must contain non-empty strings", label)
				}
				if strings.Contains(s, "/") {
					return nil, shapeError(route, "paths() entry segment for %s must not contain '/'", label)
				}
				if s == "." || s == ".." {
					return nil, shapeError(route, "paths() entry segment for %s must not be '.' or '..'", label)
				}
				list[i] = s
			}
			out = append(out, list)
		}
	}

	return out, nil
}

// asList accepts any slice or array, so Go hooks may return []string or
// [][]string as well as the []any the script host produces.
func asList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	list := make([]any, rv.Len())
	for i := range list {
		list[i] = rv.Index(i).Interface()
	}
	return list, true
}

func checkSegment(route router.Route, s, what string) error {
	if s == "" {
		if route.Type == router.CatchAll {
			return shapeError(route, "%s must be non-empty", what)
		}
		return shapeError(route, "%s cannot be empty", what)
	}
	if strings.Contains(s, "/") {
		return shapeError(route, "%s must not contain '/'", what)
	}
	if s == "." || s == ".." {
		return shapeError(route, "%s must not be '.' or '..'", what)
	}
	return nil
}

func shapeError(route router.Route, format string, args ...any) *errors.Error {
	return errors.New("E203").
		WithParam(paramLabel(route.Pattern)).
		WithDetail(fmt.Sprintf(format, args...))
}

// paramLabel names the parameter an enumeration binds: ":id" for dynamic
// routes, "*slug" for catch-all routes.
func paramLabel(p router.Pattern) string {
	if tok := p.ParamToken(); tok != "" {
		return tok
	}
	return ":" + p.ParamName()
}

func dedupe(segs [][]string) [][]string {
	seen := make(map[string]bool, len(segs))
	out := segs[:0]
	for _, s := range segs {
		key := strings.Join(s, "/")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
