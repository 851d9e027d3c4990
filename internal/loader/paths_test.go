package loader

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statikapi/statikapi/internal/errors"
	"github.com/statikapi/statikapi/internal/module"
)

func TestExpandDynamic(t *testing.T) {
	f := newFixture(t)
	f.host.Register("users/[id].js", module.Definition{
		Default: map[string]any{},
		Paths:   enumerate([]any{"1", "2", "1"}),
	})

	route := f.route(t, "users/[id].js")
	segs, ok, err := f.loader.Expand(context.Background(), f.importModule(t, "users/[id].js"), route)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, [][]string{{"1"}, {"2"}}, segs)
}

func TestExpandCatchAll(t *testing.T) {
	f := newFixture(t)
	f.host.Register("prefix/[...slug].js", module.Definition{
		Default: map[string]any{},
		Paths:   enumerate([]any{[]any{"a", "b"}, "guide", []any{"guide"}, "a/b"}),
	})

	route := f.route(t, "prefix/[...slug].js")
	_, _, err := f.loader.Expand(context.Background(), f.importModule(t, "prefix/[...slug].js"), route)
	require.Error(t, err, "a string entry with '/' must be rejected")

	f.host.Register("docs/[...slug].js", module.Definition{
		Default: map[string]any{},
		Paths:   enumerate([]any{[]any{"a", "b"}, "guide", []any{"guide"}}),
	})
	route = f.route(t, "docs/[...slug].js")
	segs, ok, err := f.loader.Expand(context.Background(), f.importModule(t, "docs/[...slug].js"), route)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, [][]string{{"a", "b"}, {"guide"}}, segs)
}

func TestExpandGoSlices(t *testing.T) {
	tests := []struct {
		name  string
		rel   string
		value any
		want  [][]string
	}{
		{"dynamic []string", "users/[id].js", []string{"1", "2"}, [][]string{{"1"}, {"2"}}},
		{"dynamic array", "users/[id].js", [2]string{"7", "7"}, [][]string{{"7"}}},
		{"catch-all [][]string", "docs/[...slug].js", [][]string{{"a", "b"}, {"guide"}}, [][]string{{"a", "b"}, {"guide"}}},
		{"catch-all mixed", "docs/[...slug].js", []any{"guide", []string{"a", "b"}}, [][]string{{"guide"}, {"a", "b"}}},
		{"empty []string", "users/[id].js", []string{}, [][]string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.host.Register(tt.rel, module.Definition{Default: map[string]any{}, Paths: enumerate(tt.value)})

			segs, ok, err := f.loader.Expand(context.Background(), f.importModule(t, tt.rel), f.route(t, tt.rel))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, segs)
		})
	}
}

func TestExpandShapeErrors(t *testing.T) {
	tests := []struct {
		name   string
		rel    string
		value  any
		param  string
		detail string
	}{
		{"not an array", "users/[id].js", "1", ":id", "paths() must return an array"},
		{"dynamic non-string", "users/[id].js", []any{int64(1)}, ":id", "paths() for /users/:id must be string[]"},
		{"dynamic empty", "users/[id].js", []any{""}, ":id", "paths() entry for :id cannot be empty"},
		{"dynamic separator", "users/[id].js", []any{"a/b"}, ":id", "paths() entry for :id must not contain '/'"},
		{"dynamic nested array", "users/[id].js", []any{[]any{"a"}}, ":id", "paths() for /users/:id must be string[]"},
		{"catch-all empty string", "docs/[...slug].js", []any{""}, "*slug", "paths() entry for *slug must be non-empty"},
		{"catch-all empty list", "docs/[...slug].js", []any{[]any{}}, "*slug", "paths() entry for *slug must be non-empty"},
		{"catch-all bad item", "docs/[...slug].js", []any{[]any{"a", int64(2)}}, "*slug", "paths() entry for *slug must contain non-empty strings"},
		{"catch-all separator", "docs/[...slug].js", []any{[]any{"a", "b/c"}}, "*slug", "paths() entry segment for *slug must not contain '/'"},
		{"dynamic dot segment", "users/[id].js", []any{".."}, ":id", "paths() entry for :id must not be '.' or '..'"},
		{"catch-all dot segment", "docs/[...slug].js", []any{[]any{"..", "x"}}, "*slug", "paths() entry segment for *slug must not be '.' or '..'"},
		{"catch-all wrong type", "docs/[...slug].js", []any{true}, "*slug", "paths() for /docs/*slug must be (string | string[])[]"},
		{"map is not an array", "users/[id].js", map[string]string{"id": "1"}, ":id", "paths() must return an array"},
		{"[]int entries", "users/[id].js", []int{1}, ":id", "paths() for /users/:id must be string[]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.host.Register(tt.rel, module.Definition{Default: map[string]any{}, Paths: enumerate(tt.value)})

			_, ok, err := f.loader.Expand(context.Background(), f.importModule(t, tt.rel), f.route(t, tt.rel))
			require.Error(t, err)
			assert.True(t, ok)

			var se *errors.Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, "E203", se.Code)
			assert.Equal(t, errors.KindEnumeration, se.Kind)
			assert.Equal(t, tt.param, se.Param)
			assert.Equal(t, tt.detail, se.Detail)
			assert.Equal(t, "src-api/"+tt.rel, se.File)
		})
	}
}

func TestExpandNothingToExpand(t *testing.T) {
	f := newFixture(t)
	f.host.Register("users/[id].js", module.Definition{Default: map[string]any{}})
	f.host.Register("about.js", module.Definition{Default: map[string]any{}, Paths: enumerate([]any{"x"})})

	segs, ok, err := f.loader.Expand(context.Background(), f.importModule(t, "users/[id].js"), f.route(t, "users/[id].js"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, segs)

	segs, ok, err = f.loader.Expand(context.Background(), f.importModule(t, "about.js"), f.route(t, "about.js"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, segs)
}

func TestExpandEmptyEnumeration(t *testing.T) {
	f := newFixture(t)
	f.host.Register("users/[id].js", module.Definition{Default: map[string]any{}, Paths: enumerate([]any{})})

	segs, ok, err := f.loader.Expand(context.Background(), f.importModule(t, "users/[id].js"), f.route(t, "users/[id].js"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, segs)
}

func TestExpandHookThrows(t *testing.T) {
	f := newFixture(t)
	f.host.Register("users/[id].js", module.Definition{
		Default: map[string]any{},
		Paths:   func(context.Context) (any, error) { return nil, fmt.Errorf("no db") },
	})

	_, _, err := f.loader.Expand(context.Background(), f.importModule(t, "users/[id].js"), f.route(t, "users/[id].js"))
	require.Error(t, err)
	assert.Equal(t, errors.KindLoad, errors.KindOf(err))
	assert.Contains(t, err.Error(), "paths() threw: no db")
}
