package jsonsafe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalKeepsKeyOrder(t *testing.T) {
	v := ObjectOf("zeta", 1, "alpha", []any{"x", ObjectOf("b", true, "a", nil)})

	out, err := Marshal(v, false)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":["x",{"b":true,"a":null}]}`, string(out))
}

func TestMarshalPretty(t *testing.T) {
	v := ObjectOf("hello", "world", "list", []any{1, 2})

	out, err := Marshal(v, true)
	require.NoError(t, err)
	want := "{\n  \"hello\": \"world\",\n  \"list\": [\n    1,\n    2\n  ]\n}\n"
	assert.Equal(t, want, string(out))
}

func TestMarshalNoHTMLEscape(t *testing.T) {
	out, err := Marshal(ObjectOf("html", "<b>&</b>"), false)
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<b>&</b>"}`, string(out))
}

func TestMarshalRejectsInvalid(t *testing.T) {
	_, err := Marshal(map[string]any{"n": math.Inf(-1)}, false)
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "$.n", ce.Locator)
}

func TestMarshalScalars(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"s", `"s"`},
		{1.5, "1.5"},
		{[]any{}, "[]"},
		{NewObject(), "{}"},
	}
	for _, tt := range tests {
		out, err := Marshal(tt.in, false)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(out))
	}
}

func TestObjectSetReplacesInPlace(t *testing.T) {
	o := ObjectOf("a", 1, "b", 2)
	o.Set("a", 3)

	assert.Equal(t, []string{"a", "b"}, o.Keys())
	v, ok := o.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, o.Len())
}
