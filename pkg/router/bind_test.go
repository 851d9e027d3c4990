package router

import (
	"reflect"
	"testing"
)

func mustClassify(t *testing.T, rel string) Pattern {
	t.Helper()
	route, err := Classify(rel)
	if err != nil || route == nil {
		t.Fatalf("Classify(%q) = %v, %v", rel, route, err)
	}
	return route.Pattern
}

func TestPatternBind(t *testing.T) {
	tests := []struct {
		rel        string
		segments   []string
		wantRoute  string
		wantParams Params
	}{
		{"index.js", nil, "/", Params{}},
		{"about.js", nil, "/about", Params{}},
		{"users/[id].js", []string{"1"}, "/users/1", Params{"id": "1"}},
		{"users/[id]/posts.js", []string{"7"}, "/users/7/posts", Params{"id": "7"}},
		{"prefix/[...slug].js", []string{"a", "b"}, "/prefix/a/b", Params{"slug": []string{"a", "b"}}},
		{"prefix/[...slug].js", []string{"guide"}, "/prefix/guide", Params{"slug": []string{"guide"}}},
		{"[lang]/[...path].js", []string{"en", "x", "y"}, "/en/x/y", Params{"lang": "en", "path": []string{"x", "y"}}},
	}

	for _, tt := range tests {
		p := mustClassify(t, tt.rel)
		params, route, err := p.Bind(tt.segments)
		if err != nil {
			t.Errorf("%s.Bind(%v) error: %v", p, tt.segments, err)
			continue
		}
		if route != tt.wantRoute {
			t.Errorf("%s.Bind(%v) route = %q, want %q", p, tt.segments, route, tt.wantRoute)
		}
		if !reflect.DeepEqual(params, tt.wantParams) {
			t.Errorf("%s.Bind(%v) params = %v, want %v", p, tt.segments, params, tt.wantParams)
		}
	}
}

func TestPatternBindErrors(t *testing.T) {
	tests := []struct {
		rel      string
		segments []string
	}{
		{"users/[id].js", nil},
		{"users/[id].js", []string{"1", "2"}},
		{"docs/[...slug].js", nil},
		{"about.js", []string{"extra"}},
	}

	for _, tt := range tests {
		p := mustClassify(t, tt.rel)
		if _, route, err := p.Bind(tt.segments); err == nil {
			t.Errorf("%s.Bind(%v) = %q, want error", p, tt.segments, route)
		}
	}
}

func TestBindDoesNotAliasSegments(t *testing.T) {
	p := mustClassify(t, "docs/[...slug].js")
	segs := []string{"a", "b"}

	params, _, err := p.Bind(segs)
	if err != nil {
		t.Fatal(err)
	}
	segs[0] = "mutated"
	if got := params["slug"].([]string)[0]; got != "a" {
		t.Errorf("params alias input slice: got %q", got)
	}
}

func TestTableMatch(t *testing.T) {
	routes := []Route{}
	for _, rel := range []string{"index.js", "users/index.js", "users/me.js", "users/[id].js", "docs/[...slug].js"} {
		r, err := Classify(rel)
		if err != nil {
			t.Fatal(err)
		}
		routes = append(routes, *r)
	}
	SortRoutes(routes)
	table := &Table{Routes: routes}

	tests := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/users", "/users"},
		{"/users/me", "/users/me"},
		{"/users/42", "/users/:id"},
		{"/docs/a/b/c", "/docs/*slug"},
		{"/docs", ""},
		{"/users/42/extra", ""},
	}

	for _, tt := range tests {
		route, _, ok := table.Match(tt.path)
		got := ""
		if ok {
			got = route.Path()
		}
		if got != tt.want {
			t.Errorf("Match(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestSortRoutes(t *testing.T) {
	var routes []Route
	for _, rel := range []string{"[...all].js", "b/[id].js", "b.js", "a/[id].js", "index.js", "a.js"} {
		r, err := Classify(rel)
		if err != nil {
			t.Fatal(err)
		}
		routes = append(routes, *r)
	}
	SortRoutes(routes)

	var got []string
	for _, r := range routes {
		got = append(got, r.Path())
	}
	want := []string{"/", "/a", "/b", "/a/:id", "/b/:id", "/*all"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortRoutes() = %v, want %v", got, want)
	}
}
