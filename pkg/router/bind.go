package router

import (
	"fmt"
	"strings"
)

// Bind aligns the pattern's tokens against an enumerated segment list.
// A parameter token consumes exactly one segment; a catch-all token
// consumes every remaining segment (at least one). Literal tokens consume
// nothing. It returns the parameter binding and the concrete route.
//
//	/users/:id  + [42]       → {id: "42"},          /users/42
//	/docs/*slug + [a b]      → {slug: [a b]},       /docs/a/b
func (p Pattern) Bind(segments []string) (Params, string, error) {
	params := make(Params)
	parts := make([]string, 0, len(p.tokens)+len(segments))
	idx := 0

	for _, tok := range p.tokens {
		switch tok.Kind {
		case TokenLiteral:
			parts = append(parts, tok.Value)
		case TokenParam:
			if idx >= len(segments) {
				return nil, "", fmt.Errorf("no segment for :%s", tok.Value)
			}
			params[tok.Value] = segments[idx]
			parts = append(parts, segments[idx])
			idx++
		case TokenCatchAll:
			if idx >= len(segments) {
				return nil, "", fmt.Errorf("no segments for *%s", tok.Value)
			}
			rest := make([]string, len(segments)-idx)
			copy(rest, segments[idx:])
			params[tok.Value] = rest
			parts = append(parts, rest...)
			idx = len(segments)
		}
	}

	if idx != len(segments) {
		return nil, "", fmt.Errorf("%d unused segment(s) for %s", len(segments)-idx, p)
	}

	return params, "/" + strings.Join(parts, "/"), nil
}

// Concrete returns the concrete route of a static pattern.
func (p Pattern) Concrete() string {
	return p.String()
}

// Match reports whether a concrete URL path could have been produced by
// the pattern, and the binding it implies. Precedence between patterns is
// the table order: callers try static routes before dynamic ones.
func (p Pattern) Match(urlPath string) (Params, bool) {
	segs := splitPath(urlPath)
	params := make(Params)

	for i, tok := range p.tokens {
		switch tok.Kind {
		case TokenLiteral:
			if i >= len(segs) || segs[i] != tok.Value {
				return nil, false
			}
		case TokenParam:
			if i >= len(segs) {
				return nil, false
			}
			params[tok.Value] = segs[i]
		case TokenCatchAll:
			if i >= len(segs) {
				return nil, false
			}
			params[tok.Value] = append([]string(nil), segs[i:]...)
			return params, true
		}
	}

	if len(segs) != len(p.tokens) {
		return nil, false
	}
	return params, true
}

// Match returns the first route in table order whose pattern matches the
// URL path.
func (t *Table) Match(urlPath string) (*Route, Params, bool) {
	for i := range t.Routes {
		if params, ok := t.Routes[i].Pattern.Match(urlPath); ok {
			return &t.Routes[i], params, true
		}
	}
	return nil, nil, false
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
