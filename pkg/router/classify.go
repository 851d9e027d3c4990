package router

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// PrivatePrefix marks files and directories that never become routes.
// "_lib/format.js" and "users/_helpers.ts" are private.
const PrivatePrefix = "_"

// DefaultExtensions are the module extensions that classify to routes.
var DefaultExtensions = []string{".js", ".mjs", ".cjs", ".ts", ".tsx"}

// Classifier maps source-relative file paths to route patterns.
// It performs no I/O.
type Classifier struct {
	extensions map[string]bool
}

// NewClassifier creates a classifier accepting the given extensions.
// With no extensions, DefaultExtensions are used.
func NewClassifier(extensions ...string) *Classifier {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	c := &Classifier{extensions: make(map[string]bool, len(extensions))}
	for _, ext := range extensions {
		c.extensions[strings.ToLower(ext)] = true
	}
	return c
}

// Classify maps a file path relative to the source root to a route.
//
// It returns (nil, nil) for files that are intentionally ignored: any
// segment starting with PrivatePrefix, or an unsupported extension. It
// returns an error only for files whose bracket markers do not form a
// valid pattern.
//
// Examples:
//   - index.js              → /
//   - blog/archive.ts       → /blog/archive
//   - users/index.js        → /users
//   - users/[id].js         → /users/:id
//   - docs/[...slug].ts     → /docs/*slug
//   - _lib/util.js          → ignored
func (c *Classifier) Classify(rel string) (*Route, error) {
	rel = path.Clean(filepath.ToSlash(rel))
	rel = strings.TrimPrefix(rel, "./")
	if rel == "" || rel == "." || strings.HasPrefix(rel, "../") {
		return nil, nil
	}

	ext := path.Ext(rel)
	relNoExt := strings.TrimSuffix(rel, ext)

	var segments []string
	for _, seg := range strings.Split(relNoExt, "/") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, PrivatePrefix) {
			return nil, nil
		}
		segments = append(segments, seg)
	}

	if !c.extensions[strings.ToLower(ext)] {
		return nil, nil
	}

	if n := len(segments); n > 0 && segments[n-1] == "index" {
		segments = segments[:n-1]
	}

	tokens := make([]Token, 0, len(segments))
	params := 0
	seen := make(map[string]bool)
	for i, seg := range segments {
		tok := parseSegment(seg)
		switch tok.Kind {
		case TokenCatchAll:
			if i != len(segments)-1 {
				return nil, fmt.Errorf("catch-all %q must be the last segment", seg)
			}
		case TokenParam:
			params++
		}
		if tok.Kind != TokenLiteral {
			if seen[tok.Value] {
				return nil, fmt.Errorf("parameter %q appears more than once", tok.Value)
			}
			seen[tok.Value] = true
		}
		tokens = append(tokens, tok)
	}

	pattern := Pattern{tokens: tokens}
	if pattern.Type() == Dynamic && params > 1 {
		return nil, fmt.Errorf("%s has %d parameters; dynamic routes take exactly one (use a catch-all for nested paths)", pattern, params)
	}

	return &Route{
		Rel:     rel,
		Pattern: pattern,
		Type:    pattern.Type(),
	}, nil
}

// Supports reports whether rel has a module extension, private or not.
func (c *Classifier) Supports(rel string) bool {
	return c.extensions[strings.ToLower(path.Ext(rel))]
}

// parseSegment converts one path segment to a token.
//
//	[...slug] → *slug
//	[id]      → :id
//	users     → users
//
// Brackets with an empty name stay literal.
func parseSegment(seg string) Token {
	if !strings.HasPrefix(seg, "[") || !strings.HasSuffix(seg, "]") || len(seg) < 2 {
		return Token{Kind: TokenLiteral, Value: seg}
	}
	inner := seg[1 : len(seg)-1]
	if name, ok := strings.CutPrefix(inner, "..."); ok {
		if name == "" {
			return Token{Kind: TokenLiteral, Value: seg}
		}
		return Token{Kind: TokenCatchAll, Value: name}
	}
	if inner == "" || strings.ContainsAny(inner, "[]") {
		return Token{Kind: TokenLiteral, Value: seg}
	}
	return Token{Kind: TokenParam, Value: inner}
}

// Classify maps rel with the default extensions.
func Classify(rel string) (*Route, error) {
	return defaultClassifier.Classify(rel)
}

var defaultClassifier = NewClassifier()
