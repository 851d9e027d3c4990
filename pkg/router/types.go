package router

import "strings"

// RouteType classifies a route pattern by the parameters it contains.
type RouteType int

const (
	// Static patterns have no parameter tokens.
	Static RouteType = iota
	// Dynamic patterns have exactly one single-segment parameter.
	Dynamic
	// CatchAll patterns end with a token that binds the remaining segments.
	CatchAll
)

// String returns the manifest spelling of the type.
func (t RouteType) String() string {
	switch t {
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	case CatchAll:
		return "catchall"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t RouteType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// TokenKind is the kind of a pattern token.
type TokenKind int

const (
	TokenLiteral TokenKind = iota
	TokenParam
	TokenCatchAll
)

// Token is one segment of a route pattern.
type Token struct {
	Kind TokenKind

	// Value is the literal text, or the parameter name for parameter tokens.
	Value string
}

// String returns the router notation of the token: "users", ":id" or "*slug".
func (t Token) String() string {
	switch t.Kind {
	case TokenParam:
		return ":" + t.Value
	case TokenCatchAll:
		return "*" + t.Value
	default:
		return t.Value
	}
}

// Pattern is an immutable sequence of route tokens.
// A catch-all token, if present, is always the last one.
type Pattern struct {
	tokens []Token
}

// NewPattern builds a pattern from tokens. It does not validate the
// catch-all placement; Classify does.
func NewPattern(tokens ...Token) Pattern {
	cp := make([]Token, len(tokens))
	copy(cp, tokens)
	return Pattern{tokens: cp}
}

// Tokens returns a copy of the pattern's tokens.
func (p Pattern) Tokens() []Token {
	cp := make([]Token, len(p.tokens))
	copy(cp, p.tokens)
	return cp
}

// Len returns the number of segments in the pattern.
func (p Pattern) Len() int {
	return len(p.tokens)
}

// IsRoot reports whether the pattern has zero segments.
func (p Pattern) IsRoot() bool {
	return len(p.tokens) == 0
}

// Type derives the route type from the tokens.
func (p Pattern) Type() RouteType {
	typ := Static
	for _, tok := range p.tokens {
		switch tok.Kind {
		case TokenCatchAll:
			return CatchAll
		case TokenParam:
			typ = Dynamic
		}
	}
	return typ
}

// ParamName returns the name of the first parameter or catch-all token,
// or "param" when the pattern has none.
func (p Pattern) ParamName() string {
	for _, tok := range p.tokens {
		if tok.Kind != TokenLiteral {
			return tok.Value
		}
	}
	return "param"
}

// ParamToken returns the notation of the last parameter-like token
// (":id" or "*slug"), used in diagnostics.
func (p Pattern) ParamToken() string {
	for i := len(p.tokens) - 1; i >= 0; i-- {
		if p.tokens[i].Kind != TokenLiteral {
			return p.tokens[i].String()
		}
	}
	return ""
}

// String returns the pattern in router notation, e.g. "/users/:id".
// The root pattern is "/".
func (p Pattern) String() string {
	if len(p.tokens) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, tok := range p.tokens {
		b.WriteByte('/')
		b.WriteString(tok.String())
	}
	return b.String()
}

// Route is one qualifying source file and the pattern it classifies to.
// Routes are superseded, never mutated, when the file's pattern changes.
type Route struct {
	// File is the absolute path of the source file.
	File string

	// Rel is the slash-separated path of the file relative to the source root.
	Rel string

	// Pattern is the route pattern derived from Rel.
	Pattern Pattern

	// Type is Pattern.Type(), cached.
	Type RouteType
}

// Path returns the route pattern in router notation.
func (r Route) Path() string {
	return r.Pattern.String()
}

// Params is a parameter binding: names map to a string for parameter
// tokens and to a []string for catch-all tokens.
type Params map[string]any
