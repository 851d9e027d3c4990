package module

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/statikapi/statikapi/pkg/router"
)

// Host loads endpoint modules by absolute path.
type Host interface {
	// Load imports the module at abs. With a fresh token the host must
	// re-execute the module instead of reusing a cached instance.
	Load(ctx context.Context, abs string, fresh Freshness) (Module, error)
}

// Module is one loaded endpoint module.
type Module interface {
	// Path returns the absolute path the module was loaded from.
	Path() string

	// Producer reports how LoadValue resolves the module's value.
	Producer() ProducerKind

	// LoadValue invokes the producer with args and returns the resolved,
	// unvalidated value.
	LoadValue(ctx context.Context, args Args) (any, error)

	// LoadEnumeration invokes the paths hook. The bool is false when the
	// module has no hook.
	LoadEnumeration(ctx context.Context) (any, bool, error)
}

// ProducerKind is the resolved shape of a module's exports.
type ProducerKind int

const (
	// ProducerNone means the module exports nothing usable.
	ProducerNone ProducerKind = iota
	// ProducerNamed is a callable "data" export.
	ProducerNamed
	// ProducerDefault is a callable default export.
	ProducerDefault
	// ProducerStatic is a non-callable default export used as the value.
	ProducerStatic
)

func (k ProducerKind) String() string {
	switch k {
	case ProducerNamed:
		return "data"
	case ProducerDefault:
		return "default"
	case ProducerStatic:
		return "static"
	default:
		return "none"
	}
}

// Args is passed to a producer as { params }.
type Args struct {
	Params router.Params
}

// Freshness says whether a load may reuse a cached module.
type Freshness struct {
	token string
}

// Cached allows the host to reuse a previously loaded module.
var Cached = Freshness{}

// Fresh forces re-execution. Distinct tokens are distinct load identities.
func Fresh(token string) Freshness {
	if token == "" {
		token = "fresh"
	}
	return Freshness{token: token}
}

var freshSeq atomic.Uint64

// NewFresh returns a fresh token unique within the process.
func NewFresh() Freshness {
	return Fresh(fmt.Sprintf("%d-%d", time.Now().UnixNano(), freshSeq.Add(1)))
}

// IsFresh reports whether the token forces re-execution.
func (f Freshness) IsFresh() bool {
	return f.token != ""
}

// Token returns the load identity, empty for Cached.
func (f Freshness) Token() string {
	return f.token
}

// Messages shared by hosts so failures read the same whatever runs the code.
const (
	msgNoExport      = "No export found. Use 'export async function data()' or 'export default <value|function>'."
	msgPathsNotFunc  = `"paths" export must be a function`
	msgNeverSettled  = "promise never settled"
	prefixImport     = "Failed to import: "
	prefixExecute    = "Error executing module: "
	prefixPathsThrew = "paths() threw: "
)
