package module

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/dop251/goja"

	"github.com/statikapi/statikapi/internal/errors"
	"github.com/statikapi/statikapi/pkg/router"
)

// ScriptOptions configures a ScriptHost.
type ScriptOptions struct {
	// Env is exposed to modules as process.env.
	Env map[string]string

	// CacheSize bounds the compiled-program cache (DefaultCacheSize if 0).
	CacheSize int

	// HTTPClient serves fetch(). A client with a 30s timeout if nil.
	HTTPClient *http.Client

	// Logger receives console output from modules.
	Logger *slog.Logger
}

// ScriptHost runs JavaScript and TypeScript endpoint modules on goja.
// Every Load gets its own runtime, so module-level state never leaks
// between loads; only compiled programs are shared.
type ScriptHost struct {
	env     map[string]string
	logger  *slog.Logger
	fetcher *fetcher
	cache   *programCache
}

// NewScriptHost creates a script host.
func NewScriptHost(opts ScriptOptions) (*ScriptHost, error) {
	cache, err := newProgramCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptHost{
		env:     opts.Env,
		logger:  logger,
		fetcher: newFetcher(opts.HTTPClient),
		cache:   cache,
	}, nil
}

// Load imports the module at abs. A fresh token drops any cached program
// for abs and compiles the current source.
func (h *ScriptHost) Load(ctx context.Context, abs string, fresh Freshness) (Module, error) {
	prog, err := h.program(abs, fresh)
	if err != nil {
		return nil, importError(abs, err)
	}

	e := newEnv(abs, h.logger, h.env, h.fetcher)
	exports, err := e.run(ctx, prog, abs)
	if err != nil {
		return nil, importError(abs, err)
	}

	m := &scriptModule{env: e, path: abs}
	m.resolve(exports)
	return m, nil
}

// Forget drops the cached program for abs, e.g. after the file is removed.
func (h *ScriptHost) Forget(abs string) {
	h.cache.remove(abs)
}

func (h *ScriptHost) program(abs string, fresh Freshness) (*goja.Program, error) {
	if !fresh.IsFresh() {
		if prog, ok := h.cache.get(abs); ok {
			return prog, nil
		}
	}
	h.cache.remove(abs)

	src, err := readSource(abs)
	if err != nil {
		return nil, err
	}
	sum, err := fingerprint(src.inputs)
	if err != nil {
		return nil, err
	}
	prog, err := goja.Compile(abs, wrapCommonJS(src.code), false)
	if err != nil {
		return nil, err
	}
	h.cache.put(abs, prog, src.inputs, sum)
	return prog, nil
}

func importError(abs string, err error) *errors.Error {
	e := errors.New("E201").WithFile(abs).WithDetail(prefixImport + errorMessage(err))
	e.Wrapped = err
	var te *transformError
	if stderrors.As(err, &te) {
		e.Detail = prefixImport + te.Text
		if te.File != "" && te.Line > 0 {
			e.WithLocation(te.File, te.Line, te.Column)
		}
	}
	return e
}

// scriptModule is a module evaluated in its own goja runtime.
type scriptModule struct {
	env  *env
	path string

	kind     ProducerKind
	producer goja.Callable
	value    goja.Value
	paths    goja.Value
}

func (m *scriptModule) Path() string           { return m.path }
func (m *scriptModule) Producer() ProducerKind { return m.kind }

// resolve picks the producer: a callable data export, else a callable
// default export, else the default export as a value.
func (m *scriptModule) resolve(exports goja.Value) {
	named, _ := exports.(*goja.Object)
	def := exports
	hasDefault := exports != nil && !goja.IsUndefined(exports)

	if named != nil && named.Get("__esModule") != nil && named.Get("__esModule").ToBoolean() {
		def = named.Get("default")
		hasDefault = hasOwn(named, "default")
	}

	if named != nil {
		if fn, ok := goja.AssertFunction(named.Get("data")); ok {
			m.kind, m.producer = ProducerNamed, fn
		}
		m.paths = named.Get("paths")
	}
	if m.kind == ProducerNone && hasDefault {
		if fn, ok := goja.AssertFunction(def); ok {
			m.kind, m.producer = ProducerDefault, fn
		} else {
			m.kind, m.value = ProducerStatic, def
		}
	}
}

func hasOwn(obj *goja.Object, key string) bool {
	for _, k := range obj.Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// LoadValue invokes the producer and converts its resolved value.
func (m *scriptModule) LoadValue(ctx context.Context, args Args) (any, error) {
	e := m.env
	defer e.guard(ctx)()

	var result goja.Value
	switch m.kind {
	case ProducerNone:
		return nil, errors.New("E201").WithFile(m.path).WithDetail(msgNoExport)
	case ProducerStatic:
		result = m.value
	default:
		v, err := m.producer(goja.Undefined(), e.argsValue(args))
		if err == nil {
			v, err = e.settle(ctx, v)
		}
		if err != nil {
			return nil, errors.New("E201").WithFile(m.path).
				WithDetail(prefixExecute + errorMessage(err)).Wrap(err)
		}
		result = v
	}

	out, err := newConverter(e.vm).export(result)
	if err != nil {
		return nil, errors.New("E201").WithFile(m.path).
			WithDetail(prefixExecute + errorMessage(err)).Wrap(err)
	}
	return out, nil
}

// LoadEnumeration invokes the paths export. A missing export is not an
// error; a non-callable one is.
func (m *scriptModule) LoadEnumeration(ctx context.Context) (any, bool, error) {
	if m.paths == nil || goja.IsUndefined(m.paths) || goja.IsNull(m.paths) {
		return nil, false, nil
	}
	fn, ok := goja.AssertFunction(m.paths)
	if !ok {
		return nil, true, errors.New("E201").WithFile(m.path).WithDetail(msgPathsNotFunc)
	}

	e := m.env
	defer e.guard(ctx)()

	v, err := fn(goja.Undefined())
	if err == nil {
		v, err = e.settle(ctx, v)
	}
	if err == nil {
		var out any
		out, err = newConverter(e.vm).export(v)
		if err == nil {
			return out, true, nil
		}
	}
	return nil, true, errors.New("E201").WithFile(m.path).
		WithDetail(prefixPathsThrew + errorMessage(err)).Wrap(err)
}

// argsValue builds { params: { name: "v" | ["a", "b"] } }.
func (e *env) argsValue(args Args) goja.Value {
	vm := e.vm
	params := vm.NewObject()
	for _, name := range sortedKeys(args.Params) {
		switch v := args.Params[name].(type) {
		case []string:
			items := make([]any, len(v))
			for i, s := range v {
				items[i] = s
			}
			_ = params.Set(name, vm.NewArray(items...))
		default:
			_ = params.Set(name, v)
		}
	}
	obj := vm.NewObject()
	_ = obj.Set("params", params)
	return obj
}

func sortedKeys(p router.Params) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
