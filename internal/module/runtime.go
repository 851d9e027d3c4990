package module

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dop251/goja"
)

// CommonJS source is wrapped in a function expression so module, exports
// and require stay local to one evaluation.
const (
	cjsHeader = "(function (exports, require, module, __filename, __dirname) {"
	cjsFooter = "\n})"
)

func wrapCommonJS(src string) string {
	return cjsHeader + src + cjsFooter
}

// env is one goja runtime prepared for running an endpoint module.
type env struct {
	vm      *goja.Runtime
	abs     string
	logger  *slog.Logger
	vars    map[string]string
	fetcher *fetcher

	// ctx is the context of the call in progress, used by fetch.
	ctx context.Context

	timers  []*timer
	timerID int64

	// modules caches relative requires within this runtime.
	modules map[string]goja.Value
}

type timer struct {
	id    int64
	delay int64
	seq   int64
	fn    goja.Callable
	args  []goja.Value
}

func newEnv(abs string, logger *slog.Logger, vars map[string]string, f *fetcher) *env {
	e := &env{
		vm:      goja.New(),
		abs:     abs,
		logger:  logger,
		vars:    vars,
		fetcher: f,
		modules: make(map[string]goja.Value),
	}
	e.installConsole()
	e.installProcess()
	e.installTimers()
	e.fetcher.install(e)
	return e
}

// run evaluates a compiled CommonJS wrapper and returns module.exports.
func (e *env) run(ctx context.Context, prog *goja.Program, file string) (goja.Value, error) {
	defer e.guard(ctx)()

	fnVal, err := e.vm.RunProgram(prog)
	if err != nil {
		return nil, err
	}
	return e.callWrapper(fnVal, file)
}

// guard interrupts the runtime when ctx is done. The returned func
// releases it.
func (e *env) guard(ctx context.Context) func() {
	e.ctx = ctx
	stop := context.AfterFunc(ctx, func() { e.vm.Interrupt(ctx.Err()) })
	return func() {
		if !stop() {
			e.vm.ClearInterrupt()
		}
	}
}

func (e *env) callWrapper(fnVal goja.Value, file string) (goja.Value, error) {
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, fmt.Errorf("module wrapper is not a function")
	}

	mod := e.vm.NewObject()
	exports := e.vm.NewObject()
	if err := mod.Set("exports", exports); err != nil {
		return nil, err
	}

	_, err := fn(goja.Undefined(),
		exports,
		e.vm.ToValue(e.requireFrom(filepath.Dir(file))),
		mod,
		e.vm.ToValue(file),
		e.vm.ToValue(filepath.Dir(file)),
	)
	if err != nil {
		return nil, err
	}
	return mod.Get("exports"), nil
}

// requireFrom resolves relative CommonJS requires for natively evaluated
// modules. Bundled modules only reach it for packages left external.
func (e *env) requireFrom(dir string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if !strings.HasPrefix(name, "./") && !strings.HasPrefix(name, "../") {
			panic(e.vm.NewTypeError("Cannot find module '%s'", name))
		}

		file, ok := resolveRelative(filepath.Join(dir, name))
		if !ok {
			panic(e.vm.NewTypeError("Cannot find module '%s'", name))
		}
		if v, ok := e.modules[file]; ok {
			return v
		}

		src, err := os.ReadFile(file)
		if err != nil {
			panic(e.vm.NewGoError(err))
		}

		if strings.EqualFold(filepath.Ext(file), ".json") {
			v, err := e.vm.RunString("(" + string(src) + ")")
			if err != nil {
				panic(e.vm.NewGoError(err))
			}
			e.modules[file] = v
			return v
		}

		prog, err := goja.Compile(file, wrapCommonJS(string(src)), false)
		if err != nil {
			panic(e.vm.NewGoError(err))
		}
		fnVal, err := e.vm.RunProgram(prog)
		if err != nil {
			panic(e.vm.NewGoError(err))
		}
		exports, err := e.callWrapper(fnVal, file)
		if err != nil {
			panic(e.vm.NewGoError(err))
		}
		e.modules[file] = exports
		return exports
	}
}

var requireSuffixes = []string{"", ".cjs", ".js", ".json", "/index.cjs", "/index.js"}

func resolveRelative(base string) (string, bool) {
	for _, suffix := range requireSuffixes {
		p := base + suffix
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, true
		}
	}
	return "", false
}

func (e *env) installConsole() {
	console := e.vm.NewObject()
	logAt := func(level slog.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			e.logger.Log(context.Background(), level, strings.Join(parts, " "), "module", e.abs)
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logAt(slog.LevelInfo))
	_ = console.Set("info", logAt(slog.LevelInfo))
	_ = console.Set("debug", logAt(slog.LevelDebug))
	_ = console.Set("warn", logAt(slog.LevelWarn))
	_ = console.Set("error", logAt(slog.LevelError))
	_ = e.vm.Set("console", console)
}

func (e *env) installProcess() {
	process := e.vm.NewObject()
	vars := e.vm.NewObject()

	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_ = vars.Set(k, e.vars[k])
	}

	_ = process.Set("env", vars)
	_ = process.Set("cwd", func(goja.FunctionCall) goja.Value {
		return e.vm.ToValue(filepath.Dir(e.abs))
	})
	_ = e.vm.Set("process", process)
}

// installTimers provides setTimeout without a clock: callbacks run in
// delay order once the current call returns, see drainTimers.
func (e *env) installTimers() {
	_ = e.vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(e.vm.NewTypeError("setTimeout callback must be a function"))
		}
		e.timerID++
		t := &timer{id: e.timerID, seq: e.timerID, fn: fn, delay: call.Argument(1).ToInteger()}
		if len(call.Arguments) > 2 {
			t.args = call.Arguments[2:]
		}
		e.timers = append(e.timers, t)
		return e.vm.ToValue(t.id)
	})
	_ = e.vm.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		id := call.Argument(0).ToInteger()
		for i, t := range e.timers {
			if t.id == id {
				e.timers = append(e.timers[:i], e.timers[i+1:]...)
				break
			}
		}
		return goja.Undefined()
	})
}

// drainTimers runs pending timer callbacks until none are left. Promise
// jobs queued by each callback run when the callback returns.
func (e *env) drainTimers(ctx context.Context) error {
	for len(e.timers) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := 0
		for i, t := range e.timers {
			if t.delay < e.timers[next].delay || (t.delay == e.timers[next].delay && t.seq < e.timers[next].seq) {
				next = i
			}
		}
		t := e.timers[next]
		e.timers = append(e.timers[:next], e.timers[next+1:]...)
		if _, err := t.fn(goja.Undefined(), t.args...); err != nil {
			return err
		}
	}
	return nil
}

// settle drains timers and unwraps a promise. Non-promise values are
// returned unchanged.
func (e *env) settle(ctx context.Context, v goja.Value) (goja.Value, error) {
	if err := e.drainTimers(ctx); err != nil {
		return nil, err
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v, nil
	}
	p, ok := obj.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result(), nil
	case goja.PromiseStateRejected:
		return nil, &rejection{value: p.Result()}
	default:
		return nil, errors.New(msgNeverSettled)
	}
}

// rejection is a rejected promise surfaced as a Go error.
type rejection struct {
	value goja.Value
}

func (r *rejection) Error() string {
	return valueMessage(r.value)
}

// errorMessage extracts the script-level message of err, the way
// `e.message` reads in a catch block.
func errorMessage(err error) string {
	switch e := err.(type) {
	case *goja.Exception:
		return valueMessage(e.Value())
	case *goja.InterruptedError:
		if v, ok := e.Value().(error); ok {
			return v.Error()
		}
		return e.Error()
	}
	return err.Error()
}

func valueMessage(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if obj, ok := v.(*goja.Object); ok {
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
			return m.String()
		}
	}
	return v.String()
}
