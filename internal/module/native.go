package module

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/statikapi/statikapi/internal/errors"
)

// ProducerFunc computes a module's value for one concrete route.
type ProducerFunc func(ctx context.Context, args Args) (any, error)

// PathsFunc enumerates concrete parameter values.
type PathsFunc func(ctx context.Context) (any, error)

// Definition is an endpoint module written in Go.
//
// Data takes precedence over Default. Default may be a ProducerFunc or a
// plain value; a nil Default with a nil Data means the module exports
// nothing.
type Definition struct {
	Data    ProducerFunc
	Default any
	Paths   PathsFunc
}

// NativeHost serves Go definitions registered by path relative to a
// source root. A Cached load returns the definition captured by the
// previous load of the same path; a fresh load captures the current
// registration.
type NativeHost struct {
	root string

	mu     sync.Mutex
	defs   map[string]Definition
	loaded map[string]Definition
	loads  map[string]int
}

// NewNativeHost creates a host for modules under root.
func NewNativeHost(root string) *NativeHost {
	return &NativeHost{
		root:   root,
		defs:   make(map[string]Definition),
		loaded: make(map[string]Definition),
		loads:  make(map[string]int),
	}
}

// Register sets the definition for rel ("users/[id].js").
func (h *NativeHost) Register(rel string, def Definition) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defs[filepath.ToSlash(rel)] = def
}

// Unregister removes the definition for rel.
func (h *NativeHost) Unregister(rel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.defs, filepath.ToSlash(rel))
	delete(h.loaded, filepath.ToSlash(rel))
}

// Executions returns how many times rel was executed (fresh or first load).
func (h *NativeHost) Executions(rel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loads[filepath.ToSlash(rel)]
}

// Load resolves abs to a registered definition.
func (h *NativeHost) Load(ctx context.Context, abs string, fresh Freshness) (Module, error) {
	rel, err := filepath.Rel(h.root, abs)
	if err != nil {
		return nil, errors.New("E201").WithFile(abs).WithDetail(prefixImport + err.Error())
	}
	rel = filepath.ToSlash(rel)

	h.mu.Lock()
	defer h.mu.Unlock()

	def, ok := h.loaded[rel]
	if !ok || fresh.IsFresh() {
		def, ok = h.defs[rel]
		if !ok {
			return nil, errors.New("E201").WithFile(abs).
				WithDetail(prefixImport + fmt.Sprintf("Cannot find module '%s'", rel))
		}
		h.loaded[rel] = def
		h.loads[rel]++
	}

	m := &nativeModule{path: abs, def: def}
	switch {
	case def.Data != nil:
		m.kind = ProducerNamed
	case def.Default != nil:
		if _, ok := def.Default.(ProducerFunc); ok {
			m.kind = ProducerDefault
		} else if _, ok := def.Default.(func(context.Context, Args) (any, error)); ok {
			m.kind = ProducerDefault
		} else {
			m.kind = ProducerStatic
		}
	}
	return m, nil
}

type nativeModule struct {
	path string
	def  Definition
	kind ProducerKind
}

func (m *nativeModule) Path() string           { return m.path }
func (m *nativeModule) Producer() ProducerKind { return m.kind }

func (m *nativeModule) LoadValue(ctx context.Context, args Args) (v any, err error) {
	defer m.catch(prefixExecute, &err)

	var fn ProducerFunc
	switch m.kind {
	case ProducerNone:
		return nil, errors.New("E201").WithFile(m.path).WithDetail(msgNoExport)
	case ProducerStatic:
		return m.def.Default, nil
	case ProducerNamed:
		fn = m.def.Data
	case ProducerDefault:
		switch d := m.def.Default.(type) {
		case ProducerFunc:
			fn = d
		case func(context.Context, Args) (any, error):
			fn = d
		}
	}

	v, err = fn(ctx, args)
	if err != nil {
		return nil, errors.New("E201").WithFile(m.path).WithDetail(prefixExecute + err.Error()).Wrap(err)
	}
	return v, nil
}

func (m *nativeModule) LoadEnumeration(ctx context.Context) (v any, ok bool, err error) {
	if m.def.Paths == nil {
		return nil, false, nil
	}
	defer m.catch(prefixPathsThrew, &err)

	v, err = m.def.Paths(ctx)
	if err != nil {
		return nil, true, errors.New("E201").WithFile(m.path).WithDetail(prefixPathsThrew + err.Error()).Wrap(err)
	}
	return v, true, nil
}

// catch turns a panicking Go producer into a load error, as a throwing
// script producer would be.
func (m *nativeModule) catch(prefix string, err *error) {
	if r := recover(); r != nil {
		*err = errors.New("E201").WithFile(m.path).WithDetail(prefix + fmt.Sprint(r))
	}
}
