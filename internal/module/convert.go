package module

import (
	"math"
	"strconv"

	"github.com/dop251/goja"

	"github.com/statikapi/statikapi/internal/jsonsafe"
)

// converter turns script values into Go trees for jsonsafe. A script
// object reached twice maps to the same Go value, so cycles stay cycles
// and the validator can report them.
type converter struct {
	vm          *goja.Runtime
	objectProto *goja.Object
	seen        map[*goja.Object]any
}

func newConverter(vm *goja.Runtime) *converter {
	var proto *goja.Object
	if ctor, ok := vm.Get("Object").(*goja.Object); ok {
		proto, _ = ctor.Get("prototype").(*goja.Object)
	}
	return &converter{vm: vm, objectProto: proto, seen: make(map[*goja.Object]any)}
}

// export converts v. Getters that throw surface as an error.
func (c *converter) export(v goja.Value) (out any, err error) {
	if ex := c.vm.Try(func() { out = c.convert(v) }); ex != nil {
		return nil, ex
	}
	return out, nil
}

func (c *converter) convert(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) {
		return jsonsafe.Undefined
	}
	if goja.IsNull(v) {
		return nil
	}
	if sym, ok := v.(*goja.Symbol); ok {
		return jsonsafe.Symbol{Description: sym.String()}
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return primitive(v)
	}
	if done, ok := c.seen[obj]; ok {
		return done
	}

	if _, ok := goja.AssertFunction(obj); ok {
		name := ""
		if n := obj.Get("name"); n != nil {
			name = n.String()
		}
		return jsonsafe.Function{Name: name}
	}

	switch obj.ClassName() {
	case "Array":
		n := int(obj.Get("length").ToInteger())
		arr := make([]any, n)
		c.seen[obj] = arr
		for i := 0; i < n; i++ {
			arr[i] = c.convert(obj.Get(strconv.Itoa(i)))
		}
		return arr
	case "Object":
		if !c.plain(obj) {
			return jsonsafe.Instance{Class: constructorName(obj)}
		}
		out := jsonsafe.NewObject()
		c.seen[obj] = out
		for _, sym := range obj.Symbols() {
			out.AddSymbolKey(sym.String())
		}
		for _, k := range obj.Keys() {
			out.Set(k, c.convert(obj.Get(k)))
		}
		return out
	}
	return jsonsafe.Instance{Class: constructorName(obj)}
}

func (c *converter) plain(obj *goja.Object) bool {
	proto := obj.Prototype()
	return proto == nil || (c.objectProto != nil && proto.SameAs(c.objectProto))
}

func constructorName(obj *goja.Object) string {
	if ctor, ok := obj.Get("constructor").(*goja.Object); ok {
		if n := ctor.Get("name"); n != nil && n.String() != "" {
			return n.String()
		}
	}
	return obj.ClassName()
}

func primitive(v goja.Value) any {
	x := v.Export()
	if f, ok := x.(float64); ok && f == 0 && math.Signbit(f) {
		return int64(0)
	}
	return x
}
