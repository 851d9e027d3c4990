package jsonsafe

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// Reason says why a value is not JSON-serializable.
type Reason int

const (
	ReasonNonFinite Reason = iota + 1
	ReasonFunction
	ReasonNonPlain
	ReasonNonStringKey
	ReasonCircular
	ReasonBigInt
	ReasonSymbol
	ReasonUnsupported
)

func (r Reason) String() string {
	switch r {
	case ReasonNonFinite:
		return "non-finite"
	case ReasonFunction:
		return "function"
	case ReasonNonPlain:
		return "non-plain"
	case ReasonNonStringKey:
		return "non-string-key"
	case ReasonCircular:
		return "circular"
	case ReasonBigInt:
		return "bigint"
	case ReasonSymbol:
		return "symbol"
	case ReasonUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is the first offending value found by Check.
type Error struct {
	Reason  Reason
	Locator string
	Message string
}

func (e *Error) Error() string {
	return e.Message + " at " + e.Locator
}

// Root is the locator of the value passed to Check.
const Root = "$"

// Check walks v and reports the first value that cannot be written as
// JSON. Accepted values are nil, bools, strings, json.Number, integers,
// finite floats, *Object, maps with string keys, slices, arrays, and
// pointers or interfaces holding any of those.
//
// A container that appears again below itself is circular; the locator
// is where it was first reached, so o.self = o reports "$". Shared
// references that do not form a cycle are accepted.
func Check(v any) error {
	c := &checker{ancestors: make(map[visit]string)}
	return c.walk(reflect.ValueOf(v), Root)
}

type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type checker struct {
	ancestors map[visit]string
}

var (
	objectType   = reflect.TypeOf((*Object)(nil))
	functionType = reflect.TypeOf(Function{})
	instanceType = reflect.TypeOf(Instance{})
	symbolType   = reflect.TypeOf(Symbol{})
	undefType    = reflect.TypeOf(undefined{})
	bigIntType   = reflect.TypeOf(big.Int{})
	numberType   = reflect.TypeOf(json.Number(""))
	timeType     = reflect.TypeOf(time.Time{})
)

func fail(reason Reason, loc, format string, args ...any) error {
	return &Error{Reason: reason, Locator: loc, Message: fmt.Sprintf(format, args...)}
}

func (c *checker) walk(v reflect.Value, loc string) error {
	if !v.IsValid() {
		return nil
	}

	switch v.Type() {
	case objectType:
		if v.IsNil() {
			return nil
		}
		return c.object(v.Interface().(*Object), v, loc)
	case functionType:
		return fail(ReasonFunction, loc, "Function is not JSON-serializable")
	case instanceType:
		return fail(ReasonNonPlain, loc, "Only plain objects/arrays allowed (got %s)", v.Interface().(Instance).Class)
	case symbolType:
		return fail(ReasonSymbol, loc, "Symbol is not JSON-serializable")
	case undefType:
		return fail(ReasonUnsupported, loc, "Unsupported type: undefined")
	case bigIntType:
		return fail(ReasonBigInt, loc, "BigInt is not JSON-serializable")
	case numberType:
		if _, err := strconv.ParseFloat(v.String(), 64); err != nil {
			return fail(ReasonUnsupported, loc, "Invalid number %q", v.String())
		}
		return nil
	case timeType:
		return fail(ReasonNonPlain, loc, "Only plain objects/arrays allowed (got time.Time)")
	}

	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return nil

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fail(ReasonNonFinite, loc, "Number must be finite")
		}
		return nil

	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return c.walk(v.Elem(), loc)

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem() == bigIntType {
			return fail(ReasonBigInt, loc, "BigInt is not JSON-serializable")
		}
		return c.enter(visit{ptr: v.Pointer(), typ: v.Type()}, loc, func() error {
			return c.walk(v.Elem(), loc)
		})

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		if v.Type().Key().Kind() != reflect.String {
			return fail(ReasonNonStringKey, loc, "Map keys must be strings (got %s)", v.Type().Key())
		}
		return c.enter(visit{ptr: v.Pointer(), typ: v.Type()}, loc, func() error {
			keys := v.MapKeys()
			sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
			for _, k := range keys {
				if err := c.walk(v.MapIndex(k), loc+"."+k.String()); err != nil {
					return err
				}
			}
			return nil
		})

	case reflect.Slice:
		if v.IsNil() || v.Len() == 0 {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		return c.enter(visit{ptr: v.Pointer(), typ: v.Type(), len: v.Len()}, loc, func() error {
			return c.elements(v, loc)
		})

	case reflect.Array:
		return c.elements(v, loc)

	case reflect.Func:
		return fail(ReasonFunction, loc, "Function is not JSON-serializable")

	case reflect.Struct:
		return fail(ReasonNonPlain, loc, "Only plain objects/arrays allowed (got %s)", v.Type())
	}

	return fail(ReasonUnsupported, loc, "Unsupported type: %s", v.Kind())
}

func (c *checker) object(o *Object, v reflect.Value, loc string) error {
	return c.enter(visit{ptr: v.Pointer(), typ: objectType}, loc, func() error {
		if len(o.symbols) > 0 {
			return fail(ReasonNonStringKey, loc, "Symbol keys are not JSON-serializable")
		}
		for _, k := range o.keys {
			if err := c.walk(reflect.ValueOf(o.values[k]), loc+"."+k); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *checker) elements(v reflect.Value, loc string) error {
	for i := 0; i < v.Len(); i++ {
		if err := c.walk(v.Index(i), loc+"["+strconv.Itoa(i)+"]"); err != nil {
			return err
		}
	}
	return nil
}

// enter runs fn with key on the ancestor chain.
func (c *checker) enter(key visit, loc string, fn func() error) error {
	if first, ok := c.ancestors[key]; ok {
		return fail(ReasonCircular, first, "Circular structure detected")
	}
	c.ancestors[key] = loc
	defer delete(c.ancestors, key)
	return fn()
}
