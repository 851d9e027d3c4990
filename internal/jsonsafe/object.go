package jsonsafe

import (
	"bytes"
	"encoding/json"
)

// Object is a plain object with insertion-ordered string keys.
// Script values convert to *Object so that artifacts keep the key order
// the producer wrote.
type Object struct {
	keys    []string
	values  map[string]any
	symbols []string
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// ObjectOf builds an object from alternating key, value pairs.
// It panics if a key is not a string.
func ObjectOf(kv ...any) *Object {
	o := NewObject()
	for i := 0; i+1 < len(kv); i += 2 {
		o.Set(kv[i].(string), kv[i+1])
	}
	return o
}

// Set adds or replaces a key. A new key goes to the end.
func (o *Object) Set(key string, value any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	return append([]string(nil), o.keys...)
}

// Len returns the number of string keys.
func (o *Object) Len() int {
	return len(o.keys)
}

// AddSymbolKey records a symbol-keyed property by its description.
// Symbol keys make the object non-serializable.
func (o *Object) AddSymbolKey(desc string) {
	o.symbols = append(o.symbols, desc)
}

// SymbolKeys returns the descriptions of symbol-keyed properties.
func (o *Object) SymbolKeys() []string {
	return append([]string(nil), o.symbols...)
}

// MarshalJSON encodes the object with keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalRaw(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalRaw(o.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalRaw encodes v compactly without HTML escaping, so "<" stays "<"
// the way a script runtime would write it.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}
