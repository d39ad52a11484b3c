// Package value implements the runtime tagged-union value and its
// containers: int, string, object references, arrays, and mappings.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	Nil Kind = iota
	Int
	String
	Object
	Array
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Nil:
		return "nil"
	case Int:
		return "int"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	case Mapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// ObjectRef resolves a live object from a Value without the value package
// depending on the object package. An object_ref holds a generation-checked
// handle that a dereference can find to be stale.
type ObjectRef interface {
	// Live reports whether the referenced object still exists.
	Live() bool
	// ID returns the object's canonical id ("/path" or "/path#n").
	ID() string
	// Equal compares two refs by underlying identity, not value equality.
	Equal(ObjectRef) bool
}

// Value is the tagged-union runtime value. The zero Value is Nil.
type Value struct {
	kind Kind
	i    int64
	s    string
	obj  ObjectRef
	arr  *arrayData
	mp   *mappingData
}

type arrayData struct {
	elems []Value
}

type mappingData struct {
	// keys preserves a stable iteration order for the lifetime of the
	// process; it is not insertion order once a key is deleted and
	// reinserted, matching the "stable but unspecified" contract.
	keys  []Value
	index map[string]int
	vals  []Value
}

// NewInt builds an int Value.
func NewInt(i int64) Value { return Value{kind: Int, i: i} }

// NewString builds a string Value.
func NewString(s string) Value { return Value{kind: String, s: s} }

// NewObject builds an object_ref Value.
func NewObject(ref ObjectRef) Value { return Value{kind: Object, obj: ref} }

// NewArray builds an array Value from the given elements (copied).
func NewArray(elems []Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: Array, arr: &arrayData{elems: cp}}
}

// NewMapping builds an empty mapping Value.
func NewMapping() Value {
	return Value{kind: Mapping, mp: &mappingData{index: make(map[string]int)}}
}

// NilValue is the single absent value.
var NilValue = Value{kind: Nil}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNil() bool { return v.kind == Nil }

// Int returns the int payload; zero if v is not an int.
func (v Value) Int() int64 {
	if v.kind != Int {
		return 0
	}
	return v.i
}

// Str returns the string payload; empty if v is not a string.
func (v Value) Str() string {
	if v.kind != String {
		return ""
	}
	return v.s
}

// Obj returns the object_ref payload, or nil if v is not an object_ref.
func (v Value) Obj() ObjectRef {
	if v.kind != Object {
		return nil
	}
	return v.obj
}

// Len returns the length of an array or mapping, matching sizeof semantics
// for those kinds (0 for every other kind, including nil and "").
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.arr.elems)
	case Mapping:
		return len(v.mp.keys)
	default:
		return 0
	}
}

// Elems returns the backing slice of an array. Mutating the returned slice
// mutates the array, matching the spec's alias-on-assignment choice for
// containers (see DESIGN.md).
func (v Value) Elems() []Value {
	if v.kind != Array {
		return nil
	}
	return v.arr.elems
}

// Index returns element i of an array, or an IndexError if i is out of
// bounds.
func (v Value) Index(i int64) (Value, error) {
	if v.kind != Array {
		return NilValue, &TypeError{Op: "index", Detail: fmt.Sprintf("not an array: %s", v.kind)}
	}
	n := int64(len(v.arr.elems))
	if i < 0 || i >= n {
		return NilValue, &IndexError{Index: i, Len: n}
	}
	return v.arr.elems[i], nil
}

// SetIndex sets element i of an array in place (aliasing semantics).
func (v Value) SetIndex(i int64, val Value) error {
	if v.kind != Array {
		return &TypeError{Op: "index-assign", Detail: fmt.Sprintf("not an array: %s", v.kind)}
	}
	n := int64(len(v.arr.elems))
	if i < 0 || i >= n {
		return &IndexError{Index: i, Len: n}
	}
	v.arr.elems[i] = val
	return nil
}

// Slice returns a[i..j) with Python-like half-open, clamped bounds. j<i
// yields an empty array. i<0 means offset from the end.
func (v Value) Slice(i, j int64) (Value, error) {
	if v.kind != Array {
		return NilValue, &TypeError{Op: "slice", Detail: fmt.Sprintf("not an array: %s", v.kind)}
	}
	n := int64(len(v.arr.elems))
	if i < 0 {
		i = n + i
	}
	if j < 0 {
		j = n + j
	}
	if i < 0 {
		i = 0
	}
	if j > n {
		j = n
	}
	if i > n {
		i = n
	}
	if j < i {
		return NewArray(nil), nil
	}
	return NewArray(v.arr.elems[i:j]), nil
}

// mapKey canonicalizes a Value usable as a mapping key: strings, ints, and
// object refs only, per the data model.
func mapKey(k Value) (string, error) {
	switch k.kind {
	case Int:
		return "i:" + strconv.FormatInt(k.i, 10), nil
	case String:
		return "s:" + k.s, nil
	case Object:
		if k.obj == nil || !k.obj.Live() {
			return "nil", nil
		}
		return "o:" + k.obj.ID(), nil
	default:
		return "", &TypeError{Op: "mapping-key", Detail: fmt.Sprintf("invalid key kind: %s", k.kind)}
	}
}

// MappingGet returns the stored value for k, or the type-zero Nil if
// absent.
func (v Value) MappingGet(k Value) Value {
	if v.kind != Mapping {
		return NilValue
	}
	kk, err := mapKey(k)
	if err != nil {
		return NilValue
	}
	idx, ok := v.mp.index[kk]
	if !ok {
		return NilValue
	}
	return v.mp.vals[idx]
}

// MappingSet stores val under k, appending to the stable iteration order
// if k is new.
func (v Value) MappingSet(k, val Value) error {
	if v.kind != Mapping {
		return &TypeError{Op: "mapping-assign", Detail: fmt.Sprintf("not a mapping: %s", v.kind)}
	}
	kk, err := mapKey(k)
	if err != nil {
		return err
	}
	if idx, ok := v.mp.index[kk]; ok {
		v.mp.vals[idx] = val
		return nil
	}
	v.mp.index[kk] = len(v.mp.keys)
	v.mp.keys = append(v.mp.keys, k)
	v.mp.vals = append(v.mp.vals, val)
	return nil
}

// MappingDelete removes k from the mapping if present.
func (v Value) MappingDelete(k Value) error {
	if v.kind != Mapping {
		return &TypeError{Op: "m_delete", Detail: fmt.Sprintf("not a mapping: %s", v.kind)}
	}
	kk, err := mapKey(k)
	if err != nil {
		return err
	}
	idx, ok := v.mp.index[kk]
	if !ok {
		return nil
	}
	delete(v.mp.index, kk)
	v.mp.keys = append(v.mp.keys[:idx], v.mp.keys[idx+1:]...)
	v.mp.vals = append(v.mp.vals[:idx], v.mp.vals[idx+1:]...)
	for key, i := range v.mp.index {
		if i > idx {
			v.mp.index[key] = i - 1
		}
	}
	return nil
}

// MappingKeys returns the mapping's keys in stable order.
func (v Value) MappingKeys() []Value {
	if v.kind != Mapping {
		return nil
	}
	out := make([]Value, len(v.mp.keys))
	copy(out, v.mp.keys)
	return out
}

// MappingValues returns the mapping's values in the same order as
// MappingKeys.
func (v Value) MappingValues() []Value {
	if v.kind != Mapping {
		return nil
	}
	out := make([]Value, len(v.mp.vals))
	copy(out, v.mp.vals)
	return out
}

// Truthy implements the language's truthiness rule: 0, "", empty
// containers, and destructed-or-nil object refs are false.
func (v Value) Truthy() bool {
	switch v.kind {
	case Nil:
		return false
	case Int:
		return v.i != 0
	case String:
		return v.s != ""
	case Object:
		return v.obj != nil && v.obj.Live()
	case Array:
		return len(v.arr.elems) > 0
	case Mapping:
		return len(v.mp.keys) > 0
	default:
		return false
	}
}

// Equal implements == per spec §4.3: numeric for int, byte-exact for
// string, identity for object refs, and nil==0/nil=="" are false (the
// source's truthiness-only interchange, not equality — see DESIGN.md).
func (v Value) Equal(o Value) bool {
	if v.kind == Nil && o.kind == Nil {
		return true
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case Int:
		return v.i == o.i
	case String:
		return v.s == o.s
	case Object:
		if v.obj == nil || o.obj == nil {
			return v.obj == o.obj
		}
		return v.obj.Equal(o.obj)
	case Array:
		return v.arr == o.arr
	case Mapping:
		return v.mp == o.mp
	default:
		return true
	}
}

// Add implements the overloaded + operator per spec §4.3.
func Add(a, b Value) (Value, error) {
	switch {
	case a.kind == Int && b.kind == Int:
		return NewInt(a.i + b.i), nil
	case a.kind == String && b.kind == String:
		return NewString(a.s + b.s), nil
	case a.kind == String && b.kind == Int:
		return NewString(a.s + strconv.FormatInt(b.i, 10)), nil
	case a.kind == Int && b.kind == String:
		return NewString(strconv.FormatInt(a.i, 10) + b.s), nil
	case a.kind == Array && b.kind == Array:
		out := make([]Value, 0, len(a.arr.elems)+len(b.arr.elems))
		out = append(out, a.arr.elems...)
		out = append(out, b.arr.elems...)
		return NewArray(out), nil
	case a.kind == Mapping && b.kind == Mapping:
		out := NewMapping()
		for i, k := range a.mp.keys {
			out.MappingSet(k, a.mp.vals[i])
		}
		for i, k := range b.mp.keys {
			out.MappingSet(k, b.mp.vals[i])
		}
		return out, nil
	default:
		return NilValue, &TypeError{Op: "+", Detail: fmt.Sprintf("%s + %s", a.kind, b.kind)}
	}
}

// ArithBinary implements - * / % for ints only.
func ArithBinary(op string, a, b Value) (Value, error) {
	if a.kind != Int || b.kind != Int {
		return NilValue, &TypeError{Op: op, Detail: fmt.Sprintf("%s %s %s", a.kind, op, b.kind)}
	}
	switch op {
	case "-":
		return NewInt(a.i - b.i), nil
	case "*":
		return NewInt(a.i * b.i), nil
	case "/":
		if b.i == 0 {
			return NilValue, &ArithError{Op: "/"}
		}
		return NewInt(a.i / b.i), nil
	case "%":
		if b.i == 0 {
			return NilValue, &ArithError{Op: "%"}
		}
		return NewInt(a.i % b.i), nil
	default:
		return NilValue, &TypeError{Op: op, Detail: "unknown arithmetic operator"}
	}
}

// ZeroFor returns the typed zero for a declared type name, used for
// variable defaults and missing varargs tail arguments.
func ZeroFor(typeName string) Value {
	switch typeName {
	case "int":
		return NewInt(0)
	case "string":
		return NewString("")
	case "object":
		return NilValue
	case "mapping":
		return NewMapping()
	default:
		// "mixed", array types ("foo*"), and anything else default to nil.
		if strings.HasSuffix(typeName, "*") {
			return NewArray(nil)
		}
		return NilValue
	}
}

// Render formats v for the save-file/debug text encoding described in
// spec §6: int decimal, string double-quoted and escaped, arrays and
// mappings with literal delimiters, object refs as quoted ids, nil as 0.
func Render(v Value) string {
	switch v.kind {
	case Nil:
		return "0"
	case Int:
		return strconv.FormatInt(v.i, 10)
	case String:
		return quoteString(v.s)
	case Object:
		if v.obj == nil || !v.obj.Live() {
			return "0"
		}
		return quoteString(v.obj.ID())
	case Array:
		parts := make([]string, len(v.arr.elems))
		for i, e := range v.arr.elems {
			parts[i] = Render(e)
		}
		return "({ " + strings.Join(parts, ", ") + " })"
	case Mapping:
		parts := make([]string, len(v.mp.keys))
		for i, k := range v.mp.keys {
			parts[i] = Render(k) + ":" + Render(v.mp.vals[i])
		}
		return "([ " + strings.Join(parts, ", ") + " ])"
	default:
		return "0"
	}
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// String renders a short debug form, used only for logging — never the
// in-language string coercion.
func (v Value) String() string {
	return Render(v)
}

// SortKeysForDebug returns a stable sort of a mapping's keys purely for
// deterministic test output; the runtime itself never reorders a live
// mapping's keys.
func SortKeysForDebug(keys []Value) []Value {
	out := make([]Value, len(keys))
	copy(out, keys)
	sort.Slice(out, func(i, j int) bool { return Render(out[i]) < Render(out[j]) })
	return out
}
