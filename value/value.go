// Package value defines the dynamic value representation flowing between
// the guest boundary, the binder, and the wire transcoder. It is the
// host-side mirror of the component type vocabulary: one concrete Go type
// per kind, closed under the Value interface.
//
// Values are untyped on their own; every conversion (to wire bytes, to
// guest memory) is driven by an expected wit.Type, because several kinds
// share a representation (char and u32, enum and variant).
package value

import "fmt"

// Value is the closed sum of runtime values.
type Value interface {
	isValue()
	// Kind returns the vocabulary name of the value, used in errors.
	Kind() string
}

// Bool is a boolean value.
type Bool bool

// U8, U16, U32, U64 are unsigned integer values.
type (
	U8  uint8
	U16 uint16
	U32 uint32
	U64 uint64
)

// S8, S16, S32, S64 are signed integer values.
type (
	S8  int8
	S16 int16
	S32 int32
	S64 int64
)

// F32 and F64 are floating-point values.
type (
	F32 float32
	F64 float64
)

// Char is a Unicode code point.
type Char rune

// Str is a string value.
type Str string

// Bytes is a byte sequence value.
type Bytes []byte

// List is an ordered sequence of values of one element type.
type List []Value

// Field is one named record field.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered sequence of named fields. Order follows the type's
// field declaration order.
type Record []Field

// Tuple is an ordered sequence of values of heterogeneous types.
type Tuple []Value

// Variant is one case of a tagged union. Payload is nil for cases without
// a payload type.
type Variant struct {
	Name    string
	Payload Value
}

// Enum is a variant without payloads, identified by case name.
type Enum string

// Option is an optional value; Some is nil when absent.
type Option struct {
	Some Value
}

// Result is a success-or-failure value. Payload is nil when the arm
// carries no type.
type Result struct {
	OK      bool
	Payload Value
}

// Flags is the set of active flag names, in declaration order.
type Flags []string

func (Bool) isValue()    {}
func (U8) isValue()      {}
func (U16) isValue()     {}
func (U32) isValue()     {}
func (U64) isValue()     {}
func (S8) isValue()      {}
func (S16) isValue()     {}
func (S32) isValue()     {}
func (S64) isValue()     {}
func (F32) isValue()     {}
func (F64) isValue()     {}
func (Char) isValue()    {}
func (Str) isValue()     {}
func (Bytes) isValue()   {}
func (List) isValue()    {}
func (Record) isValue()  {}
func (Tuple) isValue()   {}
func (Variant) isValue() {}
func (Enum) isValue()    {}
func (Option) isValue()  {}
func (Result) isValue()  {}
func (Flags) isValue()   {}

func (Bool) Kind() string    { return "bool" }
func (U8) Kind() string      { return "u8" }
func (U16) Kind() string     { return "u16" }
func (U32) Kind() string     { return "u32" }
func (U64) Kind() string     { return "u64" }
func (S8) Kind() string      { return "s8" }
func (S16) Kind() string     { return "s16" }
func (S32) Kind() string     { return "s32" }
func (S64) Kind() string     { return "s64" }
func (F32) Kind() string     { return "f32" }
func (F64) Kind() string     { return "f64" }
func (Char) Kind() string    { return "char" }
func (Str) Kind() string     { return "string" }
func (Bytes) Kind() string   { return "bytes" }
func (List) Kind() string    { return "list" }
func (Record) Kind() string  { return "record" }
func (Tuple) Kind() string   { return "tuple" }
func (Variant) Kind() string { return "variant" }
func (Enum) Kind() string    { return "enum" }
func (Option) Kind() string  { return "option" }
func (Result) Kind() string  { return "result" }
func (Flags) Kind() string   { return "flags" }

// Equal reports deep equality of two values.
func Equal(a, b Value) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	switch av := a.(type) {
	case List:
		bv, ok := b.(List)
		return ok && equalSeq(av, bv)
	case Tuple:
		bv, ok := b.(Tuple)
		return ok && equalSeq(av, bv)
	case Record:
		bv, ok := b.(Record)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Name != bv[i].Name || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	case Variant:
		bv, ok := b.(Variant)
		return ok && av.Name == bv.Name && Equal(av.Payload, bv.Payload)
	case Option:
		bv, ok := b.(Option)
		return ok && Equal(av.Some, bv.Some)
	case Result:
		bv, ok := b.(Result)
		return ok && av.OK == bv.OK && Equal(av.Payload, bv.Payload)
	case Bytes:
		bv, ok := b.(Bytes)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case Flags:
		bv, ok := b.(Flags)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func equalSeq(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// String renders a value for diagnostics.
func String(v Value) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s(%v)", v.Kind(), v)
}
