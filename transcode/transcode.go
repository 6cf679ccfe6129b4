// Package transcode converts between the runtime's value representation
// and the wire codec, driven by an expected type at every step.
//
// The expected type is required because the wire format alone is ambiguous
// against the vocabulary: char and u32 share a representation, enums ride
// as variants, and records serialize positionally. Encode and decode are
// symmetric recursive descents over (value, type) and (bytes, type); any
// disagreement between the two surfaces as an explicit error rather than a
// reinterpreted value.
//
// This is the only package that touches both the codec and the type
// vocabulary; framing stays payload-agnostic above it.
package transcode

import (
	"errors"
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/mesh-runtime/codec"
	"github.com/wippyai/mesh-runtime/schema"
	"github.com/wippyai/mesh-runtime/value"
)

// maxDepth bounds value nesting before conversion traps.
const maxDepth = 64

var (
	// ErrDepthExceeded is returned when a value nests deeper than maxDepth.
	ErrDepthExceeded = errors.New("transcode: recursion limit exceeded")

	// ErrResourceValue is returned when a resource-typed value reaches the
	// encoder. The binder rejects resources at link time; this is defense
	// in depth.
	ErrResourceValue = errors.New("transcode: resource handles cannot be serialized")
)

// MismatchError is returned when a value does not fit its expected type on
// encode, or a wire tag does not match the expected type on decode.
type MismatchError struct {
	Expected string
	Got      string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("transcode: expected %s, got %s", e.Expected, e.Got)
}

// ArityError is returned when an argument or result list does not match
// the signature's count.
type ArityError struct {
	Expected int
	Got      int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("transcode: expected %d values, got %d", e.Expected, e.Got)
}

// UnknownCaseError is returned when a variant, enum, or flags name is not
// declared by the expected type.
type UnknownCaseError struct {
	Name string
}

func (e *UnknownCaseError) Error() string {
	return fmt.Sprintf("transcode: unknown case %q", e.Name)
}

// Encode writes one value under its expected type.
func Encode(enc *codec.Encoder, v value.Value, t wit.Type) error {
	return encode(enc, v, t, 0)
}

// Decode reads one value under its expected type.
func Decode(dec *codec.Decoder, t wit.Type) (value.Value, error) {
	return decode(dec, t, 0)
}

// EncodeSlab encodes an ordered value list under its signature types into
// a list scope: the slab format carried opaquely by frames.
func EncodeSlab(vals []value.Value, types []wit.Type) ([]byte, error) {
	if len(vals) != len(types) {
		return nil, &ArityError{Expected: len(types), Got: len(vals)}
	}
	enc := codec.NewEncoder()
	if err := enc.ListBegin(); err != nil {
		return nil, err
	}
	for i, v := range vals {
		if err := encode(enc, v, types[i], 0); err != nil {
			return nil, err
		}
	}
	if err := enc.ListEnd(); err != nil {
		return nil, err
	}
	return enc.Bytes()
}

// DecodeSlab decodes a list scope into values under the signature types.
// A count mismatch is an ArityError, surfaced to peers as BadArgumentCount.
func DecodeSlab(slab []byte, types []wit.Type) ([]value.Value, error) {
	it, err := codec.NewDecoder(slab).List()
	if err != nil {
		return nil, err
	}
	vals := make([]value.Value, 0, len(types))
	for _, t := range types {
		if !it.More() {
			return nil, &ArityError{Expected: len(types), Got: len(vals)}
		}
		item, err := it.Next()
		if err != nil {
			return nil, err
		}
		v, err := decode(item, t, 0)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	if it.More() {
		return nil, &ArityError{Expected: len(types), Got: len(types) + 1}
	}
	return vals, nil
}

func encode(enc *codec.Encoder, v value.Value, t wit.Type, depth int) error {
	if depth > maxDepth {
		return ErrDepthExceeded
	}

	if td, ok := t.(*wit.TypeDef); ok {
		return encodeTypeDef(enc, v, td, depth)
	}

	switch t.(type) {
	case wit.Bool:
		b, ok := v.(value.Bool)
		if !ok {
			return mismatch("bool", v)
		}
		return enc.Bool(bool(b))
	case wit.U8:
		n, ok := v.(value.U8)
		if !ok {
			return mismatch("u8", v)
		}
		return enc.U8(uint8(n))
	case wit.U16:
		n, ok := v.(value.U16)
		if !ok {
			return mismatch("u16", v)
		}
		return enc.U16(uint16(n))
	case wit.U32:
		n, ok := v.(value.U32)
		if !ok {
			return mismatch("u32", v)
		}
		return enc.U32(uint32(n))
	case wit.U64:
		n, ok := v.(value.U64)
		if !ok {
			return mismatch("u64", v)
		}
		return enc.U64(uint64(n))
	case wit.S8:
		n, ok := v.(value.S8)
		if !ok {
			return mismatch("s8", v)
		}
		return enc.S8(int8(n))
	case wit.S16:
		n, ok := v.(value.S16)
		if !ok {
			return mismatch("s16", v)
		}
		return enc.S16(int16(n))
	case wit.S32:
		n, ok := v.(value.S32)
		if !ok {
			return mismatch("s32", v)
		}
		return enc.S32(int32(n))
	case wit.S64:
		n, ok := v.(value.S64)
		if !ok {
			return mismatch("s64", v)
		}
		return enc.S64(int64(n))
	case wit.F32:
		n, ok := v.(value.F32)
		if !ok {
			return mismatch("f32", v)
		}
		return enc.F32(float32(n))
	case wit.F64:
		n, ok := v.(value.F64)
		if !ok {
			return mismatch("f64", v)
		}
		return enc.F64(float64(n))
	case wit.Char:
		c, ok := v.(value.Char)
		if !ok {
			return mismatch("char", v)
		}
		return enc.Char(rune(c))
	case wit.String:
		s, ok := v.(value.Str)
		if !ok {
			return mismatch("string", v)
		}
		return enc.Str(string(s))
	}
	return mismatch(fmt.Sprintf("%T", t), v)
}

func encodeTypeDef(enc *codec.Encoder, v value.Value, td *wit.TypeDef, depth int) error {
	switch k := td.Kind.(type) {
	case *wit.Own, *wit.Borrow:
		return ErrResourceValue

	case *wit.List:
		// A byte list may arrive as a blob value; keep it a blob on the
		// wire instead of one scalar per byte.
		if b, ok := v.(value.Bytes); ok {
			if _, isU8 := k.Type.(wit.U8); isU8 {
				return enc.Blob([]byte(b))
			}
			return mismatch("list", v)
		}
		items, ok := v.(value.List)
		if !ok {
			return mismatch("list", v)
		}
		if err := enc.ListBegin(); err != nil {
			return err
		}
		for _, item := range items {
			if err := encode(enc, item, k.Type, depth+1); err != nil {
				return err
			}
		}
		return enc.ListEnd()

	case *wit.Record:
		// Records serialize positionally; field order comes from the type.
		rec, ok := v.(value.Record)
		if !ok {
			return mismatch("record", v)
		}
		if len(rec) != len(k.Fields) {
			return &ArityError{Expected: len(k.Fields), Got: len(rec)}
		}
		if err := enc.ListBegin(); err != nil {
			return err
		}
		for i, f := range k.Fields {
			if rec[i].Name != f.Name {
				return mismatch("field "+f.Name, rec[i].Value)
			}
			if err := encode(enc, rec[i].Value, f.Type, depth+1); err != nil {
				return err
			}
		}
		return enc.ListEnd()

	case *wit.Tuple:
		tup, ok := v.(value.Tuple)
		if !ok {
			return mismatch("tuple", v)
		}
		if len(tup) != len(k.Types) {
			return &ArityError{Expected: len(k.Types), Got: len(tup)}
		}
		if err := enc.ListBegin(); err != nil {
			return err
		}
		for i, elem := range tup {
			if err := encode(enc, elem, k.Types[i], depth+1); err != nil {
				return err
			}
		}
		return enc.ListEnd()

	case *wit.Option:
		opt, ok := v.(value.Option)
		if !ok {
			return mismatch("option", v)
		}
		if opt.Some == nil {
			return enc.OptionNone()
		}
		if err := enc.OptionSomeBegin(); err != nil {
			return err
		}
		if err := encode(enc, opt.Some, k.Type, depth+1); err != nil {
			return err
		}
		return enc.OptionSomeEnd()

	case *wit.Result:
		res, ok := v.(value.Result)
		if !ok {
			return mismatch("result", v)
		}
		var armType wit.Type
		if res.OK {
			if err := enc.ResultOkBegin(); err != nil {
				return err
			}
			armType = k.OK
		} else {
			if err := enc.ResultErrBegin(); err != nil {
				return err
			}
			armType = k.Err
		}
		if err := encodeArm(enc, res.Payload, armType, depth); err != nil {
			return err
		}
		if res.OK {
			return enc.ResultOkEnd()
		}
		return enc.ResultErrEnd()

	case *wit.Variant:
		vr, ok := v.(value.Variant)
		if !ok {
			return mismatch("variant", v)
		}
		c := findCase(k.Cases, vr.Name)
		if c == nil {
			return &UnknownCaseError{Name: vr.Name}
		}
		if err := enc.VariantBegin(vr.Name); err != nil {
			return err
		}
		if err := encodeArm(enc, vr.Payload, c.Type, depth); err != nil {
			return err
		}
		return enc.VariantEnd()

	case *wit.Enum:
		e, ok := v.(value.Enum)
		if !ok {
			return mismatch("enum", v)
		}
		if !hasEnumCase(k.Cases, string(e)) {
			return &UnknownCaseError{Name: string(e)}
		}
		if err := enc.VariantBegin(string(e)); err != nil {
			return err
		}
		if err := enc.Unit(); err != nil {
			return err
		}
		return enc.VariantEnd()

	case *wit.Flags:
		f, ok := v.(value.Flags)
		if !ok {
			return mismatch("flags", v)
		}
		if err := enc.ListBegin(); err != nil {
			return err
		}
		for _, name := range f {
			if !hasFlag(k.Flags, name) {
				return &UnknownCaseError{Name: name}
			}
			if err := enc.Str(name); err != nil {
				return err
			}
		}
		return enc.ListEnd()
	}
	return mismatch(fmt.Sprintf("%T", td.Kind), v)
}

// encodeArm writes an algebraic payload: the value under its declared
// type, or unit when the arm declares none.
func encodeArm(enc *codec.Encoder, payload value.Value, t wit.Type, depth int) error {
	if t == nil {
		if payload != nil {
			return mismatch("unit", payload)
		}
		return enc.Unit()
	}
	if payload == nil {
		return mismatch(typeName(t), nil)
	}
	return encode(enc, payload, t, depth+1)
}

func mismatch(expected string, v value.Value) error {
	got := "<nil>"
	if v != nil {
		got = v.Kind()
	}
	return &MismatchError{Expected: expected, Got: got}
}

func typeName(t wit.Type) string {
	if td, ok := t.(*wit.TypeDef); ok {
		return fmt.Sprintf("%T", td.Kind)
	}
	return fmt.Sprintf("%T", t)
}

func findCase(cases []wit.Case, name string) *wit.Case {
	for i := range cases {
		if cases[i].Name == name {
			return &cases[i]
		}
	}
	return nil
}

func hasEnumCase(cases []wit.EnumCase, name string) bool {
	for _, c := range cases {
		if c.Name == name {
			return true
		}
	}
	return false
}

func hasFlag(flags []wit.Flag, name string) bool {
	for _, f := range flags {
		if f.Name == name {
			return true
		}
	}
	return false
}

// EncodeFunc encodes values under a signature's parameter types.
func EncodeFunc(f *schema.Func, args []value.Value) ([]byte, error) {
	return EncodeSlab(args, f.Params)
}

// DecodeResults decodes a result slab under a signature's result types.
func DecodeResults(f *schema.Func, slab []byte) ([]value.Value, error) {
	return DecodeSlab(slab, f.Results)
}
