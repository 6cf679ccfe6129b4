package transcode

import (
	"fmt"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/mesh-runtime/codec"
	"github.com/wippyai/mesh-runtime/value"
)

func decode(dec *codec.Decoder, t wit.Type, depth int) (value.Value, error) {
	if depth > maxDepth {
		return nil, ErrDepthExceeded
	}

	if td, ok := t.(*wit.TypeDef); ok {
		return decodeTypeDef(dec, td, depth)
	}

	switch t.(type) {
	case wit.Bool:
		v, err := dec.Bool()
		return value.Bool(v), err
	case wit.U8:
		v, err := dec.U8()
		return value.U8(v), err
	case wit.U16:
		v, err := dec.U16()
		return value.U16(v), err
	case wit.U32:
		v, err := dec.U32()
		return value.U32(v), err
	case wit.U64:
		v, err := dec.U64()
		return value.U64(v), err
	case wit.S8:
		v, err := dec.S8()
		return value.S8(v), err
	case wit.S16:
		v, err := dec.S16()
		return value.S16(v), err
	case wit.S32:
		v, err := dec.S32()
		return value.S32(v), err
	case wit.S64:
		v, err := dec.S64()
		return value.S64(v), err
	case wit.F32:
		v, err := dec.F32()
		return value.F32(v), err
	case wit.F64:
		v, err := dec.F64()
		return value.F64(v), err
	case wit.Char:
		v, err := dec.Char()
		return value.Char(v), err
	case wit.String:
		v, err := dec.Str()
		return value.Str(v), err
	}
	return nil, &MismatchError{Expected: fmt.Sprintf("%T", t), Got: "unknown type"}
}

func decodeTypeDef(dec *codec.Decoder, td *wit.TypeDef, depth int) (value.Value, error) {
	switch k := td.Kind.(type) {
	case *wit.Own, *wit.Borrow:
		return nil, ErrResourceValue

	case *wit.List:
		// list<u8> may ride as a blob; accept either framing.
		if _, isU8 := k.Type.(wit.U8); isU8 {
			if tag, err := dec.Peek(); err == nil && tag == codec.TagBytes {
				b, err := dec.Blob()
				if err != nil {
					return nil, err
				}
				out := make(value.Bytes, len(b))
				copy(out, b)
				return out, nil
			}
		}
		it, err := dec.List()
		if err != nil {
			return nil, err
		}
		var items value.List
		for it.More() {
			item, err := it.Next()
			if err != nil {
				return nil, err
			}
			v, err := decode(item, k.Type, depth+1)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil

	case *wit.Record:
		it, err := dec.List()
		if err != nil {
			return nil, err
		}
		rec := make(value.Record, 0, len(k.Fields))
		for _, f := range k.Fields {
			if !it.More() {
				return nil, &ArityError{Expected: len(k.Fields), Got: len(rec)}
			}
			item, err := it.Next()
			if err != nil {
				return nil, err
			}
			v, err := decode(item, f.Type, depth+1)
			if err != nil {
				return nil, err
			}
			rec = append(rec, value.Field{Name: f.Name, Value: v})
		}
		if it.More() {
			return nil, &ArityError{Expected: len(k.Fields), Got: len(k.Fields) + 1}
		}
		return rec, nil

	case *wit.Tuple:
		it, err := dec.List()
		if err != nil {
			return nil, err
		}
		tup := make(value.Tuple, 0, len(k.Types))
		for _, et := range k.Types {
			if !it.More() {
				return nil, &ArityError{Expected: len(k.Types), Got: len(tup)}
			}
			item, err := it.Next()
			if err != nil {
				return nil, err
			}
			v, err := decode(item, et, depth+1)
			if err != nil {
				return nil, err
			}
			tup = append(tup, v)
		}
		if it.More() {
			return nil, &ArityError{Expected: len(k.Types), Got: len(k.Types) + 1}
		}
		return tup, nil

	case *wit.Option:
		payload, some, err := dec.Option()
		if err != nil {
			return nil, err
		}
		if !some {
			return value.Option{}, nil
		}
		v, err := decode(payload, k.Type, depth+1)
		if err != nil {
			return nil, err
		}
		return value.Option{Some: v}, nil

	case *wit.Result:
		payload, ok, err := dec.Result()
		if err != nil {
			return nil, err
		}
		armType := k.OK
		if !ok {
			armType = k.Err
		}
		v, err := decodeArm(payload, armType, depth)
		if err != nil {
			return nil, err
		}
		return value.Result{OK: ok, Payload: v}, nil

	case *wit.Variant:
		name, payload, err := dec.Variant()
		if err != nil {
			return nil, err
		}
		c := findCase(k.Cases, name)
		if c == nil {
			return nil, &UnknownCaseError{Name: name}
		}
		v, err := decodeArm(payload, c.Type, depth)
		if err != nil {
			return nil, err
		}
		return value.Variant{Name: name, Payload: v}, nil

	case *wit.Enum:
		name, payload, err := dec.Variant()
		if err != nil {
			return nil, err
		}
		if err := payload.Unit(); err != nil {
			return nil, err
		}
		if !hasEnumCase(k.Cases, name) {
			return nil, &UnknownCaseError{Name: name}
		}
		return value.Enum(name), nil

	case *wit.Flags:
		it, err := dec.List()
		if err != nil {
			return nil, err
		}
		var active value.Flags
		for it.More() {
			item, err := it.Next()
			if err != nil {
				return nil, err
			}
			name, err := item.Str()
			if err != nil {
				return nil, err
			}
			if !hasFlag(k.Flags, name) {
				return nil, &UnknownCaseError{Name: name}
			}
			active = append(active, name)
		}
		return active, nil
	}
	return nil, &MismatchError{Expected: fmt.Sprintf("%T", td.Kind), Got: "unknown type"}
}

// decodeArm reads an algebraic payload: a value under the declared type,
// or unit when the arm declares none.
func decodeArm(dec *codec.Decoder, t wit.Type, depth int) (value.Value, error) {
	if t == nil {
		if err := dec.Unit(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return decode(dec, t, depth+1)
}
