package engine

import (
	"context"
	"math"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/mesh-runtime/value"
)

// flatReader walks the core values of a flat call frame.
type flatReader struct {
	vals []uint64
	pos  int
}

func (r *flatReader) next() uint64 {
	if r.pos >= len(r.vals) {
		return 0
	}
	v := r.vals[r.pos]
	r.pos++
	return v
}

// flatWidth returns how many core slots the type occupies flat.
func flatWidth(t wit.Type) (int, error) {
	flat, err := flatten(t)
	if err != nil {
		return 0, err
	}
	return len(flat), nil
}

// lowerFlat converts one value into its flat core representation,
// allocating guest memory for blob-like contents.
func (m *memio) lowerFlat(ctx context.Context, v value.Value, t wit.Type) ([]uint64, error) {
	if td, ok := t.(*wit.TypeDef); ok {
		return m.lowerFlatTypeDef(ctx, v, td)
	}

	switch t.(type) {
	case wit.Bool:
		b, _ := v.(value.Bool)
		if b {
			return []uint64{1}, nil
		}
		return []uint64{0}, nil
	case wit.U8:
		n, _ := v.(value.U8)
		return []uint64{uint64(n)}, nil
	case wit.U16:
		n, _ := v.(value.U16)
		return []uint64{uint64(n)}, nil
	case wit.U32:
		n, _ := v.(value.U32)
		return []uint64{uint64(n)}, nil
	case wit.U64:
		n, _ := v.(value.U64)
		return []uint64{uint64(n)}, nil
	case wit.S8:
		n, _ := v.(value.S8)
		return []uint64{uint64(uint32(int32(n)))}, nil
	case wit.S16:
		n, _ := v.(value.S16)
		return []uint64{uint64(uint32(int32(n)))}, nil
	case wit.S32:
		n, _ := v.(value.S32)
		return []uint64{uint64(uint32(n))}, nil
	case wit.S64:
		n, _ := v.(value.S64)
		return []uint64{uint64(n)}, nil
	case wit.F32:
		f, _ := v.(value.F32)
		return []uint64{uint64(math.Float32bits(float32(f)))}, nil
	case wit.F64:
		f, _ := v.(value.F64)
		return []uint64{math.Float64bits(float64(f))}, nil
	case wit.Char:
		c, _ := v.(value.Char)
		return []uint64{uint64(uint32(c))}, nil
	case wit.String:
		s, _ := v.(value.Str)
		ptr, err := m.storeBytes(ctx, []byte(s), 1)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(ptr), uint64(len(s))}, nil
	}
	return nil, &UnsupportedError{What: "unknown primitive"}
}

func (m *memio) lowerFlatTypeDef(ctx context.Context, v value.Value, td *wit.TypeDef) ([]uint64, error) {
	switch k := td.Kind.(type) {
	case *wit.List:
		ptr, count, err := m.lowerList(ctx, v, k.Type)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(ptr), uint64(count)}, nil

	case *wit.Record:
		rec, _ := v.(value.Record)
		var flat []uint64
		for i, f := range k.Fields {
			fv, err := m.lowerFlat(ctx, rec[i].Value, f.Type)
			if err != nil {
				return nil, err
			}
			flat = append(flat, fv...)
		}
		return flat, nil

	case *wit.Tuple:
		tup, _ := v.(value.Tuple)
		var flat []uint64
		for i, et := range k.Types {
			fv, err := m.lowerFlat(ctx, tup[i], et)
			if err != nil {
				return nil, err
			}
			flat = append(flat, fv...)
		}
		return flat, nil

	case *wit.Option:
		opt, _ := v.(value.Option)
		width, err := flatWidth(td)
		if err != nil {
			return nil, err
		}
		flat := make([]uint64, 1, width)
		if opt.Some != nil {
			flat[0] = 1
			pv, err := m.lowerFlat(ctx, opt.Some, k.Type)
			if err != nil {
				return nil, err
			}
			flat = append(flat, pv...)
		}
		return padFlat(flat, width), nil

	case *wit.Result:
		res, _ := v.(value.Result)
		width, err := flatWidth(td)
		if err != nil {
			return nil, err
		}
		flat := make([]uint64, 1, width)
		armType := k.OK
		if !res.OK {
			flat[0] = 1
			armType = k.Err
		}
		if armType != nil && res.Payload != nil {
			pv, err := m.lowerFlat(ctx, res.Payload, armType)
			if err != nil {
				return nil, err
			}
			flat = append(flat, pv...)
		}
		return padFlat(flat, width), nil

	case *wit.Variant:
		vr, _ := v.(value.Variant)
		width, err := flatWidth(td)
		if err != nil {
			return nil, err
		}
		idx := -1
		for i, c := range k.Cases {
			if c.Name == vr.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, &UnsupportedError{What: "unknown variant case " + vr.Name}
		}
		flat := make([]uint64, 1, width)
		flat[0] = uint64(idx)
		if caseType := k.Cases[idx].Type; caseType != nil && vr.Payload != nil {
			pv, err := m.lowerFlat(ctx, vr.Payload, caseType)
			if err != nil {
				return nil, err
			}
			flat = append(flat, pv...)
		}
		return padFlat(flat, width), nil

	case *wit.Enum:
		e, _ := v.(value.Enum)
		for i, c := range k.Cases {
			if c.Name == string(e) {
				return []uint64{uint64(i)}, nil
			}
		}
		return nil, &UnsupportedError{What: "unknown enum case " + string(e)}

	case *wit.Flags:
		f, _ := v.(value.Flags)
		bits, err := flagBits(k, f)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(bits)}, nil
	}
	return nil, &UnsupportedError{What: "resource at guest boundary"}
}

func padFlat(flat []uint64, width int) []uint64 {
	for len(flat) < width {
		flat = append(flat, 0)
	}
	return flat
}

// liftFlat converts flat core values back into one runtime value.
func (m *memio) liftFlat(ctx context.Context, r *flatReader, t wit.Type) (value.Value, error) {
	if td, ok := t.(*wit.TypeDef); ok {
		return m.liftFlatTypeDef(ctx, r, td)
	}

	switch t.(type) {
	case wit.Bool:
		return value.Bool(r.next() != 0), nil
	case wit.U8:
		return value.U8(uint8(r.next())), nil
	case wit.U16:
		return value.U16(uint16(r.next())), nil
	case wit.U32:
		return value.U32(uint32(r.next())), nil
	case wit.U64:
		return value.U64(r.next()), nil
	case wit.S8:
		return value.S8(int8(uint8(r.next()))), nil
	case wit.S16:
		return value.S16(int16(uint16(r.next()))), nil
	case wit.S32:
		return value.S32(int32(uint32(r.next()))), nil
	case wit.S64:
		return value.S64(int64(r.next())), nil
	case wit.F32:
		return value.F32(math.Float32frombits(uint32(r.next()))), nil
	case wit.F64:
		return value.F64(math.Float64frombits(r.next())), nil
	case wit.Char:
		return value.Char(rune(uint32(r.next()))), nil
	case wit.String:
		ptr := uint32(r.next())
		n := uint32(r.next())
		return m.loadString(ptr, n)
	}
	return nil, &UnsupportedError{What: "unknown primitive"}
}

func (m *memio) liftFlatTypeDef(ctx context.Context, r *flatReader, td *wit.TypeDef) (value.Value, error) {
	switch k := td.Kind.(type) {
	case *wit.List:
		ptr := uint32(r.next())
		count := uint32(r.next())
		return m.liftList(ctx, k.Type, ptr, count)

	case *wit.Record:
		rec := make(value.Record, 0, len(k.Fields))
		for _, f := range k.Fields {
			v, err := m.liftFlat(ctx, r, f.Type)
			if err != nil {
				return nil, err
			}
			rec = append(rec, value.Field{Name: f.Name, Value: v})
		}
		return rec, nil

	case *wit.Tuple:
		tup := make(value.Tuple, 0, len(k.Types))
		for _, et := range k.Types {
			v, err := m.liftFlat(ctx, r, et)
			if err != nil {
				return nil, err
			}
			tup = append(tup, v)
		}
		return tup, nil

	case *wit.Option:
		width, err := flatWidth(td)
		if err != nil {
			return nil, err
		}
		start := r.pos
		disc := r.next()
		var out value.Value = value.Option{}
		if disc != 0 {
			pv, err := m.liftFlat(ctx, r, k.Type)
			if err != nil {
				return nil, err
			}
			out = value.Option{Some: pv}
		}
		r.pos = start + width
		return out, nil

	case *wit.Result:
		width, err := flatWidth(td)
		if err != nil {
			return nil, err
		}
		start := r.pos
		disc := r.next()
		isOK := disc == 0
		armType := k.OK
		if !isOK {
			armType = k.Err
		}
		res := value.Result{OK: isOK}
		if armType != nil {
			pv, err := m.liftFlat(ctx, r, armType)
			if err != nil {
				return nil, err
			}
			res.Payload = pv
		}
		r.pos = start + width
		return res, nil

	case *wit.Variant:
		width, err := flatWidth(td)
		if err != nil {
			return nil, err
		}
		start := r.pos
		idx := int(uint32(r.next()))
		if idx >= len(k.Cases) {
			return nil, &UnsupportedError{What: "variant discriminant out of range"}
		}
		c := k.Cases[idx]
		out := value.Variant{Name: c.Name}
		if c.Type != nil {
			pv, err := m.liftFlat(ctx, r, c.Type)
			if err != nil {
				return nil, err
			}
			out.Payload = pv
		}
		r.pos = start + width
		return out, nil

	case *wit.Enum:
		idx := int(uint32(r.next()))
		if idx >= len(k.Cases) {
			return nil, &UnsupportedError{What: "enum discriminant out of range"}
		}
		return value.Enum(k.Cases[idx].Name), nil

	case *wit.Flags:
		return flagsFromBits(k, uint32(r.next())), nil
	}
	return nil, &UnsupportedError{What: "resource at guest boundary"}
}
