package engine

import (
	"context"
	"math"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/mesh-runtime/value"
)

// load reads one value at offset per the type's linear-memory layout.
func (m *memio) load(ctx context.Context, t wit.Type, offset uint32) (value.Value, error) {
	if td, ok := t.(*wit.TypeDef); ok {
		return m.loadTypeDef(ctx, td, offset)
	}

	switch t.(type) {
	case wit.Bool:
		b, ok := m.mem.ReadByte(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return value.Bool(b != 0), nil
	case wit.U8:
		b, ok := m.mem.ReadByte(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return value.U8(b), nil
	case wit.S8:
		b, ok := m.mem.ReadByte(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return value.S8(int8(b)), nil
	case wit.U16:
		n, ok := m.mem.ReadUint16Le(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return value.U16(n), nil
	case wit.S16:
		n, ok := m.mem.ReadUint16Le(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return value.S16(int16(n)), nil
	case wit.U32:
		n, ok := m.mem.ReadUint32Le(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return value.U32(n), nil
	case wit.S32:
		n, ok := m.mem.ReadUint32Le(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return value.S32(int32(n)), nil
	case wit.Char:
		n, ok := m.mem.ReadUint32Le(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return value.Char(rune(n)), nil
	case wit.U64:
		n, ok := m.mem.ReadUint64Le(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return value.U64(n), nil
	case wit.S64:
		n, ok := m.mem.ReadUint64Le(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return value.S64(int64(n)), nil
	case wit.F32:
		n, ok := m.mem.ReadUint32Le(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return value.F32(math.Float32frombits(n)), nil
	case wit.F64:
		n, ok := m.mem.ReadUint64Le(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return value.F64(math.Float64frombits(n)), nil
	case wit.String:
		ptr, ok1 := m.mem.ReadUint32Le(offset)
		n, ok2 := m.mem.ReadUint32Le(offset + 4)
		if !ok1 || !ok2 {
			return nil, ErrMemoryAccess
		}
		return m.loadString(ptr, n)
	}
	return nil, &UnsupportedError{What: "unknown primitive"}
}

func (m *memio) loadString(ptr, n uint32) (value.Value, error) {
	if n == 0 {
		return value.Str(""), nil
	}
	b, ok := m.mem.Read(ptr, n)
	if !ok {
		return nil, ErrMemoryAccess
	}
	return value.Str(b), nil
}

func (m *memio) loadTypeDef(ctx context.Context, td *wit.TypeDef, offset uint32) (value.Value, error) {
	switch k := td.Kind.(type) {
	case *wit.List:
		ptr, ok1 := m.mem.ReadUint32Le(offset)
		n, ok2 := m.mem.ReadUint32Le(offset + 4)
		if !ok1 || !ok2 {
			return nil, ErrMemoryAccess
		}
		return m.liftList(ctx, k.Type, ptr, n)

	case *wit.Record:
		rec := make(value.Record, 0, len(k.Fields))
		var cursor uint32
		for _, f := range k.Fields {
			fl, err := layoutOf(f.Type)
			if err != nil {
				return nil, err
			}
			cursor = alignTo(cursor, fl.align)
			v, err := m.load(ctx, f.Type, offset+cursor)
			if err != nil {
				return nil, err
			}
			rec = append(rec, value.Field{Name: f.Name, Value: v})
			cursor += fl.size
		}
		return rec, nil

	case *wit.Tuple:
		tup := make(value.Tuple, 0, len(k.Types))
		var cursor uint32
		for _, et := range k.Types {
			fl, err := layoutOf(et)
			if err != nil {
				return nil, err
			}
			cursor = alignTo(cursor, fl.align)
			v, err := m.load(ctx, et, offset+cursor)
			if err != nil {
				return nil, err
			}
			tup = append(tup, v)
			cursor += fl.size
		}
		return tup, nil

	case *wit.Option:
		disc, ok := m.mem.ReadByte(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		if disc == 0 {
			return value.Option{}, nil
		}
		pl, err := layoutOf(k.Type)
		if err != nil {
			return nil, err
		}
		v, err := m.load(ctx, k.Type, offset+payloadOffset(1, pl.align))
		if err != nil {
			return nil, err
		}
		return value.Option{Some: v}, nil

	case *wit.Result:
		disc, ok := m.mem.ReadByte(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		isOK := disc == 0
		armType := k.OK
		if !isOK {
			armType = k.Err
		}
		if armType == nil {
			return value.Result{OK: isOK}, nil
		}
		_, pAlign, err := armsLayout(k.OK, k.Err)
		if err != nil {
			return nil, err
		}
		v, err := m.load(ctx, armType, offset+payloadOffset(1, pAlign))
		if err != nil {
			return nil, err
		}
		return value.Result{OK: isOK, Payload: v}, nil

	case *wit.Variant:
		d := discSize(len(k.Cases))
		idx, err := m.loadDisc(offset, d)
		if err != nil {
			return nil, err
		}
		if int(idx) >= len(k.Cases) {
			return nil, &UnsupportedError{What: "variant discriminant out of range"}
		}
		c := k.Cases[idx]
		if c.Type == nil {
			return value.Variant{Name: c.Name}, nil
		}
		types := make([]wit.Type, len(k.Cases))
		for i, cs := range k.Cases {
			types[i] = cs.Type
		}
		_, pAlign, err := armsLayout(types...)
		if err != nil {
			return nil, err
		}
		v, err := m.load(ctx, c.Type, offset+payloadOffset(d, pAlign))
		if err != nil {
			return nil, err
		}
		return value.Variant{Name: c.Name, Payload: v}, nil

	case *wit.Enum:
		idx, err := m.loadDisc(offset, discSize(len(k.Cases)))
		if err != nil {
			return nil, err
		}
		if int(idx) >= len(k.Cases) {
			return nil, &UnsupportedError{What: "enum discriminant out of range"}
		}
		return value.Enum(k.Cases[idx].Name), nil

	case *wit.Flags:
		bits, ok := m.mem.ReadUint32Le(offset)
		if !ok {
			return nil, ErrMemoryAccess
		}
		return flagsFromBits(k, bits), nil
	}
	return nil, &UnsupportedError{What: "resource in memory image"}
}

func (m *memio) loadDisc(offset, width uint32) (uint32, error) {
	switch width {
	case 1:
		b, ok := m.mem.ReadByte(offset)
		if !ok {
			return 0, ErrMemoryAccess
		}
		return uint32(b), nil
	case 2:
		n, ok := m.mem.ReadUint16Le(offset)
		if !ok {
			return 0, ErrMemoryAccess
		}
		return uint32(n), nil
	}
	n, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, ErrMemoryAccess
	}
	return n, nil
}

// liftList reads list contents out of guest memory. Byte lists lift to a
// blob value.
func (m *memio) liftList(ctx context.Context, elem wit.Type, ptr, count uint32) (value.Value, error) {
	if _, isU8 := elem.(wit.U8); isU8 {
		if count == 0 {
			return value.Bytes{}, nil
		}
		b, ok := m.mem.Read(ptr, count)
		if !ok {
			return nil, ErrMemoryAccess
		}
		out := make(value.Bytes, count)
		copy(out, b)
		return out, nil
	}
	el, err := layoutOf(elem)
	if err != nil {
		return nil, err
	}
	stride := alignTo(el.size, el.align)
	items := make(value.List, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := m.load(ctx, elem, ptr+i*stride)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func flagsFromBits(k *wit.Flags, bits uint32) value.Flags {
	var active value.Flags
	for i, f := range k.Flags {
		if bits&(1<<uint(i)) != 0 {
			active = append(active, f.Name)
		}
	}
	return active
}
