package engine

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/mesh-runtime/value"
)

// memio lifts and lowers values across one module's linear memory, using
// the guest's exported allocator for anything that does not fit in flat
// core values.
type memio struct {
	mem   api.Memory
	alloc api.Function
}

func newMemio(mod api.Module, alloc api.Function) *memio {
	return &memio{mem: mod.Memory(), alloc: alloc}
}

// allocate obtains size bytes of guest memory with the given alignment via
// cabi_realloc semantics: realloc(0, 0, align, size).
func (m *memio) allocate(ctx context.Context, size, align uint32) (uint32, error) {
	if size == 0 {
		return 0, nil
	}
	if m.alloc == nil {
		return 0, ErrNoAllocator
	}
	var (
		res []uint64
		err error
	)
	// cabi_realloc takes (old-ptr, old-size, align, new-size); legacy
	// single-argument allocators take just the size.
	if len(m.alloc.Definition().ParamTypes()) == 4 {
		res, err = m.alloc.Call(ctx, 0, 0, uint64(align), uint64(size))
	} else {
		res, err = m.alloc.Call(ctx, uint64(size))
	}
	if err != nil {
		return 0, &TrapError{Cause: err}
	}
	ptr := uint32(res[0])
	if ptr == 0 {
		return 0, ErrAllocFailed
	}
	return ptr, nil
}

// store writes one value at offset per the type's linear-memory layout.
func (m *memio) store(ctx context.Context, v value.Value, t wit.Type, offset uint32) error {
	if td, ok := t.(*wit.TypeDef); ok {
		return m.storeTypeDef(ctx, v, td, offset)
	}

	write32 := func(bits uint32) error {
		if !m.mem.WriteUint32Le(offset, bits) {
			return ErrMemoryAccess
		}
		return nil
	}

	switch t.(type) {
	case wit.Bool:
		b, _ := v.(value.Bool)
		var raw byte
		if b {
			raw = 1
		}
		if !m.mem.WriteByte(offset, raw) {
			return ErrMemoryAccess
		}
		return nil
	case wit.U8:
		n, _ := v.(value.U8)
		if !m.mem.WriteByte(offset, byte(n)) {
			return ErrMemoryAccess
		}
		return nil
	case wit.S8:
		n, _ := v.(value.S8)
		if !m.mem.WriteByte(offset, byte(n)) {
			return ErrMemoryAccess
		}
		return nil
	case wit.U16:
		n, _ := v.(value.U16)
		if !m.mem.WriteUint16Le(offset, uint16(n)) {
			return ErrMemoryAccess
		}
		return nil
	case wit.S16:
		n, _ := v.(value.S16)
		if !m.mem.WriteUint16Le(offset, uint16(n)) {
			return ErrMemoryAccess
		}
		return nil
	case wit.U32:
		n, _ := v.(value.U32)
		return write32(uint32(n))
	case wit.S32:
		n, _ := v.(value.S32)
		return write32(uint32(n))
	case wit.Char:
		c, _ := v.(value.Char)
		return write32(uint32(c))
	case wit.U64:
		n, _ := v.(value.U64)
		if !m.mem.WriteUint64Le(offset, uint64(n)) {
			return ErrMemoryAccess
		}
		return nil
	case wit.S64:
		n, _ := v.(value.S64)
		if !m.mem.WriteUint64Le(offset, uint64(n)) {
			return ErrMemoryAccess
		}
		return nil
	case wit.F32:
		f, _ := v.(value.F32)
		return write32(math.Float32bits(float32(f)))
	case wit.F64:
		f, _ := v.(value.F64)
		if !m.mem.WriteUint64Le(offset, math.Float64bits(float64(f))) {
			return ErrMemoryAccess
		}
		return nil
	case wit.String:
		s, _ := v.(value.Str)
		ptr, err := m.storeBytes(ctx, []byte(s), 1)
		if err != nil {
			return err
		}
		if !m.mem.WriteUint32Le(offset, ptr) || !m.mem.WriteUint32Le(offset+4, uint32(len(s))) {
			return ErrMemoryAccess
		}
		return nil
	}
	return &UnsupportedError{What: "unknown primitive"}
}

func (m *memio) storeTypeDef(ctx context.Context, v value.Value, td *wit.TypeDef, offset uint32) error {
	switch k := td.Kind.(type) {
	case *wit.List:
		ptr, count, err := m.lowerList(ctx, v, k.Type)
		if err != nil {
			return err
		}
		if !m.mem.WriteUint32Le(offset, ptr) || !m.mem.WriteUint32Le(offset+4, count) {
			return ErrMemoryAccess
		}
		return nil

	case *wit.Record:
		rec, _ := v.(value.Record)
		off := offset
		var cursor uint32
		for i, f := range k.Fields {
			fl, err := layoutOf(f.Type)
			if err != nil {
				return err
			}
			cursor = alignTo(cursor, fl.align)
			if err := m.store(ctx, rec[i].Value, f.Type, off+cursor); err != nil {
				return err
			}
			cursor += fl.size
		}
		return nil

	case *wit.Tuple:
		tup, _ := v.(value.Tuple)
		var cursor uint32
		for i, et := range k.Types {
			fl, err := layoutOf(et)
			if err != nil {
				return err
			}
			cursor = alignTo(cursor, fl.align)
			if err := m.store(ctx, tup[i], et, offset+cursor); err != nil {
				return err
			}
			cursor += fl.size
		}
		return nil

	case *wit.Option:
		opt, _ := v.(value.Option)
		pl, err := layoutOf(k.Type)
		if err != nil {
			return err
		}
		if opt.Some == nil {
			if !m.mem.WriteByte(offset, 0) {
				return ErrMemoryAccess
			}
			return nil
		}
		if !m.mem.WriteByte(offset, 1) {
			return ErrMemoryAccess
		}
		return m.store(ctx, opt.Some, k.Type, offset+payloadOffset(1, pl.align))

	case *wit.Result:
		res, _ := v.(value.Result)
		var disc byte
		armType := k.OK
		if !res.OK {
			disc = 1
			armType = k.Err
		}
		if !m.mem.WriteByte(offset, disc) {
			return ErrMemoryAccess
		}
		if armType == nil || res.Payload == nil {
			return nil
		}
		_, pAlign, err := armsLayout(k.OK, k.Err)
		if err != nil {
			return err
		}
		return m.store(ctx, res.Payload, armType, offset+payloadOffset(1, pAlign))

	case *wit.Variant:
		vr, _ := v.(value.Variant)
		idx := -1
		for i, c := range k.Cases {
			if c.Name == vr.Name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &UnsupportedError{What: "unknown variant case " + vr.Name}
		}
		d := discSize(len(k.Cases))
		if err := m.storeDisc(offset, d, uint32(idx)); err != nil {
			return err
		}
		caseType := k.Cases[idx].Type
		if caseType == nil || vr.Payload == nil {
			return nil
		}
		types := make([]wit.Type, len(k.Cases))
		for i, c := range k.Cases {
			types[i] = c.Type
		}
		_, pAlign, err := armsLayout(types...)
		if err != nil {
			return err
		}
		return m.store(ctx, vr.Payload, caseType, offset+payloadOffset(d, pAlign))

	case *wit.Enum:
		e, _ := v.(value.Enum)
		idx := -1
		for i, c := range k.Cases {
			if c.Name == string(e) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &UnsupportedError{What: "unknown enum case " + string(e)}
		}
		return m.storeDisc(offset, discSize(len(k.Cases)), uint32(idx))

	case *wit.Flags:
		f, _ := v.(value.Flags)
		bits, err := flagBits(k, f)
		if err != nil {
			return err
		}
		if !m.mem.WriteUint32Le(offset, bits) {
			return ErrMemoryAccess
		}
		return nil
	}
	return &UnsupportedError{What: "resource in memory image"}
}

func (m *memio) storeDisc(offset, width, v uint32) error {
	var ok bool
	switch width {
	case 1:
		ok = m.mem.WriteByte(offset, byte(v))
	case 2:
		ok = m.mem.WriteUint16Le(offset, uint16(v))
	default:
		ok = m.mem.WriteUint32Le(offset, v)
	}
	if !ok {
		return ErrMemoryAccess
	}
	return nil
}

// storeBytes allocates and fills a guest buffer, returning its pointer.
func (m *memio) storeBytes(ctx context.Context, b []byte, align uint32) (uint32, error) {
	if len(b) == 0 {
		return 0, nil
	}
	ptr, err := m.allocate(ctx, uint32(len(b)), align)
	if err != nil {
		return 0, err
	}
	if !m.mem.Write(ptr, b) {
		return 0, ErrMemoryAccess
	}
	return ptr, nil
}

// lowerList materializes list contents in guest memory, returning the
// element pointer and count.
func (m *memio) lowerList(ctx context.Context, v value.Value, elem wit.Type) (ptr, count uint32, err error) {
	if b, ok := v.(value.Bytes); ok {
		ptr, err = m.storeBytes(ctx, []byte(b), 1)
		return ptr, uint32(len(b)), err
	}
	items, ok := v.(value.List)
	if !ok {
		if s, isStr := v.(value.Str); isStr {
			ptr, err = m.storeBytes(ctx, []byte(s), 1)
			return ptr, uint32(len(s)), err
		}
		return 0, 0, &UnsupportedError{What: "value is not a list"}
	}
	el, err := layoutOf(elem)
	if err != nil {
		return 0, 0, err
	}
	if len(items) == 0 {
		return 0, 0, nil
	}
	stride := alignTo(el.size, el.align)
	ptr, err = m.allocate(ctx, stride*uint32(len(items)), el.align)
	if err != nil {
		return 0, 0, err
	}
	for i, item := range items {
		if err := m.store(ctx, item, elem, ptr+uint32(i)*stride); err != nil {
			return 0, 0, err
		}
	}
	return ptr, uint32(len(items)), nil
}

// armsLayout returns the widest payload size and alignment across arms.
func armsLayout(arms ...wit.Type) (size, align uint32, err error) {
	align = 1
	for _, a := range arms {
		if a == nil {
			continue
		}
		al, err := layoutOf(a)
		if err != nil {
			return 0, 0, err
		}
		if al.size > size {
			size = al.size
		}
		if al.align > align {
			align = al.align
		}
	}
	return size, align, nil
}

func flagBits(k *wit.Flags, active value.Flags) (uint32, error) {
	if len(k.Flags) > 32 {
		return 0, &UnsupportedError{What: "flags wider than 32 names"}
	}
	var bits uint32
	for _, name := range active {
		idx := -1
		for i, f := range k.Flags {
			if f.Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return 0, &UnsupportedError{What: "unknown flag " + name}
		}
		bits |= 1 << uint(idx)
	}
	return bits, nil
}
