package engine

import (
	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
)

// Flattening rules for the guest calling convention. Signatures whose flat
// form exceeds these widths spill through linear memory: parameters as a
// single pointer to a tuple, results as a trailing return-pointer argument.
const (
	maxFlatParams  = 16
	maxFlatResults = 1
)

// flatten returns the core value types one vocabulary type occupies in the
// flat calling convention.
func flatten(t wit.Type) ([]api.ValueType, error) {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		switch t.(type) {
		case wit.U64, wit.S64:
			return []api.ValueType{api.ValueTypeI64}, nil
		case wit.F32:
			return []api.ValueType{api.ValueTypeF32}, nil
		case wit.F64:
			return []api.ValueType{api.ValueTypeF64}, nil
		case wit.String:
			return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
		default: // bool, u8..u32, s8..s32, char
			return []api.ValueType{api.ValueTypeI32}, nil
		}
	}

	switch k := td.Kind.(type) {
	case *wit.List:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, nil
	case *wit.Record:
		var flat []api.ValueType
		for _, f := range k.Fields {
			ft, err := flatten(f.Type)
			if err != nil {
				return nil, err
			}
			flat = append(flat, ft...)
		}
		return flat, nil
	case *wit.Tuple:
		var flat []api.ValueType
		for _, et := range k.Types {
			ft, err := flatten(et)
			if err != nil {
				return nil, err
			}
			flat = append(flat, ft...)
		}
		return flat, nil
	case *wit.Option:
		payload, err := flatten(k.Type)
		if err != nil {
			return nil, err
		}
		return append([]api.ValueType{api.ValueTypeI32}, payload...), nil
	case *wit.Result:
		return flattenCases(k.OK, k.Err)
	case *wit.Variant:
		types := make([]wit.Type, len(k.Cases))
		for i, c := range k.Cases {
			types[i] = c.Type
		}
		return flattenCases(types...)
	case *wit.Enum:
		return []api.ValueType{api.ValueTypeI32}, nil
	case *wit.Flags:
		if len(k.Flags) > 32 {
			return nil, &UnsupportedError{What: "flags wider than 32 names"}
		}
		return []api.ValueType{api.ValueTypeI32}, nil
	case *wit.Own, *wit.Borrow:
		return []api.ValueType{api.ValueTypeI32}, nil
	}
	return nil, &UnsupportedError{What: "unknown type"}
}

// flattenCases computes a variant's flat form: an i32 discriminant followed
// by the case payloads joined slot-by-slot.
func flattenCases(cases ...wit.Type) ([]api.ValueType, error) {
	var joined []api.ValueType
	for _, c := range cases {
		if c == nil {
			continue
		}
		flat, err := flatten(c)
		if err != nil {
			return nil, err
		}
		for i, vt := range flat {
			if i < len(joined) {
				joined[i] = join(joined[i], vt)
			} else {
				joined = append(joined, vt)
			}
		}
	}
	return append([]api.ValueType{api.ValueTypeI32}, joined...), nil
}

// join unifies two core types occupying the same variant slot.
func join(a, b api.ValueType) api.ValueType {
	if a == b {
		return a
	}
	if (a == api.ValueTypeI32 && b == api.ValueTypeF32) ||
		(a == api.ValueTypeF32 && b == api.ValueTypeI32) {
		return api.ValueTypeI32
	}
	return api.ValueTypeI64
}

func flattenTypes(ts []wit.Type) ([]api.ValueType, error) {
	var flat []api.ValueType
	for _, t := range ts {
		ft, err := flatten(t)
		if err != nil {
			return nil, err
		}
		flat = append(flat, ft...)
	}
	return flat, nil
}

// signature is the resolved calling convention for one function.
type signature struct {
	params  []wit.Type
	results []wit.Type

	flatParams  []api.ValueType
	flatResults []api.ValueType

	paramsSpilled  bool // params ride in memory behind one i32 pointer
	resultsSpilled bool // results ride in memory behind a trailing retptr
}

func newSignature(params, results []wit.Type) (*signature, error) {
	s := &signature{params: params, results: results}

	fp, err := flattenTypes(params)
	if err != nil {
		return nil, err
	}
	if len(fp) > maxFlatParams {
		s.paramsSpilled = true
		fp = []api.ValueType{api.ValueTypeI32}
	}

	fr, err := flattenTypes(results)
	if err != nil {
		return nil, err
	}
	if len(fr) > maxFlatResults {
		s.resultsSpilled = true
		fp = append(fp, api.ValueTypeI32)
		fr = nil
	}

	s.flatParams = fp
	s.flatResults = fr
	return s, nil
}

// layout is the linear-memory footprint of one type.
type layout struct {
	size  uint32
	align uint32
}

func alignTo(x, a uint32) uint32 {
	return (x + a - 1) &^ (a - 1)
}

// discSize returns the discriminant width for a case count.
func discSize(cases int) uint32 {
	switch {
	case cases <= 1<<8:
		return 1
	case cases <= 1<<16:
		return 2
	}
	return 4
}

func layoutOf(t wit.Type) (layout, error) {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		switch t.(type) {
		case wit.Bool, wit.U8, wit.S8:
			return layout{size: 1, align: 1}, nil
		case wit.U16, wit.S16:
			return layout{size: 2, align: 2}, nil
		case wit.U64, wit.S64, wit.F64:
			return layout{size: 8, align: 8}, nil
		case wit.String:
			return layout{size: 8, align: 4}, nil
		default: // u32, s32, f32, char
			return layout{size: 4, align: 4}, nil
		}
	}

	switch k := td.Kind.(type) {
	case *wit.List:
		return layout{size: 8, align: 4}, nil
	case *wit.Record:
		var size, align uint32 = 0, 1
		for _, f := range k.Fields {
			fl, err := layoutOf(f.Type)
			if err != nil {
				return layout{}, err
			}
			size = alignTo(size, fl.align) + fl.size
			if fl.align > align {
				align = fl.align
			}
		}
		return layout{size: alignTo(size, align), align: align}, nil
	case *wit.Tuple:
		var size, align uint32 = 0, 1
		for _, et := range k.Types {
			fl, err := layoutOf(et)
			if err != nil {
				return layout{}, err
			}
			size = alignTo(size, fl.align) + fl.size
			if fl.align > align {
				align = fl.align
			}
		}
		return layout{size: alignTo(size, align), align: align}, nil
	case *wit.Option:
		return variantLayout(1, k.Type)
	case *wit.Result:
		return variantLayout(1, k.OK, k.Err)
	case *wit.Variant:
		types := make([]wit.Type, len(k.Cases))
		for i, c := range k.Cases {
			types[i] = c.Type
		}
		return variantLayout(discSize(len(k.Cases)), types...)
	case *wit.Enum:
		d := discSize(len(k.Cases))
		return layout{size: d, align: d}, nil
	case *wit.Flags:
		if len(k.Flags) > 32 {
			return layout{}, &UnsupportedError{What: "flags wider than 32 names"}
		}
		return layout{size: 4, align: 4}, nil
	case *wit.Own, *wit.Borrow:
		return layout{size: 4, align: 4}, nil
	}
	return layout{}, &UnsupportedError{What: "unknown type"}
}

// variantLayout computes discriminant-plus-payload layout: the payload sits
// at the first aligned offset past the discriminant, sized for the widest
// case.
func variantLayout(disc uint32, cases ...wit.Type) (layout, error) {
	var payloadSize, payloadAlign uint32 = 0, 1
	for _, c := range cases {
		if c == nil {
			continue
		}
		cl, err := layoutOf(c)
		if err != nil {
			return layout{}, err
		}
		if cl.size > payloadSize {
			payloadSize = cl.size
		}
		if cl.align > payloadAlign {
			payloadAlign = cl.align
		}
	}
	align := disc
	if payloadAlign > align {
		align = payloadAlign
	}
	size := alignTo(alignTo(disc, payloadAlign)+payloadSize, align)
	return layout{size: size, align: align}, nil
}

// payloadOffset returns where a variant payload begins given the
// discriminant width and the payload alignment.
func payloadOffset(disc, payloadAlign uint32) uint32 {
	return alignTo(disc, payloadAlign)
}
