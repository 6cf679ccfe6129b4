package schema

import (
	"go.bytecodealliance.org/wit"
)

// WireSafe reports whether a type tree is pure data: no resource handles
// anywhere. Handles are host-held references and cannot cross a
// serialization boundary, so any link path that may serialize rejects them
// at bind time.
func WireSafe(t wit.Type) error {
	td, ok := t.(*wit.TypeDef)
	if !ok {
		return nil // primitives are always wire-safe
	}
	switch k := td.Kind.(type) {
	case *wit.Own, *wit.Borrow:
		return ErrResourceInSignature
	case *wit.Record:
		for _, f := range k.Fields {
			if err := WireSafe(f.Type); err != nil {
				return err
			}
		}
	case *wit.List:
		return WireSafe(k.Type)
	case *wit.Tuple:
		for _, t := range k.Types {
			if err := WireSafe(t); err != nil {
				return err
			}
		}
	case *wit.Option:
		return WireSafe(k.Type)
	case *wit.Result:
		if k.OK != nil {
			if err := WireSafe(k.OK); err != nil {
				return err
			}
		}
		if k.Err != nil {
			if err := WireSafe(k.Err); err != nil {
				return err
			}
		}
	case *wit.Variant:
		for _, c := range k.Cases {
			if c.Type != nil {
				if err := WireSafe(c.Type); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// WireSafeFunc checks every parameter and result type of a signature.
func WireSafeFunc(f *Func) error {
	for _, t := range f.Params {
		if err := WireSafe(t); err != nil {
			return err
		}
	}
	for _, t := range f.Results {
		if err := WireSafe(t); err != nil {
			return err
		}
	}
	return nil
}
