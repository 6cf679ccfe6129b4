package schema

import (
	"go.bytecodealliance.org/wit"
)

// EqualFunc reports whether two signatures are structurally equal: same
// parameter and result types, in order. Record field names and order
// matter; variant, enum, and flags case order matters.
func EqualFunc(a, b *Func) bool {
	return equalTypes(a.Params, b.Params) && equalTypes(a.Results, b.Results)
}

// EqualType reports structural equality of two type trees.
func EqualType(a, b wit.Type) bool {
	return equalType(a, b)
}

// ValidateCompatibility checks that every function the importer requires is
// exported by the target with a structurally equal signature. Used at
// local-link bind time; a mismatch fails instantiation, not invocation.
func ValidateCompatibility(imp, exp *Interface) error {
	for _, name := range imp.Order {
		impFn := imp.Funcs[name]
		expFn, ok := exp.Funcs[name]
		if !ok {
			return &MismatchError{
				Interface: imp.Name,
				Func:      name,
				Detail:    "function not found in target's exports",
			}
		}
		if !EqualFunc(impFn, expFn) {
			return &MismatchError{
				Interface: imp.Name,
				Func:      name,
				Detail:    "signature differs from target's export",
			}
		}
	}
	return nil
}

func equalTypes(a, b []wit.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !equalType(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalType(a, b wit.Type) bool {
	ad, aIsDef := a.(*wit.TypeDef)
	bd, bIsDef := b.(*wit.TypeDef)
	if aIsDef != bIsDef {
		return false
	}
	if !aIsDef {
		// Primitives are empty value types; identical dynamic type means
		// identical type.
		return a == b
	}
	return equalKind(ad.Kind, bd.Kind)
}

func equalKind(a, b wit.TypeDefKind) bool {
	switch ak := a.(type) {
	case *wit.Record:
		bk, ok := b.(*wit.Record)
		if !ok || len(ak.Fields) != len(bk.Fields) {
			return false
		}
		for i := range ak.Fields {
			if ak.Fields[i].Name != bk.Fields[i].Name {
				return false
			}
			if !equalType(ak.Fields[i].Type, bk.Fields[i].Type) {
				return false
			}
		}
		return true

	case *wit.List:
		bk, ok := b.(*wit.List)
		return ok && equalType(ak.Type, bk.Type)

	case *wit.Tuple:
		bk, ok := b.(*wit.Tuple)
		if !ok || len(ak.Types) != len(bk.Types) {
			return false
		}
		for i := range ak.Types {
			if !equalType(ak.Types[i], bk.Types[i]) {
				return false
			}
		}
		return true

	case *wit.Option:
		bk, ok := b.(*wit.Option)
		return ok && equalType(ak.Type, bk.Type)

	case *wit.Result:
		bk, ok := b.(*wit.Result)
		if !ok {
			return false
		}
		return equalArm(ak.OK, bk.OK) && equalArm(ak.Err, bk.Err)

	case *wit.Variant:
		bk, ok := b.(*wit.Variant)
		if !ok || len(ak.Cases) != len(bk.Cases) {
			return false
		}
		for i := range ak.Cases {
			if ak.Cases[i].Name != bk.Cases[i].Name {
				return false
			}
			if !equalArm(ak.Cases[i].Type, bk.Cases[i].Type) {
				return false
			}
		}
		return true

	case *wit.Enum:
		bk, ok := b.(*wit.Enum)
		if !ok || len(ak.Cases) != len(bk.Cases) {
			return false
		}
		for i := range ak.Cases {
			if ak.Cases[i].Name != bk.Cases[i].Name {
				return false
			}
		}
		return true

	case *wit.Flags:
		bk, ok := b.(*wit.Flags)
		if !ok || len(ak.Flags) != len(bk.Flags) {
			return false
		}
		for i := range ak.Flags {
			if ak.Flags[i].Name != bk.Flags[i].Name {
				return false
			}
		}
		return true

	case *wit.Own:
		// Resources are identity-typed and rejected on serializing paths;
		// shape-wise any own matches any own.
		_, ok := b.(*wit.Own)
		return ok

	case *wit.Borrow:
		_, ok := b.(*wit.Borrow)
		return ok
	}
	return false
}

// equalArm compares optional payload types (variant case, result arm).
func equalArm(a, b wit.Type) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return equalType(a, b)
}
