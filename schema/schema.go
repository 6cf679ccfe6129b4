// Package schema is the ledger of component interfaces: for every imported
// or exported interface, the ordered function signatures in the component
// type vocabulary.
//
// Types are go.bytecodealliance.org/wit types: primitives are value types
// (wit.U32{}, wit.String{}, ...), composites are *wit.TypeDef whose Kind is
// *wit.Record, *wit.List, *wit.Variant, and so on. The ledger is read-only
// after extraction and shared by every instance of a component.
package schema

import (
	"go.bytecodealliance.org/wit"
)

// Func is the signature of one interface function: ordered parameter and
// result types.
type Func struct {
	Name    string
	Params  []wit.Type
	Results []wit.Type
}

// Interface is a named, ordered set of function signatures.
type Interface struct {
	Name  string
	Funcs map[string]*Func
	// Order preserves declaration order of Funcs.
	Order []string
}

// Func looks up a function by name.
func (i *Interface) Func(name string) (*Func, bool) {
	f, ok := i.Funcs[name]
	return f, ok
}

// Schema is a component's extracted ledger: its imported and exported
// interfaces keyed by name.
type Schema struct {
	Imports map[string]*Interface
	Exports map[string]*Interface
	// ImportOrder and ExportOrder preserve declaration order.
	ImportOrder []string
	ExportOrder []string
}

// Import looks up an imported interface by name.
func (s *Schema) Import(name string) (*Interface, bool) {
	i, ok := s.Imports[name]
	return i, ok
}

// Export looks up an exported interface by name.
func (s *Schema) Export(name string) (*Interface, bool) {
	i, ok := s.Exports[name]
	return i, ok
}

// ImportFunc resolves (interface, function) in the import ledger.
func (s *Schema) ImportFunc(iface, fn string) (*Func, bool) {
	i, ok := s.Imports[iface]
	if !ok {
		return nil, false
	}
	return i.Func(fn)
}

// ExportFunc resolves (interface, function) in the export ledger.
func (s *Schema) ExportFunc(iface, fn string) (*Func, bool) {
	i, ok := s.Exports[iface]
	if !ok {
		return nil, false
	}
	return i.Func(fn)
}
