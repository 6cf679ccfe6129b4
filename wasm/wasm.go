// Package wasm builds core WebAssembly modules programmatically. The
// runtime's tests synthesize small guest modules with it instead of
// shipping binary fixtures; embedders can use it to generate adapters.
//
// Only the sections the runtime needs are modeled: types, imports,
// functions, memory, globals, exports, and code.
package wasm

// Binary format magic number and version.
const (
	magic   uint32 = 0x6D736100 // "\0asm"
	version uint32 = 0x01
)

// Section IDs in required order.
const (
	sectionType   byte = 1
	sectionImport byte = 2
	sectionFunc   byte = 3
	sectionMemory byte = 5
	sectionGlobal byte = 6
	sectionExport byte = 7
	sectionCode   byte = 10
)

// ValType is a core value type encoding.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

// Export descriptor kinds.
const (
	KindFunc   byte = 0
	KindMemory byte = 2
	KindGlobal byte = 3
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Import is an imported function reference.
type Import struct {
	Module  string
	Name    string
	TypeIdx uint32
}

// Func is one defined function: its type, extra locals, and body
// instructions (terminated by the encoder).
type Func struct {
	TypeIdx uint32
	Locals  []ValType
	Body    []byte
}

// Memory declares the module's linear memory in 64KiB pages.
type Memory struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// Global is one module global with a constant initializer.
type Global struct {
	Type    ValType
	Mutable bool
	Init    []byte // constant expression without the end opcode
}

// Export names a module item.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Module is a buildable core module.
type Module struct {
	Types   []FuncType
	Imports []Import
	Funcs   []Func
	Memory  *Memory
	Globals []Global
	Exports []Export
}

// AddType appends a signature and returns its index.
func (m *Module) AddType(params, results []ValType) uint32 {
	m.Types = append(m.Types, FuncType{Params: params, Results: results})
	return uint32(len(m.Types) - 1)
}

// AddImport appends an imported function and returns its function index.
// Imports occupy the low function index space.
func (m *Module) AddImport(module, name string, typeIdx uint32) uint32 {
	m.Imports = append(m.Imports, Import{Module: module, Name: name, TypeIdx: typeIdx})
	return uint32(len(m.Imports) - 1)
}

// AddFunc appends a defined function and returns its function index.
func (m *Module) AddFunc(typeIdx uint32, locals []ValType, body []byte) uint32 {
	m.Funcs = append(m.Funcs, Func{TypeIdx: typeIdx, Locals: locals, Body: body})
	return uint32(len(m.Imports) + len(m.Funcs) - 1)
}

// AddGlobal appends a global and returns its index.
func (m *Module) AddGlobal(t ValType, mutable bool, init []byte) uint32 {
	m.Globals = append(m.Globals, Global{Type: t, Mutable: mutable, Init: init})
	return uint32(len(m.Globals) - 1)
}

// ExportFunc exports a function index under name.
func (m *Module) ExportFunc(name string, idx uint32) {
	m.Exports = append(m.Exports, Export{Name: name, Kind: KindFunc, Idx: idx})
}

// ExportMemory exports memory 0 under name.
func (m *Module) ExportMemory(name string) {
	m.Exports = append(m.Exports, Export{Name: name, Kind: KindMemory, Idx: 0})
}

// Encode serializes the module to the binary format.
func (m *Module) Encode() []byte {
	var out []byte
	out = appendU32LE(out, magic)
	out = appendU32LE(out, version)

	if len(m.Types) > 0 {
		var body []byte
		body = AppendU32(body, uint32(len(m.Types)))
		for _, t := range m.Types {
			body = append(body, 0x60)
			body = AppendU32(body, uint32(len(t.Params)))
			for _, p := range t.Params {
				body = append(body, byte(p))
			}
			body = AppendU32(body, uint32(len(t.Results)))
			for _, r := range t.Results {
				body = append(body, byte(r))
			}
		}
		out = appendSection(out, sectionType, body)
	}

	if len(m.Imports) > 0 {
		var body []byte
		body = AppendU32(body, uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			body = appendName(body, imp.Module)
			body = appendName(body, imp.Name)
			body = append(body, KindFunc)
			body = AppendU32(body, imp.TypeIdx)
		}
		out = appendSection(out, sectionImport, body)
	}

	if len(m.Funcs) > 0 {
		var body []byte
		body = AppendU32(body, uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			body = AppendU32(body, f.TypeIdx)
		}
		out = appendSection(out, sectionFunc, body)
	}

	if m.Memory != nil {
		var body []byte
		body = AppendU32(body, 1)
		if m.Memory.HasMax {
			body = append(body, 0x01)
			body = AppendU32(body, m.Memory.Min)
			body = AppendU32(body, m.Memory.Max)
		} else {
			body = append(body, 0x00)
			body = AppendU32(body, m.Memory.Min)
		}
		out = appendSection(out, sectionMemory, body)
	}

	if len(m.Globals) > 0 {
		var body []byte
		body = AppendU32(body, uint32(len(m.Globals)))
		for _, g := range m.Globals {
			body = append(body, byte(g.Type))
			if g.Mutable {
				body = append(body, 0x01)
			} else {
				body = append(body, 0x00)
			}
			body = append(body, g.Init...)
			body = append(body, opEnd)
		}
		out = appendSection(out, sectionGlobal, body)
	}

	if len(m.Exports) > 0 {
		var body []byte
		body = AppendU32(body, uint32(len(m.Exports)))
		for _, e := range m.Exports {
			body = appendName(body, e.Name)
			body = append(body, e.Kind)
			body = AppendU32(body, e.Idx)
		}
		out = appendSection(out, sectionExport, body)
	}

	if len(m.Funcs) > 0 {
		var body []byte
		body = AppendU32(body, uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			var code []byte
			// Locals are grouped one per entry; small modules don't need
			// run-length compression.
			code = AppendU32(code, uint32(len(f.Locals)))
			for _, l := range f.Locals {
				code = AppendU32(code, 1)
				code = append(code, byte(l))
			}
			code = append(code, f.Body...)
			code = append(code, opEnd)
			body = AppendU32(body, uint32(len(code)))
			body = append(body, code...)
		}
		out = appendSection(out, sectionCode, body)
	}

	return out
}

func appendSection(out []byte, id byte, body []byte) []byte {
	out = append(out, id)
	out = AppendU32(out, uint32(len(body)))
	return append(out, body...)
}

func appendName(out []byte, s string) []byte {
	out = AppendU32(out, uint32(len(s)))
	return append(out, s...)
}

func appendU32LE(out []byte, v uint32) []byte {
	return append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
