package runtime

// Test guests are synthesized with the wasm package rather than shipped as
// binary fixtures. Every guest that moves strings carries a one-page
// memory and a bump allocator starting past the scratch area.

import (
	"github.com/wippyai/mesh-runtime/wasm"
)

// withAllocator adds a linear memory and a bump allocator to a module,
// returning the allocator's function index.
func withAllocator(m *wasm.Module) uint32 {
	m.Memory = &wasm.Memory{Min: 1}
	m.ExportMemory("memory")
	next := m.AddGlobal(wasm.I32, true, wasm.I32ConstGlobalInit(1024))

	allocType := m.AddType([]wasm.ValType{wasm.I32}, []wasm.ValType{wasm.I32})
	alloc := m.AddFunc(allocType, []wasm.ValType{wasm.I32}, wasm.NewBody().
		GlobalGet(next).
		LocalSet(1).
		GlobalGet(next).
		LocalGet(0).
		I32Add().
		GlobalSet(next).
		LocalGet(1).
		Bytes())
	m.ExportFunc("alloc", alloc)
	return alloc
}

// echoGuest imports a logger and exports echo(u32) -> u32.
func echoGuest() []byte {
	var m wasm.Module
	logType := m.AddType([]wasm.ValType{wasm.I32, wasm.I32}, nil)
	log := m.AddImport("my:mesh/logger", "log", logType)

	echoType := m.AddType([]wasm.ValType{wasm.I32}, []wasm.ValType{wasm.I32})
	echo := m.AddFunc(echoType, nil, wasm.NewBody().
		I32Const(0).
		I32Const(0).
		Call(log).
		LocalGet(0).
		Bytes())
	m.ExportFunc("echo", echo)
	return m.Encode()
}

const echoWIT = `
import interface my:mesh/logger {
  log: func(msg: string);
}
export interface my:mesh/api {
  echo: func(v: u32) -> u32;
}
`

// mathGuest exports add(u32, u32) -> u32.
func mathGuest() []byte {
	var m wasm.Module
	addType := m.AddType([]wasm.ValType{wasm.I32, wasm.I32}, []wasm.ValType{wasm.I32})
	add := m.AddFunc(addType, nil, wasm.NewBody().
		LocalGet(0).
		LocalGet(1).
		I32Add().
		Bytes())
	m.ExportFunc("add", add)
	return m.Encode()
}

const mathWIT = `
export interface my:mesh/math {
  add: func(a: u32, b: u32) -> u32;
}
`

// kvGuest exports get/set over strings. It keeps one value: set copies the
// value bytes to a fixed offset, get hands back that buffer. The stored
// length lives at offset 8, the bytes at offset 16.
func kvGuest() []byte {
	var m wasm.Module
	withAllocator(&m)

	setType := m.AddType([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32, wasm.I32}, nil)
	set := m.AddFunc(setType, nil, wasm.NewBody().
		I32Const(16).
		LocalGet(2).
		LocalGet(3).
		MemoryCopy().
		I32Const(8).
		LocalGet(3).
		I32Store(0).
		Bytes())
	m.ExportFunc("set", set)

	getType := m.AddType([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32}, nil)
	get := m.AddFunc(getType, nil, wasm.NewBody().
		LocalGet(2).
		I32Const(16).
		I32Store(0).
		LocalGet(2).
		I32Const(8).
		I32Load(0).
		I32Store(4).
		Bytes())
	m.ExportFunc("get", get)
	return m.Encode()
}

const kvWIT = `
export interface my:mesh/kv {
  get: func(k: string) -> string;
  set: func(k: string, v: string);
}
`

// writerGuest forwards put(k, v) into an imported kv.set.
func writerGuest() []byte {
	var m wasm.Module
	setType := m.AddType([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32, wasm.I32}, nil)
	set := m.AddImport("my:mesh/kv", "set", setType)
	withAllocator(&m)

	putType := m.AddType([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32, wasm.I32}, nil)
	put := m.AddFunc(putType, nil, wasm.NewBody().
		LocalGet(0).
		LocalGet(1).
		LocalGet(2).
		LocalGet(3).
		Call(set).
		Bytes())
	m.ExportFunc("put", put)
	return m.Encode()
}

const writerWIT = `
import interface my:mesh/kv {
  set: func(k: string, v: string);
}
export interface my:mesh/writer {
  put: func(k: string, v: string);
}
`

// readerGuest forwards read(k) into an imported kv.get.
func readerGuest() []byte {
	var m wasm.Module
	getType := m.AddType([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32}, nil)
	get := m.AddImport("my:mesh/kv", "get", getType)
	withAllocator(&m)

	readType := m.AddType([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32}, nil)
	read := m.AddFunc(readType, nil, wasm.NewBody().
		LocalGet(0).
		LocalGet(1).
		LocalGet(2).
		Call(get).
		Bytes())
	m.ExportFunc("read", read)
	return m.Encode()
}

const readerWIT = `
import interface my:mesh/kv {
  get: func(k: string) -> string;
}
export interface my:mesh/reader {
  read: func(k: string) -> string;
}
`

// clientGuest forwards compute(a, b) into an imported remote add.
func clientGuest() []byte {
	var m wasm.Module
	addType := m.AddType([]wasm.ValType{wasm.I32, wasm.I32}, []wasm.ValType{wasm.I32})
	add := m.AddImport("my:mesh/math", "add", addType)

	computeType := m.AddType([]wasm.ValType{wasm.I32, wasm.I32}, []wasm.ValType{wasm.I32})
	compute := m.AddFunc(computeType, nil, wasm.NewBody().
		LocalGet(0).
		LocalGet(1).
		Call(add).
		Bytes())
	m.ExportFunc("compute", compute)
	return m.Encode()
}

const clientWIT = `
import interface my:mesh/math {
  add: func(a: u32, b: u32) -> u32;
}
export interface my:mesh/client {
  compute: func(a: u32, b: u32) -> u32;
}
`

// spinGuest exports spin(), which never returns.
func spinGuest() []byte {
	var m wasm.Module
	spinType := m.AddType(nil, nil)
	spin := m.AddFunc(spinType, nil, wasm.NewBody().
		Loop().
		Br(0).
		EndBlock().
		Bytes())
	m.ExportFunc("spin", spin)
	return m.Encode()
}

const spinWIT = `
export interface my:mesh/spinner {
  spin: func();
}
`

// hungryGuest declares a two-page minimum memory, used to collide with a
// one-page budget at instantiation.
func hungryGuest() []byte {
	var m wasm.Module
	m.Memory = &wasm.Memory{Min: 2}
	touchType := m.AddType(nil, nil)
	touch := m.AddFunc(touchType, nil, wasm.NewBody().Bytes())
	m.ExportFunc("touch", touch)
	return m.Encode()
}

const hungryWIT = `
export interface my:mesh/mem {
  touch: func();
}
`
