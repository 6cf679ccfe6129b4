package wasm

import (
	"context"
	"testing"

	"github.com/tetratelabs/wazero"
)

func TestEncodeCompilesUnderWazero(t *testing.T) {
	var m Module
	addType := m.AddType([]ValType{I32, I32}, []ValType{I32})
	add := m.AddFunc(addType, nil, NewBody().
		LocalGet(0).
		LocalGet(1).
		I32Add().
		Bytes())
	m.Memory = &Memory{Min: 1}
	m.ExportFunc("add", add)
	m.ExportMemory("memory")

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, m.Encode())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	res, err := mod.ExportedFunction("add").Call(ctx, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != 7 {
		t.Errorf("add(3,4) = %d", res[0])
	}
}

func TestImportsAndGlobals(t *testing.T) {
	var m Module
	hostType := m.AddType([]ValType{I32}, []ValType{I32})
	imported := m.AddImport("host", "twice", hostType)

	g := m.AddGlobal(I32, true, I32ConstGlobalInit(5))

	callType := m.AddType(nil, []ValType{I32})
	run := m.AddFunc(callType, nil, NewBody().
		GlobalGet(g).
		Call(imported).
		Bytes())
	m.ExportFunc("run", run)

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)

	_, err := r.NewHostModuleBuilder("host").
		NewFunctionBuilder().
		WithFunc(func(v uint32) uint32 { return v * 2 }).
		Export("twice").
		Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}

	compiled, err := r.CompileModule(ctx, m.Encode())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	res, err := mod.ExportedFunction("run").Call(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res[0] != 10 {
		t.Errorf("run() = %d", res[0])
	}
}
