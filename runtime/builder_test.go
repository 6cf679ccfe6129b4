package runtime

import (
	"context"
	"errors"
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/mesh-runtime/engine"
	"github.com/wippyai/mesh-runtime/schema"
	"github.com/wippyai/mesh-runtime/value"
	"github.com/wippyai/mesh-runtime/wasm"
)

// narrowKvGuest exports a kv whose set takes (string, u32): same interface
// name as the real kv, different shape.
func narrowKvGuest() []byte {
	var m wasm.Module
	setType := m.AddType([]wasm.ValType{wasm.I32, wasm.I32, wasm.I32}, nil)
	set := m.AddFunc(setType, nil, wasm.NewBody().Bytes())
	m.ExportFunc("set", set)
	return m.Encode()
}

const narrowKvWIT = `
export interface my:mesh/kv {
  set: func(k: string, v: u32);
}
`

func TestLocalLinkRejectsStructuralMismatch(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())
	ctx := context.Background()

	narrowID, err := rt.RegisterComponent(ctx, narrowKvGuest(), narrowKvWIT)
	if err != nil {
		t.Fatal(err)
	}
	writerID, err := rt.RegisterComponent(ctx, writerGuest(), writerWIT)
	if err != nil {
		t.Fatal(err)
	}

	narrow, err := NewInstanceBuilder(rt, narrowID).Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewInstanceBuilder(rt, writerID).LinkLocal("my:mesh/kv", narrow).Instantiate(ctx)
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want SchemaMismatchError", err)
	}
}

func TestLinkToUnknownInstance(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())
	ctx := context.Background()

	writerID, err := rt.RegisterComponent(ctx, writerGuest(), writerWIT)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewInstanceBuilder(rt, writerID).LinkLocal("my:mesh/kv", 42).Instantiate(ctx)
	if !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("err = %v", err)
	}
}

func TestLinkNamingUndeclaredInterface(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())
	ctx := context.Background()

	mathID, err := rt.RegisterComponent(ctx, mathGuest(), mathWIT)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewInstanceBuilder(rt, mathID).
		LinkSystem("my:mesh/unheard-of", NewLogProvider("my:mesh/unheard-of", nil)).
		Instantiate(ctx)
	if !errors.Is(err, ErrInterfaceNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRemoteLinkToUnknownPeer(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())
	ctx := context.Background()

	clientID, err := rt.RegisterComponent(ctx, clientGuest(), clientWIT)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewInstanceBuilder(rt, clientID).
		LinkRemote("my:mesh/math", 7, "math").
		Instantiate(ctx)
	if !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("err = %v", err)
	}
}

// staticProvider serves an interface from a fixed function map.
type staticProvider struct {
	iface string
	funcs map[string]engine.HostFunc
}

func (p *staticProvider) Interfaces() []string { return []string{p.iface} }
func (p *staticProvider) Functions(iface string) map[string]engine.HostFunc {
	if iface != p.iface {
		return nil
	}
	return p.funcs
}
func (p *staticProvider) Configure(cb *ContextBuilder) error { return nil }

func TestSystemProviderMissingMethod(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())
	ctx := context.Background()

	echoID, err := rt.RegisterComponent(ctx, echoGuest(), echoWIT)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewInstanceBuilder(rt, echoID).
		LinkSystem("my:mesh/logger", &staticProvider{iface: "my:mesh/logger", funcs: map[string]engine.HostFunc{}}).
		Instantiate(ctx)
	if !errors.Is(err, ErrMethodNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestSystemProviderSignatureMismatch(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())
	ctx := context.Background()

	echoID, err := rt.RegisterComponent(ctx, echoGuest(), echoWIT)
	if err != nil {
		t.Fatal(err)
	}
	provider := &staticProvider{
		iface: "my:mesh/logger",
		funcs: map[string]engine.HostFunc{
			"log": {
				Params: []wit.Type{wit.U64{}}, // declared import takes a string
				Fn: func(ctx context.Context, args []value.Value) ([]value.Value, error) {
					return nil, nil
				},
			},
		},
	}
	_, err = NewInstanceBuilder(rt, echoID).
		LinkSystem("my:mesh/logger", provider).
		Instantiate(ctx)
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want SchemaMismatchError", err)
	}
}

func TestRemoteLinkRejectsResources(t *testing.T) {
	// Bypass registration (resources cannot be expressed in guest WIT
	// text) and drive the binder directly.
	iface := &schema.Interface{
		Name: "my:mesh/handles",
		Funcs: map[string]*schema.Func{
			"use": {
				Name:   "use",
				Params: []wit.Type{&wit.TypeDef{Kind: &wit.Own{}}},
			},
		},
		Order: []string{"use"},
	}
	_, err := bindRemote(iface, nil, "anywhere")
	if !errors.Is(err, schema.ErrResourceInSignature) {
		t.Fatalf("err = %v", err)
	}
}
