package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wippyai/mesh-runtime/engine"
	"github.com/wippyai/mesh-runtime/transport"
	"github.com/wippyai/mesh-runtime/value"
)

func newEchoInstance(t *testing.T, rt *Runtime) InstanceID {
	t.Helper()
	compID, err := rt.RegisterComponent(context.Background(), echoGuest(), echoWIT)
	if err != nil {
		t.Fatalf("register echo: %v", err)
	}
	instID, err := NewInstanceBuilder(rt, compID).
		LinkSystem("my:mesh/logger", NewLogProvider("my:mesh/logger", nil)).
		Instantiate(context.Background())
	if err != nil {
		t.Fatalf("instantiate echo: %v", err)
	}
	return instID
}

func TestSingleValueEcho(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())

	instID := newEchoInstance(t, rt)
	results, err := rt.Exec(context.Background(), instID, "my:mesh/api", "echo",
		[]value.Value{value.U32(42)})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || !value.Equal(results[0], value.U32(42)) {
		t.Errorf("echo(42) = %v", results)
	}
}

func TestRegisterComponentRejectsSchemaDrift(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())

	// The WIT declares echo(u64) but the module's core export takes i32.
	_, err := rt.RegisterComponent(context.Background(), echoGuest(), `
import interface my:mesh/logger {
  log: func(msg: string);
}
export interface my:mesh/api {
  echo: func(v: u64) -> u64;
}
`)
	if err == nil {
		t.Fatal("schema drift accepted")
	}
}

func TestMissingLinkFailsInstantiation(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())

	compID, err := rt.RegisterComponent(context.Background(), echoGuest(), echoWIT)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewInstanceBuilder(rt, compID).Instantiate(context.Background())
	if !errors.Is(err, ErrInterfaceNotFound) {
		t.Fatalf("err = %v, want ErrInterfaceNotFound", err)
	}
}

func TestLocalDiamond(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())
	ctx := context.Background()

	kvID, err := rt.RegisterComponent(ctx, kvGuest(), kvWIT)
	if err != nil {
		t.Fatal(err)
	}
	writerID, err := rt.RegisterComponent(ctx, writerGuest(), writerWIT)
	if err != nil {
		t.Fatal(err)
	}
	readerID, err := rt.RegisterComponent(ctx, readerGuest(), readerWIT)
	if err != nil {
		t.Fatal(err)
	}

	kv, err := NewInstanceBuilder(rt, kvID).Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	a, err := NewInstanceBuilder(rt, writerID).LinkLocal("my:mesh/kv", kv).Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewInstanceBuilder(rt, readerID).LinkLocal("my:mesh/kv", kv).Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := rt.Exec(ctx, a, "my:mesh/writer", "put",
		[]value.Value{value.Str("k"), value.Str("v1")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	results, err := rt.Exec(ctx, b, "my:mesh/reader", "read",
		[]value.Value{value.Str("k")})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(results) != 1 || !value.Equal(results[0], value.Str("v1")) {
		t.Errorf("read = %v", results)
	}
}

func TestLocalLinkSchemaMismatch(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())
	ctx := context.Background()

	// math exports add(u32,u32)->u32; the writer imports kv.set, which math
	// does not export.
	mathID, err := rt.RegisterComponent(ctx, mathGuest(), mathWIT)
	if err != nil {
		t.Fatal(err)
	}
	writerID, err := rt.RegisterComponent(ctx, writerGuest(), writerWIT)
	if err != nil {
		t.Fatal(err)
	}
	math, err := NewInstanceBuilder(rt, mathID).Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewInstanceBuilder(rt, writerID).LinkLocal("my:mesh/kv", math).Instantiate(ctx)
	if !errors.Is(err, ErrInterfaceNotFound) {
		t.Fatalf("err = %v, want ErrInterfaceNotFound", err)
	}
}

func TestCrossPeerRoundTrip(t *testing.T) {
	alpha := New()
	beta := New()
	ctx := context.Background()
	defer alpha.Close(ctx)
	defer beta.Close(ctx)

	aEnd, bEnd := transport.Pipe()
	alpha.AddPeer(aEnd)
	betaPeer := beta.AddPeer(bEnd)

	mathID, err := alpha.RegisterComponent(ctx, mathGuest(), mathWIT)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewInstanceBuilder(alpha, mathID).RegisterAs("math").Instantiate(ctx); err != nil {
		t.Fatal(err)
	}

	clientID, err := beta.RegisterComponent(ctx, clientGuest(), clientWIT)
	if err != nil {
		t.Fatal(err)
	}
	clientInst, err := NewInstanceBuilder(beta, clientID).
		LinkRemote("my:mesh/math", betaPeer, "math").
		Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}

	results, err := beta.Exec(ctx, clientInst, "my:mesh/client", "compute",
		[]value.Value{value.U32(3), value.U32(4)})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || !value.Equal(results[0], value.U32(7)) {
		t.Errorf("compute(3,4) = %v", results)
	}
}

func TestRemoteUnknownTargetSurfacesAsTrap(t *testing.T) {
	alpha := New()
	beta := New()
	ctx := context.Background()
	defer alpha.Close(ctx)
	defer beta.Close(ctx)

	aEnd, bEnd := transport.Pipe()
	alpha.AddPeer(aEnd)
	betaPeer := beta.AddPeer(bEnd)

	clientID, err := beta.RegisterComponent(ctx, clientGuest(), clientWIT)
	if err != nil {
		t.Fatal(err)
	}
	clientInst, err := NewInstanceBuilder(beta, clientID).
		LinkRemote("my:mesh/math", betaPeer, "nobody-home").
		Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}

	_, err = beta.Exec(ctx, clientInst, "my:mesh/client", "compute",
		[]value.Value{value.U32(1), value.U32(2)})
	if err == nil {
		t.Fatal("call against unknown remote target succeeded")
	}
}

func TestBudgetRejectedAtInstantiation(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())
	ctx := context.Background()

	compID, err := rt.RegisterComponent(ctx, hungryGuest(), hungryWIT)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewInstanceBuilder(rt, compID).
		Budget(Budget{MaxMemoryBytes: 64 * 1024}).
		Instantiate(ctx)
	if err == nil {
		t.Fatal("two-page module instantiated under one-page budget")
	}
}

func TestBudgetSmallerThanPageRejected(t *testing.T) {
	_, err := Budget{MaxMemoryBytes: 1000}.limits()
	if !errors.Is(err, ErrBudgetRejected) {
		t.Fatalf("err = %v, want ErrBudgetRejected", err)
	}
}

func TestExecBudgetIsTerminal(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())
	ctx := context.Background()

	compID, err := rt.RegisterComponent(ctx, spinGuest(), spinWIT)
	if err != nil {
		t.Fatal(err)
	}
	instID, err := NewInstanceBuilder(rt, compID).
		Budget(Budget{ExecCostLimit: 100 * time.Millisecond}).
		Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}

	_, err = rt.Exec(ctx, instID, "my:mesh/spinner", "spin", nil)
	if !errors.Is(err, engine.ErrExecBudget) {
		t.Fatalf("err = %v, want ErrExecBudget", err)
	}

	// Budget exhaustion is terminal.
	_, err = rt.Exec(ctx, instID, "my:mesh/spinner", "spin", nil)
	if !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("post-exhaustion err = %v, want ErrUnknownInstance", err)
	}
}

func TestRemoveInstanceInterruptsInFlight(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())
	ctx := context.Background()

	compID, err := rt.RegisterComponent(ctx, spinGuest(), spinWIT)
	if err != nil {
		t.Fatal(err)
	}
	instID, err := NewInstanceBuilder(rt, compID).Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := rt.Exec(ctx, instID, "my:mesh/spinner", "spin", nil)
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- rt.RemoveInstance(ctx, instID) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("remove: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RemoveInstance hung on an in-flight call")
	}

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("interrupted call reported success")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight call never returned")
	}

	if _, err := rt.Exec(ctx, instID, "my:mesh/spinner", "spin", nil); !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("post-removal err = %v, want ErrUnknownInstance", err)
	}
}

func TestRemoveInstanceUnknown(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())
	if err := rt.RemoveInstance(context.Background(), 999); !errors.Is(err, ErrUnknownInstance) {
		t.Fatalf("err = %v", err)
	}
}

func TestUnknownIDs(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())

	if _, err := rt.ComponentSchema(5); !errors.Is(err, ErrUnknownComponent) {
		t.Errorf("component err = %v", err)
	}
	if _, err := rt.Peer(5); !errors.Is(err, ErrUnknownPeer) {
		t.Errorf("peer err = %v", err)
	}
	if _, err := rt.Handle(5); !errors.Is(err, ErrUnknownInstance) {
		t.Errorf("instance err = %v", err)
	}
	if _, err := NewInstanceBuilder(rt, 5).Instantiate(context.Background()); !errors.Is(err, ErrUnknownComponent) {
		t.Errorf("builder err = %v", err)
	}
}

func TestExecUnknownMethod(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())

	instID := newEchoInstance(t, rt)
	_, err := rt.Exec(context.Background(), instID, "my:mesh/api", "nope", nil)
	if !errors.Is(err, ErrMethodNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRegisterInstanceAndLookup(t *testing.T) {
	rt := New()
	defer rt.Close(context.Background())

	instID := newEchoInstance(t, rt)
	if err := rt.RegisterInstance("echo-svc", instID); err != nil {
		t.Fatal(err)
	}
	got, ok := rt.LookupInstanceByRemoteID("echo-svc")
	if !ok || got != instID {
		t.Errorf("lookup = %v, %v", got, ok)
	}

	if err := rt.RemoveInstance(context.Background(), instID); err != nil {
		t.Fatal(err)
	}
	if _, ok := rt.LookupInstanceByRemoteID("echo-svc"); ok {
		t.Error("remote-id survived removal")
	}
}
