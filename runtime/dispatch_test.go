package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/wippyai/mesh-runtime/frame"
	"github.com/wippyai/mesh-runtime/schema"
	"github.com/wippyai/mesh-runtime/transcode"
	"github.com/wippyai/mesh-runtime/transport"
	"github.com/wippyai/mesh-runtime/value"

	"go.bytecodealliance.org/wit"
)

// dispatchFixture registers a math instance as "math" and returns a peer
// the caller can address.
func dispatchFixture(t *testing.T) (*Runtime, PeerID) {
	t.Helper()
	rt := New()
	t.Cleanup(func() { rt.Close(context.Background()) })
	ctx := context.Background()

	near, _ := transport.Pipe()
	peer := rt.AddPeer(near)

	mathID, err := rt.RegisterComponent(ctx, mathGuest(), mathWIT)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewInstanceBuilder(rt, mathID).RegisterAs("math").Instantiate(ctx); err != nil {
		t.Fatal(err)
	}
	return rt, peer
}

func encodeCall(t *testing.T, seq uint64, target, method string, args []value.Value, types []wit.Type) []byte {
	t.Helper()
	slab, err := transcode.EncodeSlab(args, types)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := frame.EncodeCall(seq, target, method, slab)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func decodeReply(t *testing.T, buf []byte) *frame.Reply {
	t.Helper()
	f, err := frame.Decode(buf)
	if err != nil {
		t.Fatal(err)
	}
	reply, ok := f.(*frame.Reply)
	if !ok {
		t.Fatalf("decoded %T", f)
	}
	return reply
}

func TestHandleIncomingOk(t *testing.T) {
	rt, peer := dispatchFixture(t)

	call := encodeCall(t, 1, "math", "add",
		[]value.Value{value.U32(3), value.U32(4)},
		[]wit.Type{wit.U32{}, wit.U32{}})
	out, err := rt.HandleIncoming(context.Background(), peer, call)
	if err != nil {
		t.Fatal(err)
	}
	reply := decodeReply(t, out)
	if reply.Seq != 1 || reply.Reason != nil {
		t.Fatalf("reply = %+v", reply)
	}
	results, err := transcode.DecodeSlab(reply.Results, []wit.Type{wit.U32{}})
	if err != nil {
		t.Fatal(err)
	}
	if !value.Equal(results[0], value.U32(7)) {
		t.Errorf("add(3,4) = %v", results)
	}
}

func TestHandleIncomingInstanceNotFound(t *testing.T) {
	rt, peer := dispatchFixture(t)

	call := encodeCall(t, 2, "ghost", "add",
		[]value.Value{value.U32(1), value.U32(2)},
		[]wit.Type{wit.U32{}, wit.U32{}})
	out, err := rt.HandleIncoming(context.Background(), peer, call)
	if err != nil {
		t.Fatal(err)
	}
	reply := decodeReply(t, out)
	if reply.Reason == nil || reply.Reason.Kind != frame.ReasonInstanceNotFound {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestHandleIncomingMethodNotFound(t *testing.T) {
	rt, peer := dispatchFixture(t)

	call := encodeCall(t, 3, "math", "subtract",
		[]value.Value{value.U32(1), value.U32(2)},
		[]wit.Type{wit.U32{}, wit.U32{}})
	out, err := rt.HandleIncoming(context.Background(), peer, call)
	if err != nil {
		t.Fatal(err)
	}
	reply := decodeReply(t, out)
	if reply.Reason == nil || reply.Reason.Kind != frame.ReasonMethodNotFound {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestHandleIncomingBadArgumentCount(t *testing.T) {
	rt, peer := dispatchFixture(t)

	call := encodeCall(t, 4, "math", "add",
		[]value.Value{value.U32(1)},
		[]wit.Type{wit.U32{}})
	out, err := rt.HandleIncoming(context.Background(), peer, call)
	if err != nil {
		t.Fatal(err)
	}
	reply := decodeReply(t, out)
	if reply.Reason == nil || reply.Reason.Kind != frame.ReasonBadArgumentCount {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestHandleIncomingDecodeError(t *testing.T) {
	rt, peer := dispatchFixture(t)

	// Arguments typed as strings against a u32 signature.
	call := encodeCall(t, 5, "math", "add",
		[]value.Value{value.Str("x"), value.Str("y")},
		[]wit.Type{wit.String{}, wit.String{}})
	out, err := rt.HandleIncoming(context.Background(), peer, call)
	if err != nil {
		t.Fatal(err)
	}
	reply := decodeReply(t, out)
	if reply.Reason == nil || reply.Reason.Kind != frame.ReasonDecodeError {
		t.Fatalf("reply = %+v", reply)
	}
}

func TestHandleIncomingUnknownPeer(t *testing.T) {
	rt, _ := dispatchFixture(t)

	call := encodeCall(t, 6, "math", "add",
		[]value.Value{value.U32(1), value.U32(2)},
		[]wit.Type{wit.U32{}, wit.U32{}})
	_, err := rt.HandleIncoming(context.Background(), 999, call)
	if !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("err = %v", err)
	}
}

func TestHandleIncomingIgnoresReplies(t *testing.T) {
	rt, peer := dispatchFixture(t)

	slab, err := transcode.EncodeSlab(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := frame.EncodeReplyOk(7, slab)
	if err != nil {
		t.Fatal(err)
	}
	out, err := rt.HandleIncoming(context.Background(), peer, buf)
	if err != nil || out != nil {
		t.Fatalf("out = %v, err = %v", out, err)
	}
}

func TestFindExportHonorsDeclarationOrder(t *testing.T) {
	s, err := schema.Parse(`
export interface my:mesh/a {
  run: func() -> u32;
}
export interface my:mesh/b {
  run: func() -> u32;
}
`)
	if err != nil {
		t.Fatal(err)
	}
	iface, _, ok := findExport(s, "run")
	if !ok || iface != "my:mesh/a" {
		t.Errorf("findExport = %q, %v", iface, ok)
	}
}
