package runtime

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/wippyai/mesh-runtime/engine"
	"github.com/wippyai/mesh-runtime/frame"
	"github.com/wippyai/mesh-runtime/schema"
	"github.com/wippyai/mesh-runtime/transcode"
	"github.com/wippyai/mesh-runtime/value"
)

// HandleIncoming serves one inbound message from a peer's wire and returns
// the encoded Reply, or nil when the bytes are not a Call. Peers added
// through AddPeer dispatch automatically; this entry point serves
// embedders that listen on their own transports.
func (r *Runtime) HandleIncoming(ctx context.Context, peer PeerID, msg []byte) ([]byte, error) {
	if _, err := r.Peer(peer); err != nil {
		return nil, err
	}
	f, err := frame.Decode(msg)
	if err != nil {
		return nil, err
	}
	call, ok := f.(*frame.Call)
	if !ok {
		return nil, nil
	}
	return r.dispatch(ctx, call), nil
}

// dispatch resolves an inbound Call through the remote-id map, executes
// the export, and encodes the Reply carrying the same sequence number.
func (r *Runtime) dispatch(ctx context.Context, call *frame.Call) []byte {
	reply := func(results []byte, reason *frame.Reason) []byte {
		var out []byte
		var err error
		if reason != nil {
			out, err = frame.EncodeReplyErr(call.Seq, *reason)
		} else {
			out, err = frame.EncodeReplyOk(call.Seq, results)
		}
		if err != nil {
			Logger().Error("encode reply", zap.Uint64("seq", call.Seq), zap.Error(err))
			return nil
		}
		return out
	}

	id, ok := r.LookupInstanceByRemoteID(call.Target)
	if !ok {
		return reply(nil, &frame.Reason{Kind: frame.ReasonInstanceNotFound})
	}
	entry, err := r.instanceEntry(id)
	if err != nil {
		return reply(nil, &frame.Reason{Kind: frame.ReasonInstanceNotFound})
	}

	ifaceName, fn, ok := findExport(entry.comp.schema, call.Method)
	if !ok {
		return reply(nil, &frame.Reason{Kind: frame.ReasonMethodNotFound})
	}

	args, err := transcode.DecodeSlab(call.Args, fn.Params)
	if err != nil {
		return reply(nil, decodeReason(err))
	}

	var out []value.Value
	err = entry.handle.Exec(ctx, func(ctx context.Context, inst *engine.Instance) error {
		res, execErr := inst.Call(ctx, ifaceName, call.Method, fn.Params, fn.Results, args)
		out = res
		return execErr
	})
	if err != nil {
		r.noteFailure(id, entry, err)
		return reply(nil, execReason(err))
	}

	results, err := transcode.EncodeSlab(out, fn.Results)
	if err != nil {
		return reply(nil, &frame.Reason{Kind: frame.ReasonDecodeError, Message: err.Error()})
	}
	return reply(results, nil)
}

// findExport resolves a method name across the component's exported
// interfaces, in declaration order.
func findExport(s *schema.Schema, method string) (string, *schema.Func, bool) {
	for _, ifaceName := range s.ExportOrder {
		if fn, ok := s.Exports[ifaceName].Func(method); ok {
			return ifaceName, fn, true
		}
	}
	return "", nil, false
}

// decodeReason maps an argument-decoding failure onto the wire taxonomy.
func decodeReason(err error) *frame.Reason {
	var arity *transcode.ArityError
	if errors.As(err, &arity) {
		return &frame.Reason{Kind: frame.ReasonBadArgumentCount}
	}
	return &frame.Reason{Kind: frame.ReasonDecodeError, Message: err.Error()}
}

// execReason maps an execution failure onto the wire taxonomy.
func execReason(err error) *frame.Reason {
	switch {
	case errors.Is(err, engine.ErrExecBudget):
		return &frame.Reason{Kind: frame.ReasonOutOfFuel}
	case errors.Is(err, engine.ErrOutOfMemory):
		return &frame.Reason{Kind: frame.ReasonOutOfMemory}
	case errors.Is(err, ErrUnknownInstance):
		return &frame.Reason{Kind: frame.ReasonInstanceNotFound}
	case errors.Is(err, engine.ErrFunctionNotFound):
		return &frame.Reason{Kind: frame.ReasonMethodNotFound}
	}
	return &frame.Reason{Kind: frame.ReasonTrapped}
}
