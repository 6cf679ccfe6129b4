// Package frame defines the RPC envelope riding the wire codec: Call and
// Reply variants correlated by sequence number.
//
// Argument and result payloads are opaque slabs: pre-encoded list scopes
// injected verbatim into the envelope. The framing layer never inspects
// them, which keeps it independent of the engine's type vocabulary and lets
// the demux pump route frames by sequence number alone (DecodeSeq).
package frame

import (
	"fmt"

	"github.com/wippyai/mesh-runtime/codec"
)

// Outer variant case names.
const (
	caseCall  = "Call"
	caseReply = "Reply"
)

// Call is an outbound or inbound invocation request.
type Call struct {
	Seq    uint64
	Target string
	Method string
	// Args is a pre-encoded list scope containing the parameters. It is
	// injected verbatim and never re-encoded.
	Args []byte
}

// Reply is the response to a Call with the same sequence number. Exactly
// one of Results and Reason is set.
type Reply struct {
	Seq uint64
	// Results is a pre-encoded list scope of result values, set when the
	// call succeeded.
	Results []byte
	// Reason is set when the remote side failed the call.
	Reason *Reason
}

// Frame is the closed sum of envelope kinds.
type Frame interface {
	isFrame()
}

func (*Call) isFrame()  {}
func (*Reply) isFrame() {}

// DecodeError is returned when an envelope cannot be parsed. Cause holds
// the codec-level failure when one occurred; Detail names structural
// violations such as missing header fields.
type DecodeError struct {
	Detail string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		if e.Detail != "" {
			return fmt.Sprintf("frame: %s: %v", e.Detail, e.Cause)
		}
		return fmt.Sprintf("frame: decode: %v", e.Cause)
	}
	return fmt.Sprintf("frame: %s", e.Detail)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// UnknownOutcomeError is returned when a variant case name in the envelope
// is not part of the protocol.
type UnknownOutcomeError struct {
	Name string
}

func (e *UnknownOutcomeError) Error() string {
	return fmt.Sprintf("frame: unknown case %q", e.Name)
}

func decodeErr(detail string, cause error) error {
	return &DecodeError{Detail: detail, Cause: cause}
}

// EncodeCall encodes a Call envelope. argsSlab must be a complete encoded
// list scope (see EncodeSlab in package transcode, or codec.Encoder
// directly).
func EncodeCall(seq uint64, target, method string, argsSlab []byte) ([]byte, error) {
	enc := codec.NewEncoder()
	if err := enc.VariantBegin(caseCall); err != nil {
		return nil, err
	}
	if err := enc.MapBegin(); err != nil {
		return nil, err
	}
	if err := mapU64(enc, "seq", seq); err != nil {
		return nil, err
	}
	if err := mapStr(enc, "target", target); err != nil {
		return nil, err
	}
	if err := mapStr(enc, "method", method); err != nil {
		return nil, err
	}
	if err := enc.VariantBegin("args"); err != nil {
		return nil, err
	}
	if err := enc.Raw(argsSlab); err != nil {
		return nil, err
	}
	if err := enc.VariantEnd(); err != nil {
		return nil, err
	}
	if err := enc.MapEnd(); err != nil {
		return nil, err
	}
	if err := enc.VariantEnd(); err != nil {
		return nil, err
	}
	return enc.Bytes()
}

// EncodeReplyOk encodes a successful Reply carrying a pre-encoded results
// slab.
func EncodeReplyOk(seq uint64, resultsSlab []byte) ([]byte, error) {
	enc := codec.NewEncoder()
	if err := enc.VariantBegin(caseReply); err != nil {
		return nil, err
	}
	if err := enc.MapBegin(); err != nil {
		return nil, err
	}
	if err := mapU64(enc, "seq", seq); err != nil {
		return nil, err
	}
	if err := enc.VariantBegin("outcome"); err != nil {
		return nil, err
	}
	if err := enc.VariantBegin("Ok"); err != nil {
		return nil, err
	}
	if err := enc.Raw(resultsSlab); err != nil {
		return nil, err
	}
	if err := enc.VariantEnd(); err != nil {
		return nil, err
	}
	if err := enc.VariantEnd(); err != nil {
		return nil, err
	}
	if err := enc.MapEnd(); err != nil {
		return nil, err
	}
	if err := enc.VariantEnd(); err != nil {
		return nil, err
	}
	return enc.Bytes()
}

// EncodeReplyErr encodes a failed Reply carrying a reason.
func EncodeReplyErr(seq uint64, reason Reason) ([]byte, error) {
	enc := codec.NewEncoder()
	if err := enc.VariantBegin(caseReply); err != nil {
		return nil, err
	}
	if err := enc.MapBegin(); err != nil {
		return nil, err
	}
	if err := mapU64(enc, "seq", seq); err != nil {
		return nil, err
	}
	if err := enc.VariantBegin("outcome"); err != nil {
		return nil, err
	}
	if err := enc.VariantBegin("Err"); err != nil {
		return nil, err
	}
	if err := reason.encode(enc); err != nil {
		return nil, err
	}
	if err := enc.VariantEnd(); err != nil {
		return nil, err
	}
	if err := enc.VariantEnd(); err != nil {
		return nil, err
	}
	if err := enc.MapEnd(); err != nil {
		return nil, err
	}
	if err := enc.VariantEnd(); err != nil {
		return nil, err
	}
	return enc.Bytes()
}

// Decode parses a complete envelope. It returns *Call or *Reply.
func Decode(buf []byte) (Frame, error) {
	name, body, err := codec.NewDecoder(buf).Variant()
	if err != nil {
		return nil, decodeErr("envelope", err)
	}
	switch name {
	case caseCall:
		return decodeCall(body)
	case caseReply:
		return decodeReply(body)
	}
	return nil, &UnknownOutcomeError{Name: name}
}

func decodeCall(body *codec.Decoder) (*Call, error) {
	entries, err := body.Map()
	if err != nil {
		return nil, decodeErr("call header", err)
	}
	var (
		c          Call
		haveSeq    bool
		haveTarget bool
		haveMethod bool
	)
	for entries.More() {
		key, v, err := entries.Next()
		if err != nil {
			return nil, decodeErr("call header", err)
		}
		switch key {
		case "seq":
			if c.Seq, err = v.U64(); err != nil {
				return nil, decodeErr("call seq", err)
			}
			haveSeq = true
		case "target":
			if c.Target, err = v.Str(); err != nil {
				return nil, decodeErr("call target", err)
			}
			haveTarget = true
		case "method":
			if c.Method, err = v.Str(); err != nil {
				return nil, decodeErr("call method", err)
			}
			haveMethod = true
		case "args":
			if c.Args, err = v.RawValue(); err != nil {
				return nil, decodeErr("call args", err)
			}
		default:
			// Unknown header fields are skipped for forward compatibility.
		}
	}
	if !haveSeq {
		return nil, decodeErr("call missing seq", nil)
	}
	if !haveTarget {
		return nil, decodeErr("call missing target", nil)
	}
	if !haveMethod {
		return nil, decodeErr("call missing method", nil)
	}
	if c.Args == nil {
		return nil, decodeErr("call missing args", nil)
	}
	return &c, nil
}

func decodeReply(body *codec.Decoder) (*Reply, error) {
	entries, err := body.Map()
	if err != nil {
		return nil, decodeErr("reply header", err)
	}
	var (
		r           Reply
		haveSeq     bool
		haveOutcome bool
	)
	for entries.More() {
		key, v, err := entries.Next()
		if err != nil {
			return nil, decodeErr("reply header", err)
		}
		switch key {
		case "seq":
			if r.Seq, err = v.U64(); err != nil {
				return nil, decodeErr("reply seq", err)
			}
			haveSeq = true
		case "outcome":
			name, payload, err := v.Variant()
			if err != nil {
				return nil, decodeErr("reply outcome", err)
			}
			switch name {
			case "Ok":
				if r.Results, err = payload.RawValue(); err != nil {
					return nil, decodeErr("reply results", err)
				}
			case "Err":
				reason, err := decodeReason(payload)
				if err != nil {
					return nil, err
				}
				r.Reason = &reason
			default:
				return nil, &UnknownOutcomeError{Name: name}
			}
			haveOutcome = true
		default:
		}
	}
	if !haveSeq {
		return nil, decodeErr("reply missing seq", nil)
	}
	if !haveOutcome {
		return nil, decodeErr("reply missing outcome", nil)
	}
	return &r, nil
}

// DecodeSeq reads only the sequence number from an encoded envelope,
// skipping every other field by its framing. The pump routes on this
// without paying for a full decode.
func DecodeSeq(buf []byte) (uint64, error) {
	name, body, err := codec.NewDecoder(buf).Variant()
	if err != nil {
		return 0, decodeErr("envelope", err)
	}
	if name != caseCall && name != caseReply {
		return 0, &UnknownOutcomeError{Name: name}
	}
	entries, err := body.Map()
	if err != nil {
		return 0, decodeErr("header", err)
	}
	for entries.More() {
		key, v, err := entries.Next()
		if err != nil {
			return 0, decodeErr("header", err)
		}
		if key == "seq" {
			seq, err := v.U64()
			if err != nil {
				return 0, decodeErr("seq", err)
			}
			return seq, nil
		}
	}
	return 0, decodeErr("missing seq", nil)
}

func mapU64(enc *codec.Encoder, key string, v uint64) error {
	if err := enc.VariantBegin(key); err != nil {
		return err
	}
	if err := enc.U64(v); err != nil {
		return err
	}
	return enc.VariantEnd()
}

func mapStr(enc *codec.Encoder, key, v string) error {
	if err := enc.VariantBegin(key); err != nil {
		return err
	}
	if err := enc.Str(v); err != nil {
		return err
	}
	return enc.VariantEnd()
}
