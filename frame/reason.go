package frame

import (
	"fmt"

	"github.com/wippyai/mesh-runtime/codec"
)

// ReasonKind enumerates the closed set of remote failure reasons carried in
// a Reply's Err arm. These describe the remote system failing, as opposed
// to the local transport or codec failing.
type ReasonKind uint8

const (
	// ReasonTrapped: the guest trapped (abort, unreachable, panic).
	ReasonTrapped ReasonKind = iota
	// ReasonOutOfFuel: execution exhausted its cost budget.
	ReasonOutOfFuel
	// ReasonOutOfMemory: execution exceeded its memory budget.
	ReasonOutOfMemory
	// ReasonInstanceNotFound: the target identifier resolved to nothing.
	ReasonInstanceNotFound
	// ReasonMethodNotFound: the method does not exist on the target.
	ReasonMethodNotFound
	// ReasonBadArgumentCount: the argument slab did not match the signature.
	ReasonBadArgumentCount
	// ReasonDecodeError: the remote side could not decode the payload.
	// Carries a description.
	ReasonDecodeError
	// ReasonDomainSpecific: a user-space refusal (authentication, quotas).
	// Carries a code and a description.
	ReasonDomainSpecific
)

var reasonNames = map[ReasonKind]string{
	ReasonTrapped:          "Trapped",
	ReasonOutOfFuel:        "OutOfFuel",
	ReasonOutOfMemory:      "OutOfMemory",
	ReasonInstanceNotFound: "InstanceNotFound",
	ReasonMethodNotFound:   "MethodNotFound",
	ReasonBadArgumentCount: "BadArgumentCount",
	ReasonDecodeError:      "DecodeError",
	ReasonDomainSpecific:   "DomainSpecific",
}

var reasonKinds = func() map[string]ReasonKind {
	m := make(map[string]ReasonKind, len(reasonNames))
	for k, n := range reasonNames {
		m[n] = k
	}
	return m
}()

// String returns the wire case name for the kind.
func (k ReasonKind) String() string {
	if n, ok := reasonNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ReasonKind(%d)", uint8(k))
}

// Reason is a remote failure reason. Message is set for DecodeError and
// DomainSpecific; Code is set for DomainSpecific only.
type Reason struct {
	Kind    ReasonKind
	Message string
	Code    uint32
}

// Error implements error so a Reason can propagate through error chains.
func (r Reason) Error() string {
	switch r.Kind {
	case ReasonDecodeError:
		return fmt.Sprintf("remote failure: DecodeError: %s", r.Message)
	case ReasonDomainSpecific:
		return fmt.Sprintf("remote failure: DomainSpecific(%d): %s", r.Code, r.Message)
	}
	return "remote failure: " + r.Kind.String()
}

// Fatal reports whether the reason traps the guest rather than surfacing as
// an in-band error value.
func (r Reason) Fatal() bool {
	return r.Kind != ReasonDomainSpecific
}

func (r Reason) encode(enc *codec.Encoder) error {
	if err := enc.VariantBegin(r.Kind.String()); err != nil {
		return err
	}
	switch r.Kind {
	case ReasonDecodeError:
		if err := enc.Str(r.Message); err != nil {
			return err
		}
	case ReasonDomainSpecific:
		if err := enc.MapBegin(); err != nil {
			return err
		}
		if err := enc.VariantBegin("code"); err != nil {
			return err
		}
		if err := enc.U32(r.Code); err != nil {
			return err
		}
		if err := enc.VariantEnd(); err != nil {
			return err
		}
		if err := enc.VariantBegin("description"); err != nil {
			return err
		}
		if err := enc.Str(r.Message); err != nil {
			return err
		}
		if err := enc.VariantEnd(); err != nil {
			return err
		}
		if err := enc.MapEnd(); err != nil {
			return err
		}
	default:
		if err := enc.Unit(); err != nil {
			return err
		}
	}
	return enc.VariantEnd()
}

func decodeReason(dec *codec.Decoder) (Reason, error) {
	name, payload, err := dec.Variant()
	if err != nil {
		return Reason{}, decodeErr("reason", err)
	}
	kind, ok := reasonKinds[name]
	if !ok {
		return Reason{}, &UnknownOutcomeError{Name: name}
	}
	r := Reason{Kind: kind}
	switch kind {
	case ReasonDecodeError:
		if r.Message, err = payload.Str(); err != nil {
			return Reason{}, decodeErr("reason message", err)
		}
	case ReasonDomainSpecific:
		entries, err := payload.Map()
		if err != nil {
			return Reason{}, decodeErr("reason payload", err)
		}
		for entries.More() {
			key, v, err := entries.Next()
			if err != nil {
				return Reason{}, decodeErr("reason payload", err)
			}
			switch key {
			case "code":
				if r.Code, err = v.U32(); err != nil {
					return Reason{}, decodeErr("reason code", err)
				}
			case "description":
				if r.Message, err = v.Str(); err != nil {
					return Reason{}, decodeErr("reason description", err)
				}
			default:
			}
		}
	default:
		if err := payload.Unit(); err != nil {
			return Reason{}, decodeErr("reason payload", err)
		}
	}
	return r, nil
}
