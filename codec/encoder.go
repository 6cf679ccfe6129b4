package codec

import (
	"encoding/binary"
	"math"
)

const maxBody = math.MaxUint32

// scope tracks one open container on the encoder stack.
type scope struct {
	start int // body offset, just past the length placeholder
	tag   Tag
	count int
}

// Encoder builds one wire value (or a root-level sequence of values) into an
// internal buffer. The encoder is a state machine: container scopes must be
// closed in LIFO order, map scopes admit only variant entries, and algebraic
// scopes (option, result, variant) admit exactly one payload item.
//
// The zero value is not usable; call NewEncoder.
type Encoder struct {
	buf   []byte
	stack []scope
}

// NewEncoder returns an encoder with an empty root scope.
func NewEncoder() *Encoder {
	return &Encoder{
		buf:   make([]byte, 0, 256),
		stack: make([]scope, 1, 8),
	}
}

// Reset discards all written data and open scopes, keeping the buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
	e.stack = e.stack[:1]
	e.stack[0] = scope{}
}

// Bytes returns the encoded buffer. It fails with ErrScopeStillOpen if a
// container scope has not been closed.
func (e *Encoder) Bytes() ([]byte, error) {
	if len(e.stack) > 1 {
		return nil, ErrScopeStillOpen
	}
	return e.buf, nil
}

func (e *Encoder) top() *scope {
	return &e.stack[len(e.stack)-1]
}

// checkWrite validates that a value tagged t may be written in the current
// scope.
func (e *Encoder) checkWrite(t Tag) error {
	s := e.top()
	switch s.tag {
	case 0, TagList: // root or list: anything goes
		return nil
	case TagMap:
		if t != TagVariant {
			return ErrInvalidMapEntry
		}
		return nil
	default: // option, result, variant
		if s.count >= 1 {
			return ErrTooManyItems
		}
		return nil
	}
}

func (e *Encoder) wrote() {
	e.top().count++
}

func (e *Encoder) scalar(t Tag, payload ...byte) error {
	if err := e.checkWrite(t); err != nil {
		return err
	}
	e.buf = append(e.buf, byte(t))
	e.buf = append(e.buf, payload...)
	e.wrote()
	return nil
}

// Bool encodes a boolean as one of the two bool tags.
func (e *Encoder) Bool(v bool) error {
	if v {
		return e.scalar(TagBoolTrue)
	}
	return e.scalar(TagBoolFalse)
}

// U8 encodes an unsigned 8-bit integer.
func (e *Encoder) U8(v uint8) error { return e.scalar(TagU8, v) }

// S8 encodes a signed 8-bit integer.
func (e *Encoder) S8(v int8) error { return e.scalar(TagS8, byte(v)) }

// U16 encodes an unsigned 16-bit integer, little-endian.
func (e *Encoder) U16(v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return e.scalar(TagU16, b[:]...)
}

// S16 encodes a signed 16-bit integer, little-endian.
func (e *Encoder) S16(v int16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(v))
	return e.scalar(TagS16, b[:]...)
}

// U32 encodes an unsigned 32-bit integer, little-endian.
func (e *Encoder) U32(v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return e.scalar(TagU32, b[:]...)
}

// S32 encodes a signed 32-bit integer, little-endian.
func (e *Encoder) S32(v int32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return e.scalar(TagS32, b[:]...)
}

// U64 encodes an unsigned 64-bit integer, little-endian.
func (e *Encoder) U64(v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return e.scalar(TagU64, b[:]...)
}

// S64 encodes a signed 64-bit integer, little-endian.
func (e *Encoder) S64(v int64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return e.scalar(TagS64, b[:]...)
}

// F32 encodes a 32-bit float, little-endian IEEE 754.
func (e *Encoder) F32(v float32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	return e.scalar(TagF32, b[:]...)
}

// F64 encodes a 64-bit float, little-endian IEEE 754.
func (e *Encoder) F64(v float64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return e.scalar(TagF64, b[:]...)
}

// Char encodes a Unicode code point as a u32.
func (e *Encoder) Char(v rune) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return e.scalar(TagChar, b[:]...)
}

// Unit encodes the unit value.
func (e *Encoder) Unit() error { return e.scalar(TagUnit) }

// OptionNone encodes an absent option. It is atomic: no scope is opened.
func (e *Encoder) OptionNone() error { return e.scalar(TagOptionNone) }

func (e *Encoder) blob(t Tag, data []byte) error {
	if len(data) > maxBody {
		return &BlobTooLargeError{Size: len(data)}
	}
	if err := e.checkWrite(t); err != nil {
		return err
	}
	e.buf = append(e.buf, byte(t))
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(data)))
	e.buf = append(e.buf, b[:]...)
	e.buf = append(e.buf, data...)
	e.wrote()
	return nil
}

// Str encodes a UTF-8 string blob.
func (e *Encoder) Str(v string) error { return e.blob(TagString, []byte(v)) }

// Blob encodes a raw byte blob.
func (e *Encoder) Blob(v []byte) error { return e.blob(TagBytes, v) }

// Raw injects a pre-encoded value verbatim. The injected bytes must start
// with a valid tag; they count as a single item in the current scope. This
// is how opaque slabs ride inside frames without re-encoding.
func (e *Encoder) Raw(encoded []byte) error {
	if len(encoded) == 0 {
		return ErrUnexpectedEnd
	}
	if !valid(encoded[0]) {
		return &InvalidTagError{Byte: encoded[0]}
	}
	if err := e.checkWrite(Tag(encoded[0])); err != nil {
		return err
	}
	e.buf = append(e.buf, encoded...)
	e.wrote()
	return nil
}

func (e *Encoder) beginScope(t Tag) error {
	if err := e.checkWrite(t); err != nil {
		return err
	}
	e.buf = append(e.buf, byte(t), 0, 0, 0, 0)
	e.stack = append(e.stack, scope{start: len(e.buf), tag: t})
	return nil
}

func (e *Encoder) endScope(t Tag) error {
	if len(e.stack) <= 1 {
		return ErrScopeUnderflow
	}
	s := e.top()
	if s.tag != t {
		return &ScopeMismatchError{Expected: t, Actual: s.tag}
	}
	switch t {
	case TagOptionSome, TagResultOk, TagResultErr, TagVariant:
		if s.count == 0 {
			return ErrEmptyScope
		}
	}
	body := len(e.buf) - s.start
	if body > maxBody {
		return ErrContainerFull
	}
	binary.LittleEndian.PutUint32(e.buf[s.start-4:s.start], uint32(body))
	e.stack = e.stack[:len(e.stack)-1]
	e.wrote()
	return nil
}

// ListBegin opens a list scope. Lists admit any number of items.
func (e *Encoder) ListBegin() error { return e.beginScope(TagList) }

// ListEnd closes the innermost list scope.
func (e *Encoder) ListEnd() error { return e.endScope(TagList) }

// MapBegin opens a map scope. Maps admit only variant entries, each keyed
// by its case name.
func (e *Encoder) MapBegin() error { return e.beginScope(TagMap) }

// MapEnd closes the innermost map scope.
func (e *Encoder) MapEnd() error { return e.endScope(TagMap) }

// OptionSomeBegin opens a present-option scope holding exactly one value.
func (e *Encoder) OptionSomeBegin() error { return e.beginScope(TagOptionSome) }

// OptionSomeEnd closes the innermost option scope.
func (e *Encoder) OptionSomeEnd() error { return e.endScope(TagOptionSome) }

// ResultOkBegin opens an ok-result scope holding exactly one value.
func (e *Encoder) ResultOkBegin() error { return e.beginScope(TagResultOk) }

// ResultOkEnd closes the innermost ok-result scope.
func (e *Encoder) ResultOkEnd() error { return e.endScope(TagResultOk) }

// ResultErrBegin opens an err-result scope holding exactly one value.
func (e *Encoder) ResultErrBegin() error { return e.beginScope(TagResultErr) }

// ResultErrEnd closes the innermost err-result scope.
func (e *Encoder) ResultErrEnd() error { return e.endScope(TagResultErr) }

// VariantBegin opens a variant scope and writes the case name. Exactly one
// payload value must follow before VariantEnd; cases without a payload
// write Unit.
func (e *Encoder) VariantBegin(name string) error {
	if len(name) > maxBody {
		return &BlobTooLargeError{Size: len(name)}
	}
	if err := e.beginScope(TagVariant); err != nil {
		return err
	}
	// The case name is part of the scope header, not the payload item.
	e.buf = append(e.buf, byte(TagString))
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(name)))
	e.buf = append(e.buf, b[:]...)
	e.buf = append(e.buf, name...)
	return nil
}

// VariantEnd closes the innermost variant scope.
func (e *Encoder) VariantEnd() error { return e.endScope(TagVariant) }
