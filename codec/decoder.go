package codec

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Decoder is a zero-copy cursor over an encoded byte slice. Typed readers
// verify the wire tag against the expected kind and fail with a
// TagMismatchError otherwise. The decoder never copies blob payloads;
// returned byte slices alias the input.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder returns a decoder positioned at the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Empty reports whether the cursor has consumed all input.
func (d *Decoder) Empty() bool {
	return d.off >= len(d.buf)
}

// Peek returns the tag of the next value without advancing.
func (d *Decoder) Peek() (Tag, error) {
	if d.off >= len(d.buf) {
		return 0, ErrUnexpectedEnd
	}
	b := d.buf[d.off]
	if !valid(b) {
		return 0, &InvalidTagError{Byte: b}
	}
	return Tag(b), nil
}

// extent returns the offset just past the next complete value.
func (d *Decoder) extent() (int, error) {
	t, err := d.Peek()
	if err != nil {
		return 0, err
	}
	if t.hasLength() {
		if d.off+5 > len(d.buf) {
			return 0, ErrUnexpectedEnd
		}
		n := binary.LittleEndian.Uint32(d.buf[d.off+1 : d.off+5])
		end := d.off + 5 + int(n)
		if end > len(d.buf) {
			return 0, ErrUnexpectedEnd
		}
		return end, nil
	}
	end := d.off + 1 + t.scalarSize()
	if end > len(d.buf) {
		return 0, ErrUnexpectedEnd
	}
	return end, nil
}

// Skip advances past one complete value using its framing alone.
func (d *Decoder) Skip() error {
	end, err := d.extent()
	if err != nil {
		return err
	}
	d.off = end
	return nil
}

// RawValue returns the encoded bytes of the next complete value, tag and
// framing included, and advances past it.
func (d *Decoder) RawValue() ([]byte, error) {
	end, err := d.extent()
	if err != nil {
		return nil, err
	}
	raw := d.buf[d.off:end]
	d.off = end
	return raw, nil
}

// expect consumes the tag byte if it matches want.
func (d *Decoder) expect(want Tag) error {
	got, err := d.Peek()
	if err != nil {
		return err
	}
	if got != want {
		return &TagMismatchError{Expected: want, Got: got}
	}
	d.off++
	return nil
}

func (d *Decoder) take(n int) ([]byte, error) {
	if d.off+n > len(d.buf) {
		return nil, ErrUnexpectedEnd
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

// Bool reads a boolean.
func (d *Decoder) Bool() (bool, error) {
	t, err := d.Peek()
	if err != nil {
		return false, err
	}
	switch t {
	case TagBoolTrue:
		d.off++
		return true, nil
	case TagBoolFalse:
		d.off++
		return false, nil
	}
	return false, &TagMismatchError{Expected: TagBoolTrue, Got: t}
}

// U8 reads an unsigned 8-bit integer.
func (d *Decoder) U8() (uint8, error) {
	if err := d.expect(TagU8); err != nil {
		return 0, err
	}
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// S8 reads a signed 8-bit integer.
func (d *Decoder) S8() (int8, error) {
	if err := d.expect(TagS8); err != nil {
		return 0, err
	}
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

// U16 reads an unsigned 16-bit integer.
func (d *Decoder) U16() (uint16, error) {
	if err := d.expect(TagU16); err != nil {
		return 0, err
	}
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// S16 reads a signed 16-bit integer.
func (d *Decoder) S16() (int16, error) {
	if err := d.expect(TagS16); err != nil {
		return 0, err
	}
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(b)), nil
}

// U32 reads an unsigned 32-bit integer.
func (d *Decoder) U32() (uint32, error) {
	if err := d.expect(TagU32); err != nil {
		return 0, err
	}
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// S32 reads a signed 32-bit integer.
func (d *Decoder) S32() (int32, error) {
	if err := d.expect(TagS32); err != nil {
		return 0, err
	}
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

// U64 reads an unsigned 64-bit integer.
func (d *Decoder) U64() (uint64, error) {
	if err := d.expect(TagU64); err != nil {
		return 0, err
	}
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// S64 reads a signed 64-bit integer.
func (d *Decoder) S64() (int64, error) {
	if err := d.expect(TagS64); err != nil {
		return 0, err
	}
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// F32 reads a 32-bit float.
func (d *Decoder) F32() (float32, error) {
	if err := d.expect(TagF32); err != nil {
		return 0, err
	}
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// F64 reads a 64-bit float.
func (d *Decoder) F64() (float64, error) {
	if err := d.expect(TagF64); err != nil {
		return 0, err
	}
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// Char reads a Unicode code point.
func (d *Decoder) Char() (rune, error) {
	if err := d.expect(TagChar); err != nil {
		return 0, err
	}
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return rune(binary.LittleEndian.Uint32(b)), nil
}

// Unit reads the unit value.
func (d *Decoder) Unit() error {
	return d.expect(TagUnit)
}

func (d *Decoder) blob(t Tag) ([]byte, error) {
	if err := d.expect(t); err != nil {
		return nil, err
	}
	lb, err := d.take(4)
	if err != nil {
		return nil, err
	}
	return d.take(int(binary.LittleEndian.Uint32(lb)))
}

// Str reads a UTF-8 string blob.
func (d *Decoder) Str() (string, error) {
	b, err := d.blob(TagString)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// Blob reads a raw byte blob. The returned slice aliases the input.
func (d *Decoder) Blob() ([]byte, error) {
	return d.blob(TagBytes)
}

// body consumes a container header and returns a decoder over its body.
func (d *Decoder) body(t Tag) (*Decoder, error) {
	if err := d.expect(t); err != nil {
		return nil, err
	}
	lb, err := d.take(4)
	if err != nil {
		return nil, err
	}
	b, err := d.take(int(binary.LittleEndian.Uint32(lb)))
	if err != nil {
		return nil, err
	}
	return NewDecoder(b), nil
}

// List consumes a list header and returns an iterator over its items.
func (d *Decoder) List() (*ListIter, error) {
	body, err := d.body(TagList)
	if err != nil {
		return nil, err
	}
	return &ListIter{d: body}, nil
}

// Map consumes a map header and returns an iterator over its entries.
func (d *Decoder) Map() (*MapIter, error) {
	body, err := d.body(TagMap)
	if err != nil {
		return nil, err
	}
	return &MapIter{d: body}, nil
}

// Option reads an option. It returns (nil, false) for an absent option and
// a decoder positioned at the payload for a present one.
func (d *Decoder) Option() (*Decoder, bool, error) {
	t, err := d.Peek()
	if err != nil {
		return nil, false, err
	}
	switch t {
	case TagOptionNone:
		d.off++
		return nil, false, nil
	case TagOptionSome:
		body, err := d.body(TagOptionSome)
		if err != nil {
			return nil, false, err
		}
		return body, true, nil
	}
	return nil, false, &TagMismatchError{Expected: TagOptionSome, Got: t}
}

// Result reads a result. ok reports which arm was present; the decoder is
// positioned at the arm's payload.
func (d *Decoder) Result() (payload *Decoder, ok bool, err error) {
	t, err := d.Peek()
	if err != nil {
		return nil, false, err
	}
	switch t {
	case TagResultOk:
		body, err := d.body(TagResultOk)
		return body, true, err
	case TagResultErr:
		body, err := d.body(TagResultErr)
		return body, false, err
	}
	return nil, false, &TagMismatchError{Expected: TagResultOk, Got: t}
}

// Variant reads a variant header and returns the case name and a decoder
// positioned at the payload value.
func (d *Decoder) Variant() (string, *Decoder, error) {
	body, err := d.body(TagVariant)
	if err != nil {
		return "", nil, err
	}
	name, err := body.Str()
	if err != nil {
		return "", nil, err
	}
	return name, body, nil
}

// ListIter walks the items of a list body in order.
type ListIter struct {
	d *Decoder
}

// More reports whether another item remains.
func (it *ListIter) More() bool {
	return !it.d.Empty()
}

// Next returns a decoder over the next item. The iterator advances past the
// item regardless of whether the caller consumes it.
func (it *ListIter) Next() (*Decoder, error) {
	raw, err := it.d.RawValue()
	if err != nil {
		return nil, err
	}
	return NewDecoder(raw), nil
}

// MapIter walks the entries of a map body in order.
type MapIter struct {
	d *Decoder
}

// More reports whether another entry remains.
func (it *MapIter) More() bool {
	return !it.d.Empty()
}

// Next returns the next entry's name and a decoder over its value.
func (it *MapIter) Next() (string, *Decoder, error) {
	name, payload, err := it.d.Variant()
	if err != nil {
		return "", nil, err
	}
	return name, payload, nil
}
