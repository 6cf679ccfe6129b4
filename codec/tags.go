package codec

// Tag identifies the kind of an encoded value. The byte values are part of
// the wire contract and never change meaning.
type Tag byte

const (
	// Fixed-width scalars.
	TagBoolTrue  Tag = 0x01
	TagBoolFalse Tag = 0x02
	TagU8        Tag = 0x03
	TagU16       Tag = 0x04
	TagU32       Tag = 0x05
	TagU64       Tag = 0x06
	TagS8        Tag = 0x07
	TagS16       Tag = 0x08
	TagS32       Tag = 0x09
	TagS64       Tag = 0x0A
	TagF32       Tag = 0x0B
	TagF64       Tag = 0x0C
	TagChar      Tag = 0x0D

	// Atomic markers.
	TagUnit       Tag = 0x0E
	TagOptionNone Tag = 0x0F

	// Blobs: tag + u32 length + bytes.
	TagString Tag = 0x10
	TagBytes  Tag = 0x11

	// Containers: tag + u32 length + body.
	TagList Tag = 0x20
	TagMap  Tag = 0x21

	// Algebraic containers: exactly one payload item.
	TagOptionSome Tag = 0x30
	TagResultOk   Tag = 0x31
	TagResultErr  Tag = 0x32
	TagVariant    Tag = 0x33
)

// valid reports whether b is a known tag byte.
func valid(b byte) bool {
	switch Tag(b) {
	case TagBoolTrue, TagBoolFalse,
		TagU8, TagU16, TagU32, TagU64,
		TagS8, TagS16, TagS32, TagS64,
		TagF32, TagF64, TagChar,
		TagUnit, TagOptionNone,
		TagString, TagBytes,
		TagList, TagMap,
		TagOptionSome, TagResultOk, TagResultErr, TagVariant:
		return true
	}
	return false
}

// String returns the tag's wire name, used in error messages.
func (t Tag) String() string {
	switch t {
	case TagBoolTrue:
		return "bool(true)"
	case TagBoolFalse:
		return "bool(false)"
	case TagU8:
		return "u8"
	case TagU16:
		return "u16"
	case TagU32:
		return "u32"
	case TagU64:
		return "u64"
	case TagS8:
		return "s8"
	case TagS16:
		return "s16"
	case TagS32:
		return "s32"
	case TagS64:
		return "s64"
	case TagF32:
		return "f32"
	case TagF64:
		return "f64"
	case TagChar:
		return "char"
	case TagUnit:
		return "unit"
	case TagOptionNone:
		return "option(none)"
	case TagString:
		return "string"
	case TagBytes:
		return "bytes"
	case TagList:
		return "list"
	case TagMap:
		return "map"
	case TagOptionSome:
		return "option(some)"
	case TagResultOk:
		return "result(ok)"
	case TagResultErr:
		return "result(err)"
	case TagVariant:
		return "variant"
	}
	return "invalid"
}

// hasLength reports whether the tag is followed by a u32 length field.
func (t Tag) hasLength() bool {
	switch t {
	case TagString, TagBytes, TagList, TagMap,
		TagOptionSome, TagResultOk, TagResultErr, TagVariant:
		return true
	}
	return false
}

// scalarSize returns the payload width of a fixed-width scalar tag.
func (t Tag) scalarSize() int {
	switch t {
	case TagBoolTrue, TagBoolFalse, TagUnit, TagOptionNone:
		return 0
	case TagU8, TagS8:
		return 1
	case TagU16, TagS16:
		return 2
	case TagU32, TagS32, TagF32, TagChar:
		return 4
	case TagU64, TagS64, TagF64:
		return 8
	}
	return 0
}
