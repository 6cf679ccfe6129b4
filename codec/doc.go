// Package codec implements the self-describing wire format used between
// mesh peers.
//
// Every value is framed as [Tag][Length?][Payload]:
//
//   - Scalars inline their little-endian payload after a 1-byte tag.
//   - Blobs (strings, byte sequences) carry a 4-byte length prefix.
//   - Containers (lists, maps, options, results, variants) open a scope:
//     tag, 4-byte length placeholder, body. Closing the scope back-patches
//     the placeholder with the body length.
//
// Because every value carries its framing, a reader can skip one complete
// value without understanding its contents. The demux pump relies on this
// to route frames by sequence number alone.
//
// Encoding:
//
//	enc := codec.NewEncoder()
//	enc.ListBegin()
//	enc.U32(42)
//	enc.Str("hello")
//	enc.ListEnd()
//	payload, err := enc.Bytes()
//
// Decoding is a zero-copy cursor over the input:
//
//	dec := codec.NewDecoder(payload)
//	items, err := dec.List()
//	item, err := items.Next()
//	v, err := item.U32()
package codec
