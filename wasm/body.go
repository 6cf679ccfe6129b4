package wasm

// Opcodes used by the body builder.
const (
	opEnd       byte = 0x0B
	opCall      byte = 0x10
	opDrop      byte = 0x1A
	opLocalGet  byte = 0x20
	opLocalSet  byte = 0x21
	opGlobalGet byte = 0x23
	opGlobalSet byte = 0x24
	opI32Load   byte = 0x28
	opI64Load   byte = 0x29
	opI32Store  byte = 0x36
	opI64Store  byte = 0x37
	opI32Const  byte = 0x41
	opI64Const  byte = 0x42
	opI32Add    byte = 0x6A
	opI32Sub    byte = 0x6B
	opI32Mul    byte = 0x6C
	opPrefixFC  byte = 0xFC
)

// Body accumulates a function body instruction by instruction. The encoder
// appends the terminating end opcode; Bytes returns the body without it.
type Body struct {
	buf []byte
}

// NewBody returns an empty body builder.
func NewBody() *Body {
	return &Body{}
}

// Bytes returns the accumulated instructions.
func (b *Body) Bytes() []byte { return b.buf }

// LocalGet pushes a local.
func (b *Body) LocalGet(idx uint32) *Body {
	b.buf = append(b.buf, opLocalGet)
	b.buf = AppendU32(b.buf, idx)
	return b
}

// LocalSet pops into a local.
func (b *Body) LocalSet(idx uint32) *Body {
	b.buf = append(b.buf, opLocalSet)
	b.buf = AppendU32(b.buf, idx)
	return b
}

// GlobalGet pushes a global.
func (b *Body) GlobalGet(idx uint32) *Body {
	b.buf = append(b.buf, opGlobalGet)
	b.buf = AppendU32(b.buf, idx)
	return b
}

// GlobalSet pops into a global.
func (b *Body) GlobalSet(idx uint32) *Body {
	b.buf = append(b.buf, opGlobalSet)
	b.buf = AppendU32(b.buf, idx)
	return b
}

// I32Const pushes a constant.
func (b *Body) I32Const(v int32) *Body {
	b.buf = append(b.buf, opI32Const)
	b.buf = AppendS32(b.buf, v)
	return b
}

// I64Const pushes a constant.
func (b *Body) I64Const(v int64) *Body {
	b.buf = append(b.buf, opI64Const)
	b.buf = AppendS64(b.buf, v)
	return b
}

// I32Add adds the top two values.
func (b *Body) I32Add() *Body {
	b.buf = append(b.buf, opI32Add)
	return b
}

// I32Sub subtracts the top value from the one beneath it.
func (b *Body) I32Sub() *Body {
	b.buf = append(b.buf, opI32Sub)
	return b
}

// I32Mul multiplies the top two values.
func (b *Body) I32Mul() *Body {
	b.buf = append(b.buf, opI32Mul)
	return b
}

// I32Load reads an i32 at addr+offset.
func (b *Body) I32Load(offset uint32) *Body {
	b.buf = append(b.buf, opI32Load)
	b.buf = AppendU32(b.buf, 2) // alignment hint
	b.buf = AppendU32(b.buf, offset)
	return b
}

// I32Store writes an i32 at addr+offset.
func (b *Body) I32Store(offset uint32) *Body {
	b.buf = append(b.buf, opI32Store)
	b.buf = AppendU32(b.buf, 2)
	b.buf = AppendU32(b.buf, offset)
	return b
}

// Call invokes a function index.
func (b *Body) Call(idx uint32) *Body {
	b.buf = append(b.buf, opCall)
	b.buf = AppendU32(b.buf, idx)
	return b
}

// Drop discards the top value.
func (b *Body) Drop() *Body {
	b.buf = append(b.buf, opDrop)
	return b
}

// Loop opens a void loop block. Close it with EndBlock.
func (b *Body) Loop() *Body {
	b.buf = append(b.buf, 0x03, 0x40)
	return b
}

// Br branches to the block at the given relative depth.
func (b *Body) Br(depth uint32) *Body {
	b.buf = append(b.buf, 0x0C)
	b.buf = AppendU32(b.buf, depth)
	return b
}

// EndBlock closes the innermost block or loop.
func (b *Body) EndBlock() *Body {
	b.buf = append(b.buf, opEnd)
	return b
}

// Raw appends arbitrary instruction bytes.
func (b *Body) Raw(code ...byte) *Body {
	b.buf = append(b.buf, code...)
	return b
}

// MemoryCopy copies (dst, src, len) from the stack within memory 0.
func (b *Body) MemoryCopy() *Body {
	b.buf = append(b.buf, opPrefixFC)
	b.buf = AppendU32(b.buf, 10)
	b.buf = append(b.buf, 0x00, 0x00)
	return b
}

// MemoryGrow grows memory by the page count on the stack, pushing the old
// size or -1.
func (b *Body) MemoryGrow() *Body {
	b.buf = append(b.buf, 0x40, 0x00)
	return b
}

// I32ConstGlobalInit returns a constant initializer expression for globals.
func I32ConstGlobalInit(v int32) []byte {
	out := []byte{opI32Const}
	return AppendS32(out, v)
}
