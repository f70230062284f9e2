package isa

import "encoding/binary"

// ByteOrder is the fixed wire order of instruction words and the memory
// image. The opcode sits in the most significant byte, so words serialize
// big-endian.
var ByteOrder = binary.BigEndian

// WordSize is the size of one instruction word in bytes. Every instruction
// occupies exactly one word.
const WordSize = 4

// Word is one 32-bit instruction word: opcode byte followed by up to three
// operand bytes, a 16-bit immediate, or a 24-bit immediate/label.
type Word uint32

// Opcode returns the opcode byte.
func (w Word) Opcode() Opcode {
	return Opcode(w >> 24)
}

// Register returns the register ID at operand byte position index, counted
// from the most significant operand byte. index must be 0, 1, or 2.
func (w Word) Register(index int) uint8 {
	return uint8(w >> (16 - 8*index))
}

// U16 returns the low 16 bits of the word.
func (w Word) U16() uint16 {
	return uint16(w)
}

// U24 returns the low 24 bits of the word.
func (w Word) U24() uint32 {
	return uint32(w) & 0xFFFFFF
}

// Label returns the low 24 bits of the word, interpreted as an absolute
// address resolved from a label.
func (w Word) Label() uint32 {
	return w.U24()
}

// Bytes serializes the word in wire order.
func (w Word) Bytes() []byte {
	var b [WordSize]byte
	ByteOrder.PutUint32(b[:], uint32(w))
	return b[:]
}

// WordAt deserializes one word from wire order. The slice must hold at
// least WordSize bytes.
func WordAt(b []byte) Word {
	return Word(ByteOrder.Uint32(b))
}

// Encode packs an opcode and operand values into a word according to the
// declared operand shape. It is total over the declared bit ranges: values
// wider than an operand's width are masked, never rejected. Range checking
// belongs to the assembler.
func Encode(op Opcode, shape []OperandType, vals []uint32) Word {
	w := Word(op) << 24
	slot := 0
	for i, t := range shape {
		switch t {
		case OperandReg:
			w |= Word(vals[i]&0xFF) << (16 - 8*slot)
			slot++
		case OperandImm16:
			w |= Word(vals[i] & 0xFFFF)
		case OperandImm24, OperandLab:
			w |= Word(vals[i] & 0xFFFFFF)
		}
	}
	return w
}

// Operands unpacks the operand values of a word according to the declared
// shape. It is the inverse of Encode for in-range values.
func Operands(w Word, shape []OperandType) []uint32 {
	vals := make([]uint32, len(shape))
	slot := 0
	for i, t := range shape {
		switch t {
		case OperandReg:
			vals[i] = uint32(w.Register(slot))
			slot++
		case OperandImm16:
			vals[i] = uint32(w.U16())
		case OperandImm24, OperandLab:
			vals[i] = w.U24()
		}
	}
	return vals
}
