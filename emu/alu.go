package emu

// ALU implements the VPU arithmetic operations. The accumulator is the
// sole operand and result; flag mutation follows each instruction's
// registry declaration and is never implicit.
type ALU struct {
	regFile *RegFile
}

// NewALU creates a new ALU connected to the given register file.
func NewALU(regFile *RegFile) *ALU {
	return &ALU{regFile: regFile}
}

// ADD adds a value to ACC. It sets O on signed overflow of the 32-bit
// width and sets C when the resulting ACC value is exactly zero.
func (a *ALU) ADD(value uint32) {
	op1 := a.regFile.ACC
	result := op1 + value
	a.regFile.ACC = result

	op1Sign := op1 >> 31
	op2Sign := value >> 31
	resultSign := result >> 31
	a.regFile.Flags.O = (op1Sign == op2Sign) && (op1Sign != resultSign)
	a.regFile.Flags.C = result == 0
}

// ASR arithmetic-shifts ACC right, preserving the sign bit. The shift
// amount is taken modulo 32.
func (a *ALU) ASR(amount uint32) {
	a.regFile.ACC = uint32(int32(a.regFile.ACC) >> (amount & 31))
}

// LSR logical-shifts ACC right.
func (a *ALU) LSR(amount uint32) {
	a.regFile.ACC >>= amount & 31
}

// LSL logical-shifts ACC left.
func (a *ALU) LSL(amount uint32) {
	a.regFile.ACC <<= amount & 31
}

// CMPZero sets C when the value is zero.
func (a *ALU) CMPZero(value uint32) {
	a.regFile.Flags.C = value == 0
}

// CMPEqual sets C when the two values are equal.
func (a *ALU) CMPEqual(v1, v2 uint32) {
	a.regFile.Flags.C = v1 == v2
}
