// Package emu provides the VPU architectural state and the cycle-stepped
// execution core.
package emu

// NumRegisters is the number of general-purpose registers.
const NumRegisters = 8

// Register IDs beyond the general-purpose file.
const (
	// RegACC is the accumulator: the sole ALU operand/result and sole
	// memory-transfer register.
	RegACC uint8 = 8
	// RegPC is the program counter.
	RegPC uint8 = 9
)

// RegFile is the VPU register file: eight general-purpose registers
// addressable by ID 0-7, the accumulator, the program counter, and the two
// status flags.
type RegFile struct {
	// R holds the general-purpose registers R0-R7.
	R [NumRegisters]uint32

	// ACC is the accumulator.
	ACC uint32

	// PC is the program counter.
	PC uint32

	// Flags holds the status flags.
	Flags Flags
}

// Flags holds the VPU status flags. Each is mutated only by instructions
// whose registry entry declares it.
type Flags struct {
	// O is the overflow flag.
	O bool
	// C is the compare flag.
	C bool
}

// Read reads a register by encoded ID. Unknown IDs read as 0.
func (r *RegFile) Read(id uint8) uint32 {
	switch {
	case id < NumRegisters:
		return r.R[id]
	case id == RegACC:
		return r.ACC
	case id == RegPC:
		return r.PC
	default:
		return 0
	}
}

// Write writes a register by encoded ID. Writes to unknown IDs are ignored.
func (r *RegFile) Write(id uint8, value uint32) {
	switch {
	case id < NumRegisters:
		r.R[id] = value
	case id == RegACC:
		r.ACC = value
	case id == RegPC:
		r.PC = value
	}
}
