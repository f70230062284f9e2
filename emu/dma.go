package emu

import (
	"fmt"

	"github.com/sarchlab/vpusim/isa"
)

// DMA is the direct memory access engine. It is the one exception to the
// async-kick model: SET and CPY are synchronous and complete before the
// issuing instruction retires, so the pipe is never observably Busy to a
// barrier.
type DMA struct {
	name   string
	prefix uint8

	regFile *RegFile
	memory  *Memory

	// CPU-visible configuration registers.
	dest   uint32
	source uint32
	length uint32
}

// NewDMA creates the DMA engine over the shared register file and memory.
func NewDMA(pipe isa.Pipe, regFile *RegFile, memory *Memory) *DMA {
	return &DMA{
		name:    pipe.Name,
		prefix:  pipe.Prefix,
		regFile: regFile,
		memory:  memory,
	}
}

// Name returns the pipe name.
func (d *DMA) Name() string { return d.name }

// Prefix returns the pipe's opcode prefix.
func (d *DMA) Prefix() uint8 { return d.prefix }

// Busy always reports false: DMA operations complete at issue.
func (d *DMA) Busy() bool { return false }

// Dest returns the destination configuration register.
func (d *DMA) Dest() uint32 { return d.dest }

// Source returns the source configuration register.
func (d *DMA) Source() uint32 { return d.source }

// Length returns the length configuration register.
func (d *DMA) Length() uint32 { return d.length }

// Exec executes one DMA instruction. DST, SRC, and LEN write the
// configuration registers; SET and CPY perform the full transfer before
// returning.
func (d *DMA) Exec(in *isa.Instruction, w isa.Word) error {
	vals := resolveOperands(d.regFile, in, w)

	switch in.Name {
	case "DST":
		d.dest = vals[0]
	case "SRC":
		d.source = vals[0]
	case "LEN":
		d.length = vals[0]
	case "SET":
		// The value is truncated to its least-significant byte. This is
		// documented behavior, not an error.
		d.memory.Fill(d.dest, d.length, byte(vals[0]))
	case "CPY":
		d.memory.CopyRange(d.dest, d.source, d.length)
	default:
		return fmt.Errorf("DMA cannot execute %s", in.Mnemonic())
	}
	return nil
}

// Kick is not part of the DMA programming model; its operations are
// issued as instructions.
func (d *DMA) Kick(base uint32) error {
	return fmt.Errorf("DMA does not execute control streams")
}

// Advance is a no-op: DMA is never in flight across cycles.
func (d *DMA) Advance() error { return nil }

// Complete is a no-op: DMA is never in flight across cycles.
func (d *DMA) Complete() {}

// Reset clears the configuration registers.
func (d *DMA) Reset() {
	d.dest, d.source, d.length = 0, 0, 0
}
