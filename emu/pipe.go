package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/vpusim/isa"
)

// ErrPipeBusy reports a kick issued to a pipe that already has an
// operation in flight. The architecture guarantees at most one outstanding
// kick per pipe; violating that is a fatal execution error, never a queue
// or an overwrite.
var ErrPipeBusy = errors.New("pipe is busy")

// Pipe is a hardware execution unit addressed by a 4-bit opcode prefix.
// A pipe is created Idle, becomes Busy only through a kick, and returns to
// Idle only by completing its work, never by a direct CPU write.
type Pipe interface {
	// Name returns the mnemonic namespace (e.g. "DMA").
	Name() string

	// Prefix returns the 4-bit opcode prefix.
	Prefix() uint8

	// Busy reports whether an operation is in flight.
	Busy() bool

	// Exec executes one CPU-issued instruction belonging to this pipe.
	// The coordinator guarantees the pipe is Idle when Exec is called.
	Exec(in *isa.Instruction, w isa.Word) error

	// Kick starts the pipe executing the control stream at base.
	Kick(base uint32) error

	// Advance progresses an in-flight operation by one cycle. An error
	// is a fatal execution fault surfaced by the driver.
	Advance() error

	// Complete forces the in-flight operation to retire immediately.
	Complete()

	// Reset returns the pipe to its power-on Idle state.
	Reset()
}

// Coordinator tracks the busy/idle state machine of every pipe and
// enforces the single-in-flight-kick invariant. Pipes are advanced once
// per global cycle by the simulation driver.
type Coordinator struct {
	pipes    []Pipe
	byPrefix map[uint8]Pipe
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{byPrefix: make(map[uint8]Pipe)}
}

// Register adds a pipe. Registering two pipes with the same prefix is a
// construction error.
func (c *Coordinator) Register(p Pipe) error {
	if _, ok := c.byPrefix[p.Prefix()]; ok {
		return fmt.Errorf("pipe prefix %d registered twice", p.Prefix())
	}
	c.pipes = append(c.pipes, p)
	c.byPrefix[p.Prefix()] = p
	return nil
}

// Pipe resolves an opcode prefix to its pipe.
func (c *Coordinator) Pipe(prefix uint8) (Pipe, bool) {
	p, ok := c.byPrefix[prefix]
	return p, ok
}

// Dispatch routes a CPU-issued hardware instruction to its pipe. A Busy
// target fails fast.
func (c *Coordinator) Dispatch(in *isa.Instruction, w isa.Word) error {
	p, ok := c.byPrefix[in.Opcode.Pipe()]
	if !ok {
		return fmt.Errorf("no pipe registered for prefix %d (opcode %#02x)",
			in.Opcode.Pipe(), uint8(in.Opcode))
	}
	if p.Busy() {
		return fmt.Errorf("%w: %s", ErrPipeBusy, p.Name())
	}
	return p.Exec(in, w)
}

// IssueKick starts the pipe with the given prefix on a control stream.
// This is the external-driver form of a kick and enforces the same
// invariant.
func (c *Coordinator) IssueKick(prefix uint8, base uint32) error {
	p, ok := c.byPrefix[prefix]
	if !ok {
		return fmt.Errorf("no pipe registered for prefix %d", prefix)
	}
	if p.Busy() {
		return fmt.Errorf("%w: %s", ErrPipeBusy, p.Name())
	}
	return p.Kick(base)
}

// IsBusy reports whether the pipe with the given prefix is Busy.
func (c *Coordinator) IsBusy(prefix uint8) bool {
	p, ok := c.byPrefix[prefix]
	return ok && p.Busy()
}

// AnyBusy reports whether any pipe is Busy. This is the barrier's wait
// condition.
func (c *Coordinator) AnyBusy() bool {
	for _, p := range c.pipes {
		if p.Busy() {
			return true
		}
	}
	return false
}

// AnyBusyExcept reports whether any pipe other than the given prefix is
// Busy.
func (c *Coordinator) AnyBusyExcept(prefix uint8) bool {
	for _, p := range c.pipes {
		if p.Prefix() != prefix && p.Busy() {
			return true
		}
	}
	return false
}

// Advance advances every Busy pipe by one cycle.
func (c *Coordinator) Advance() error {
	for _, p := range c.pipes {
		if p.Busy() {
			if err := p.Advance(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Complete forces the pipe with the given prefix to retire its in-flight
// operation.
func (c *Coordinator) Complete(prefix uint8) {
	if p, ok := c.byPrefix[prefix]; ok {
		p.Complete()
	}
}

// Reset returns every pipe to Idle.
func (c *Coordinator) Reset() {
	for _, p := range c.pipes {
		p.Reset()
	}
}

// resolveOperands unpacks a word's operands and replaces register IDs with
// the current register values. Immediates and labels pass through.
func resolveOperands(rf *RegFile, in *isa.Instruction, w isa.Word) []uint32 {
	vals := isa.Operands(w, in.Operands)
	for i, t := range in.Operands {
		if t == isa.OperandReg {
			vals[i] = rf.Read(uint8(vals[i]))
		}
	}
	return vals
}
