package emu

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/sarchlab/vpusim/isa"
)

// ErrCycleOverflow reports that the global cycle counter would wrap.
var ErrCycleOverflow = errors.New("cycle counter overflow")

// Stats holds execution statistics for one simulation.
type Stats struct {
	// Instructions is the number of CPU instructions retired.
	Instructions uint64
	// Flushes is the number of branch mispredictions that discarded a
	// speculative fetch.
	Flushes uint64
	// StallCycles is the number of cycles spent on mispredict and fetch
	// penalties.
	StallCycles uint64
	// BarrierCycles is the number of cycles fetch was suspended waiting
	// on Busy pipes.
	BarrierCycles uint64
	// FetchPenaltyCycles is the total penalty reported by the fetch
	// latency model, when one is attached.
	FetchPenaltyCycles uint64
}

// FetchModel reports extra cycles a fetch at an address costs beyond the
// baseline single cycle. The timing/cache package provides one.
type FetchModel interface {
	FetchPenalty(addr uint32) uint64
}

// Emulator is the cycle-stepped VPU execution core. The global cycle
// counter is session state with a defined reset, so multiple independent
// simulations can coexist in one process.
type Emulator struct {
	cfg      Config
	registry *isa.Registry

	regFile   *RegFile
	memory    *Memory
	alu       *ALU
	predictor *BranchPredictor
	coord     *Coordinator

	scheduler *Scheduler
	dma       *DMA
	blitter   *Blitter

	fetchModel FetchModel

	cycle     uint64
	maxCycles uint64
	stall     uint64
	barrier   bool
	halted    bool
	fatal     error

	stats Stats

	stdout io.Writer
	stderr io.Writer
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) EmulatorOption {
	return func(e *Emulator) { e.stdout = w }
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) EmulatorOption {
	return func(e *Emulator) { e.stderr = w }
}

// WithRegistry sets a custom instruction registry.
func WithRegistry(r *isa.Registry) EmulatorOption {
	return func(e *Emulator) { e.registry = r }
}

// WithFetchModel attaches a fetch latency model.
func WithFetchModel(m FetchModel) EmulatorOption {
	return func(e *Emulator) { e.fetchModel = m }
}

// WithMaxCycles bounds Run to the given number of cycles. A value of 0
// means no limit. This is the external timeout for programs whose barrier
// never resolves; the core itself treats such a hang as legitimate.
func WithMaxCycles(max uint64) EmulatorOption {
	return func(e *Emulator) { e.maxCycles = max }
}

// NewEmulator creates a VPU for the given hardware profile. The
// configuration is validated here; an invalid framebuffer layout fails
// now, not at first pixel write.
func NewEmulator(cfg Config, opts ...EmulatorOption) (*Emulator, error) {
	e := &Emulator{
		cfg:    cfg,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.registry == nil {
		r, err := isa.NewRegistry()
		if err != nil {
			return nil, err
		}
		e.registry = r
	}

	mem, err := NewMemory(cfg)
	if err != nil {
		return nil, err
	}
	e.memory = mem
	e.regFile = &RegFile{}
	e.alu = NewALU(e.regFile)
	e.predictor = NewBranchPredictor(cfg)
	e.coord = NewCoordinator()

	for _, p := range e.registry.Pipes() {
		var pipe Pipe
		switch p.Name {
		case "SCH":
			e.scheduler = NewScheduler(p, e.registry, e.memory, cfg.SchedulerQueueDepth)
			pipe = e.scheduler
		case "DMA":
			e.dma = NewDMA(p, e.regFile, e.memory)
			pipe = e.dma
		case "BLT":
			e.blitter = NewBlitter(p, e.registry, e.regFile, e.memory, cfg)
			pipe = e.blitter
		default:
			return nil, fmt.Errorf("no pipe implementation for %q", p.Name)
		}
		if err := e.coord.Register(pipe); err != nil {
			return nil, err
		}
	}
	if e.scheduler != nil {
		e.scheduler.AttachCoordinator(e.coord)
	}

	return e, nil
}

// RegFile returns the register file.
func (e *Emulator) RegFile() *RegFile { return e.regFile }

// Memory returns the shared memory image.
func (e *Emulator) Memory() *Memory { return e.memory }

// Registry returns the instruction registry.
func (e *Emulator) Registry() *isa.Registry { return e.registry }

// Predictor returns the branch predictor.
func (e *Emulator) Predictor() *BranchPredictor { return e.predictor }

// DMA returns the DMA engine.
func (e *Emulator) DMA() *DMA { return e.dma }

// Blitter returns the blitter.
func (e *Emulator) Blitter() *Blitter { return e.blitter }

// Cycle returns the global cycle counter.
func (e *Emulator) Cycle() uint64 { return e.cycle }

// Stats returns the execution statistics.
func (e *Emulator) Stats() Stats { return e.stats }

// Halted reports whether the core has executed HLT or hit a fatal fault.
func (e *Emulator) Halted() bool { return e.halted }

// LoadProgram copies a binary image to the reset vector (address 0) and
// points the program counter at it.
func (e *Emulator) LoadProgram(image []byte) error {
	if err := e.memory.LoadImage(0, image); err != nil {
		return err
	}
	e.regFile.PC = 0
	return nil
}

// Reset returns the whole session to power-on state: cycle counter zero,
// registers and flags cleared, predictor tables cold, pipes Idle, memory
// zeroed.
func (e *Emulator) Reset() {
	*e.regFile = RegFile{}
	e.predictor.Reset()
	e.coord.Reset()
	mem, _ := NewMemory(e.cfg) // cfg was validated at construction
	*e.memory = *mem
	e.cycle = 0
	e.stall = 0
	e.barrier = false
	e.halted = false
	e.fatal = nil
	e.stats = Stats{}
}

// IssueKick is the external-driver hook to start a pipe on a control
// stream. Kicking a Busy pipe fails.
func (e *Emulator) IssueKick(prefix uint8, base uint32) error {
	return e.coord.IssueKick(prefix, base)
}

// IsPipeBusy reports whether the pipe with the given prefix is Busy.
func (e *Emulator) IsPipeBusy(prefix uint8) bool {
	return e.coord.IsBusy(prefix)
}

// CompletePipe forces the pipe with the given prefix to retire.
func (e *Emulator) CompletePipe(prefix uint8) {
	e.coord.Complete(prefix)
}

// AdvanceCycle advances the simulation by one global cycle: every Busy
// pipe advances once, then the CPU performs one fetch-decode-execute step
// unless it is halted, stalled, or waiting at a barrier.
func (e *Emulator) AdvanceCycle() error {
	if e.fatal != nil {
		return e.fatal
	}
	if e.cycle == math.MaxUint64 {
		return e.fail(ErrCycleOverflow)
	}
	e.cycle++

	if err := e.coord.Advance(); err != nil {
		return e.fail(err)
	}

	if e.halted {
		return nil
	}
	if e.stall > 0 {
		e.stall--
		e.stats.StallCycles++
		return nil
	}
	if e.barrier {
		if e.coord.AnyBusy() {
			e.stats.BarrierCycles++
			return nil
		}
		e.barrier = false
	}

	return e.step()
}

// Run advances cycles until the core halts. With WithMaxCycles set, Run
// fails once the bound is reached.
func (e *Emulator) Run() error {
	for !e.halted {
		if e.maxCycles > 0 && e.cycle >= e.maxCycles {
			return fmt.Errorf("max cycles (%d) reached at PC=%#x", e.maxCycles, e.regFile.PC)
		}
		if err := e.AdvanceCycle(); err != nil {
			return err
		}
	}
	return nil
}

// fail records a fatal execution fault and halts the core.
func (e *Emulator) fail(err error) error {
	e.fatal = err
	e.halted = true
	fmt.Fprintf(e.stderr, "execution fault: %v\n", err)
	return err
}

// step performs one fetch-decode-execute.
func (e *Emulator) step() error {
	pc := e.regFile.PC

	if e.fetchModel != nil {
		if pen := e.fetchModel.FetchPenalty(pc); pen > 0 {
			e.stall += pen
			e.stats.FetchPenaltyCycles += pen
		}
	}

	w := e.memory.FetchWord(pc)
	in := e.registry.ByOpcode(w.Opcode())
	if in == nil {
		return e.fail(fmt.Errorf("unknown opcode %#02x at PC=%#x", uint8(w.Opcode()), pc))
	}
	e.stats.Instructions++

	if in.Opcode.IsKick() {
		return e.executeKick(in, w)
	}
	return e.executeCore(in, w)
}

// executeKick handles hardware-pipe instructions. FNC is the scheduler's
// barrier spelling and shares the BLOCK wait condition; everything else
// dispatches through the coordinator and fails fast on a Busy target.
func (e *Emulator) executeKick(in *isa.Instruction, w isa.Word) error {
	if in.Name == "FNC" {
		e.enterBarrier()
		return nil
	}
	if err := e.coord.Dispatch(in, w); err != nil {
		return e.fail(fmt.Errorf("at PC=%#x: %w", e.regFile.PC, err))
	}
	e.regFile.PC += isa.WordSize
	return nil
}

// enterBarrier retires the barrier instruction. With zero Busy pipes it
// completes within the same cycle; otherwise fetch suspends until every
// pipe idles.
func (e *Emulator) enterBarrier() {
	e.regFile.PC += isa.WordSize
	if e.coord.AnyBusy() {
		e.barrier = true
	}
}

// executeCore handles core CPU instructions.
func (e *Emulator) executeCore(in *isa.Instruction, w isa.Word) error {
	rf := e.regFile

	switch in.Name {
	case "NOP":
		rf.PC += isa.WordSize
	case "HLT":
		e.halted = true
		rf.PC += isa.WordSize
	case "MOV":
		e.executeMOV(in, w)
		rf.PC += isa.WordSize
	case "LDR":
		rf.ACC = e.memory.Read32(e.transferAddr(in, w))
		rf.PC += isa.WordSize
	case "STR":
		e.memory.Write32(e.transferAddr(in, w), rf.ACC)
		rf.PC += isa.WordSize
	case "ADD":
		e.alu.ADD(resolveOperands(rf, in, w)[0])
		rf.PC += isa.WordSize
	case "ASR":
		e.alu.ASR(resolveOperands(rf, in, w)[0])
		rf.PC += isa.WordSize
	case "LSR":
		e.alu.LSR(resolveOperands(rf, in, w)[0])
		rf.PC += isa.WordSize
	case "LSL":
		e.alu.LSL(resolveOperands(rf, in, w)[0])
		rf.PC += isa.WordSize
	case "CMP":
		vals := resolveOperands(rf, in, w)
		if len(vals) == 1 {
			e.alu.CMPZero(vals[0])
		} else {
			e.alu.CMPEqual(vals[0], vals[1])
		}
		rf.PC += isa.WordSize
	case "BRA", "JMP":
		e.executeBranch(in, w)
	case "BLOCK":
		e.enterBarrier()
	default:
		return e.fail(fmt.Errorf("unimplemented core instruction %s at PC=%#x", in.Mnemonic(), rf.PC))
	}
	return nil
}

// executeMOV handles the three MOV variants.
func (e *Emulator) executeMOV(in *isa.Instruction, w isa.Word) {
	rf := e.regFile
	switch {
	case len(in.Operands) == 1: // MOV IMM24
		rf.ACC = w.U24()
	case in.Operands[1] == isa.OperandReg: // MOV REG,REG
		rf.Write(w.Register(0), rf.Read(w.Register(1)))
	default: // MOV REG,IMM16
		rf.Write(w.Register(0), uint32(w.U16()))
	}
}

// transferAddr resolves the memory address of an LDR/STR variant.
func (e *Emulator) transferAddr(in *isa.Instruction, w isa.Word) uint32 {
	if in.Operands[0] == isa.OperandReg {
		return e.regFile.Read(w.Register(0))
	}
	return w.U24()
}

// executeBranch resolves a branch-class instruction against the
// predictor. On a misprediction the speculatively fetched instruction is
// discarded and the core stalls for the configured penalty while
// refetching from the resolved address.
func (e *Emulator) executeBranch(in *isa.Instruction, w isa.Word) {
	rf := e.regFile
	pc := rf.PC
	target := w.Label()
	taken := in.Name == "JMP" || rf.Flags.C

	pred := e.predictor.Predict(pc)
	predicted := pc + isa.WordSize
	if pred.Taken {
		// The decoded word supplies the target on a BTB miss.
		predicted = target
		if pred.TargetKnown {
			predicted = pred.Target
		}
	}

	next := pc + isa.WordSize
	if taken {
		next = target
	}

	e.predictor.Update(pc, taken, target)
	if predicted != next {
		e.stats.Flushes++
		e.stall += e.cfg.MispredictPenalty
	}
	rf.PC = next
}
