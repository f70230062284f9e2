package emu

import (
	"fmt"

	"github.com/sarchlab/vpusim/isa"
)

// Scheduler is the front-end pipe: kicked with a control stream of
// hardware instructions, it buffers words into a fixed-depth queue and
// issues them to the other pipes, one per cycle, waiting while a target
// is Busy. An FNC word in the stream waits for every other pipe to idle.
type Scheduler struct {
	name   string
	prefix uint8

	registry *isa.Registry
	memory   *Memory
	coord    *Coordinator

	depth int

	busy     bool
	streamPC uint32
	queue    []isa.Word
}

// NewScheduler creates the scheduler over the shared state. The
// coordinator is attached later, once all pipes are registered.
func NewScheduler(pipe isa.Pipe, registry *isa.Registry, memory *Memory, depth int) *Scheduler {
	return &Scheduler{
		name:     pipe.Name,
		prefix:   pipe.Prefix,
		registry: registry,
		memory:   memory,
		depth:    depth,
	}
}

// AttachCoordinator wires the coordinator the scheduler issues through.
func (s *Scheduler) AttachCoordinator(c *Coordinator) {
	s.coord = c
}

// Name returns the pipe name.
func (s *Scheduler) Name() string { return s.name }

// Prefix returns the pipe's opcode prefix.
func (s *Scheduler) Prefix() uint8 { return s.prefix }

// Busy reports whether a control stream is in flight.
func (s *Scheduler) Busy() bool { return s.busy }

// Exec executes one CPU-issued scheduler instruction. FNC is the CPU
// barrier and is handled by the execution core before dispatch; only KCK
// reaches the pipe.
func (s *Scheduler) Exec(in *isa.Instruction, w isa.Word) error {
	switch in.Name {
	case "KCK":
		return s.Kick(w.Label())
	default:
		return fmt.Errorf("scheduler cannot execute %s", in.Mnemonic())
	}
}

// Kick starts the scheduler on a control stream.
func (s *Scheduler) Kick(base uint32) error {
	s.busy = true
	s.streamPC = base
	s.queue = s.queue[:0]
	return nil
}

// refill tops the front-end queue up to its configured depth.
func (s *Scheduler) refill() {
	for len(s.queue) < s.depth {
		s.queue = append(s.queue, s.memory.FetchWord(s.streamPC))
		s.streamPC += isa.WordSize
	}
}

// Advance issues at most one queued word. The stream ends at the first
// word outside the hardware opcode space.
func (s *Scheduler) Advance() error {
	if !s.busy {
		return nil
	}
	s.refill()

	w := s.queue[0]
	in := s.registry.ByOpcode(w.Opcode())
	if in == nil || !in.Opcode.IsKick() {
		s.terminate()
		return nil
	}

	if in.Opcode.Pipe() == s.prefix {
		switch in.Name {
		case "FNC":
			if s.coord.AnyBusyExcept(s.prefix) {
				return nil // wait, re-evaluated next cycle
			}
			s.queue = s.queue[1:]
		case "KCK":
			// Chain to another stream; the queue beyond the jump is stale.
			s.streamPC = w.Label()
			s.queue = s.queue[:0]
		default:
			s.terminate()
		}
		return nil
	}

	target, ok := s.coord.Pipe(in.Opcode.Pipe())
	if !ok {
		s.terminate()
		return fmt.Errorf("scheduler stream references unknown pipe prefix %d", in.Opcode.Pipe())
	}
	if target.Busy() {
		return nil // wait for the target to idle
	}
	if err := target.Exec(in, w); err != nil {
		s.terminate()
		return fmt.Errorf("scheduler stream: %w", err)
	}
	s.queue = s.queue[1:]
	return nil
}

func (s *Scheduler) terminate() {
	s.busy = false
	s.queue = s.queue[:0]
}

// Complete retires the in-flight stream immediately.
func (s *Scheduler) Complete() {
	s.terminate()
}

// Reset returns the scheduler to its power-on state.
func (s *Scheduler) Reset() {
	s.terminate()
	s.streamPC = 0
}
