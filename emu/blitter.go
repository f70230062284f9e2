package emu

import (
	"fmt"

	"github.com/sarchlab/vpusim/isa"
)

// Blitter is the pixel engine: an ordinary async pipe. COL is an
// immediate configuration write; PIX and CLR occupy the pipe, and KCK
// runs a control stream of blitter instructions from memory. Pixel
// retirement per cycle is bounded by the memory access width over the
// pixel size.
type Blitter struct {
	name   string
	prefix uint8

	registry *isa.Registry
	regFile  *RegFile
	memory   *Memory

	width  uint32
	height uint32
	bpp    uint32

	pixelsPerCycle uint32
	wordsPerCycle  uint32

	color uint32

	busy      bool
	countdown uint64
	streaming bool
	streamPC  uint32
}

// NewBlitter creates the blitter over the shared state.
func NewBlitter(pipe isa.Pipe, registry *isa.Registry, regFile *RegFile, memory *Memory, cfg Config) *Blitter {
	words := cfg.MemoryAccessWidth / isa.WordSize
	if words == 0 {
		words = 1
	}
	return &Blitter{
		name:           pipe.Name,
		prefix:         pipe.Prefix,
		registry:       registry,
		regFile:        regFile,
		memory:         memory,
		width:          cfg.FramebufferWidth,
		height:         cfg.FramebufferHeight,
		bpp:            cfg.FramebufferBytesPerPixel,
		pixelsPerCycle: cfg.PixelsPerCycle(),
		wordsPerCycle:  words,
	}
}

// Name returns the pipe name.
func (b *Blitter) Name() string { return b.name }

// Prefix returns the pipe's opcode prefix.
func (b *Blitter) Prefix() uint8 { return b.prefix }

// Busy reports whether an operation is in flight.
func (b *Blitter) Busy() bool { return b.busy }

// Color returns the current packed-RGB color register.
func (b *Blitter) Color() uint32 { return b.color }

// clearCycles is how many cycles a full framebuffer clear occupies the
// pipe at the pixel-per-cycle budget.
func (b *Blitter) clearCycles() uint64 {
	pixels := uint64(b.width) * uint64(b.height)
	per := uint64(b.pixelsPerCycle)
	return (pixels + per - 1) / per
}

// writePixel stores the current color at x,y. Out-of-bounds coordinates
// are clipped.
func (b *Blitter) writePixel(x, y uint32) {
	if x >= b.width || y >= b.height {
		return
	}
	addr := b.memory.FramebufferBase() + (y*b.width+x)*b.bpp
	for i := uint32(0); i < b.bpp; i++ {
		b.memory.Write8(addr+i, byte(b.color>>(8*(b.bpp-1-i))))
	}
}

// clearFramebuffer fills the whole framebuffer with the current color.
func (b *Blitter) clearFramebuffer() {
	for y := uint32(0); y < b.height; y++ {
		for x := uint32(0); x < b.width; x++ {
			b.writePixel(x, y)
		}
	}
}

// Exec executes one CPU-issued blitter instruction. The memory effect of
// PIX and CLR is applied in full at issue; the countdown models the cycles
// the pipe stays Busy retiring it.
func (b *Blitter) Exec(in *isa.Instruction, w isa.Word) error {
	vals := resolveOperands(b.regFile, in, w)

	switch in.Name {
	case "COL":
		b.color = vals[0] & 0xFFFFFF
	case "PIX":
		b.writePixel(vals[0], vals[1])
		b.busy = true
		b.countdown = 1
	case "CLR":
		b.clearFramebuffer()
		b.busy = true
		b.countdown = b.clearCycles()
	case "KCK":
		return b.Kick(vals[0])
	default:
		return fmt.Errorf("blitter cannot execute %s", in.Mnemonic())
	}
	return nil
}

// Kick starts the blitter on a control stream of blitter instructions.
func (b *Blitter) Kick(base uint32) error {
	b.busy = true
	b.streaming = true
	b.streamPC = base
	b.countdown = 0
	return nil
}

// Advance progresses the in-flight operation by one cycle. A single-shot
// PIX or CLR drains its countdown; a control stream retires words up to
// the per-cycle word and pixel budgets.
func (b *Blitter) Advance() error {
	if !b.busy {
		return nil
	}
	if b.countdown > 0 {
		b.countdown--
		if b.countdown > 0 {
			return nil
		}
		if !b.streaming {
			b.busy = false
			return nil
		}
	}

	pixels := b.pixelsPerCycle
	for words := b.wordsPerCycle; words > 0; words-- {
		w := b.memory.FetchWord(b.streamPC)
		in := b.registry.ByOpcode(w.Opcode())
		if in == nil || !in.Opcode.IsKick() || in.Opcode.Pipe() != b.prefix {
			// First word outside this pipe's opcode space ends the stream.
			b.busy = false
			b.streaming = false
			return nil
		}

		switch in.Name {
		case "COL":
			b.color = resolveOperands(b.regFile, in, w)[0] & 0xFFFFFF
			b.streamPC += isa.WordSize
		case "PIX":
			if pixels == 0 {
				return nil
			}
			vals := resolveOperands(b.regFile, in, w)
			b.writePixel(vals[0], vals[1])
			pixels--
			b.streamPC += isa.WordSize
		case "CLR":
			b.clearFramebuffer()
			b.streamPC += isa.WordSize
			b.countdown = b.clearCycles()
			return nil
		case "KCK":
			// A stream may chain to another stream.
			b.streamPC = w.Label()
		}
	}
	return nil
}

// Complete retires the in-flight operation immediately.
func (b *Blitter) Complete() {
	b.busy = false
	b.streaming = false
	b.countdown = 0
}

// Reset returns the blitter to its power-on state.
func (b *Blitter) Reset() {
	b.Complete()
	b.color = 0
}
