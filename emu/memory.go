package emu

import (
	"fmt"

	"github.com/sarchlab/vpusim/isa"
)

// Memory is the flat byte-addressable memory image shared by the CPU, the
// DMA engine, and the blitter. A reserved region at the top, aligned down
// to a 64KB boundary, is the framebuffer.
type Memory struct {
	data        []byte
	accessWidth uint32
	fbBase      uint32
	fbBytes     uint32
}

// NewMemory allocates a memory image for the given configuration. The
// framebuffer alignment and size rules are enforced here; an invalid
// configuration fails at initialization, not at first pixel write.
func NewMemory(cfg Config) (*Memory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Memory{
		data:        make([]byte, cfg.MemorySize),
		accessWidth: cfg.MemoryAccessWidth,
		fbBase:      cfg.FramebufferBase(),
		fbBytes:     cfg.FramebufferBytes(),
	}, nil
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// AccessWidth returns the configured access width in bytes.
func (m *Memory) AccessWidth() uint32 {
	return m.accessWidth
}

// FramebufferBase returns the framebuffer base address.
func (m *Memory) FramebufferBase() uint32 {
	return m.fbBase
}

// FramebufferBytes returns the framebuffer size in bytes.
func (m *Memory) FramebufferBytes() uint32 {
	return m.fbBytes
}

// index wraps an address into the image. Addresses are taken modulo the
// memory size.
func (m *Memory) index(addr uint32) uint32 {
	return addr % uint32(len(m.data))
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint32) byte {
	return m.data[m.index(addr)]
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint32, value byte) {
	m.data[m.index(addr)] = value
}

// Read32 reads a 32-bit word in wire order.
func (m *Memory) Read32(addr uint32) uint32 {
	var b [isa.WordSize]byte
	for i := range b {
		b[i] = m.Read8(addr + uint32(i))
	}
	return isa.ByteOrder.Uint32(b[:])
}

// Write32 writes a 32-bit word in wire order.
func (m *Memory) Write32(addr uint32, value uint32) {
	var b [isa.WordSize]byte
	isa.ByteOrder.PutUint32(b[:], value)
	for i := range b {
		m.Write8(addr+uint32(i), b[i])
	}
}

// FetchWord reads the instruction word at an address.
func (m *Memory) FetchWord(addr uint32) isa.Word {
	return isa.Word(m.Read32(addr))
}

// LoadImage copies a binary image into memory starting at base.
func (m *Memory) LoadImage(base uint32, image []byte) error {
	if uint64(base)+uint64(len(image)) > uint64(len(m.data)) {
		return fmt.Errorf("image of %d bytes at %#x exceeds memory size %d", len(image), base, len(m.data))
	}
	copy(m.data[base:], image)
	return nil
}

// Fill writes value to every byte in [addr, addr+length).
func (m *Memory) Fill(addr, length uint32, value byte) {
	for i := uint32(0); i < length; i++ {
		m.Write8(addr+i, value)
	}
}

// CopyRange copies length bytes from src to dst. Ranges are copied through
// a scratch buffer so overlapping ranges behave as a read followed by a
// write.
func (m *Memory) CopyRange(dst, src, length uint32) {
	buf := make([]byte, length)
	for i := uint32(0); i < length; i++ {
		buf[i] = m.Read8(src + i)
	}
	for i := uint32(0); i < length; i++ {
		m.Write8(dst+i, buf[i])
	}
}
