package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vpusim/emu"
	"github.com/sarchlab/vpusim/isa"
)

// writeStream stores encoded words at base, leaving the zero word that
// follows as the stream terminator.
func writeStream(memory *emu.Memory, base uint32, words ...isa.Word) {
	for i, w := range words {
		memory.Write32(base+uint32(i)*isa.WordSize, uint32(w))
	}
}

var _ = Describe("Blitter", func() {
	var (
		registry *isa.Registry
		regFile  *emu.RegFile
		memory   *emu.Memory
		blitter  *emu.Blitter
		cfg      emu.Config
	)

	pixelAddr := func(x, y uint32) uint32 {
		return memory.FramebufferBase() + (y*cfg.FramebufferWidth+x)*cfg.FramebufferBytesPerPixel
	}

	BeforeEach(func() {
		var err error
		registry, err = isa.NewRegistry()
		Expect(err).ToNot(HaveOccurred())

		cfg = testConfig()
		memory, err = emu.NewMemory(cfg)
		Expect(err).ToNot(HaveOccurred())

		regFile = &emu.RegFile{}
		blitter = emu.NewBlitter(pipeDef(registry, "BLT"), registry, regFile, memory, cfg)
	})

	It("should latch a 24-bit color without occupying the pipe", func() {
		regFile.R[5] = 0xFF123456
		in, w := hwWord(registry, "BLT.COL", []isa.OperandKind{isa.KindReg}, []uint32{5})

		Expect(blitter.Exec(in, w)).To(Succeed())
		Expect(blitter.Color()).To(Equal(uint32(0x123456)))
		Expect(blitter.Busy()).To(BeFalse())
	})

	It("should write a pixel and stay busy for one cycle", func() {
		regFile.R[5] = 0x123456
		regFile.R[6] = 2
		regFile.R[7] = 1

		in, w := hwWord(registry, "BLT.COL", []isa.OperandKind{isa.KindReg}, []uint32{5})
		Expect(blitter.Exec(in, w)).To(Succeed())
		in, w = hwWord(registry, "BLT.PIX", []isa.OperandKind{isa.KindReg, isa.KindReg}, []uint32{6, 7})
		Expect(blitter.Exec(in, w)).To(Succeed())

		Expect(memory.Read32(pixelAddr(2, 1))).To(Equal(uint32(0x00123456)))
		Expect(blitter.Busy()).To(BeTrue())

		Expect(blitter.Advance()).To(Succeed())
		Expect(blitter.Busy()).To(BeFalse())
	})

	It("should clip out-of-bounds pixels", func() {
		regFile.R[6] = cfg.FramebufferWidth // one past the right edge
		regFile.R[7] = 0

		in, w := hwWord(registry, "BLT.PIX", []isa.OperandKind{isa.KindReg, isa.KindReg}, []uint32{6, 7})
		Expect(blitter.Exec(in, w)).To(Succeed())

		Expect(memory.Read32(pixelAddr(0, 1))).To(Equal(uint32(0)))
	})

	It("should clear the framebuffer and occupy the pipe by the pixel budget", func() {
		regFile.R[5] = 0x0000FF
		in, w := hwWord(registry, "BLT.COL", []isa.OperandKind{isa.KindReg}, []uint32{5})
		Expect(blitter.Exec(in, w)).To(Succeed())
		in, w = hwWord(registry, "BLT.CLR", nil, nil)
		Expect(blitter.Exec(in, w)).To(Succeed())

		Expect(memory.Read32(pixelAddr(0, 0))).To(Equal(uint32(0x0000FF)))
		Expect(memory.Read32(pixelAddr(cfg.FramebufferWidth-1, cfg.FramebufferHeight-1))).
			To(Equal(uint32(0x0000FF)))

		// 640x480 at four pixels per cycle.
		cycles := uint64(cfg.FramebufferWidth) * uint64(cfg.FramebufferHeight) /
			uint64(cfg.PixelsPerCycle())
		for i := uint64(0); i < cycles-1; i++ {
			Expect(blitter.Advance()).To(Succeed())
			Expect(blitter.Busy()).To(BeTrue())
		}
		Expect(blitter.Advance()).To(Succeed())
		Expect(blitter.Busy()).To(BeFalse())
	})

	It("should execute a control stream up to the per-cycle budget", func() {
		regFile.R[5] = 0xABCDEF
		regFile.R[6] = 3
		regFile.R[7] = 4

		_, col := hwWord(registry, "BLT.COL", []isa.OperandKind{isa.KindReg}, []uint32{5})
		_, pix := hwWord(registry, "BLT.PIX", []isa.OperandKind{isa.KindReg, isa.KindReg}, []uint32{6, 7})
		writeStream(memory, 0x1000, col, pix)

		Expect(blitter.Kick(0x1000)).To(Succeed())
		Expect(blitter.Busy()).To(BeTrue())

		// COL, PIX, and the zero terminator all fit one cycle's word budget.
		Expect(blitter.Advance()).To(Succeed())
		Expect(blitter.Busy()).To(BeFalse())
		Expect(memory.Read32(pixelAddr(3, 4))).To(Equal(uint32(0x00ABCDEF)))
	})

	It("should end a stream at the first word of another pipe", func() {
		_, w := hwWord(registry, "DMA.CPY", nil, nil)
		writeStream(memory, 0x1000, w)

		Expect(blitter.Kick(0x1000)).To(Succeed())
		Expect(blitter.Advance()).To(Succeed())
		Expect(blitter.Busy()).To(BeFalse())
	})

	It("should chain streams through a nested kick", func() {
		regFile.R[5] = 0x654321
		regFile.R[6] = 9
		regFile.R[7] = 9

		_, kck := hwWord(registry, "BLT.KCK", []isa.OperandKind{isa.KindLab}, []uint32{0x2000})
		_, col := hwWord(registry, "BLT.COL", []isa.OperandKind{isa.KindReg}, []uint32{5})
		_, pix := hwWord(registry, "BLT.PIX", []isa.OperandKind{isa.KindReg, isa.KindReg}, []uint32{6, 7})
		writeStream(memory, 0x1000, kck)
		writeStream(memory, 0x2000, col, pix)

		Expect(blitter.Kick(0x1000)).To(Succeed())
		Expect(blitter.Advance()).To(Succeed())
		Expect(blitter.Busy()).To(BeFalse())
		Expect(memory.Read32(pixelAddr(9, 9))).To(Equal(uint32(0x654321)))
	})

	It("should retire immediately on Complete", func() {
		Expect(blitter.Kick(0x1000)).To(Succeed())
		blitter.Complete()
		Expect(blitter.Busy()).To(BeFalse())
	})

	It("should clear the color register on reset", func() {
		regFile.R[5] = 0x123456
		in, w := hwWord(registry, "BLT.COL", []isa.OperandKind{isa.KindReg}, []uint32{5})
		Expect(blitter.Exec(in, w)).To(Succeed())

		blitter.Reset()
		Expect(blitter.Color()).To(Equal(uint32(0)))
	})
})
