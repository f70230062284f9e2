package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vpusim/emu"
	"github.com/sarchlab/vpusim/isa"
)

var _ = Describe("DMA", func() {
	var (
		registry *isa.Registry
		regFile  *emu.RegFile
		memory   *emu.Memory
		dma      *emu.DMA
	)

	regKind := []isa.OperandKind{isa.KindReg}

	exec := func(mnemonic string, vals ...uint32) error {
		in, w := hwWord(registry, mnemonic, regKind[:len(vals)], vals)
		return dma.Exec(in, w)
	}

	BeforeEach(func() {
		var err error
		registry, err = isa.NewRegistry()
		Expect(err).ToNot(HaveOccurred())

		memory, err = emu.NewMemory(testConfig())
		Expect(err).ToNot(HaveOccurred())

		regFile = &emu.RegFile{}
		dma = emu.NewDMA(pipeDef(registry, "DMA"), regFile, memory)
	})

	It("should latch configuration from register values", func() {
		regFile.R[1] = 0x4000
		regFile.R[2] = 0x8000
		regFile.R[3] = 0x100

		Expect(exec("DMA.DST", 1)).To(Succeed())
		Expect(exec("DMA.SRC", 2)).To(Succeed())
		Expect(exec("DMA.LEN", 3)).To(Succeed())

		Expect(dma.Dest()).To(Equal(uint32(0x4000)))
		Expect(dma.Source()).To(Equal(uint32(0x8000)))
		Expect(dma.Length()).To(Equal(uint32(0x100)))
	})

	It("should fill synchronously on SET", func() {
		regFile.R[1] = 0x4000
		regFile.R[3] = 8
		regFile.R[4] = 0xCC

		Expect(exec("DMA.DST", 1)).To(Succeed())
		Expect(exec("DMA.LEN", 3)).To(Succeed())
		Expect(exec("DMA.SET", 4)).To(Succeed())

		Expect(memory.Read8(0x4000)).To(Equal(byte(0xCC)))
		Expect(memory.Read8(0x4007)).To(Equal(byte(0xCC)))
		Expect(memory.Read8(0x4008)).To(Equal(byte(0)))
	})

	It("should truncate the SET value to its low byte", func() {
		regFile.R[1] = 0x4000
		regFile.R[3] = 1
		regFile.R[4] = 0x12345678

		Expect(exec("DMA.DST", 1)).To(Succeed())
		Expect(exec("DMA.LEN", 3)).To(Succeed())
		Expect(exec("DMA.SET", 4)).To(Succeed())

		Expect(memory.Read8(0x4000)).To(Equal(byte(0x78)))
	})

	It("should copy synchronously on CPY", func() {
		for i := uint32(0); i < 16; i++ {
			memory.Write8(0x8000+i, byte(i+1))
		}
		regFile.R[1] = 0x4000
		regFile.R[2] = 0x8000
		regFile.R[3] = 16

		Expect(exec("DMA.DST", 1)).To(Succeed())
		Expect(exec("DMA.SRC", 2)).To(Succeed())
		Expect(exec("DMA.LEN", 3)).To(Succeed())
		Expect(exec("DMA.CPY")).To(Succeed())

		for i := uint32(0); i < 16; i++ {
			Expect(memory.Read8(0x4000 + i)).To(Equal(byte(i + 1)))
		}
	})

	It("should never be observably busy", func() {
		regFile.R[1] = 0x4000
		regFile.R[3] = 0x10000

		Expect(exec("DMA.DST", 1)).To(Succeed())
		Expect(exec("DMA.LEN", 3)).To(Succeed())
		Expect(exec("DMA.SET", 1)).To(Succeed())
		Expect(dma.Busy()).To(BeFalse())
	})

	It("should not accept a control-stream kick", func() {
		Expect(dma.Kick(0x1000)).To(HaveOccurred())
	})

	It("should clear its configuration on reset", func() {
		regFile.R[1] = 0x4000
		Expect(exec("DMA.DST", 1)).To(Succeed())
		dma.Reset()
		Expect(dma.Dest()).To(Equal(uint32(0)))
	})
})
