package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vpusim/emu"
	"github.com/sarchlab/vpusim/isa"
)

var _ = Describe("Scheduler", func() {
	var (
		registry  *isa.Registry
		regFile   *emu.RegFile
		memory    *emu.Memory
		scheduler *emu.Scheduler
		blitter   *emu.Blitter
		dma       *emu.DMA
		coord     *emu.Coordinator
	)

	BeforeEach(func() {
		var err error
		registry, err = isa.NewRegistry()
		Expect(err).ToNot(HaveOccurred())

		cfg := testConfig()
		memory, err = emu.NewMemory(cfg)
		Expect(err).ToNot(HaveOccurred())

		regFile = &emu.RegFile{}
		scheduler = emu.NewScheduler(pipeDef(registry, "SCH"), registry, memory, cfg.SchedulerQueueDepth)
		dma = emu.NewDMA(pipeDef(registry, "DMA"), regFile, memory)
		blitter = emu.NewBlitter(pipeDef(registry, "BLT"), registry, regFile, memory, cfg)

		coord = emu.NewCoordinator()
		Expect(coord.Register(scheduler)).To(Succeed())
		Expect(coord.Register(dma)).To(Succeed())
		Expect(coord.Register(blitter)).To(Succeed())
		scheduler.AttachCoordinator(coord)
	})

	It("should issue one queued word per cycle", func() {
		regFile.R[1] = 0x4000
		regFile.R[3] = 4
		regFile.R[4] = 0xAA

		_, dst := hwWord(registry, "DMA.DST", []isa.OperandKind{isa.KindReg}, []uint32{1})
		_, length := hwWord(registry, "DMA.LEN", []isa.OperandKind{isa.KindReg}, []uint32{3})
		_, set := hwWord(registry, "DMA.SET", []isa.OperandKind{isa.KindReg}, []uint32{4})
		writeStream(memory, 0x2000, dst, length, set)

		Expect(coord.IssueKick(scheduler.Prefix(), 0x2000)).To(Succeed())

		Expect(coord.Advance()).To(Succeed()) // DST
		Expect(dma.Dest()).To(Equal(uint32(0x4000)))
		Expect(memory.Read8(0x4000)).To(Equal(byte(0)))

		Expect(coord.Advance()).To(Succeed()) // LEN
		Expect(coord.Advance()).To(Succeed()) // SET
		Expect(memory.Read8(0x4000)).To(Equal(byte(0xAA)))
		Expect(memory.Read8(0x4003)).To(Equal(byte(0xAA)))

		Expect(coord.Advance()).To(Succeed()) // terminator
		Expect(scheduler.Busy()).To(BeFalse())
	})

	It("should wait on a busy target instead of failing", func() {
		regFile.R[5] = 0x112233

		in, w := hwWord(registry, "BLT.CLR", nil, nil)
		Expect(blitter.Exec(in, w)).To(Succeed())
		Expect(blitter.Busy()).To(BeTrue())

		_, col := hwWord(registry, "BLT.COL", []isa.OperandKind{isa.KindReg}, []uint32{5})
		writeStream(memory, 0x2000, col)
		Expect(coord.IssueKick(scheduler.Prefix(), 0x2000)).To(Succeed())

		Expect(coord.Advance()).To(Succeed())
		Expect(blitter.Color()).To(Equal(uint32(0)), "issue held while the target is busy")
		Expect(scheduler.Busy()).To(BeTrue())

		blitter.Complete()
		Expect(coord.Advance()).To(Succeed())
		Expect(blitter.Color()).To(Equal(uint32(0x112233)))
	})

	It("should hold at an in-stream barrier until every other pipe idles", func() {
		regFile.R[1] = 0x4000
		regFile.R[3] = 1
		regFile.R[4] = 0x55

		in, w := hwWord(registry, "BLT.CLR", nil, nil)
		Expect(blitter.Exec(in, w)).To(Succeed())

		_, fnc := hwWord(registry, "SCH.FNC", nil, nil)
		_, dst := hwWord(registry, "DMA.DST", []isa.OperandKind{isa.KindReg}, []uint32{1})
		_, length := hwWord(registry, "DMA.LEN", []isa.OperandKind{isa.KindReg}, []uint32{3})
		_, set := hwWord(registry, "DMA.SET", []isa.OperandKind{isa.KindReg}, []uint32{4})
		writeStream(memory, 0x2000, fnc, dst, length, set)

		Expect(coord.IssueKick(scheduler.Prefix(), 0x2000)).To(Succeed())
		Expect(coord.Advance()).To(Succeed())
		Expect(memory.Read8(0x4000)).To(Equal(byte(0)), "barrier holds the stream")

		blitter.Complete()
		for i := 0; i < 4; i++ { // FNC, DST, LEN, SET
			Expect(coord.Advance()).To(Succeed())
		}
		Expect(memory.Read8(0x4000)).To(Equal(byte(0x55)))
	})

	It("should chain to another stream on an own-pipe kick", func() {
		regFile.R[1] = 0x4000

		_, kck := hwWord(registry, "SCH.KCK", []isa.OperandKind{isa.KindLab}, []uint32{0x3000})
		_, dst := hwWord(registry, "DMA.DST", []isa.OperandKind{isa.KindReg}, []uint32{1})
		writeStream(memory, 0x2000, kck)
		writeStream(memory, 0x3000, dst)

		Expect(coord.IssueKick(scheduler.Prefix(), 0x2000)).To(Succeed())
		Expect(coord.Advance()).To(Succeed()) // jump
		Expect(coord.Advance()).To(Succeed()) // DST
		Expect(dma.Dest()).To(Equal(uint32(0x4000)))

		Expect(coord.Advance()).To(Succeed()) // terminator
		Expect(scheduler.Busy()).To(BeFalse())
	})

	It("should end the stream at the first non-hardware word", func() {
		// Address 0x2000 holds zeroed memory, which is not a kick opcode.
		Expect(coord.IssueKick(scheduler.Prefix(), 0x2000)).To(Succeed())
		Expect(coord.Advance()).To(Succeed())
		Expect(scheduler.Busy()).To(BeFalse())
	})

	It("should only accept a kick as a CPU-issued instruction", func() {
		in, w := hwWord(registry, "SCH.KCK", []isa.OperandKind{isa.KindLab}, []uint32{0x2000})
		Expect(scheduler.Exec(in, w)).To(Succeed())
		Expect(scheduler.Busy()).To(BeTrue())

		in, w = hwWord(registry, "SCH.FNC", nil, nil)
		scheduler.Complete()
		Expect(scheduler.Exec(in, w)).To(HaveOccurred())
	})
})
