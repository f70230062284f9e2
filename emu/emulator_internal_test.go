package emu

import (
	"io"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Emulator cycle counter", func() {
	It("should fail fatally when the counter would wrap", func() {
		cfg := DefaultConfig()
		cfg.MemorySize = 16 * 1024 * 1024
		emulator, err := NewEmulator(cfg, WithStderr(io.Discard))
		Expect(err).ToNot(HaveOccurred())

		emulator.cycle = math.MaxUint64

		Expect(emulator.AdvanceCycle()).To(MatchError(ErrCycleOverflow))
		Expect(emulator.Halted()).To(BeTrue())
		Expect(emulator.Cycle()).To(Equal(uint64(math.MaxUint64)))

		// The fault latches; further cycles keep failing.
		Expect(emulator.AdvanceCycle()).To(MatchError(ErrCycleOverflow))
	})
})
