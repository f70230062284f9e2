package isa_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vpusim/isa"
)

var _ = Describe("Registry", func() {
	var reg *isa.Registry

	BeforeEach(func() {
		var err error
		reg, err = isa.NewRegistry()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should assign every variant a unique opcode", func() {
		seen := map[isa.Opcode]bool{}
		for _, in := range reg.Instructions() {
			Expect(seen[in.Opcode]).To(BeFalse(), "opcode %#02x reused", uint8(in.Opcode))
			seen[in.Opcode] = true
		}
	})

	It("should clear the kick flag on core opcodes", func() {
		for _, in := range reg.Instructions() {
			if in.Pipe == "" {
				Expect(in.Opcode.IsKick()).To(BeFalse(), "%s", in.Mnemonic())
			}
		}
	})

	It("should set the kick flag and pipe prefix on hardware opcodes", func() {
		for _, in := range reg.Instructions() {
			if in.Pipe == "" {
				continue
			}
			Expect(in.Opcode.IsKick()).To(BeTrue(), "%s", in.Mnemonic())
			pipe, ok := reg.PipeByPrefix(in.Opcode.Pipe())
			Expect(ok).To(BeTrue())
			Expect(pipe.Name).To(Equal(in.Pipe))
		}
	})

	It("should resolve every variant back from its opcode", func() {
		for _, in := range reg.Instructions() {
			Expect(reg.ByOpcode(in.Opcode)).To(BeIdenticalTo(in))
		}
	})

	It("should declare the documented registers", func() {
		Expect(reg.Registers()).To(HaveLen(10))
		id, ok := reg.RegisterID("R0")
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(uint8(0)))
		id, ok = reg.RegisterID("ACC")
		Expect(ok).To(BeTrue())
		Expect(id).To(Equal(uint8(8)))
		Expect(reg.RegisterName(9)).To(Equal("PC"))
	})

	It("should declare the Overflow and Compare flags", func() {
		flags := reg.Flags()
		Expect(flags).To(HaveLen(2))
		Expect(flags[0].Flag).To(Equal("O"))
		Expect(flags[1].Flag).To(Equal("C"))
	})

	Describe("Match", func() {
		It("should resolve a mnemonic with matching operand kinds", func() {
			in, err := reg.Match("MOV", []isa.OperandKind{isa.KindReg, isa.KindReg})
			Expect(err).NotTo(HaveOccurred())
			Expect(in.Name).To(Equal("MOV"))
			Expect(in.Operands).To(Equal([]isa.OperandType{isa.OperandReg, isa.OperandReg}))
		})

		It("should match numeric operands against either immediate width", func() {
			in, err := reg.Match("MOV", []isa.OperandKind{isa.KindImm})
			Expect(err).NotTo(HaveOccurred())
			Expect(in.Operands).To(Equal([]isa.OperandType{isa.OperandImm24}))

			in, err = reg.Match("ADD", []isa.OperandKind{isa.KindImm})
			Expect(err).NotTo(HaveOccurred())
			Expect(in.Operands).To(Equal([]isa.OperandType{isa.OperandImm16}))
		})

		It("should distinguish CMP variants by arity", func() {
			one, err := reg.Match("CMP", []isa.OperandKind{isa.KindReg})
			Expect(err).NotTo(HaveOccurred())
			two, err := reg.Match("CMP", []isa.OperandKind{isa.KindReg, isa.KindReg})
			Expect(err).NotTo(HaveOccurred())
			Expect(one.Opcode).NotTo(Equal(two.Opcode))
		})

		It("should resolve namespaced hardware mnemonics", func() {
			in, err := reg.Match("DMA.SET", []isa.OperandKind{isa.KindReg})
			Expect(err).NotTo(HaveOccurred())
			Expect(in.Pipe).To(Equal("DMA"))
			Expect(in.Flags).To(BeEmpty())
		})

		It("should reject an unknown mnemonic", func() {
			_, err := reg.Match("FROB", nil)
			Expect(err).To(MatchError(ContainSubstring("unknown mnemonic")))
		})

		It("should reject a wrong operand count", func() {
			_, err := reg.Match("ADD", []isa.OperandKind{isa.KindReg, isa.KindReg})
			Expect(err).To(MatchError(ContainSubstring("invalid number of operands")))
		})

		It("should reject mismatched operand kinds", func() {
			_, err := reg.Match("BRA", []isa.OperandKind{isa.KindReg})
			Expect(err).To(MatchError(ContainSubstring("do not match")))
		})
	})

	It("should report ADD as the Overflow and Compare producer", func() {
		in, err := reg.Match("ADD", []isa.OperandKind{isa.KindImm})
		Expect(err).NotTo(HaveOccurred())
		Expect(in.Flags).To(Equal([]string{"O", "C"}))
	})

	It("should reject a definition with a duplicated variant", func() {
		def := []byte(`
version: 1
registers: [R0]
flags: []
instructions:
  - {name: NOP, desc: a}
  - {name: NOP, desc: b}
`)
		_, err := isa.NewRegistryFromYAML(def)
		Expect(err).To(MatchError(ContainSubstring("duplicated")))
	})

	It("should reject a definition using a bare IMM operand", func() {
		def := []byte(`
version: 1
registers: [R0]
flags: []
instructions:
  - {name: FOO, ops: [IMM], desc: a}
`)
		_, err := isa.NewRegistryFromYAML(def)
		Expect(err).To(MatchError(ContainSubstring("IMM is not legal")))
	})

	It("should reject a definition using an unknown flag", func() {
		def := []byte(`
version: 1
registers: [R0]
flags: []
instructions:
  - {name: FOO, flags: [Z], desc: a}
`)
		_, err := isa.NewRegistryFromYAML(def)
		Expect(err).To(MatchError(ContainSubstring("unknown flag")))
	})
})
