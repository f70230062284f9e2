// Package isa provides the VPU instruction registry and word codec.
//
// The registry is built once from a versioned YAML ISA definition embedded
// in the package. Each (mnemonic, operand-shape) variant receives a unique
// opcode byte; bit 0 of the opcode is the kick flag separating core CPU
// instructions from hardware-pipe instructions, and bits 4-7 of a kick
// opcode select the target pipe.
//
// Usage:
//
//	reg, err := isa.NewRegistry()
//	in := reg.ByOpcode(word.Opcode())
//	vals := isa.Operands(word, in.Operands)
package isa
