package asm

import (
	"fmt"
	"strings"

	"github.com/sarchlab/vpusim/isa"
)

// Disassemble renders a binary image back to assembly text, one line per
// word, with synthetic labels inserted for in-image branch targets.
// Mnemonics are padded to the registry's maximum mnemonic length so the
// listing is fixed-width. Label text erased by assembly is not recovered;
// reassembling the listing reproduces the same opcode/operand sequence.
func Disassemble(registry *isa.Registry, image []byte) ([]string, error) {
	if len(image)%isa.WordSize != 0 {
		return nil, fmt.Errorf("image size %d is not a whole number of words", len(image))
	}

	// First pass: collect in-image label targets. The address one past
	// the last word is a legal target (a branch to the end of the
	// program), so it gets a trailing label line.
	targets := map[uint32]string{}
	for off := 0; off < len(image); off += isa.WordSize {
		w := isa.WordAt(image[off:])
		in := registry.ByOpcode(w.Opcode())
		if in == nil {
			return nil, fmt.Errorf("unknown opcode %#02x at address %#x", uint8(w.Opcode()), off)
		}
		for _, t := range in.Operands {
			if t == isa.OperandLab && w.Label() <= uint32(len(image)) {
				targets[w.Label()] = fmt.Sprintf("L%06X", w.Label())
			}
		}
	}

	var lines []string
	for off := 0; off < len(image); off += isa.WordSize {
		addr := uint32(off)
		if name, ok := targets[addr]; ok {
			lines = append(lines, name)
		}

		w := isa.WordAt(image[off:])
		in := registry.ByOpcode(w.Opcode())
		vals := isa.Operands(w, in.Operands)

		ops := make([]string, len(in.Operands))
		for i, t := range in.Operands {
			switch t {
			case isa.OperandReg:
				ops[i] = registry.RegisterName(uint8(vals[i]))
			case isa.OperandLab:
				if name, ok := targets[vals[i]]; ok {
					ops[i] = name
				} else {
					ops[i] = fmt.Sprintf("%#x", vals[i])
				}
			default:
				ops[i] = fmt.Sprintf("%#x", vals[i])
			}
		}

		line := fmt.Sprintf("%-*s", registry.MaxMnemonicLen(), in.Mnemonic())
		if len(ops) > 0 {
			line += " " + strings.Join(ops, ", ")
		}
		lines = append(lines, strings.TrimRight(line, " "))
	}
	if name, ok := targets[uint32(len(image))]; ok {
		lines = append(lines, name)
	}
	return lines, nil
}
