package isa

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed isa.yaml
var defaultISA []byte

// OperandType describes how one operand of an instruction is encoded.
type OperandType uint8

// Operand types.
const (
	OperandReg   OperandType = iota // 8-bit register ID
	OperandLab                      // 24-bit label/address
	OperandImm16                    // 16-bit immediate
	OperandImm24                    // 24-bit immediate
)

// String returns the operand type name as it appears in the ISA definition.
func (t OperandType) String() string {
	switch t {
	case OperandReg:
		return "REG"
	case OperandLab:
		return "LAB"
	case OperandImm16:
		return "IMM16"
	case OperandImm24:
		return "IMM24"
	default:
		return "UNKNOWN"
	}
}

// Bits returns the encoded width of the operand in bits.
func (t OperandType) Bits() int {
	switch t {
	case OperandReg:
		return 8
	case OperandImm16:
		return 16
	case OperandLab, OperandImm24:
		return 24
	default:
		return 0
	}
}

// Fits reports whether a value is representable in the operand's bit width.
func (t OperandType) Fits(v uint32) bool {
	return uint64(v) < 1<<uint(t.Bits())
}

// specFile is the on-disk shape of the ISA definition.
type specFile struct {
	Version      int            `yaml:"version"`
	Registers    []string       `yaml:"registers"`
	Flags        []specFlag     `yaml:"flags"`
	Pipes        []specPipe     `yaml:"pipes"`
	Instructions []specInstr    `yaml:"instructions"`
	Hardware     []specHardware `yaml:"hardware"`
}

type specFlag struct {
	Flag string `yaml:"flag"`
	Name string `yaml:"name"`
}

type specPipe struct {
	Name   string `yaml:"name"`
	Prefix uint8  `yaml:"prefix"`
}

type specInstr struct {
	Name  string   `yaml:"name"`
	Ops   []string `yaml:"ops"`
	Flags []string `yaml:"flags"`
	Desc  string   `yaml:"desc"`
}

type specHardware struct {
	Pipe  string   `yaml:"pipe"`
	Name  string   `yaml:"name"`
	Ops   []string `yaml:"ops"`
	Flags []string `yaml:"flags"`
	Desc  string   `yaml:"desc"`
}

// parseSpec unmarshals and structurally validates an ISA definition.
func parseSpec(data []byte) (*specFile, error) {
	var sf specFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parse ISA definition: %w", err)
	}

	if sf.Version != 1 {
		return nil, fmt.Errorf("unsupported ISA definition version %d", sf.Version)
	}
	if len(sf.Registers) == 0 {
		return nil, fmt.Errorf("ISA definition lists no registers")
	}
	if len(sf.Instructions) == 0 {
		return nil, fmt.Errorf("ISA definition lists no instructions")
	}

	seenRegs := map[string]bool{}
	for i, r := range sf.Registers {
		if seenRegs[r] {
			return nil, fmt.Errorf("register list entry %d (%s) is duplicated", i, r)
		}
		seenRegs[r] = true
	}

	seenFlags := map[string]bool{}
	for i, f := range sf.Flags {
		if f.Flag == "" || f.Name == "" {
			return nil, fmt.Errorf("flag list entry %d is missing flag or name", i)
		}
		if seenFlags[f.Flag] {
			return nil, fmt.Errorf("flag list entry %d (%s) is duplicated", i, f.Flag)
		}
		seenFlags[f.Flag] = true
	}

	seenPipes := map[string]bool{}
	seenPrefixes := map[uint8]bool{}
	for i, p := range sf.Pipes {
		if p.Name == "" {
			return nil, fmt.Errorf("pipe list entry %d is missing a name", i)
		}
		if p.Prefix == 0 || p.Prefix > 15 {
			return nil, fmt.Errorf("pipe %s has prefix %d, want 1..15", p.Name, p.Prefix)
		}
		if seenPipes[p.Name] || seenPrefixes[p.Prefix] {
			return nil, fmt.Errorf("pipe list entry %d (%s) is duplicated", i, p.Name)
		}
		seenPipes[p.Name] = true
		seenPrefixes[p.Prefix] = true
	}

	for i, in := range sf.Instructions {
		if err := checkSpecInstr(in.Name, in.Ops, in.Flags, seenFlags); err != nil {
			return nil, fmt.Errorf("instruction list entry %d: %w", i, err)
		}
	}
	for i, hw := range sf.Hardware {
		if !seenPipes[hw.Pipe] {
			return nil, fmt.Errorf("hardware list entry %d references unknown pipe %q", i, hw.Pipe)
		}
		if err := checkSpecInstr(hw.Name, hw.Ops, hw.Flags, seenFlags); err != nil {
			return nil, fmt.Errorf("hardware list entry %d: %w", i, err)
		}
	}

	return &sf, nil
}

func checkSpecInstr(name string, ops, flags []string, knownFlags map[string]bool) error {
	if name == "" {
		return fmt.Errorf("missing required key 'name'")
	}
	for _, op := range ops {
		if _, err := operandTypeFromString(op); err != nil {
			return err
		}
	}
	for _, f := range flags {
		if !knownFlags[f] {
			return fmt.Errorf("uses unknown flag %q", f)
		}
	}
	return nil
}

func operandTypeFromString(s string) (OperandType, error) {
	switch s {
	case "REG":
		return OperandReg, nil
	case "LAB":
		return OperandLab, nil
	case "IMM16":
		return OperandImm16, nil
	case "IMM24":
		return OperandImm24, nil
	case "IMM":
		// The definition must commit to a width; bare IMM is only a
		// parse-time classification used by the assembler.
		return 0, fmt.Errorf("operand type IMM is not legal in a definition")
	default:
		return 0, fmt.Errorf("%q is not a valid operand type", s)
	}
}
