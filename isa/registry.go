package isa

import (
	"fmt"
	"strings"
)

// Opcode is the most significant byte of an instruction word.
//
// Bit 0 is the kick flag: set for hardware-pipe instructions, clear for core
// CPU instructions. Bits 4-7 of a kick opcode hold the pipe prefix.
type Opcode uint8

// IsKick reports whether the opcode targets a hardware pipe.
func (o Opcode) IsKick() bool {
	return o&1 == 1
}

// Pipe returns the pipe prefix of a kick opcode. The result is only
// meaningful when IsKick is true; callers must not consult it otherwise.
func (o Opcode) Pipe() uint8 {
	return uint8(o) >> 4
}

// OperandKind is the parse-time classification of an operand. Numeric
// literals classify as KindImm and match either immediate width.
type OperandKind uint8

// Operand kinds.
const (
	KindReg OperandKind = iota
	KindLab
	KindImm
)

// Kind returns the parse-time classification matching this operand type.
func (t OperandType) Kind() OperandKind {
	switch t {
	case OperandReg:
		return KindReg
	case OperandLab:
		return KindLab
	default:
		return KindImm
	}
}

// Instruction is one registered (mnemonic, operand-shape) variant.
type Instruction struct {
	// Name is the bare mnemonic, without a pipe prefix.
	Name string
	// Pipe is the owning pipe name for hardware instructions, "" for core.
	Pipe string
	// Opcode is the unique opcode byte assigned to this variant.
	Opcode Opcode
	// Operands is the declared operand shape.
	Operands []OperandType
	// Flags lists the status flags this instruction may mutate.
	Flags []string
	// Desc is the human-readable description from the ISA definition.
	Desc string
}

// Mnemonic returns the assembly spelling: the bare name for core
// instructions, PIPE.NAME for hardware instructions.
func (in *Instruction) Mnemonic() string {
	if in.Pipe == "" {
		return in.Name
	}
	return in.Pipe + "." + in.Name
}

// Flag is a status flag declared by the ISA definition.
type Flag struct {
	// Flag is the short name used in instruction flag lists (e.g. "C").
	Flag string
	// Name is the descriptive name (e.g. "Compare").
	Name string
}

// Pipe is a hardware pipe declared by the ISA definition.
type Pipe struct {
	// Name is the mnemonic namespace (e.g. "DMA").
	Name string
	// Prefix is the 4-bit opcode prefix.
	Prefix uint8
}

// Registry is the static instruction table. It is built once from an ISA
// definition and answers O(1) lookups by opcode (execution path) and by
// (mnemonic, operand kinds) (assembly path).
type Registry struct {
	version int

	registers []string
	regIDs    map[string]uint8
	flags     []Flag
	pipes     []Pipe
	pipeByPfx map[uint8]Pipe

	instructions []*Instruction
	byOpcode     [256]*Instruction
	byShape      map[string]*Instruction
	byMnemonic   map[string][]*Instruction

	maxMnemonicLen int
}

// NewRegistry builds the registry from the embedded ISA definition.
func NewRegistry() (*Registry, error) {
	return NewRegistryFromYAML(defaultISA)
}

// NewRegistryFromYAML builds a registry from a YAML ISA definition.
func NewRegistryFromYAML(data []byte) (*Registry, error) {
	sf, err := parseSpec(data)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		version:    sf.Version,
		registers:  sf.Registers,
		regIDs:     make(map[string]uint8, len(sf.Registers)),
		pipeByPfx:  make(map[uint8]Pipe, len(sf.Pipes)),
		byShape:    make(map[string]*Instruction),
		byMnemonic: make(map[string][]*Instruction),
	}
	for i, name := range sf.Registers {
		if i > 255 {
			return nil, fmt.Errorf("too many registers (%d)", len(sf.Registers))
		}
		r.regIDs[name] = uint8(i)
	}
	for _, f := range sf.Flags {
		r.flags = append(r.flags, Flag{Flag: f.Flag, Name: f.Name})
	}
	pipeByName := make(map[string]Pipe, len(sf.Pipes))
	for _, p := range sf.Pipes {
		pipe := Pipe{Name: p.Name, Prefix: p.Prefix}
		r.pipes = append(r.pipes, pipe)
		r.pipeByPfx[p.Prefix] = pipe
		pipeByName[p.Name] = pipe
	}

	// Core instructions occupy even opcode bytes in definition order.
	for i, in := range sf.Instructions {
		if i >= 128 {
			return nil, fmt.Errorf("too many core instructions (%d), opcode space is 128", len(sf.Instructions))
		}
		op := Opcode(i << 1)
		if err := r.add(in.Name, "", op, in.Ops, in.Flags, in.Desc); err != nil {
			return nil, err
		}
	}

	// Hardware instructions carry their pipe prefix in the upper nibble and
	// the kick flag in bit 0, leaving bits 1-3 for a per-pipe index.
	perPipe := map[string]int{}
	for _, hw := range sf.Hardware {
		pipe := pipeByName[hw.Pipe]
		idx := perPipe[hw.Pipe]
		if idx >= 8 {
			return nil, fmt.Errorf("pipe %s has more than 8 instructions", hw.Pipe)
		}
		perPipe[hw.Pipe] = idx + 1
		op := Opcode(pipe.Prefix<<4 | uint8(idx)<<1 | 1)
		if err := r.add(hw.Name, hw.Pipe, op, hw.Ops, hw.Flags, hw.Desc); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) add(name, pipe string, op Opcode, ops, flags []string, desc string) error {
	in := &Instruction{
		Name:   name,
		Pipe:   pipe,
		Opcode: op,
		Flags:  flags,
		Desc:   desc,
	}
	for _, o := range ops {
		t, err := operandTypeFromString(o)
		if err != nil {
			return err
		}
		in.Operands = append(in.Operands, t)
	}

	if err := checkShape(in.Operands); err != nil {
		return fmt.Errorf("instruction %s: %w", in.Mnemonic(), err)
	}

	key := shapeKey(in.Mnemonic(), kindsOf(in.Operands))
	if r.byShape[key] != nil {
		return fmt.Errorf("instruction %s %v is a duplicated definition", in.Mnemonic(), in.Operands)
	}
	if r.byOpcode[op] != nil {
		return fmt.Errorf("opcode %#02x assigned twice", uint8(op))
	}

	r.instructions = append(r.instructions, in)
	r.byOpcode[op] = in
	r.byShape[key] = in
	r.byMnemonic[in.Mnemonic()] = append(r.byMnemonic[in.Mnemonic()], in)
	if n := len(in.Mnemonic()); n > r.maxMnemonicLen {
		r.maxMnemonicLen = n
	}
	return nil
}

// checkShape rejects operand shapes that cannot coexist in the three
// operand bytes of a word.
func checkShape(ops []OperandType) error {
	regs, wide := 0, 0
	for _, t := range ops {
		switch t {
		case OperandReg:
			regs++
		default:
			wide++
		}
	}
	if wide > 1 {
		return fmt.Errorf("at most one immediate or label operand fits in a word")
	}
	if wide == 1 {
		last := ops[len(ops)-1]
		if last.Kind() == KindReg {
			return fmt.Errorf("an immediate or label operand must come last")
		}
		if last.Bits()+8*regs > 24 {
			return fmt.Errorf("operand shape exceeds the 24 operand bits of a word")
		}
	}
	if regs > 3 {
		return fmt.Errorf("at most three register operands fit in a word")
	}
	return nil
}

// kindsOf maps operand types to their parse-time kinds.
func kindsOf(ops []OperandType) []OperandKind {
	kinds := make([]OperandKind, len(ops))
	for i, t := range ops {
		kinds[i] = t.Kind()
	}
	return kinds
}

func shapeKey(mnemonic string, kinds []OperandKind) string {
	var b strings.Builder
	b.WriteString(mnemonic)
	for _, k := range kinds {
		switch k {
		case KindReg:
			b.WriteString(" R")
		case KindLab:
			b.WriteString(" L")
		case KindImm:
			b.WriteString(" I")
		}
	}
	return b.String()
}

// ByOpcode returns the instruction registered for an opcode byte, or nil.
func (r *Registry) ByOpcode(op Opcode) *Instruction {
	return r.byOpcode[op]
}

// Match resolves a mnemonic and the parse-time kinds of its operands to a
// registered variant. The error distinguishes unknown mnemonics from arity
// and operand-kind mismatches.
func (r *Registry) Match(mnemonic string, kinds []OperandKind) (*Instruction, error) {
	if in := r.byShape[shapeKey(mnemonic, kinds)]; in != nil {
		return in, nil
	}

	variants := r.byMnemonic[mnemonic]
	if len(variants) == 0 {
		return nil, fmt.Errorf("unknown mnemonic %q", mnemonic)
	}
	arityMatch := false
	var expected []string
	for _, v := range variants {
		if len(v.Operands) == len(kinds) {
			arityMatch = true
		}
		shapes := make([]string, len(v.Operands))
		for i, t := range v.Operands {
			shapes[i] = t.String()
		}
		expected = append(expected, "["+strings.Join(shapes, ",")+"]")
	}
	if !arityMatch {
		return nil, fmt.Errorf("invalid number of operands (%d) for mnemonic %s", len(kinds), mnemonic)
	}
	return nil, fmt.Errorf("operand types do not match expected format for mnemonic %s: expected %s",
		mnemonic, strings.Join(expected, " or "))
}

// HasMnemonic reports whether any variant is registered under a mnemonic.
func (r *Registry) HasMnemonic(mnemonic string) bool {
	return len(r.byMnemonic[mnemonic]) > 0
}

// RegisterID resolves a register name to its encoding.
func (r *Registry) RegisterID(name string) (uint8, bool) {
	id, ok := r.regIDs[name]
	return id, ok
}

// RegisterName returns the name of a register encoding, or "" if out of range.
func (r *Registry) RegisterName(id uint8) string {
	if int(id) >= len(r.registers) {
		return ""
	}
	return r.registers[id]
}

// Registers returns the register names in encoding order.
func (r *Registry) Registers() []string {
	return r.registers
}

// Flags returns the declared status flags.
func (r *Registry) Flags() []Flag {
	return r.flags
}

// Pipes returns the declared hardware pipes.
func (r *Registry) Pipes() []Pipe {
	return r.pipes
}

// PipeByPrefix resolves a 4-bit opcode prefix to its pipe.
func (r *Registry) PipeByPrefix(prefix uint8) (Pipe, bool) {
	p, ok := r.pipeByPfx[prefix]
	return p, ok
}

// Instructions returns every registered variant in opcode-assignment order.
func (r *Registry) Instructions() []*Instruction {
	return r.instructions
}

// MaxMnemonicLen returns the longest registered mnemonic length, used for
// fixed-width disassembly.
func (r *Registry) MaxMnemonicLen() int {
	return r.maxMnemonicLen
}

// Version returns the ISA definition version.
func (r *Registry) Version() int {
	return r.version
}
