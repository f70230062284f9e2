// Package asm provides the two-pass VPU assembler and the matching
// disassembler.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sarchlab/vpusim/isa"
)

// Error is a fatal assembly error carrying its source position.
type Error struct {
	File string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// Program is the result of a successful assembly: a contiguous memory
// image from the reset vector through the last emitted instruction.
type Program struct {
	// Image is the binary memory image, word 0 at address 0.
	Image []byte
	// Size is the emitted size in bytes.
	Size uint32
	// Warnings holds non-fatal findings, such as a soft size cap
	// exceeded outside strict mode.
	Warnings []string
}

// Assembler translates assembly text to instruction words using the
// registry. It is safe to reuse for multiple compilations.
type Assembler struct {
	registry *isa.Registry

	sizeLimit uint32
	strict    bool
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithSizeLimit sets the soft program size cap in bytes. Zero disables
// the check.
func WithSizeLimit(limit uint32) Option {
	return func(a *Assembler) { a.sizeLimit = limit }
}

// WithStrict promotes the size cap from a warning to a fatal error.
func WithStrict() Option {
	return func(a *Assembler) { a.strict = true }
}

// New creates an assembler over the given registry.
func New(registry *isa.Registry, opts ...Option) *Assembler {
	a := &Assembler{registry: registry}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// sourceLine is one tokenized instruction line awaiting encoding.
type sourceLine struct {
	line   int
	addr   uint32
	tokens []string
}

// Compile assembles source text. Any error aborts the assembly with no
// partial binary.
func (a *Assembler) Compile(filename, source string) (*Program, error) {
	symbols := map[string]uint32{}
	var lines []sourceLine

	// Pass 1: assign one word per instruction from the reset vector and
	// collect label definitions.
	addr := uint32(0)
	for i, raw := range strings.Split(source, "\n") {
		lineNo := i + 1
		tokens := tokenize(raw)
		if len(tokens) == 0 {
			continue
		}

		if len(tokens) == 1 && !a.registry.HasMnemonic(tokens[0]) && isLabel(tokens[0]) {
			if _, dup := symbols[tokens[0]]; dup {
				return nil, &Error{filename, lineNo, fmt.Sprintf("label %s is already defined", tokens[0])}
			}
			symbols[tokens[0]] = addr
			continue
		}

		lines = append(lines, sourceLine{line: lineNo, addr: addr, tokens: tokens})
		addr += isa.WordSize
	}

	// Pass 2: resolve operands against the registry and the symbol table
	// and emit the image.
	prog := &Program{Image: make([]byte, 0, addr)}
	for _, sl := range lines {
		w, err := a.encodeLine(filename, symbols, sl)
		if err != nil {
			return nil, err
		}
		prog.Image = append(prog.Image, w.Bytes()...)
	}
	prog.Size = uint32(len(prog.Image))

	if a.sizeLimit > 0 && prog.Size > a.sizeLimit {
		msg := fmt.Sprintf("program size %d bytes exceeds the %d byte limit", prog.Size, a.sizeLimit)
		if a.strict {
			return nil, &Error{filename, 0, msg}
		}
		prog.Warnings = append(prog.Warnings, msg)
	}

	return prog, nil
}

// encodeLine resolves and encodes one instruction line.
func (a *Assembler) encodeLine(filename string, symbols map[string]uint32, sl sourceLine) (isa.Word, error) {
	mnemonic := sl.tokens[0]
	operands := sl.tokens[1:]

	kinds := make([]isa.OperandKind, len(operands))
	for i, tok := range operands {
		k, err := a.classify(tok)
		if err != nil {
			return 0, &Error{filename, sl.line, err.Error()}
		}
		kinds[i] = k
	}

	in, err := a.registry.Match(mnemonic, kinds)
	if err != nil {
		return 0, &Error{filename, sl.line, err.Error()}
	}

	vals := make([]uint32, len(operands))
	for i, tok := range operands {
		v, err := a.operandValue(symbols, in.Operands[i], tok)
		if err != nil {
			return 0, &Error{filename, sl.line, err.Error()}
		}
		vals[i] = v
	}

	return isa.Encode(in.Opcode, in.Operands, vals), nil
}

// classify determines the parse-time kind of an operand token.
func (a *Assembler) classify(tok string) (isa.OperandKind, error) {
	if _, ok := a.registry.RegisterID(tok); ok {
		return isa.KindReg, nil
	}
	if _, err := parseLiteral(tok); err == nil {
		return isa.KindImm, nil
	}
	if isLabel(tok) {
		return isa.KindLab, nil
	}
	return 0, fmt.Errorf("could not determine type of operand %q", tok)
}

// operandValue resolves one operand token to its encoded value,
// range-checking immediates against the declared bit width.
func (a *Assembler) operandValue(symbols map[string]uint32, t isa.OperandType, tok string) (uint32, error) {
	switch t {
	case isa.OperandReg:
		id, _ := a.registry.RegisterID(tok)
		return uint32(id), nil
	case isa.OperandLab:
		target, ok := symbols[tok]
		if !ok {
			return 0, fmt.Errorf("undefined label %s", tok)
		}
		return target, nil
	default:
		v, err := parseLiteral(tok)
		if err != nil {
			return 0, err
		}
		if !t.Fits(v) {
			return 0, fmt.Errorf("value %s does not fit in %d bits", tok, t.Bits())
		}
		return v, nil
	}
}

// tokenize strips the ';' comment and splits a line on whitespace and
// commas.
func tokenize(raw string) []string {
	if i := strings.IndexByte(raw, ';'); i >= 0 {
		raw = raw[:i]
	}
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\r' || r == ','
	})
}

// isLabel reports whether a token is a bare label identifier: an
// uppercase letter followed by uppercase letters or digits.
func isLabel(tok string) bool {
	if tok == "" || tok[0] < 'A' || tok[0] > 'Z' {
		return false
	}
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

// parseLiteral parses a decimal or 0x-prefixed hex literal.
func parseLiteral(tok string) (uint32, error) {
	v, err := strconv.ParseUint(tok, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric literal %q", tok)
	}
	return uint32(v), nil
}
