// Package loader turns program files into memory images for the VPU.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/vpusim/asm"
	"github.com/sarchlab/vpusim/isa"
)

// Program is a loaded program ready for the emulator.
type Program struct {
	// Image is the binary memory image for the reset vector.
	Image []byte
	// Source is the path the program was loaded from.
	Source string
	// Assembled is true when the program came from assembly text.
	Assembled bool
	// Warnings holds non-fatal assembler findings.
	Warnings []string
}

// Loader loads programs from disk, assembling source files on the way.
type Loader struct {
	registry *isa.Registry
	asmOpts  []asm.Option
}

// New creates a loader over the given registry. The asm options apply
// when a source file is assembled.
func New(registry *isa.Registry, asmOpts ...asm.Option) *Loader {
	return &Loader{registry: registry, asmOpts: asmOpts}
}

// Load reads a program file. Files with a .vasm extension are assembled;
// anything else is taken as a flat binary image.
func (l *Loader) Load(path string) (*Program, error) {
	if strings.EqualFold(filepath.Ext(path), ".vasm") {
		return l.LoadSource(path)
	}
	return l.LoadBinary(path)
}

// LoadSource assembles an assembly source file.
func (l *Loader) LoadSource(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}

	prog, err := asm.New(l.registry, l.asmOpts...).Compile(filepath.Base(path), string(data))
	if err != nil {
		return nil, err
	}

	return &Program{
		Image:     prog.Image,
		Source:    path,
		Assembled: true,
		Warnings:  prog.Warnings,
	}, nil
}

// LoadBinary reads a flat binary image. The image must be a whole number
// of instruction words.
func (l *Loader) LoadBinary(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	if len(data)%isa.WordSize != 0 {
		return nil, fmt.Errorf("binary %s is %d bytes, not a whole number of %d-byte words",
			path, len(data), isa.WordSize)
	}

	return &Program{Image: data, Source: path}, nil
}
