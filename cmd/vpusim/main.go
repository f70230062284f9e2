// Package main provides the entry point for vpusim.
// vpusim is a cycle-stepped load/store VPU simulator.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/vpusim/asm"
	"github.com/sarchlab/vpusim/emu"
	"github.com/sarchlab/vpusim/loader"
	"github.com/sarchlab/vpusim/timing/cache"
)

var (
	timing     = flag.Bool("timing", false, "Enable the instruction fetch cache timing model")
	configPath = flag.String("config", "", "Path to hardware profile JSON file")
	strict     = flag.Bool("strict", false, "Treat the program size cap as a fatal error")
	maxCycles  = flag.Uint64("max-cycles", 100_000_000, "Stop a runaway program after this many cycles (0 = no limit)")
	outPath    = flag.String("o", "", "Assemble only, writing the binary image to this path")
	disasm     = flag.Bool("disasm", false, "Disassemble a binary image instead of running it")
	verbose    = flag.Bool("v", false, "Verbose output")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: vpusim [options] <program.vasm|program.bin>\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := emu.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = emu.LoadConfig(*configPath)
		if err != nil {
			fatal("Error loading config: %v", err)
		}
	}

	opts := []emu.EmulatorOption{emu.WithMaxCycles(*maxCycles)}
	var fetchCache *cache.FetchCache
	if *timing {
		fetchCache = cache.New(cache.DefaultConfig())
		opts = append(opts, emu.WithFetchModel(fetchCache))
	}

	emulator, err := emu.NewEmulator(cfg, opts...)
	if err != nil {
		fatal("Error creating emulator: %v", err)
	}

	programPath := flag.Arg(0)

	if *disasm {
		disassemble(emulator, programPath)
		return
	}

	asmOpts := []asm.Option{asm.WithSizeLimit(cfg.ProgramSizeLimit)}
	if *strict {
		asmOpts = append(asmOpts, asm.WithStrict())
	}

	prog, err := loader.New(emulator.Registry(), asmOpts...).Load(programPath)
	if err != nil {
		fatal("Error loading program: %v", err)
	}
	for _, w := range prog.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	if *outPath != "" {
		if err := os.WriteFile(*outPath, prog.Image, 0o644); err != nil {
			fatal("Error writing binary: %v", err)
		}
		if *verbose {
			fmt.Printf("Wrote %d bytes to %s\n", len(prog.Image), *outPath)
		}
		return
	}

	if *verbose {
		fmt.Printf("Loaded: %s (%d bytes)\n", programPath, len(prog.Image))
	}

	if err := emulator.LoadProgram(prog.Image); err != nil {
		fatal("Error loading program image: %v", err)
	}
	if err := emulator.Run(); err != nil {
		fatal("Execution failed: %v", err)
	}

	printStats(emulator, fetchCache)
}

// disassemble prints the listing of a binary image.
func disassemble(emulator *emu.Emulator, path string) {
	prog, err := loader.New(emulator.Registry()).LoadBinary(path)
	if err != nil {
		fatal("Error loading binary: %v", err)
	}
	lines, err := asm.Disassemble(emulator.Registry(), prog.Image)
	if err != nil {
		fatal("Error disassembling: %v", err)
	}
	fmt.Println(strings.Join(lines, "\n"))
}

// printStats reports the execution statistics after a clean run.
func printStats(emulator *emu.Emulator, fetchCache *cache.FetchCache) {
	stats := emulator.Stats()
	fmt.Printf("Cycles:       %d\n", emulator.Cycle())
	fmt.Printf("Instructions: %d\n", stats.Instructions)

	if !*verbose {
		return
	}
	fmt.Printf("Flushes:        %d\n", stats.Flushes)
	fmt.Printf("Stall cycles:   %d\n", stats.StallCycles)
	fmt.Printf("Barrier cycles: %d\n", stats.BarrierCycles)

	pstats := emulator.Predictor().Stats()
	fmt.Printf("Branch accuracy: %.1f%% (%d predictions)\n",
		pstats.Accuracy(), pstats.Predictions)

	if fetchCache != nil {
		cstats := fetchCache.Stats()
		fmt.Printf("Fetch cache: %.1f%% hit rate, %d penalty cycles\n",
			cstats.HitRate()*100, stats.FetchPenaltyCycles)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
