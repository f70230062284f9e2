// Package main provides the entry point for vpusim.
// vpusim is a cycle-stepped load/store VPU simulator.
//
// For the full CLI, use: go run ./cmd/vpusim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("vpusim - load/store VPU simulator")
	fmt.Println("")
	fmt.Println("Usage: vpusim [options] <program.vasm|program.bin>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -timing    Enable the instruction fetch cache timing model")
	fmt.Println("  -config    Path to hardware profile JSON file")
	fmt.Println("  -strict    Treat the program size cap as a fatal error")
	fmt.Println("  -disasm    Disassemble a binary image instead of running it")
	fmt.Println("  -o         Assemble only, writing the binary image")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/vpusim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/vpusim' instead.")
	}
}
