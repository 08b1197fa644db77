// Command wasmc compiles a WebAssembly binary module into this repository's
// internal bytecode and prints or dumps the result, grounded on
// cmd/run/main.go's flag-driven, no-subcommand CLI shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/wippyai/wasmc/wasmc"
)

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to a .wasm module")
		funcName    = flag.String("func", "", "Only print the function exported under this name (all functions are still compiled)")
		dump        = flag.Bool("dump", false, "Print compiled bytecode and frame sizes")
		interactive = flag.Bool("i", false, "Interactive TUI: browse compiled instructions and packed local offsets")
		verify      = flag.Bool("verify", false, "Differentially sanity-check the decoder against wazero's own parse")
		maxPooled   = flag.Int("max-pooled-constants", 0, "Constant pool cap (0 selects the default)")
		ptrWidth    = flag.Int("pointer-width", 4, "Byte width of funcref/externref slots (4 or 8)")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: wasmc -wasm <file.wasm> [-func name] [-dump]")
		fmt.Fprintln(os.Stderr, "       wasmc -wasm <file.wasm> -i   (interactive mode)")
		fmt.Fprintln(os.Stderr, "       wasmc -wasm <file.wasm> -verify")
		os.Exit(1)
	}

	data, err := os.ReadFile(*wasmFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: read file: %v\n", err)
		os.Exit(1)
	}

	cfg := wasmc.Config{MaxPooledConstants: *maxPooled, PointerWidth: *ptrWidth}

	mod, err := wasmc.Compile(data, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: compile: %v\n", err)
		os.Exit(1)
	}
	for _, ferr := range mod.Errors {
		fmt.Fprintf(os.Stderr, "warning: %v\n", ferr)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: -i requires a terminal, stdout is not one")
			os.Exit(1)
		}
		if err := runInteractive(*wasmFile, mod); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *verify {
		report, err := verifyAgainstWazero(context.Background(), data, mod)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: verify: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(report)
	}

	fmt.Printf("%s: %d function(s) compiled", *wasmFile, len(mod.Functions))
	if n := len(mod.Errors); n > 0 {
		fmt.Printf(", %d failed", n)
	}
	fmt.Println()

	for _, fn := range mod.Functions {
		if *funcName != "" && fn.ExportName != *funcName {
			continue
		}
		if *dump {
			fmt.Print(fn.Dump())
			continue
		}
		fmt.Printf("  %-24s frame=%-6d watermark=%d\n", fn.Name, fn.FrameSize, fn.RequiredStackSize)
	}
}
