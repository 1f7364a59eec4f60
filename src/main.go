package main

import (
	"fmt"
	"os"
	"time"

	"microc/src/backend"
	"microc/src/frontend"
	"microc/src/ir"
	"microc/src/util"

	"tlog.app/go/tlog"
)

// outputBuffer is the number of text chunks the output writer queues before writers block.
const outputBuffer = 16

func main() {
	// Parse command line arguments.
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Printf("Command line argument error: %s\n", err)
		os.Exit(1)
	}
	util.InitLogger(opt)
	start := time.Now()

	// Read source code.
	src, err := util.ReadSource(opt)
	if err != nil {
		fmt.Printf("Could not read source code: %s\n", err)
		os.Exit(1)
	}

	// Initiate output writer.
	out, err := util.NewOutput(opt.Out, outputBuffer)
	if err != nil {
		fmt.Printf("Could not open output: %s\n", err)
		os.Exit(1)
	}
	w := out.NewWriter()

	// If -ts flag was passed: output token stream and exit.
	if opt.TokenStream {
		if err := frontend.TokenStream(src, w); err != nil {
			exit(out, "Syntax error: %s\n", err)
		}
		closeOutput(out)
		return
	}

	// Read three address code from the source listing.
	prog, err := frontend.Parse(src)
	if err != nil {
		exit(out, "Parse error: %s\n", err)
	}

	// Print intermediate representations and exit if any was requested.
	if opt.Tac || opt.CFG || opt.Live {
		if err := ir.Dump(opt, prog, w); err != nil {
			exit(out, "Analysis error: %s\n", err)
		}
		closeOutput(out)
		return
	}

	// Generate assembler.
	if err := backend.GenerateAssembler(opt, prog, w); err != nil {
		exit(out, "Code generation error: %s\n", err)
	}
	closeOutput(out)
	tlog.V("stats").Printw("compiled", "program", prog.Name, "threads", opt.Threads, "elapsed", time.Since(start))
}

// closeOutput stops the output writer and exits on write errors.
func closeOutput(out *util.Output) {
	if err := out.Close(); err != nil {
		fmt.Printf("Output error: %s\n", err)
		os.Exit(1)
	}
}

// exit flushes pending output, prints the error message and exits with status 1.
func exit(out *util.Output, format string, err error) {
	_ = out.Close()
	fmt.Printf(format, err)
	os.Exit(1)
}
