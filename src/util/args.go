package util

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/xyproto/env/v2"
	"tlog.app/go/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds the compiler configuration given by environment variables and command line flags.
type Options struct {
	Src         string // Path to source file. Empty means stdin.
	Out         string // Path to output file. Empty means stdout.
	Threads     int    // Thread count.
	Verbose     bool   // Set true if compiler should log statistical data.
	TokenStream bool   // Set true if compiler should output token stream and exit.
	LLVM        bool   // Set true if compiler should emit LLVM IR instead of Tiny assembler.
	Tac         bool   // Set true if compiler should print the parsed three address code.
	CFG         bool   // Set true if compiler should print basic blocks and control flow graphs.
	Live        bool   // Set true if compiler should print the liveness annotated control flow graphs.
	Log         string // Comma separated log topics enabled in addition to the defaults.
}

// ---------------------
// ----- Constants -----
// ---------------------

const maxThreads = 64 // Maximum threads allowed executing in parallel.
const appVersion = "microc compiler backend 1.0"

// Environment variables providing defaults for command line flags.
const (
	EnvThreads = "MICROC_THREADS"
	EnvVerbose = "MICROC_VERBOSE"
	EnvLog     = "MICROC_LOG"
	EnvOut     = "MICROC_OUT"
)

// ---------------------
// ----- functions -----
// ---------------------

// DefaultOptions returns the options given by the environment.
func DefaultOptions() Options {
	return Options{
		Out:     env.Str(EnvOut),
		Threads: env.Int(EnvThreads, 1),
		Verbose: env.Bool(EnvVerbose),
		Log:     env.Str(EnvLog),
	}
}

// ParseArgs parses the command line arguments of the process on top of DefaultOptions.
func ParseArgs() (Options, error) {
	return parseArgs(DefaultOptions(), os.Args[1:])
}

// parseArgs parses args on top of opt.
func parseArgs(opt Options, args []string) (Options, error) {
	for i1 := 0; i1 < len(args); i1++ {
		switch args[i1] {
		case "-h", "--h", "-help", "--help":
			// Help and usage.
			printHelp()
			os.Exit(0)
		case "-v", "--v", "-version", "--version":
			// Application version.
			fmt.Println(appVersion)
			os.Exit(0)
		case "-ll":
			opt.LLVM = true
		case "-ts":
			opt.TokenStream = true
		case "-tac":
			opt.Tac = true
		case "-cfg":
			opt.CFG = true
		case "-live":
			opt.Live = true
		case "-vb":
			opt.Verbose = true
		case "-o", "-t", "-log":
			if i1+1 >= len(args) {
				return opt, errors.New("got flag %s but no argument", args[i1])
			}
			if strings.HasPrefix(args[i1+1], "-") {
				return opt, errors.New("expected argument to %s, got new flag %s", args[i1], args[i1+1])
			}
			switch args[i1] {
			case "-o":
				opt.Out = args[i1+1]
			case "-t":
				t, err := strconv.Atoi(args[i1+1])
				if err != nil {
					return opt, errors.New("expected integer thread count, got: %s", args[i1+1])
				}
				opt.Threads = t
			case "-log":
				opt.Log = args[i1+1]
			}
			i1++
		default:
			if strings.HasPrefix(args[i1], "-") {
				return opt, errors.New("unexpected flag: %s", args[i1])
			}
			if len(opt.Src) > 0 {
				return opt, errors.New("more than one source file: %s and %s", opt.Src, args[i1])
			}
			opt.Src = args[i1]
		}
	}
	if opt.Threads < 1 || opt.Threads > maxThreads {
		return opt, errors.New("thread count must be integer in range [1, %d], got %d", maxThreads, opt.Threads)
	}
	return opt, nil
}

// printHelp prints a helpful usage message to stdout.
func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, ' ', 0)
	_, _ = fmt.Fprintln(w, "usage: microc [flags] [file.tac]")
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits the application.")
	_, _ = fmt.Fprintln(w, "-cfg\tPrint the basic blocks and control flow graph of every function.")
	_, _ = fmt.Fprintln(w, "-live\tPrint the control flow graph of every function annotated with liveness sets.")
	_, _ = fmt.Fprintln(w, "-ll\tEmit LLVM IR instead of Tiny assembler.")
	_, _ = fmt.Fprintf(w, "-log\tComma separated log topics: stats, regs. Defaults to $%s.\n", EnvLog)
	_, _ = fmt.Fprintf(w, "-o\tPath and name of the output file. Defaults to $%s or stdout.\n", EnvOut)
	_, _ = fmt.Fprintf(w, "-t\tNumber of threads to run in parallel. Must be in range [1, %d]. Defaults to $%s or 1.\n", maxThreads, EnvThreads)
	_, _ = fmt.Fprintln(w, "-tac\tPrint the parsed three address code.")
	_, _ = fmt.Fprintln(w, "-ts\tOutput the tokens of the source code and exit.")
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints application version and exits the application.")
	_, _ = fmt.Fprintf(w, "-vb\tVerbose mode: log compiler statistics. Defaults to $%s.\n", EnvVerbose)
	_ = w.Flush()
}
