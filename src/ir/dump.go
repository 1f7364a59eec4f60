// Package ir prints the intermediate representations of a program: the parsed three address code, the basic blocks
// and control flow graph of every function, and the liveness annotated graphs.
package ir

import (
	"strings"

	"microc/src/ir/cfg"
	"microc/src/ir/liveness"
	"microc/src/ir/tac"
	"microc/src/util"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Dump writes the representations of prog selected by opt to w. Functions are analysed in parallel if
// opt.Threads > 1 and written in program order.
func Dump(opt util.Options, prog *tac.Program, w *util.Writer) error {
	if opt.Tac {
		w.WriteString(prog.String())
		w.Flush()
	}
	if !opt.CFG && !opt.Live {
		return nil
	}

	res := make([]string, len(prog.Functions))
	err := util.Parallel(opt.Threads, len(prog.Functions), func(i int) error {
		f := prog.Functions[i]
		g, err := cfg.New(cfg.BuildBlocks(f.Code))
		if err != nil {
			return errors.Wrap(err, "function %s", name(f))
		}

		sb := strings.Builder{}
		sb.WriteString("==== Function " + name(f) + " ===\n")
		if opt.CFG {
			sb.WriteString(g.String())
		}
		if opt.Live {
			lg := liveness.Decorate(g, prog.Symbols)
			passes := lg.Solve()
			tlog.V("stats").Printw("liveness solved", "func", name(f), "blocks", g.Len(), "passes", passes)
			if opt.CFG {
				sb.WriteByte('\n')
			}
			sb.WriteString(lg.String())
		}
		res[i] = sb.String()
		return nil
	})
	if err != nil {
		return err
	}

	for _, e1 := range res {
		w.WriteString(e1)
		w.WriteString("\n")
	}
	w.Flush()
	return nil
}

// name returns the name of f for headings.
func name(f *tac.Function) string {
	if f.Symbol == nil {
		return "<top level>"
	}
	return f.Symbol.Name
}
