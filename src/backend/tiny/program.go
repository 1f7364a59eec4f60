package tiny

import (
	"microc/src/ir/symtab"
	"microc/src/ir/tac"
	"microc/src/util"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// entry is the name of the function called by the program prologue.
const entry = "main"

// GenerateProgram translates prog into a complete Tiny program.
//
// The program starts with a declaration of every global, followed by the top level code of prog, a call to main if
// prog defines one and a halt. The named functions follow in order of declaration. Functions are translated
// independently, in parallel if opt.Threads > 1, and the output order does not depend on the thread count.
func GenerateProgram(opt util.Options, prog *tac.Program) ([]Instruction, error) {
	res := declarations(prog.Symbols)

	funcs := make([][]Instruction, len(prog.Functions))
	err := util.Parallel(opt.Threads, len(prog.Functions), func(i int) error {
		code, err := GenerateFunction(prog.Functions[i])
		if err != nil {
			if name := prog.Functions[i].Name(); len(name) > 0 {
				return errors.Wrap(err, "function %s", name)
			}
			return errors.Wrap(err, "top level code")
		}
		funcs[i] = code
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Top level code runs first.
	for i1, e1 := range prog.Functions {
		if e1.Symbol == nil {
			res = append(res, funcs[i1]...)
		}
	}
	if _, ok := prog.Symbols.Function(entry); ok {
		res = append(res, Push{}, Jsr{Target: entry})
	}
	res = append(res, Sys{Call: Halt})

	for i1, e1 := range prog.Functions {
		if e1.Symbol != nil {
			res = append(res, funcs[i1]...)
		}
	}

	tlog.V("stats").Printw("tiny program generated", "name", prog.Name, "functions", len(prog.Functions), "instructions", len(res), "threads", opt.Threads)
	return res, nil
}

// declarations returns a var or str declaration for every global of st in order of declaration.
func declarations(st *symtab.Table) []Instruction {
	var res []Instruction
	for _, e1 := range st.Globals() {
		switch e1.Type {
		case symtab.String:
			res = append(res, Str{Id: e1.Name, Value: e1.Value})
		default:
			res = append(res, Var{Id: e1.Name})
		}
	}
	return res
}
