// Package backend selects the code generator for a compiled program.
package backend

import (
	"microc/src/backend/tiny"
	"microc/src/ir/llvm"
	"microc/src/ir/tac"
	"microc/src/util"
)

// ---------------------
// ----- Functions -----
// ---------------------

// GenerateAssembler generates the output code of prog and writes it to w. Tiny assembler is generated unless
// opt.LLVM is set, in which case the program is lowered to LLVM IR.
func GenerateAssembler(opt util.Options, prog *tac.Program, w *util.Writer) error {
	if opt.LLVM {
		ir, err := llvm.GenLLVM(opt, prog)
		if err != nil {
			return err
		}
		w.WriteString(ir)
		w.Flush()
		return nil
	}

	code, err := tiny.GenerateProgram(opt, prog)
	if err != nil {
		return err
	}
	w.WriteString(tiny.Listing(code))
	w.Flush()
	return nil
}
