package llvm

import (
	"strings"
	"testing"

	"microc/src/ir/symtab"
	"microc/src/ir/tac"
	"microc/src/util"
)

// helperFactorial returns a program computing the factorial of a number read from stdin recursively.
func helperFactorial() *tac.Program {
	prog := tac.NewProgram("fact")
	n, _ := prog.Symbols.AddGlobal("n", symtab.Int)
	r, _ := prog.Symbols.AddGlobal("r", symtab.Int)
	x, _ := prog.Symbols.AddGlobal("x", symtab.Float)
	s, _ := prog.Symbols.AddString("nl", "\n")
	in, ir, ix := tac.IdentI{Sym: n}, tac.IdentI{Sym: r}, tac.IdentF{Sym: x}

	fact := symtab.NewFunction("fact", symtab.Int, []symtab.DataType{symtab.Int}, []symtab.DataType{symtab.Int})
	main := symtab.NewFunction("main", symtab.Void, nil, nil)
	_ = prog.Symbols.AddFunction(fact)
	_ = prog.Symbols.AddFunction(main)
	p1, _ := fact.Param(1)
	l1, _ := fact.Local(1)
	ip1, il1 := tac.IdentI{Sym: p1}, tac.IdentI{Sym: l1}

	bld := tac.NewBuilder(prog.Ctx)
	bld.Begin(fact)
	rec := bld.NewLabel()
	bld.Emit(tac.GtI(ip1, bld.LoadI(tac.IntLiteral(1)), rec))
	bld.Emit(tac.StoreI{Dst: tac.IdentI{Sym: fact.Ret}, Src: bld.LoadI(tac.IntLiteral(1))}, tac.Unlink{}, tac.Ret{})
	bld.Emit(tac.Mark{Label: rec})
	bld.Emit(tac.StoreI{Dst: il1, Src: bld.BinaryI(tac.Sub, ip1, tac.IntLiteral(1))})
	t := bld.NewTempI()
	bld.Emit(tac.PushI{}, tac.PushI{Src: il1}, tac.Jsr{Fn: fact}, tac.PopI{}, tac.PopI{Dst: t})
	bld.Emit(tac.StoreI{Dst: tac.IdentI{Sym: fact.Ret}, Src: bld.BinaryI(tac.Mul, t, ip1)}, tac.Unlink{}, tac.Ret{})
	prog.Functions = append(prog.Functions, bld.End())

	bld.Begin(main)
	bld.Emit(tac.ReadI{Id: in})
	t = bld.NewTempI()
	bld.Emit(tac.PushI{}, tac.PushI{Src: in}, tac.Jsr{Fn: fact}, tac.PopI{}, tac.PopI{Dst: t})
	bld.Emit(tac.StoreI{Dst: ir, Src: t}, tac.WriteI{Id: ir}, tac.WriteS{Id: tac.IdentS{Sym: s}})
	bld.Emit(tac.StoreF{Dst: ix, Src: bld.BinaryF(tac.Div, ix, tac.FloatLiteral(3))}, tac.WriteF{Id: ix})
	bld.Emit(tac.Unlink{}, tac.Ret{})
	prog.Functions = append(prog.Functions, bld.End())
	return prog
}

// TestGenLLVM verifies that a recursive program lowers to a valid module.
func TestGenLLVM(t *testing.T) {
	for _, e1 := range []int{1, 2} {
		ir, err := GenLLVM(util.Options{Threads: e1}, helperFactorial())
		if err != nil {
			t.Fatalf("threads=%d: unexpected error: %s", e1, err)
		}
		for _, e2 := range []string{
			"@stack = internal global [4096 x i64] zeroinitializer",
			"@g.n = internal global i32 0",
			"@g.x = internal global double",
			"@s.nl = internal constant",
			"define internal void @mc.fact()",
			"define internal void @mc.main()",
			"define i32 @main()",
			"call void @mc.fact()",
			"call void @mc.main()",
			"declare i32 @printf(i8*, ...)",
			"declare i32 @scanf(i8*, ...)",
			"icmp sgt",
			"fdiv double",
		} {
			if !strings.Contains(ir, e2) {
				t.Errorf("threads=%d: expected IR to contain %q, got:\n%s", e1, e2, ir)
			}
		}
		if strings.Contains(ir, "sdiv") {
			t.Errorf("threads=%d: unexpected integer division in:\n%s", e1, ir)
		}
	}
}

// TestTopLevel verifies that code outside functions runs from the C entry point.
func TestTopLevel(t *testing.T) {
	prog := tac.NewProgram("top")
	a, _ := prog.Symbols.AddGlobal("a", symtab.Int)
	bld := tac.NewBuilder(prog.Ctx)
	bld.Begin(nil)
	l := bld.NewLabel()
	bld.Emit(tac.StoreI{Dst: tac.IdentI{Sym: a}, Src: bld.LoadI(tac.IntLiteral(4))})
	bld.Emit(tac.EqI(tac.IdentI{Sym: a}, tac.IntLiteral(0), l), tac.WriteI{Id: tac.IdentI{Sym: a}}, tac.Mark{Label: l})
	prog.Functions = append(prog.Functions, bld.End())

	ir, err := GenLLVM(util.Options{Threads: 1}, prog)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ir, "call void @\"mc.$top\"()") {
		t.Errorf("expected main to call the top level code, got:\n%s", ir)
	}
	if strings.Contains(ir, "@mc.main") {
		t.Errorf("expected no call to main, got:\n%s", ir)
	}
}

// TestUndefinedLabel verifies that malformed control flow is reported.
func TestUndefinedLabel(t *testing.T) {
	prog := tac.NewProgram("bad")
	bld := tac.NewBuilder(prog.Ctx)
	main := symtab.NewFunction("main", symtab.Void, nil, nil)
	_ = prog.Symbols.AddFunction(main)
	bld.Begin(main)
	bld.Emit(tac.Jump{Target: 42})
	prog.Functions = append(prog.Functions, bld.End())
	if _, err := GenLLVM(util.Options{Threads: 1}, prog); err == nil {
		t.Errorf("expected error for undefined label")
	}
}
