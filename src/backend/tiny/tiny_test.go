package tiny

import (
	"fmt"
	"strings"
	"testing"

	"microc/src/backend/regfile"
	"microc/src/ir/symtab"
	"microc/src/ir/tac"
	"microc/src/util"

	"tlog.app/go/errors"
)

// helperTranslate translates code with one generator and returns the listing.
func helperTranslate(t *testing.T, code ...tac.Instruction) string {
	t.Helper()
	g := NewGenerator()
	var res []Instruction
	for _, e1 := range code {
		tc, err := g.Translate(e1)
		if err != nil {
			t.Fatalf("%s: unexpected error: %s", e1, err)
		}
		res = append(res, tc...)
	}
	return Listing(res)
}

// helperLines joins lines into a listing.
func helperLines(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// TestInstructionText verifies the assembler spelling of every instruction.
func TestInstructionText(t *testing.T) {
	st := symtab.New()
	a, _ := st.AddGlobal("a", symtab.Int)
	fn := symtab.NewFunction("f", symtab.Int, []symtab.DataType{symtab.Int, symtab.Int}, []symtab.DataType{symtab.Float})
	p1, _ := fn.Param(1)
	l1, _ := fn.Local(1)

	tests := []struct {
		in  Instruction
		exp string
	}{
		{in: Var{Id: "a"}, exp: "var a"},
		{in: Str{Id: "s", Value: "hello world"}, exp: "str s \"hello world\""},
		{in: Label{Name: "label3"}, exp: "label label3"},
		{in: Move{Src: IntLit(-4), Dst: Mem{Sym: a}}, exp: "move -4 a"},
		{in: Move{Src: Mem{Sym: p1}, Dst: Reg(3)}, exp: "move $3 r3"},
		{in: Move{Src: FloatLit(2), Dst: Mem{Sym: l1}}, exp: "move 2.0 $-1"},
		{in: Move{Src: Reg(0), Dst: Mem{Sym: fn.Ret}}, exp: "move r0 $4"},
		{in: ArithI{Op: tac.Add, Src: Mem{Sym: a}, Dst: 1}, exp: "addi a r1"},
		{in: ArithI{Op: tac.Sub, Src: IntLit(1), Dst: 1}, exp: "subi 1 r1"},
		{in: ArithI{Op: tac.Mul, Src: Reg(2), Dst: 1}, exp: "muli r2 r1"},
		{in: ArithI{Op: tac.Div, Src: Reg(2), Dst: 1}, exp: "divi r2 r1"},
		{in: ArithF{Op: tac.Add, Src: FloatLit(0.5), Dst: 0}, exp: "addr 0.5 r0"},
		{in: ArithF{Op: tac.Sub, Src: Reg(1), Dst: 0}, exp: "subr r1 r0"},
		{in: ArithF{Op: tac.Mul, Src: Reg(1), Dst: 0}, exp: "mulr r1 r0"},
		{in: ArithF{Op: tac.Div, Src: Reg(1), Dst: 0}, exp: "divr r1 r0"},
		{in: CmpI{Lhs: Mem{Sym: a}, Rhs: 0}, exp: "cmpi a r0"},
		{in: CmpF{Lhs: FloatLit(1.25), Rhs: 0}, exp: "cmpr 1.25 r0"},
		{in: Jmp{Target: "label1"}, exp: "jmp label1"},
		{in: CondJump{Cmp: tac.Gt, Target: "label1"}, exp: "jgt label1"},
		{in: CondJump{Cmp: tac.Lt, Target: "label1"}, exp: "jlt label1"},
		{in: CondJump{Cmp: tac.Gte, Target: "label1"}, exp: "jge label1"},
		{in: CondJump{Cmp: tac.Lte, Target: "label1"}, exp: "jle label1"},
		{in: CondJump{Cmp: tac.Ne, Target: "label1"}, exp: "jne label1"},
		{in: CondJump{Cmp: tac.Eq, Target: "label1"}, exp: "jeq label1"},
		{in: Push{}, exp: "push"},
		{in: Push{Src: IntLit(3)}, exp: "push 3"},
		{in: Pop{}, exp: "pop"},
		{in: Pop{Dst: Reg(7)}, exp: "pop r7"},
		{in: Jsr{Target: "f"}, exp: "jsr f"},
		{in: Ret{}, exp: "ret"},
		{in: Link{N: 2}, exp: "link 2"},
		{in: Unlink{}, exp: "unlnk"},
		{in: Sys{Call: ReadI, Arg: Mem{Sym: a}}, exp: "sys readi a"},
		{in: Sys{Call: ReadR, Arg: Mem{Sym: a}}, exp: "sys readr a"},
		{in: Sys{Call: WriteI, Arg: Mem{Sym: a}}, exp: "sys writei a"},
		{in: Sys{Call: WriteR, Arg: Mem{Sym: a}}, exp: "sys writer a"},
		{in: Sys{Call: WriteS, Arg: Mem{Sym: a}}, exp: "sys writes a"},
		{in: Sys{Call: Halt}, exp: "sys halt"},
	}
	for _, e1 := range tests {
		if s := e1.in.String(); s != e1.exp {
			t.Errorf("expected %q, got %q", e1.exp, s)
		}
	}
}

// TestRegisterReuse verifies that t1 := a + b; t2 := t1 + c; d := t2 computes everything in one register.
func TestRegisterReuse(t *testing.T) {
	st := symtab.New()
	var ids []tac.IdentI
	for _, e1 := range []string{"a", "b", "c", "d"} {
		s, _ := st.AddGlobal(e1, symtab.Int)
		ids = append(ids, tac.IdentI{Sym: s})
	}
	s := helperTranslate(t,
		tac.AddI(ids[0], ids[1], 1),
		tac.AddI(tac.TempI(1), ids[2], 2),
		tac.StoreI{Dst: ids[3], Src: tac.TempI(2)},
	)
	exp := helperLines("move a r0", "addi b r0", "addi c r0", "move r0 d")
	if s != exp {
		t.Errorf("expected:\n%s\ngot:\n%s", exp, s)
	}
}

// TestFloatArithmetic verifies floating point instructions and register binding of the right operand.
func TestFloatArithmetic(t *testing.T) {
	st := symtab.New()
	x, _ := st.AddGlobal("x", symtab.Float)
	y, _ := st.AddGlobal("y", symtab.Float)
	ix, iy := tac.IdentF{Sym: x}, tac.IdentF{Sym: y}
	s := helperTranslate(t,
		tac.StoreF{Dst: tac.TempF(1), Src: tac.FloatLiteral(1.5)},
		tac.MulF(ix, tac.TempF(1), 2),
		tac.DivF(tac.TempF(2), iy, 3),
		tac.StoreF{Dst: iy, Src: tac.TempF(3)},
	)
	exp := helperLines("move 1.5 r0", "move x r1", "mulr r0 r1", "divr y r1", "move r1 y")
	if s != exp {
		t.Errorf("expected:\n%s\ngot:\n%s", exp, s)
	}
}

// TestStore verifies that a store never has two memory operands.
func TestStore(t *testing.T) {
	st := symtab.New()
	a, _ := st.AddGlobal("a", symtab.Int)
	b, _ := st.AddGlobal("b", symtab.Int)
	x, _ := st.AddGlobal("x", symtab.Float)
	fn := symtab.NewFunction("f", symtab.Int, []symtab.DataType{symtab.Int}, []symtab.DataType{symtab.Int})
	p1, _ := fn.Param(1)
	l1, _ := fn.Local(1)

	tests := []struct {
		in  tac.Instruction
		exp string
	}{
		{in: tac.StoreI{Dst: tac.IdentI{Sym: a}, Src: tac.IdentI{Sym: b}}, exp: helperLines("move b r0", "move r0 a")},
		{in: tac.StoreI{Dst: tac.IdentI{Sym: l1}, Src: tac.IdentI{Sym: p1}}, exp: helperLines("move $2 r0", "move r0 $-1")},
		{in: tac.StoreI{Dst: tac.IdentI{Sym: fn.Ret}, Src: tac.IdentI{Sym: l1}}, exp: helperLines("move $-1 r0", "move r0 $3")},
		{in: tac.StoreI{Dst: tac.IdentI{Sym: a}, Src: tac.IntLiteral(7)}, exp: helperLines("move 7 a")},
		{in: tac.StoreI{Dst: tac.TempI(1), Src: tac.IdentI{Sym: a}}, exp: helperLines("move a r0")},
		{in: tac.StoreF{Dst: tac.IdentF{Sym: x}, Src: tac.FloatLiteral(-0.5)}, exp: helperLines("move -0.5 x")},
	}
	for _, e1 := range tests {
		s := helperTranslate(t, e1.in)
		if s != e1.exp {
			t.Errorf("%s: expected:\n%s\ngot:\n%s", e1.in, e1.exp, s)
		}
		for _, e2 := range strings.Split(strings.TrimSpace(s), "\n") {
			if f := strings.Fields(e2); len(f) == 3 && !strings.HasPrefix(f[1], "r") && !strings.HasPrefix(f[2], "r") {
				if _, err := fmt.Sscanf(f[1], "%f", new(float64)); err != nil {
					t.Errorf("%s: two memory operands in %q", e1.in, e2)
				}
			}
		}
	}
}

// TestCompare verifies that the right operand of a comparison is always a register.
func TestCompare(t *testing.T) {
	st := symtab.New()
	a, _ := st.AddGlobal("a", symtab.Int)
	x, _ := st.AddGlobal("x", symtab.Float)
	ia, ix := tac.IdentI{Sym: a}, tac.IdentF{Sym: x}

	s := helperTranslate(t, tac.GtI(ia, tac.IntLiteral(3), 1))
	if exp := helperLines("move 3 r0", "cmpi a r0", "jgt label1"); s != exp {
		t.Errorf("expected:\n%s\ngot:\n%s", exp, s)
	}

	s = helperTranslate(t,
		tac.StoreI{Dst: tac.TempI(1), Src: tac.IntLiteral(0)},
		tac.NeI(ia, tac.TempI(1), 2),
	)
	if exp := helperLines("move 0 r0", "cmpi a r0", "jne label2"); s != exp {
		t.Errorf("expected:\n%s\ngot:\n%s", exp, s)
	}

	s = helperTranslate(t, tac.LteF(tac.FloatLiteral(2.5), ix, 3))
	if exp := helperLines("move x r0", "cmpr 2.5 r0", "jle label3"); s != exp {
		t.Errorf("expected:\n%s\ngot:\n%s", exp, s)
	}
}

// TestCallingConvention verifies translation of calls, returns and frames.
func TestCallingConvention(t *testing.T) {
	st := symtab.New()
	a, _ := st.AddGlobal("a", symtab.Int)
	ia := tac.IdentI{Sym: a}
	fn := symtab.NewFunction("f", symtab.Int, []symtab.DataType{symtab.Int}, []symtab.DataType{symtab.Int, symtab.Int})

	s := helperTranslate(t,
		tac.FunctionLabel{Fn: fn},
		tac.Link{Fn: fn},
		tac.PushI{},
		tac.PushI{Src: ia},
		tac.Jsr{Fn: fn},
		tac.PopI{},
		tac.PopI{Dst: tac.TempI(4)},
		tac.StoreI{Dst: ia, Src: tac.TempI(4)},
		tac.PushF{Src: tac.FloatLiteral(1)},
		tac.PopF{Dst: tac.TempF(5)},
		tac.Mark{Label: 9},
		tac.Jump{Target: 9},
		tac.Unlink{},
		tac.Ret{},
	)
	exp := helperLines(
		"label f", "link 2", "push", "push a", "jsr f", "pop", "pop r0", "move r0 a",
		"push 1.0", "pop r1", "label label9", "jmp label9", "unlnk", "ret",
	)
	if s != exp {
		t.Errorf("expected:\n%s\ngot:\n%s", exp, s)
	}
}

// TestIO verifies translation of reads and writes to system calls.
func TestIO(t *testing.T) {
	st := symtab.New()
	a, _ := st.AddGlobal("a", symtab.Int)
	x, _ := st.AddGlobal("x", symtab.Float)
	str, _ := st.AddString("s", "hi")
	s := helperTranslate(t,
		tac.ReadI{Id: tac.IdentI{Sym: a}},
		tac.ReadF{Id: tac.IdentF{Sym: x}},
		tac.WriteI{Id: tac.IdentI{Sym: a}},
		tac.WriteF{Id: tac.IdentF{Sym: x}},
		tac.WriteS{Id: tac.IdentS{Sym: str}},
	)
	exp := helperLines("sys readi a", "sys readr x", "sys writei a", "sys writer x", "sys writes s")
	if s != exp {
		t.Errorf("expected:\n%s\ngot:\n%s", exp, s)
	}
}

// TestUndefinedTemp verifies that reading a temporary before it is written is an error.
func TestUndefinedTemp(t *testing.T) {
	st := symtab.New()
	a, _ := st.AddGlobal("a", symtab.Int)
	tests := []tac.Instruction{
		tac.AddI(tac.TempI(5), tac.IdentI{Sym: a}, 6),
		tac.AddI(tac.IdentI{Sym: a}, tac.TempI(5), 6),
		tac.StoreI{Dst: tac.IdentI{Sym: a}, Src: tac.TempI(5)},
		tac.SubF(tac.FloatLiteral(1), tac.TempF(5), 6),
		tac.PushI{Src: tac.TempI(5)},
	}
	for _, e1 := range tests {
		if _, err := NewGenerator().Translate(e1); err == nil {
			t.Errorf("%s: expected error for undefined temporary", e1)
		}
	}
}

// TestExhausted verifies that the 201st register is refused.
func TestExhausted(t *testing.T) {
	fn := symtab.NewFunction("f", symtab.Void, nil, nil)
	f := &tac.Function{Symbol: fn}
	for i1 := 1; i1 <= regfile.MaxRegisters; i1++ {
		f.Code = append(f.Code, tac.StoreI{Dst: tac.TempI(i1), Src: tac.IntLiteral(int32(i1))})
	}
	code, err := GenerateFunction(f)
	if err != nil {
		t.Fatalf("unexpected error with %d registers: %s", regfile.MaxRegisters, err)
	}
	if s := code[len(code)-1].String(); s != "move 200 r199" {
		t.Errorf("expected \"move 200 r199\", got %q", s)
	}

	f.Code = append(f.Code, tac.StoreI{Dst: tac.TempI(regfile.MaxRegisters + 1), Src: tac.IntLiteral(0)})
	if _, err := GenerateFunction(f); !errors.Is(err, regfile.ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
}

// --------------------------------
// ----- Program generation -----
// --------------------------------

// helperProgram returns a program with n functions f0 ... f(n-1), each using a few registers, and a main function
// calling all of them.
func helperProgram(n int) *tac.Program {
	prog := tac.NewProgram("many")
	a, _ := prog.Symbols.AddGlobal("a", symtab.Int)
	x, _ := prog.Symbols.AddGlobal("x", symtab.Float)
	ia, ix := tac.IdentI{Sym: a}, tac.IdentF{Sym: x}
	bld := tac.NewBuilder(prog.Ctx)

	var funcs []*symtab.Function
	for i1 := 0; i1 < n; i1++ {
		fn := symtab.NewFunction(fmt.Sprintf("f%d", i1), symtab.Int, []symtab.DataType{symtab.Int}, nil)
		_ = prog.Symbols.AddFunction(fn)
		funcs = append(funcs, fn)
		p1, _ := fn.Param(1)
		bld.Begin(fn)
		t1 := bld.BinaryI(tac.Add, tac.IdentI{Sym: p1}, tac.IntLiteral(int32(i1)))
		t2 := bld.BinaryF(tac.Mul, ix, tac.FloatLiteral(float64(i1)))
		bld.Emit(tac.StoreF{Dst: ix, Src: t2})
		bld.Emit(tac.StoreI{Dst: tac.IdentI{Sym: fn.Ret}, Src: t1}, tac.Unlink{}, tac.Ret{})
		prog.Functions = append(prog.Functions, bld.End())
	}

	main := symtab.NewFunction("main", symtab.Void, nil, nil)
	_ = prog.Symbols.AddFunction(main)
	bld.Begin(main)
	for _, e1 := range funcs {
		t1 := bld.NewTempI()
		bld.Emit(tac.PushI{}, tac.PushI{Src: ia}, tac.Jsr{Fn: e1}, tac.PopI{}, tac.PopI{Dst: t1})
		bld.Emit(tac.StoreI{Dst: ia, Src: t1})
	}
	bld.Emit(tac.WriteI{Id: ia}, tac.Unlink{}, tac.Ret{})
	prog.Functions = append(prog.Functions, bld.End())
	return prog
}

// TestGenerateProgram verifies a complete program listing.
func TestGenerateProgram(t *testing.T) {
	prog := tac.NewProgram("double")
	a, _ := prog.Symbols.AddGlobal("a", symtab.Int)
	_, _ = prog.Symbols.AddGlobal("x", symtab.Float)
	s, _ := prog.Symbols.AddString("s", "hi")
	main := symtab.NewFunction("main", symtab.Void, nil, nil)
	_ = prog.Symbols.AddFunction(main)
	ia := tac.IdentI{Sym: a}

	bld := tac.NewBuilder(prog.Ctx)
	bld.Begin(main)
	bld.Emit(tac.ReadI{Id: ia})
	bld.Emit(tac.StoreI{Dst: ia, Src: bld.BinaryI(tac.Mul, ia, tac.IntLiteral(2))})
	bld.Emit(tac.WriteI{Id: ia}, tac.WriteS{Id: tac.IdentS{Sym: s}}, tac.Unlink{}, tac.Ret{})
	prog.Functions = append(prog.Functions, bld.End())

	code, err := GenerateProgram(util.Options{Threads: 1}, prog)
	if err != nil {
		t.Fatal(err)
	}
	exp := helperLines(
		"var a", "var x", "str s \"hi\"",
		"push", "jsr main", "sys halt",
		"label main", "link 0", "sys readi a", "move a r0", "muli 2 r0", "move r0 a",
		"sys writei a", "sys writes s", "unlnk", "ret",
	)
	if got := Listing(code); got != exp {
		t.Errorf("expected:\n%s\ngot:\n%s", exp, got)
	}
}

// TestTopLevelCode verifies that code outside functions runs before the halt when there is no main.
func TestTopLevelCode(t *testing.T) {
	prog := tac.NewProgram("top")
	a, _ := prog.Symbols.AddGlobal("a", symtab.Int)
	bld := tac.NewBuilder(prog.Ctx)
	bld.Begin(nil)
	bld.Emit(tac.StoreI{Dst: tac.IdentI{Sym: a}, Src: bld.LoadI(tac.IntLiteral(4))}, tac.WriteI{Id: tac.IdentI{Sym: a}})
	prog.Functions = append(prog.Functions, bld.End())

	code, err := GenerateProgram(util.Options{Threads: 1}, prog)
	if err != nil {
		t.Fatal(err)
	}
	exp := helperLines("var a", "move 4 r0", "move r0 a", "sys writei a", "sys halt")
	if got := Listing(code); got != exp {
		t.Errorf("expected:\n%s\ngot:\n%s", exp, got)
	}
}

// TestPerFunctionRegisters verifies that every function starts allocating at r0.
func TestPerFunctionRegisters(t *testing.T) {
	code, err := GenerateProgram(util.Options{Threads: 1}, helperProgram(2))
	if err != nil {
		t.Fatal(err)
	}
	s := Listing(code)
	for _, e1 := range []string{"label f0\nlink 0\nmove $2 r0\naddi 0 r0\nmove x r1", "label f1\nlink 0\nmove $2 r0\naddi 1 r0\nmove x r1"} {
		if !strings.Contains(s, e1) {
			t.Errorf("expected listing to contain:\n%s\ngot:\n%s", e1, s)
		}
	}
}

// TestParallel verifies that the output does not depend on the thread count.
func TestParallel(t *testing.T) {
	prog := helperProgram(13)
	code, err := GenerateProgram(util.Options{Threads: 1}, prog)
	if err != nil {
		t.Fatal(err)
	}
	exp := Listing(code)
	for i1 := 2; i1 <= 16; i1++ {
		code, err := GenerateProgram(util.Options{Threads: i1}, prog)
		if err != nil {
			t.Fatalf("threads=%d: unexpected error: %s", i1, err)
		}
		if got := Listing(code); got != exp {
			t.Errorf("threads=%d: expected:\n%s\ngot:\n%s", i1, exp, got)
		}
	}
}

// TestParallelError verifies that an error in any function aborts the program.
func TestParallelError(t *testing.T) {
	prog := helperProgram(6)
	bad := prog.Functions[3]
	bad.Code = append(bad.Code[:2:2], tac.StoreI{Dst: tac.IdentI{Sym: bad.Symbol.Ret}, Src: tac.TempI(99)})
	for _, e1 := range []int{1, 4} {
		if _, err := GenerateProgram(util.Options{Threads: e1}, prog); err == nil {
			t.Errorf("threads=%d: expected error", e1)
		} else if !strings.Contains(err.Error(), "f3") {
			t.Errorf("threads=%d: expected error to name f3, got %q", e1, err)
		}
	}
}

// BenchmarkGenerateProgram measures code generation with different thread counts.
func BenchmarkGenerateProgram(b *testing.B) {
	prog := helperProgram(64)
	for _, e1 := range []int{1, 2, 4, 8} {
		opt := util.Options{Threads: e1}
		b.Run(fmt.Sprintf("threads=%d", e1), func(b *testing.B) {
			for i1 := 0; i1 < b.N; i1++ {
				if _, err := GenerateProgram(opt, prog); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
