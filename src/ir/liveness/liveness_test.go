package liveness

import (
	"strings"
	"testing"

	"microc/src/ir/cfg"
	"microc/src/ir/symtab"
	"microc/src/ir/tac"
)

// helperGraph builds and analyses the control flow graph of code.
func helperGraph(t *testing.T, code []tac.Instruction, ge GlobalEnumerator) *Graph {
	t.Helper()
	g, err := cfg.FromCode(code)
	if err != nil {
		t.Fatal(err)
	}
	return Analyze(g, ge)
}

// helperSet compares the members of s to the space separated names in exp.
func helperSet(t *testing.T, what string, s Set, exp string) {
	t.Helper()
	if got := setString(s); got != exp {
		t.Errorf("%s: expected {%s}, got {%s}", what, exp, got)
	}
}

// TestGenKill verifies the GEN and KILL sets of every instruction shape.
func TestGenKill(t *testing.T) {
	st := symtab.New()
	a, _ := st.AddGlobal("a", symtab.Int)
	b, _ := st.AddGlobal("b", symtab.Int)
	x, _ := st.AddGlobal("x", symtab.Float)
	s, _ := st.AddString("s", "hello")
	fn := symtab.NewFunction("f", symtab.Void, []symtab.DataType{symtab.Int}, nil)
	ia, ib, ix, is := tac.IdentI{Sym: a}, tac.IdentI{Sym: b}, tac.IdentF{Sym: x}, tac.IdentS{Sym: s}
	p1 := tac.IdentI{Sym: fn.Params[0]}

	tests := []struct {
		in   tac.Instruction
		gen  string
		kill string
	}{
		{in: tac.AddI(ia, ib, 1), gen: "a b", kill: "$T1"},
		{in: tac.SubI(tac.TempI(1), tac.IntLiteral(2), 2), gen: "$T1", kill: "$T2"},
		{in: tac.MulF(tac.FloatLiteral(1), tac.FloatLiteral(2), 3), gen: "", kill: "$T3"},
		{in: tac.DivF(ix, tac.TempF(3), 4), gen: "$T3 x", kill: "$T4"},
		{in: tac.StoreI{Dst: ia, Src: tac.TempI(2)}, gen: "$T2", kill: "a"},
		{in: tac.StoreI{Dst: tac.TempI(5), Src: tac.IntLiteral(7)}, gen: "", kill: "$T5"},
		{in: tac.StoreF{Dst: ix, Src: tac.TempF(4)}, gen: "$T4", kill: "x"},
		{in: tac.StoreI{Dst: p1, Src: ib}, gen: "b", kill: "$P1"},
		{in: tac.ReadI{Id: ia}, gen: "", kill: "a"},
		{in: tac.ReadF{Id: ix}, gen: "", kill: "x"},
		{in: tac.WriteI{Id: ib}, gen: "b", kill: ""},
		{in: tac.WriteF{Id: ix}, gen: "x", kill: ""},
		{in: tac.WriteS{Id: is}, gen: "", kill: ""},
		{in: tac.GtI(ia, tac.TempI(6), 1), gen: "$T6 a", kill: ""},
		{in: tac.EqF(tac.FloatLiteral(0), ix, 1), gen: "x", kill: ""},
		{in: tac.PushI{}, gen: "", kill: ""},
		{in: tac.PushI{Src: ia}, gen: "a", kill: ""},
		{in: tac.PushF{Src: tac.FloatLiteral(2)}, gen: "", kill: ""},
		{in: tac.PopI{}, gen: "", kill: ""},
		{in: tac.PopF{Dst: tac.TempF(9)}, gen: "", kill: "$T9"},
		{in: tac.Jsr{Fn: fn}, gen: "a b x", kill: ""},
		{in: tac.Ret{}, gen: "", kill: ""},
		{in: tac.Mark{Label: 1}, gen: "", kill: ""},
		{in: tac.Jump{Target: 1}, gen: "", kill: ""},
		{in: tac.Link{Fn: fn}, gen: "", kill: ""},
		{in: tac.Unlink{}, gen: "", kill: ""},
		{in: tac.FunctionLabel{Fn: fn}, gen: "", kill: ""},
	}
	globals := globalSet(st)
	for _, e1 := range tests {
		d := decorate(e1.in, globals)
		helperSet(t, e1.in.String()+" GEN", d.Gen, e1.gen)
		helperSet(t, e1.in.String()+" KILL", d.Kill, e1.kill)
	}
}

// TestStraightLine verifies liveness of t1 := a + b; t2 := t1 + c; d := t2.
func TestStraightLine(t *testing.T) {
	st := symtab.New()
	var ids []tac.IdentI
	for _, e1 := range []string{"a", "b", "c", "d"} {
		s, _ := st.AddGlobal(e1, symtab.Int)
		ids = append(ids, tac.IdentI{Sym: s})
	}
	code := []tac.Instruction{
		tac.AddI(ids[0], ids[1], 1),
		tac.AddI(tac.TempI(1), ids[2], 2),
		tac.StoreI{Dst: ids[3], Src: tac.TempI(2)},
	}
	g := helperGraph(t, code, nil)
	ins := g.Instructions()
	helperSet(t, "IN 0", ins[0].In, "a b c")
	helperSet(t, "OUT 0", ins[0].Out, "$T1 c")
	helperSet(t, "IN 1", ins[1].In, "$T1 c")
	helperSet(t, "OUT 1", ins[1].Out, "$T2")
	helperSet(t, "IN 2", ins[2].In, "$T2")
	helperSet(t, "OUT 2", ins[2].Out, "")
}

// TestLoop verifies that liveness flows around the back edge of a loop:
//
//	i := 100;
//	FOR (; i != 0; i := i-1) x := x + 1; ROF
//	WRITE (x);
func TestLoop(t *testing.T) {
	st := symtab.New()
	i, _ := st.AddGlobal("i", symtab.Int)
	x, _ := st.AddGlobal("x", symtab.Int)
	ii, ix := tac.IdentI{Sym: i}, tac.IdentI{Sym: x}

	bld := tac.NewBuilder(tac.NewContext())
	bld.Begin(symtab.NewFunction("main", symtab.Void, nil, nil))
	bld.Emit(tac.StoreI{Dst: ii, Src: bld.LoadI(tac.IntLiteral(100))})
	l1, l2, l3 := bld.NewLabel(), bld.NewLabel(), bld.NewLabel()
	bld.Emit(tac.Mark{Label: l1})
	bld.Emit(tac.EqI(ii, bld.LoadI(tac.IntLiteral(0)), l2))
	bld.Emit(tac.StoreI{Dst: ix, Src: bld.BinaryI(tac.Add, ix, tac.IntLiteral(1))})
	bld.Emit(tac.Mark{Label: l3})
	bld.Emit(tac.StoreI{Dst: ii, Src: bld.BinaryI(tac.Sub, ii, bld.LoadI(tac.IntLiteral(1)))})
	bld.Emit(tac.Jump{Target: l1})
	bld.Emit(tac.Mark{Label: l2}, tac.WriteI{Id: ix})

	g, err := cfg.FromCode(bld.End().Code)
	if err != nil {
		t.Fatal(err)
	}
	lg := Decorate(g, nil)
	if passes := lg.Solve(); passes < 3 {
		t.Errorf("expected the back edge to require at least 3 passes, got %d", passes)
	}

	bb1, _ := lg.Block(1)
	helperSet(t, "IN "+bb1.Code[0].Code.String(), bb1.Code[0].In, "i x")
	helperSet(t, "OUT "+bb1.Code[2].Code.String(), bb1.Code[2].Out, "i x")

	bb3, _ := lg.Block(3)
	jmp := bb3.Code[len(bb3.Code)-1]
	helperSet(t, "OUT "+jmp.Code.String(), jmp.Out, "i x")
	helperSet(t, "IN "+bb3.Code[len(bb3.Code)-2].Code.String(), bb3.Code[len(bb3.Code)-2].In, "$T5 x")

	bb0, _ := lg.Block(0)
	helperSet(t, "IN "+bb0.Code[0].Code.String(), bb0.Code[0].In, "x")
}

// TestIdempotent verifies that solving a converged graph changes nothing.
func TestIdempotent(t *testing.T) {
	st := symtab.New()
	a, _ := st.AddGlobal("a", symtab.Int)
	ia := tac.IdentI{Sym: a}
	code := []tac.Instruction{
		tac.Mark{Label: 1},
		tac.AddI(ia, tac.IntLiteral(1), 1),
		tac.StoreI{Dst: ia, Src: tac.TempI(1)},
		tac.LtI(ia, tac.IntLiteral(10), 1),
		tac.WriteI{Id: ia},
		tac.Ret{},
	}
	g := helperGraph(t, code, st)
	before := g.String()
	if passes := g.Solve(); passes != 1 {
		t.Errorf("expected 1 pass on converged graph, got %d", passes)
	}
	if after := g.String(); after != before {
		t.Errorf("expected unchanged graph, got:\n%s\nexpected:\n%s", after, before)
	}
}

// TestReturnAndCall verifies that globals are live on return and read by calls.
func TestReturnAndCall(t *testing.T) {
	st := symtab.New()
	a, _ := st.AddGlobal("a", symtab.Int)
	_, _ = st.AddGlobal("b", symtab.Int)
	_, _ = st.AddGlobal("x", symtab.Float)
	_, _ = st.AddString("s", "text")
	fn := symtab.NewFunction("f", symtab.Void, nil, nil)

	code := []tac.Instruction{
		tac.StoreI{Dst: tac.TempI(1), Src: tac.IntLiteral(1)},
		tac.StoreI{Dst: tac.IdentI{Sym: a}, Src: tac.TempI(1)},
		tac.Ret{},
	}
	ins := helperGraph(t, code, st).Instructions()
	helperSet(t, "OUT RET", ins[2].Out, "a b x")
	helperSet(t, "IN RET", ins[2].In, "a b x")
	helperSet(t, "IN STOREI $T1 a", ins[1].In, "$T1 b x")
	helperSet(t, "IN STOREI 1 $T1", ins[0].In, "b x")

	code = []tac.Instruction{
		tac.ReadI{Id: tac.IdentI{Sym: a}},
		tac.Jsr{Fn: fn},
	}
	ins = helperGraph(t, code, st).Instructions()
	helperSet(t, "IN JSR", ins[1].In, "a b x")
	helperSet(t, "IN READI", ins[0].In, "b x")
}

// TestDump verifies that the dump annotates every instruction.
func TestDump(t *testing.T) {
	st := symtab.New()
	a, _ := st.AddGlobal("a", symtab.Int)
	code := []tac.Instruction{
		tac.ReadI{Id: tac.IdentI{Sym: a}},
		tac.WriteI{Id: tac.IdentI{Sym: a}},
	}
	s := helperGraph(t, code, nil).String()
	for _, e1 := range []string{"BB0:", "READI a", "KILL: a", "OUT: a", "WRITEI a", "GEN: a", "==== CFG ==="} {
		if !strings.Contains(s, e1) {
			t.Errorf("expected dump to contain %q, got:\n%s", e1, s)
		}
	}
}
