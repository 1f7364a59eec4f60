package tiny

import (
	"microc/src/backend/regfile"
	"microc/src/ir/tac"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Generator translates the three address code of one function into Tiny instructions.
//
// Every temporary is bound to a register the first time it is written and keeps it for the rest of the function.
// The result of a binary operation is computed in the register of its left operand, so the temporary of the left
// operand and the result temporary share a register afterwards. Registers are never freed.
type Generator struct {
	rf     *regfile.File                  // Registers of the current function.
	ints   map[tac.TempI]regfile.Register // Registers bound to integer temporaries.
	floats map[tac.TempF]regfile.Register // Registers bound to floating point temporaries.
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewGenerator returns a generator with every register free.
func NewGenerator() *Generator {
	return &Generator{
		rf:     regfile.New(),
		ints:   make(map[tac.TempI]regfile.Register),
		floats: make(map[tac.TempF]regfile.Register),
	}
}

// Registers returns the number of registers allocated so far.
func (g *Generator) Registers() int {
	return g.rf.Used()
}

// GenerateFunction translates function f with a fresh generator.
func GenerateFunction(f *tac.Function) ([]Instruction, error) {
	g := NewGenerator()
	var res []Instruction
	for _, e1 := range f.Code {
		code, err := g.Translate(e1)
		if err != nil {
			return nil, errors.Wrap(err, "%s", e1)
		}
		res = append(res, code...)
	}
	if tlog.If("regs") {
		tlog.Printw("registers allocated", "func", f.Name(), "used", g.rf.Used(), "tac", len(f.Code), "tiny", len(res))
	}
	return res, nil
}

// Translate returns the Tiny instructions implementing in.
func (g *Generator) Translate(in tac.Instruction) ([]Instruction, error) {
	var code []Instruction
	switch v := in.(type) {
	case tac.BinaryI:
		r, err := g.intoRegisterI(v.Lhs, &code)
		if err != nil {
			return nil, err
		}
		src, err := g.operandI(v.Rhs)
		if err != nil {
			return nil, err
		}
		code = append(code, ArithI{Op: v.Op, Src: src, Dst: Reg(r)})
		g.ints[v.Result] = r
	case tac.BinaryF:
		r, err := g.intoRegisterF(v.Lhs, &code)
		if err != nil {
			return nil, err
		}
		src, err := g.operandF(v.Rhs)
		if err != nil {
			return nil, err
		}
		code = append(code, ArithF{Op: v.Op, Src: src, Dst: Reg(r)})
		g.floats[v.Result] = r
	case tac.StoreI:
		src, err := g.operandI(v.Src)
		if err != nil {
			return nil, err
		}
		dst, err := g.locationI(v.Dst)
		if err != nil {
			return nil, err
		}
		return g.move(src, dst)
	case tac.StoreF:
		src, err := g.operandF(v.Src)
		if err != nil {
			return nil, err
		}
		dst, err := g.locationF(v.Dst)
		if err != nil {
			return nil, err
		}
		return g.move(src, dst)
	case tac.ReadI:
		code = append(code, Sys{Call: ReadI, Arg: Mem{Sym: v.Id.Sym}})
	case tac.ReadF:
		code = append(code, Sys{Call: ReadR, Arg: Mem{Sym: v.Id.Sym}})
	case tac.WriteI:
		code = append(code, Sys{Call: WriteI, Arg: Mem{Sym: v.Id.Sym}})
	case tac.WriteF:
		code = append(code, Sys{Call: WriteR, Arg: Mem{Sym: v.Id.Sym}})
	case tac.WriteS:
		code = append(code, Sys{Call: WriteS, Arg: Mem{Sym: v.Id.Sym}})
	case tac.CompareI:
		lhs, err := g.operandI(v.Lhs)
		if err != nil {
			return nil, err
		}
		r, err := g.intoRegisterI(v.Rhs, &code)
		if err != nil {
			return nil, err
		}
		code = append(code, CmpI{Lhs: lhs, Rhs: Reg(r)}, CondJump{Cmp: v.Cmp, Target: v.Target.String()})
	case tac.CompareF:
		lhs, err := g.operandF(v.Lhs)
		if err != nil {
			return nil, err
		}
		r, err := g.intoRegisterF(v.Rhs, &code)
		if err != nil {
			return nil, err
		}
		code = append(code, CmpF{Lhs: lhs, Rhs: Reg(r)}, CondJump{Cmp: v.Cmp, Target: v.Target.String()})
	case tac.Mark:
		code = append(code, Label{Name: v.Label.String()})
	case tac.FunctionLabel:
		code = append(code, Label{Name: v.Fn.Name})
	case tac.Jump:
		code = append(code, Jmp{Target: v.Target.String()})
	case tac.PushI:
		push := Push{}
		if v.Src != nil {
			src, err := g.operandI(v.Src)
			if err != nil {
				return nil, err
			}
			push.Src = src
		}
		code = append(code, push)
	case tac.PushF:
		push := Push{}
		if v.Src != nil {
			src, err := g.operandF(v.Src)
			if err != nil {
				return nil, err
			}
			push.Src = src
		}
		code = append(code, push)
	case tac.PopI:
		pop := Pop{}
		if v.Dst != nil {
			dst, err := g.locationI(v.Dst)
			if err != nil {
				return nil, err
			}
			pop.Dst = dst
		}
		code = append(code, pop)
	case tac.PopF:
		pop := Pop{}
		if v.Dst != nil {
			dst, err := g.locationF(v.Dst)
			if err != nil {
				return nil, err
			}
			pop.Dst = dst
		}
		code = append(code, pop)
	case tac.Jsr:
		code = append(code, Jsr{Target: v.Fn.Name})
	case tac.Ret:
		code = append(code, Ret{})
	case tac.Link:
		code = append(code, Link{N: len(v.Fn.Locals)})
	case tac.Unlink:
		code = append(code, Unlink{})
	default:
		return nil, errors.New("unexpected instruction %T", in)
	}
	return code, nil
}

// move copies src to dst. Memory to memory copies go through a fresh register.
func (g *Generator) move(src Operand, dst Opmr) ([]Instruction, error) {
	if IsMem(src) && IsMem(dst) {
		r, err := g.rf.Next()
		if err != nil {
			return nil, err
		}
		return []Instruction{Move{Src: src, Dst: Reg(r)}, Move{Src: Reg(r), Dst: dst}}, nil
	}
	return []Instruction{Move{Src: src, Dst: dst}}, nil
}

// register returns the register bound to temporary t. Reading a temporary that was never written is an error.
func register[T tac.TempI | tac.TempF](regs map[T]regfile.Register, t T) (regfile.Register, error) {
	r, ok := regs[t]
	if !ok {
		return 0, errors.New("temporary $T%d used before definition", uint64(t))
	}
	return r, nil
}

// bind returns the register bound to temporary t, binding a fresh register if t has none.
func bind[T tac.TempI | tac.TempF](rf *regfile.File, regs map[T]regfile.Register, t T) (regfile.Register, error) {
	if r, ok := regs[t]; ok {
		return r, nil
	}
	r, err := rf.Next()
	if err != nil {
		return 0, err
	}
	regs[t] = r
	return r, nil
}

// operandI returns op as a Tiny operand without emitting code.
func (g *Generator) operandI(op tac.OperandI) (OpmrIL, error) {
	switch v := op.(type) {
	case tac.TempI:
		r, err := register(g.ints, v)
		return Reg(r), err
	case tac.IdentI:
		return Mem{Sym: v.Sym}, nil
	case tac.IntLiteral:
		return IntLit(v), nil
	}
	return nil, errors.New("unexpected integer operand %T", op)
}

// operandF returns op as a Tiny operand without emitting code.
func (g *Generator) operandF(op tac.OperandF) (OpmrFL, error) {
	switch v := op.(type) {
	case tac.TempF:
		r, err := register(g.floats, v)
		return Reg(r), err
	case tac.IdentF:
		return Mem{Sym: v.Sym}, nil
	case tac.FloatLiteral:
		return FloatLit(v), nil
	}
	return nil, errors.New("unexpected float operand %T", op)
}

// locationI returns the destination of a write to lv, binding a register if lv is a temporary.
func (g *Generator) locationI(lv tac.LValueI) (Opmr, error) {
	switch v := lv.(type) {
	case tac.TempI:
		r, err := bind(g.rf, g.ints, v)
		return Reg(r), err
	case tac.IdentI:
		return Mem{Sym: v.Sym}, nil
	}
	return nil, errors.New("unexpected integer destination %T", lv)
}

// locationF returns the destination of a write to lv, binding a register if lv is a temporary.
func (g *Generator) locationF(lv tac.LValueF) (Opmr, error) {
	switch v := lv.(type) {
	case tac.TempF:
		r, err := bind(g.rf, g.floats, v)
		return Reg(r), err
	case tac.IdentF:
		return Mem{Sym: v.Sym}, nil
	}
	return nil, errors.New("unexpected float destination %T", lv)
}

// intoRegisterI returns the register of temporary op, or moves op into a fresh register appended to code.
func (g *Generator) intoRegisterI(op tac.OperandI, code *[]Instruction) (regfile.Register, error) {
	if t, ok := op.(tac.TempI); ok {
		if r, ok := g.ints[t]; ok {
			return r, nil
		}
	}
	src, err := g.operandI(op)
	if err != nil {
		return 0, err
	}
	r, err := g.rf.Next()
	if err != nil {
		return 0, err
	}
	*code = append(*code, Move{Src: src, Dst: Reg(r)})
	return r, nil
}

// intoRegisterF returns the register of temporary op, or moves op into a fresh register appended to code.
func (g *Generator) intoRegisterF(op tac.OperandF, code *[]Instruction) (regfile.Register, error) {
	if t, ok := op.(tac.TempF); ok {
		if r, ok := g.floats[t]; ok {
			return r, nil
		}
	}
	src, err := g.operandF(op)
	if err != nil {
		return 0, err
	}
	r, err := g.rf.Next()
	if err != nil {
		return 0, err
	}
	*code = append(*code, Move{Src: src, Dst: Reg(r)})
	return r, nil
}
