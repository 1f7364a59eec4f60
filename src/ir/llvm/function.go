package llvm

import (
	"microc/src/ir/cfg"
	"microc/src/ir/symtab"
	"microc/src/ir/tac"

	"tinygo.org/x/go-llvm"
	"tlog.app/go/errors"
)

// function holds the state of one function being lowered.
type function struct {
	*module
	fn      llvm.Value
	ints    map[tac.TempI]llvm.Value      // Stack allocations of integer temporaries.
	floats  map[tac.TempF]llvm.Value      // Stack allocations of floating point temporaries.
	targets map[tac.Label]llvm.BasicBlock // LLVM block of every label.
	readI   llvm.Value                    // Scratch space for reading integers into frame slots.
	readF   llvm.Value                    // Scratch space for reading floats into frame slots.
}

var intPredicates = [...]llvm.IntPredicate{llvm.IntSGT, llvm.IntSLT, llvm.IntSGE, llvm.IntSLE, llvm.IntNE, llvm.IntEQ}
var floatPredicates = [...]llvm.FloatPredicate{llvm.FloatOGT, llvm.FloatOLT, llvm.FloatOGE, llvm.FloatOLE, llvm.FloatONE, llvm.FloatOEQ}

// genFunction generates the body of f from its basic blocks bf.
//
// Temporaries live in stack allocations of the entry block, which then branches to the first basic block. Every
// basic block becomes an LLVM block. Blocks that do not end in a jump or a return branch to the next block, and
// the last block falls through to an exit block returning from the function.
func (md *module) genFunction(f *tac.Function, bf *cfg.BlockFunction) error {
	fs := &function{
		module:  md,
		fn:      md.function(f),
		ints:    make(map[tac.TempI]llvm.Value),
		floats:  make(map[tac.TempF]llvm.Value),
		targets: make(map[tac.Label]llvm.BasicBlock),
	}
	md.b.SetInsertPointAtEnd(md.ctx.AddBasicBlock(fs.fn, "entry"))
	fs.allocate(f.Code)

	blocks := make([]llvm.BasicBlock, 0, bf.Len()+1)
	for pair := bf.Blocks.Oldest(); pair != nil; pair = pair.Next() {
		blocks = append(blocks, md.ctx.AddBasicBlock(fs.fn, pair.Key.String()))
	}
	exit := md.ctx.AddBasicBlock(fs.fn, "exit")
	blocks = append(blocks, exit)
	for k, v := range bf.Targets {
		fs.targets[k] = blocks[v]
	}
	md.b.CreateBr(blocks[0])

	i1 := 0
	for pair := bf.Blocks.Oldest(); pair != nil; pair = pair.Next() {
		md.b.SetInsertPointAtEnd(blocks[i1])
		next := blocks[i1+1]
		i1++

		code := pair.Value.Instructions()
		for _, e2 := range code[:len(code)-1] {
			if err := fs.genInstruction(e2); err != nil {
				return errors.Wrap(err, "%s", e2)
			}
		}
		last := pair.Value.Last()
		if err := fs.genTerminator(last, next); err != nil {
			return errors.Wrap(err, "%s", last)
		}
	}

	md.b.SetInsertPointAtEnd(exit)
	md.b.CreateRetVoid()
	return nil
}

// allocate creates a stack allocation for every temporary written by code, and the read scratch space.
func (fs *function) allocate(code []tac.Instruction) {
	defI := func(t tac.TempI) {
		if _, ok := fs.ints[t]; !ok {
			fs.ints[t] = fs.b.CreateAlloca(fs.i32, t.String())
		}
	}
	defF := func(t tac.TempF) {
		if _, ok := fs.floats[t]; !ok {
			fs.floats[t] = fs.b.CreateAlloca(fs.f64, t.String())
		}
	}
	for _, e1 := range code {
		switch v := e1.(type) {
		case tac.BinaryI:
			defI(v.Result)
		case tac.BinaryF:
			defF(v.Result)
		case tac.StoreI:
			if t, ok := v.Dst.(tac.TempI); ok {
				defI(t)
			}
		case tac.StoreF:
			if t, ok := v.Dst.(tac.TempF); ok {
				defF(t)
			}
		case tac.PopI:
			if t, ok := v.Dst.(tac.TempI); ok {
				defI(t)
			}
		case tac.PopF:
			if t, ok := v.Dst.(tac.TempF); ok {
				defF(t)
			}
		}
	}
	fs.readI = fs.b.CreateAlloca(fs.i32, "readi")
	fs.readF = fs.b.CreateAlloca(fs.f64, "readf")
}

// genTerminator generates the last instruction in of a block, followed by the branch leaving the block. next is the
// block control falls through to.
func (fs *function) genTerminator(in tac.Instruction, next llvm.BasicBlock) error {
	switch v := in.(type) {
	case tac.Jump:
		fs.b.CreateBr(fs.targets[v.Target])
	case tac.Ret:
		fs.b.CreateRetVoid()
	case tac.CompareI:
		lhs, err := fs.valueI(v.Lhs)
		if err != nil {
			return err
		}
		rhs, err := fs.valueI(v.Rhs)
		if err != nil {
			return err
		}
		fs.b.CreateCondBr(fs.b.CreateICmp(intPredicates[v.Cmp], lhs, rhs, ""), fs.targets[v.Target], next)
	case tac.CompareF:
		lhs, err := fs.valueF(v.Lhs)
		if err != nil {
			return err
		}
		rhs, err := fs.valueF(v.Rhs)
		if err != nil {
			return err
		}
		fs.b.CreateCondBr(fs.b.CreateFCmp(floatPredicates[v.Cmp], lhs, rhs, ""), fs.targets[v.Target], next)
	default:
		if err := fs.genInstruction(in); err != nil {
			return err
		}
		fs.b.CreateBr(next)
	}
	return nil
}

// genInstruction generates instruction in, which does not transfer control.
func (fs *function) genInstruction(in tac.Instruction) error {
	switch v := in.(type) {
	case tac.BinaryI:
		lhs, err := fs.valueI(v.Lhs)
		if err != nil {
			return err
		}
		rhs, err := fs.valueI(v.Rhs)
		if err != nil {
			return err
		}
		var res llvm.Value
		switch v.Op {
		case tac.Add:
			res = fs.b.CreateAdd(lhs, rhs, "")
		case tac.Sub:
			res = fs.b.CreateSub(lhs, rhs, "")
		case tac.Mul:
			res = fs.b.CreateMul(lhs, rhs, "")
		case tac.Div:
			res = fs.b.CreateSDiv(lhs, rhs, "")
		}
		fs.b.CreateStore(res, fs.ints[v.Result])
	case tac.BinaryF:
		lhs, err := fs.valueF(v.Lhs)
		if err != nil {
			return err
		}
		rhs, err := fs.valueF(v.Rhs)
		if err != nil {
			return err
		}
		var res llvm.Value
		switch v.Op {
		case tac.Add:
			res = fs.b.CreateFAdd(lhs, rhs, "")
		case tac.Sub:
			res = fs.b.CreateFSub(lhs, rhs, "")
		case tac.Mul:
			res = fs.b.CreateFMul(lhs, rhs, "")
		case tac.Div:
			res = fs.b.CreateFDiv(lhs, rhs, "")
		}
		fs.b.CreateStore(res, fs.floats[v.Result])
	case tac.StoreI:
		src, err := fs.valueI(v.Src)
		if err != nil {
			return err
		}
		fs.store(v.Dst, src)
	case tac.StoreF:
		src, err := fs.valueF(v.Src)
		if err != nil {
			return err
		}
		fs.store(v.Dst, src)
	case tac.ReadI:
		fs.read(v.Id.Sym, "%d", fs.readI)
	case tac.ReadF:
		fs.read(v.Id.Sym, "%lf", fs.readF)
	case tac.WriteI:
		fs.b.CreateCall(fs.printf, []llvm.Value{fs.format("%d"), fs.load(v.Id.Sym)}, "")
	case tac.WriteF:
		fs.b.CreateCall(fs.printf, []llvm.Value{fs.format("%g"), fs.load(v.Id.Sym)}, "")
	case tac.WriteS:
		g, ok := fs.globals[v.Id.Sym]
		if !ok {
			return errors.New("undeclared string %s", v.Id.Sym.Name)
		}
		zero := llvm.ConstInt(fs.i32, 0, false)
		fs.b.CreateCall(fs.printf, []llvm.Value{fs.format("%s"), fs.b.CreateGEP(g, []llvm.Value{zero, zero}, "")}, "")
	case tac.Mark, tac.FunctionLabel:
	case tac.Link:
		fs.link(len(v.Fn.Locals))
	case tac.Unlink:
		fs.unlink()
	case tac.Jsr:
		fn, ok := fs.funcs[prefixFunc+v.Fn.Name]
		if !ok {
			return errors.New("call to undefined function %s", v.Fn.Name)
		}
		fs.call(fn)
	case tac.PushI:
		if v.Src == nil {
			fs.push(llvm.ConstInt(fs.i64, 0, false))
			break
		}
		src, err := fs.valueI(v.Src)
		if err != nil {
			return err
		}
		fs.push(fs.toWord(src, symtab.Int))
	case tac.PushF:
		if v.Src == nil {
			fs.push(llvm.ConstInt(fs.i64, 0, false))
			break
		}
		src, err := fs.valueF(v.Src)
		if err != nil {
			return err
		}
		fs.push(fs.toWord(src, symtab.Float))
	case tac.PopI:
		w := fs.pop()
		if v.Dst != nil {
			fs.store(v.Dst, fs.fromWord(w, symtab.Int))
		}
	case tac.PopF:
		w := fs.pop()
		if v.Dst != nil {
			fs.store(v.Dst, fs.fromWord(w, symtab.Float))
		}
	default:
		return errors.New("unexpected instruction %T", in)
	}
	return nil
}

// valueI returns the value of integer operand op.
func (fs *function) valueI(op tac.OperandI) (llvm.Value, error) {
	switch v := op.(type) {
	case tac.IntLiteral:
		return llvm.ConstInt(fs.i32, uint64(int64(v)), true), nil
	case tac.IdentI:
		return fs.load(v.Sym), nil
	case tac.TempI:
		a, ok := fs.ints[v]
		if !ok {
			return llvm.Value{}, errors.New("temporary %s is never written", v)
		}
		return fs.b.CreateLoad(a, ""), nil
	}
	return llvm.Value{}, errors.New("unexpected integer operand %T", op)
}

// valueF returns the value of floating point operand op.
func (fs *function) valueF(op tac.OperandF) (llvm.Value, error) {
	switch v := op.(type) {
	case tac.FloatLiteral:
		return llvm.ConstFloat(fs.f64, float64(v)), nil
	case tac.IdentF:
		return fs.load(v.Sym), nil
	case tac.TempF:
		a, ok := fs.floats[v]
		if !ok {
			return llvm.Value{}, errors.New("temporary %s is never written", v)
		}
		return fs.b.CreateLoad(a, ""), nil
	}
	return llvm.Value{}, errors.New("unexpected float operand %T", op)
}

// load returns the value of variable s.
func (fs *function) load(s *symtab.Symbol) llvm.Value {
	if s.IsGlobal() {
		return fs.b.CreateLoad(fs.globals[s], "")
	}
	return fs.fromWord(fs.b.CreateLoad(fs.slot(s), ""), s.Type)
}

// store writes v to lv.
func (fs *function) store(lv tac.LValue, v llvm.Value) {
	switch d := lv.(type) {
	case tac.TempI:
		fs.b.CreateStore(v, fs.ints[d])
	case tac.TempF:
		fs.b.CreateStore(v, fs.floats[d])
	default:
		s, _ := tac.Symbol(lv)
		if s.IsGlobal() {
			fs.b.CreateStore(v, fs.globals[s])
			return
		}
		fs.b.CreateStore(fs.toWord(v, s.Type), fs.slot(s))
	}
}

// read reads a value with scanf format f into variable s. Frame slots are read through scratch.
func (fs *function) read(s *symtab.Symbol, f string, scratch llvm.Value) {
	if s.IsGlobal() {
		fs.b.CreateCall(fs.scanf, []llvm.Value{fs.format(f), fs.globals[s]}, "")
		return
	}
	fs.b.CreateCall(fs.scanf, []llvm.Value{fs.format(f), scratch}, "")
	fs.b.CreateStore(fs.toWord(fs.b.CreateLoad(scratch, ""), s.Type), fs.slot(s))
}
