// Package llvm lowers three address code to LLVM IR for the system installed LLVM runtime.
//
// The Tiny machine model is kept: globals become LLVM globals, and the Tiny stack with its frame pointer relative
// slots becomes an explicit array of 64 bit words addressed through the sp and fp globals. Every function of the
// program becomes a parameterless void LLVM function that communicates through that stack, exactly as the Tiny
// code does.
package llvm

import (
	"strconv"

	"microc/src/ir/cfg"
	"microc/src/ir/symtab"
	"microc/src/ir/tac"
	"microc/src/util"

	"tinygo.org/x/go-llvm"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// module holds the LLVM state of one program. LLVM contexts are not safe for concurrent use, so a module is only
// ever used by one go routine.
type module struct {
	ctx llvm.Context
	m   llvm.Module
	b   llvm.Builder

	i8, i32, i64, f64 llvm.Type

	stack, sp, fp llvm.Value                    // Tiny stack words and pointers.
	printf, scanf llvm.Value                    // C library functions.
	globals       map[*symtab.Symbol]llvm.Value // Globals and string constants.
	funcs         map[string]llvm.Value         // Functions by name.
	formats       map[string]llvm.Value         // Format string pointers, created on first use.
}

// ---------------------
// ----- Constants -----
// ---------------------

// StackWords is the size of the Tiny stack in 64 bit words.
const StackWords = 4096

// Name prefixes keeping program symbols apart from each other and from the C library.
const (
	prefixGlobal = "g."
	prefixString = "s."
	prefixFunc   = "mc."
	topLevelName = "mc.$top"
)

// ---------------------
// ----- functions -----
// ---------------------

// GenLLVM lowers prog to a verified LLVM module and returns its textual IR.
//
// The control flow graph of every function is built first, in parallel if opt.Threads > 1. Lowering to LLVM then
// runs on the calling go routine.
func GenLLVM(opt util.Options, prog *tac.Program) (string, error) {
	graphs := make([]*cfg.BlockFunction, len(prog.Functions))
	err := util.Parallel(opt.Threads, len(prog.Functions), func(i int) error {
		bf := cfg.BuildBlocks(prog.Functions[i].Code)
		if _, err := cfg.New(bf); err != nil {
			return errors.Wrap(err, "function %s", funcName(prog.Functions[i]))
		}
		graphs[i] = bf
		return nil
	})
	if err != nil {
		return "", err
	}

	md := newModule(prog.Name)
	defer md.dispose()

	md.declareGlobals(prog.Symbols)
	for _, e1 := range prog.Functions {
		md.declareFunction(e1)
	}
	for i1, e1 := range prog.Functions {
		if err := md.genFunction(e1, graphs[i1]); err != nil {
			return "", errors.Wrap(err, "function %s", funcName(e1))
		}
	}
	md.genMain(prog)

	if err := llvm.VerifyModule(md.m, llvm.ReturnStatusAction); err != nil {
		return "", errors.Wrap(err, "verify module")
	}
	tlog.V("stats").Printw("llvm module generated", "name", prog.Name, "functions", len(prog.Functions))
	return md.m.String(), nil
}

// funcName returns the name of f for messages.
func funcName(f *tac.Function) string {
	if f.Symbol == nil {
		return "<top level>"
	}
	return f.Symbol.Name
}

// newModule creates a module with the Tiny stack and the C library declarations.
func newModule(name string) *module {
	ctx := llvm.NewContext()
	md := &module{
		ctx:     ctx,
		m:       ctx.NewModule(name),
		b:       ctx.NewBuilder(),
		i8:      ctx.Int8Type(),
		i32:     ctx.Int32Type(),
		i64:     ctx.Int64Type(),
		f64:     ctx.DoubleType(),
		globals: make(map[*symtab.Symbol]llvm.Value),
		funcs:   make(map[string]llvm.Value),
		formats: make(map[string]llvm.Value),
	}
	md.m.SetTarget(llvm.DefaultTargetTriple())

	styp := llvm.ArrayType(md.i64, StackWords)
	md.stack = llvm.AddGlobal(md.m, styp, "stack")
	md.stack.SetInitializer(llvm.ConstNull(styp))
	md.stack.SetLinkage(llvm.InternalLinkage)
	md.sp = llvm.AddGlobal(md.m, md.i64, "sp")
	md.sp.SetInitializer(llvm.ConstInt(md.i64, StackWords, false))
	md.sp.SetLinkage(llvm.InternalLinkage)
	md.fp = llvm.AddGlobal(md.m, md.i64, "fp")
	md.fp.SetInitializer(llvm.ConstInt(md.i64, StackWords, false))
	md.fp.SetLinkage(llvm.InternalLinkage)

	cstr := llvm.PointerType(md.i8, 0)
	ftyp := llvm.FunctionType(md.i32, []llvm.Type{cstr}, true)
	md.printf = llvm.AddFunction(md.m, "printf", ftyp)
	md.scanf = llvm.AddFunction(md.m, "scanf", ftyp)
	return md
}

// dispose releases the LLVM objects of md.
func (md *module) dispose() {
	md.b.Dispose()
	md.m.Dispose()
	md.ctx.Dispose()
}

// declareGlobals adds a zero initialised global for every int and float variable and a constant array for every
// string of st.
func (md *module) declareGlobals(st *symtab.Table) {
	for _, e1 := range st.Globals() {
		var g llvm.Value
		switch e1.Type {
		case symtab.Int:
			g = llvm.AddGlobal(md.m, md.i32, prefixGlobal+e1.Name)
			g.SetInitializer(llvm.ConstInt(md.i32, 0, false))
		case symtab.Float:
			g = llvm.AddGlobal(md.m, md.f64, prefixGlobal+e1.Name)
			g.SetInitializer(llvm.ConstFloat(md.f64, 0))
		case symtab.String:
			v := md.ctx.ConstString(unescape(e1.Value), true)
			g = llvm.AddGlobal(md.m, v.Type(), prefixString+e1.Name)
			g.SetInitializer(v)
			g.SetGlobalConstant(true)
		default:
			continue
		}
		g.SetLinkage(llvm.InternalLinkage)
		md.globals[e1] = g
	}
}

// unescape returns the bytes of string constant value v, which keeps the escape sequences of the listing.
func unescape(v string) string {
	if s, err := strconv.Unquote(`"` + v + `"`); err == nil {
		return s
	}
	return v
}

// declareFunction adds the LLVM function of f, so calls can be lowered before the callee's body exists.
func (md *module) declareFunction(f *tac.Function) {
	name := topLevelName
	if f.Symbol != nil {
		name = prefixFunc + f.Symbol.Name
	}
	fn := llvm.AddFunction(md.m, name, llvm.FunctionType(md.ctx.VoidType(), nil, false))
	fn.SetLinkage(llvm.InternalLinkage)
	md.funcs[name] = fn
}

// function returns the declared LLVM function of f.
func (md *module) function(f *tac.Function) llvm.Value {
	if f.Symbol == nil {
		return md.funcs[topLevelName]
	}
	return md.funcs[prefixFunc+f.Symbol.Name]
}

// genMain generates the C entry point. It runs the top level code and then calls main the way the Tiny program
// prologue does: a reserved return slot and a return address are pushed before the call.
func (md *module) genMain(prog *tac.Program) {
	main := llvm.AddFunction(md.m, "main", llvm.FunctionType(md.i32, nil, false))
	md.b.SetInsertPointAtEnd(md.ctx.AddBasicBlock(main, "entry"))
	for _, e1 := range prog.Functions {
		if e1.Symbol == nil {
			md.b.CreateCall(md.function(e1), nil, "")
		}
	}
	if fn, ok := md.funcs[prefixFunc+"main"]; ok {
		md.push(llvm.ConstInt(md.i64, 0, false))
		md.call(fn)
		md.b.CreateStore(md.add(md.b.CreateLoad(md.sp, ""), 1), md.sp)
	}
	md.b.CreateRet(llvm.ConstInt(md.i32, 0, false))
}

// ----------------------------
// ----- Stack operations -----
// ----------------------------

// add returns v + n for a 64 bit v.
func (md *module) add(v llvm.Value, n int64) llvm.Value {
	return md.b.CreateAdd(v, llvm.ConstInt(md.i64, uint64(n), true), "")
}

// word returns a pointer to stack word idx.
func (md *module) word(idx llvm.Value) llvm.Value {
	return md.b.CreateGEP(md.stack, []llvm.Value{llvm.ConstInt(md.i64, 0, false), idx}, "")
}

// push pushes the 64 bit word v.
func (md *module) push(v llvm.Value) {
	sp := md.add(md.b.CreateLoad(md.sp, ""), -1)
	md.b.CreateStore(sp, md.sp)
	md.b.CreateStore(v, md.word(sp))
}

// pop pops and returns the top word of the stack.
func (md *module) pop() llvm.Value {
	sp := md.b.CreateLoad(md.sp, "")
	v := md.b.CreateLoad(md.word(sp), "")
	md.b.CreateStore(md.add(sp, 1), md.sp)
	return v
}

// call pushes a return address word, calls fn and pops the word again.
func (md *module) call(fn llvm.Value) {
	md.push(llvm.ConstInt(md.i64, 0, false))
	md.b.CreateCall(fn, nil, "")
	md.b.CreateStore(md.add(md.b.CreateLoad(md.sp, ""), 1), md.sp)
}

// link saves the frame pointer, starts a new frame at the top of the stack and reserves n local words.
func (md *module) link(n int) {
	md.push(md.b.CreateLoad(md.fp, ""))
	sp := md.b.CreateLoad(md.sp, "")
	md.b.CreateStore(sp, md.fp)
	md.b.CreateStore(md.add(sp, -int64(n)), md.sp)
}

// unlink releases the current frame and restores the saved frame pointer.
func (md *module) unlink() {
	md.b.CreateStore(md.b.CreateLoad(md.fp, ""), md.sp)
	md.b.CreateStore(md.pop(), md.fp)
}

// slot returns a pointer to the stack word of frame symbol s.
func (md *module) slot(s *symtab.Symbol) llvm.Value {
	return md.word(md.add(md.b.CreateLoad(md.fp, ""), int64(s.Offset)))
}

// toWord converts an i32 or double value to a stack word.
func (md *module) toWord(v llvm.Value, dt symtab.DataType) llvm.Value {
	if dt == symtab.Float {
		return md.b.CreateBitCast(v, md.i64, "")
	}
	return md.b.CreateSExt(v, md.i64, "")
}

// fromWord converts a stack word to a value of data type dt.
func (md *module) fromWord(w llvm.Value, dt symtab.DataType) llvm.Value {
	if dt == symtab.Float {
		return md.b.CreateBitCast(w, md.f64, "")
	}
	return md.b.CreateTrunc(w, md.i32, "")
}

// format returns a pointer to the C string s.
func (md *module) format(s string) llvm.Value {
	if v, ok := md.formats[s]; ok {
		return v
	}
	v := md.b.CreateGlobalStringPtr(s, "fmt")
	md.formats[s] = v
	return v
}
