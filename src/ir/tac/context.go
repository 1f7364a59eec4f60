package tac

import (
	"strings"
	"sync/atomic"

	"microc/src/ir/symtab"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Context is the state shared by every function of one compilation. Labels are unique across the whole program,
// so the label counter is never reset. A Context is safe for concurrent use.
type Context struct {
	labels atomic.Uint64 // Last issued label id.
}

// Builder constructs the three address code of one function. Temporaries are numbered per function, starting
// at 1 for every call to Begin. Builders must not be shared between threads; use one per function.
type Builder struct {
	ctx  *Context         // Compilation context issuing labels.
	fn   *symtab.Function // Function being built. <nil> for top level code.
	temp uint64           // Last issued temporary id.
	code []Instruction    // Instructions emitted so far.
}

// Function is the three address code of a single function.
type Function struct {
	Symbol *symtab.Function // Function symbol. <nil> for top level code.
	Code   []Instruction    // Instructions in program order.
}

// Program is a whole compilation unit.
type Program struct {
	Name      string        // Program name.
	Symbols   *symtab.Table // Global variables, strings and functions.
	Functions []*Function   // Functions in order of declaration.
	Ctx       *Context      // Compilation context the code was built with.
}

// ---------------------
// ----- Functions -----
// ---------------------

// NewContext returns a context whose first label is label1.
func NewContext() *Context {
	return &Context{}
}

// NewLabel returns a label not returned before by this context.
func (c *Context) NewLabel() Label {
	return Label(c.labels.Add(1))
}

// ObserveLabel makes sure label l is never issued by NewLabel. Used when reading code that already carries labels.
func (c *Context) ObserveLabel(l Label) {
	for {
		cur := c.labels.Load()
		if uint64(l) <= cur || c.labels.CompareAndSwap(cur, uint64(l)) {
			return
		}
	}
}

// NewBuilder returns a function builder drawing labels from context c.
func NewBuilder(c *Context) *Builder {
	return &Builder{ctx: c}
}

// Begin starts a new function fn. The temporary counter is reset and any previously emitted code is discarded.
// If fn is not <nil> the function label and frame setup are emitted.
func (b *Builder) Begin(fn *symtab.Function) {
	b.fn = fn
	b.temp = 0
	b.code = nil
	if fn != nil {
		b.Emit(FunctionLabel{Fn: fn}, Link{Fn: fn})
	}
}

// End returns the function built since the last call to Begin.
func (b *Builder) End() *Function {
	res := &Function{Symbol: b.fn, Code: b.code}
	b.code = nil
	return res
}

// NewTempI returns a fresh integer temporary.
func (b *Builder) NewTempI() TempI {
	b.temp++
	return TempI(b.temp)
}

// NewTempF returns a fresh floating point temporary. It shares its counter with NewTempI.
func (b *Builder) NewTempF() TempF {
	b.temp++
	return TempF(b.temp)
}

// ObserveTemp makes sure temporary id n is never issued again within the current function.
func (b *Builder) ObserveTemp(n uint64) {
	if n > b.temp {
		b.temp = n
	}
}

// NewLabel returns a program wide unique label.
func (b *Builder) NewLabel() Label {
	return b.ctx.NewLabel()
}

// Emit appends instructions to the current function.
func (b *Builder) Emit(in ...Instruction) {
	b.code = append(b.code, in...)
}

// Code returns the instructions emitted so far.
func (b *Builder) Code() []Instruction {
	return b.code
}

// BinaryI emits lhs op rhs into a fresh temporary and returns the temporary.
func (b *Builder) BinaryI(op ArithOp, lhs, rhs OperandI) TempI {
	t := b.NewTempI()
	b.Emit(BinaryI{Op: op, Lhs: lhs, Rhs: rhs, Result: t})
	return t
}

// BinaryF emits lhs op rhs into a fresh temporary and returns the temporary.
func (b *Builder) BinaryF(op ArithOp, lhs, rhs OperandF) TempF {
	t := b.NewTempF()
	b.Emit(BinaryF{Op: op, Lhs: lhs, Rhs: rhs, Result: t})
	return t
}

// LoadI emits a store of src into a fresh temporary and returns the temporary.
func (b *Builder) LoadI(src OperandI) TempI {
	t := b.NewTempI()
	b.Emit(StoreI{Dst: t, Src: src})
	return t
}

// LoadF emits a store of src into a fresh temporary and returns the temporary.
func (b *Builder) LoadF(src OperandF) TempF {
	t := b.NewTempF()
	b.Emit(StoreF{Dst: t, Src: src})
	return t
}

// NewProgram returns an empty program with a fresh symbol table and context.
func NewProgram(name string) *Program {
	return &Program{
		Name:    name,
		Symbols: symtab.New(),
		Ctx:     NewContext(),
	}
}

// Name returns the name of function f, or the empty string for top level code.
func (f *Function) Name() string {
	if f.Symbol == nil {
		return ""
	}
	return f.Symbol.Name
}

// String returns the listing of f, one instruction per line.
func (f *Function) String() string {
	sb := strings.Builder{}
	for _, e1 := range f.Code {
		sb.WriteString(e1.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Function returns the function with the given name.
func (p *Program) Function(name string) (*Function, bool) {
	for _, e1 := range p.Functions {
		if e1.Name() == name {
			return e1, true
		}
	}
	return nil, false
}

// String returns the program as a listing that can be read back by the frontend.
func (p *Program) String() string {
	sb := strings.Builder{}
	sb.WriteString("PROGRAM " + p.Name + "\n")
	for _, e1 := range p.Symbols.Globals() {
		switch e1.Type {
		case symtab.String:
			sb.WriteString("STRING " + e1.Name + " \"" + e1.Value + "\"\n")
		default:
			sb.WriteString(e1.Type.String() + " " + e1.Name + "\n")
		}
	}
	for _, e1 := range p.Functions {
		sb.WriteByte('\n')
		if fn := e1.Symbol; fn != nil {
			sb.WriteString("FUNCTION " + fn.Return.String() + " " + fn.Name)
			if len(fn.Params) > 0 {
				sb.WriteString(" PARAMS")
				for _, e2 := range fn.Params {
					sb.WriteString(" " + e2.Type.String())
				}
			}
			if len(fn.Locals) > 0 {
				sb.WriteString(" LOCALS")
				for _, e2 := range fn.Locals {
					sb.WriteString(" " + e2.Type.String())
				}
			}
			sb.WriteByte('\n')
		}
		sb.WriteString(e1.String())
	}
	return sb.String()
}
