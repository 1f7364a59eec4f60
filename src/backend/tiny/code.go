// Package tiny generates assembler for the Tiny machine from three address code.
//
// Tiny has 200 general purpose registers, a stack addressed relative to the frame pointer, and statically allocated
// variables addressed by name. An instruction takes at most one memory operand. Arithmetic and comparison
// instructions always use a register as their second operand, and arithmetic writes its result to that register.
package tiny

import (
	"fmt"
	"strings"

	"microc/src/backend/regfile"
	"microc/src/ir/symtab"
	"microc/src/ir/tac"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Operand is any Tiny operand: memory, register or literal.
type Operand interface {
	fmt.Stringer
	operand()
}

// Opmr is a memory or register operand.
type Opmr interface {
	Operand
	opmr()
}

// OpmrIL is a memory, register or integer literal operand.
type OpmrIL interface {
	Operand
	opmrIL()
}

// OpmrFL is a memory, register or floating point literal operand.
type OpmrFL interface {
	Operand
	opmrFL()
}

// Reg is a register operand.
type Reg regfile.Register

// Mem is a memory operand: a global variable or a frame pointer relative stack slot.
type Mem struct {
	Sym *symtab.Symbol
}

// IntLit is an integer literal operand.
type IntLit int32

// FloatLit is a floating point literal operand.
type FloatLit float64

// Instruction is a single Tiny instruction. The set of implementations is closed.
type Instruction interface {
	fmt.Stringer
	instruction()
}

// SysCall identifies a Tiny system call.
type SysCall int

// Var declares an integer or floating point variable.
type Var struct {
	Id string
}

// Str declares a string constant.
type Str struct {
	Id    string
	Value string
}

// Label marks a jump target.
type Label struct {
	Name string
}

// Move copies Src to Dst. At most one of the two operands is in memory.
type Move struct {
	Src Operand
	Dst Opmr
}

// ArithI computes Dst := Dst Op Src on integers.
type ArithI struct {
	Op  tac.ArithOp
	Src OpmrIL
	Dst Reg
}

// ArithF computes Dst := Dst Op Src on floating point values.
type ArithF struct {
	Op  tac.ArithOp
	Src OpmrFL
	Dst Reg
}

// CmpI compares integers Lhs and Rhs and sets the flags tested by the next conditional jump.
type CmpI struct {
	Lhs OpmrIL
	Rhs Reg
}

// CmpF compares floating point values Lhs and Rhs.
type CmpF struct {
	Lhs OpmrFL
	Rhs Reg
}

// Jmp jumps to Target.
type Jmp struct {
	Target string
}

// CondJump jumps to Target if the last comparison satisfied Cmp.
type CondJump struct {
	Cmp    tac.Cmp
	Target string
}

// Push pushes Src on the stack. A <nil> Src reserves an uninitialised slot.
type Push struct {
	Src Operand
}

// Pop pops the top of the stack into Dst. A <nil> Dst discards the value.
type Pop struct {
	Dst Opmr
}

// Jsr pushes the return address and jumps to Target.
type Jsr struct {
	Target string
}

// Ret pops the return address and jumps to it.
type Ret struct{}

// Link pushes the frame pointer, points it at the top of the stack and reserves N local slots.
type Link struct {
	N int
}

// Unlink restores the stack and frame pointers saved by Link.
type Unlink struct{}

// Sys performs system call Call on Arg. Arg is <nil> for Halt.
type Sys struct {
	Call SysCall
	Arg  Opmr
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	ReadI SysCall = iota
	ReadR
	WriteI
	WriteR
	WriteS
	Halt
)

var sysNames = [...]string{"readi", "readr", "writei", "writer", "writes", "halt"}
var arithNames = [...]string{"add", "sub", "mul", "div"}
var jumpNames = [...]string{"jgt", "jlt", "jge", "jle", "jne", "jeq"}

// ---------------------
// ----- Functions -----
// ---------------------

func (Reg) operand()      {}
func (Reg) opmr()         {}
func (Reg) opmrIL()       {}
func (Reg) opmrFL()       {}
func (Mem) operand()      {}
func (Mem) opmr()         {}
func (Mem) opmrIL()       {}
func (Mem) opmrFL()       {}
func (IntLit) operand()   {}
func (IntLit) opmrIL()    {}
func (FloatLit) operand() {}
func (FloatLit) opmrFL()  {}

func (r Reg) String() string {
	return regfile.Register(r).String()
}

// String returns the name of global variables and $<offset> for stack slots.
func (m Mem) String() string {
	if m.Sym.IsGlobal() {
		return m.Sym.Name
	}
	return fmt.Sprintf("$%d", m.Sym.Offset)
}

func (l IntLit) String() string {
	return tac.IntLiteral(l).String()
}

func (l FloatLit) String() string {
	return tac.FloatLiteral(l).String()
}

// IsMem returns true if op is a memory operand.
func IsMem(op Operand) bool {
	_, ok := op.(Mem)
	return ok
}

func (Var) instruction()      {}
func (Str) instruction()      {}
func (Label) instruction()    {}
func (Move) instruction()     {}
func (ArithI) instruction()   {}
func (ArithF) instruction()   {}
func (CmpI) instruction()     {}
func (CmpF) instruction()     {}
func (Jmp) instruction()      {}
func (CondJump) instruction() {}
func (Push) instruction()     {}
func (Pop) instruction()      {}
func (Jsr) instruction()      {}
func (Ret) instruction()      {}
func (Link) instruction()     {}
func (Unlink) instruction()   {}
func (Sys) instruction()      {}

func (in Var) String() string   { return "var " + in.Id }
func (in Str) String() string   { return fmt.Sprintf("str %s \"%s\"", in.Id, in.Value) }
func (in Label) String() string { return "label " + in.Name }
func (in Move) String() string  { return fmt.Sprintf("move %s %s", in.Src, in.Dst) }

func (in ArithI) String() string {
	return fmt.Sprintf("%si %s %s", arithNames[in.Op], in.Src, in.Dst)
}

func (in ArithF) String() string {
	return fmt.Sprintf("%sr %s %s", arithNames[in.Op], in.Src, in.Dst)
}

func (in CmpI) String() string     { return fmt.Sprintf("cmpi %s %s", in.Lhs, in.Rhs) }
func (in CmpF) String() string     { return fmt.Sprintf("cmpr %s %s", in.Lhs, in.Rhs) }
func (in Jmp) String() string      { return "jmp " + in.Target }
func (in CondJump) String() string { return jumpNames[in.Cmp] + " " + in.Target }

func (in Push) String() string {
	if in.Src == nil {
		return "push"
	}
	return "push " + in.Src.String()
}

func (in Pop) String() string {
	if in.Dst == nil {
		return "pop"
	}
	return "pop " + in.Dst.String()
}

func (in Jsr) String() string  { return "jsr " + in.Target }
func (Ret) String() string     { return "ret" }
func (in Link) String() string { return fmt.Sprintf("link %d", in.N) }
func (Unlink) String() string  { return "unlnk" }

func (in Sys) String() string {
	if in.Arg == nil {
		return "sys " + sysNames[in.Call]
	}
	return "sys " + sysNames[in.Call] + " " + in.Arg.String()
}

// Listing returns code with one instruction per line.
func Listing(code []Instruction) string {
	sb := strings.Builder{}
	for _, e1 := range code {
		sb.WriteString(e1.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
