package tac

import (
	"fmt"

	"microc/src/ir/symtab"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Instruction is a single three address code instruction. The set of implementations is closed.
type Instruction interface {
	fmt.Stringer
	instruction()
}

// ArithOp is the operator of a binary arithmetic instruction.
type ArithOp int

// Cmp is the relation tested by a conditional branch.
type Cmp int

// BinaryI computes Result := Lhs Op Rhs on integers.
type BinaryI struct {
	Op       ArithOp
	Lhs, Rhs OperandI
	Result   TempI
}

// BinaryF computes Result := Lhs Op Rhs on floating point values.
type BinaryF struct {
	Op       ArithOp
	Lhs, Rhs OperandF
	Result   TempF
}

// StoreI copies Src into Dst.
type StoreI struct {
	Dst LValueI
	Src OperandI
}

// StoreF copies Src into Dst.
type StoreF struct {
	Dst LValueF
	Src OperandF
}

// ReadI reads an integer from standard input into Id.
type ReadI struct {
	Id IdentI
}

// ReadF reads a floating point value from standard input into Id.
type ReadF struct {
	Id IdentF
}

// WriteI writes Id to standard output.
type WriteI struct {
	Id IdentI
}

// WriteF writes Id to standard output.
type WriteF struct {
	Id IdentF
}

// WriteS writes the string constant Id to standard output.
type WriteS struct {
	Id IdentS
}

// CompareI jumps to Target if Lhs Cmp Rhs holds for integers, and falls through otherwise.
type CompareI struct {
	Cmp      Cmp
	Lhs, Rhs OperandI
	Target   Label
}

// CompareF jumps to Target if Lhs Cmp Rhs holds for floating point values, and falls through otherwise.
type CompareF struct {
	Cmp      Cmp
	Lhs, Rhs OperandF
	Target   Label
}

// Mark places Label in the instruction stream.
type Mark struct {
	Label Label
}

// FunctionLabel marks the entry point of function Fn.
type FunctionLabel struct {
	Fn *symtab.Function
}

// Jump transfers control to Target unconditionally.
type Jump struct {
	Target Label
}

// PushI pushes Src on the stack. A <nil> Src reserves an uninitialised slot.
type PushI struct {
	Src OperandI
}

// PushF pushes Src on the stack. A <nil> Src reserves an uninitialised slot.
type PushF struct {
	Src OperandF
}

// PopI pops the top of the stack into Dst. A <nil> Dst discards the value.
type PopI struct {
	Dst LValueI
}

// PopF pops the top of the stack into Dst. A <nil> Dst discards the value.
type PopF struct {
	Dst LValueF
}

// Jsr calls function Fn.
type Jsr struct {
	Fn *symtab.Function
}

// Ret returns from the current function.
type Ret struct{}

// Link sets up the stack frame of Fn.
type Link struct {
	Fn *symtab.Function
}

// Unlink tears down the current stack frame.
type Unlink struct{}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
)

const (
	Gt Cmp = iota
	Lt
	Gte
	Lte
	Ne
	Eq
)

var arithNames = [...]string{"ADD", "SUB", "MULT", "DIV"}
var cmpNames = [...]string{"GT", "LT", "GE", "LE", "NE", "EQ"}

// ---------------------
// ----- Functions -----
// ---------------------

func (BinaryI) instruction()       {}
func (BinaryF) instruction()       {}
func (StoreI) instruction()        {}
func (StoreF) instruction()        {}
func (ReadI) instruction()         {}
func (ReadF) instruction()         {}
func (WriteI) instruction()        {}
func (WriteF) instruction()        {}
func (WriteS) instruction()        {}
func (CompareI) instruction()      {}
func (CompareF) instruction()      {}
func (Mark) instruction()          {}
func (FunctionLabel) instruction() {}
func (Jump) instruction()          {}
func (PushI) instruction()         {}
func (PushF) instruction()         {}
func (PopI) instruction()          {}
func (PopF) instruction()          {}
func (Jsr) instruction()           {}
func (Ret) instruction()           {}
func (Link) instruction()          {}
func (Unlink) instruction()        {}

// String returns the operator mnemonic without type suffix.
func (op ArithOp) String() string {
	if int(op) < len(arithNames) {
		return arithNames[op]
	}
	return fmt.Sprintf("ArithOp(%d)", int(op))
}

// ParseArithOp returns the operator and data type of a typed arithmetic mnemonic such as ADDI or MULTF.
func ParseArithOp(s string) (ArithOp, symtab.DataType, bool) {
	if len(s) < 2 {
		return 0, 0, false
	}
	var dt symtab.DataType
	switch s[len(s)-1] {
	case 'I':
		dt = symtab.Int
	case 'F':
		dt = symtab.Float
	default:
		return 0, 0, false
	}
	for i1, e1 := range arithNames {
		if e1 == s[:len(s)-1] {
			return ArithOp(i1), dt, true
		}
	}
	return 0, 0, false
}

// String returns the relation mnemonic.
func (c Cmp) String() string {
	if int(c) < len(cmpNames) {
		return cmpNames[c]
	}
	return fmt.Sprintf("Cmp(%d)", int(c))
}

// ParseCmp returns the relation named by mnemonic s.
func ParseCmp(s string) (Cmp, bool) {
	for i1, e1 := range cmpNames {
		if e1 == s {
			return Cmp(i1), true
		}
	}
	return 0, false
}

func (in BinaryI) String() string {
	return fmt.Sprintf("%sI %s %s %s", in.Op, in.Lhs, in.Rhs, in.Result)
}

func (in BinaryF) String() string {
	return fmt.Sprintf("%sF %s %s %s", in.Op, in.Lhs, in.Rhs, in.Result)
}

func (in StoreI) String() string {
	return fmt.Sprintf("STOREI %s %s", in.Src, in.Dst)
}

func (in StoreF) String() string {
	return fmt.Sprintf("STOREF %s %s", in.Src, in.Dst)
}

func (in ReadI) String() string  { return "READI " + in.Id.String() }
func (in ReadF) String() string  { return "READF " + in.Id.String() }
func (in WriteI) String() string { return "WRITEI " + in.Id.String() }
func (in WriteF) String() string { return "WRITEF " + in.Id.String() }
func (in WriteS) String() string { return "WRITES " + in.Id.String() }

func (in CompareI) String() string {
	return fmt.Sprintf("%s %s %s %s", in.Cmp, in.Lhs, in.Rhs, in.Target)
}

func (in CompareF) String() string {
	return fmt.Sprintf("%s %s %s %s", in.Cmp, in.Lhs, in.Rhs, in.Target)
}

func (in Mark) String() string          { return "LABEL " + in.Label.String() }
func (in FunctionLabel) String() string { return "LABEL " + in.Fn.Name }
func (in Jump) String() string          { return "JUMP " + in.Target.String() }

func (in PushI) String() string {
	if in.Src == nil {
		return "PUSH"
	}
	return "PUSH " + in.Src.String()
}

func (in PushF) String() string {
	if in.Src == nil {
		return "PUSH"
	}
	return "PUSH " + in.Src.String()
}

func (in PopI) String() string {
	if in.Dst == nil {
		return "POP"
	}
	return "POP " + in.Dst.String()
}

func (in PopF) String() string {
	if in.Dst == nil {
		return "POP"
	}
	return "POP " + in.Dst.String()
}

func (in Jsr) String() string { return "JSR " + in.Fn.Name }
func (Ret) String() string    { return "RET" }
func (Link) String() string   { return "LINK" }
func (Unlink) String() string { return "UNLINK" }

// AddI returns the instruction res := lhs + rhs.
func AddI(lhs, rhs OperandI, res TempI) BinaryI { return BinaryI{Op: Add, Lhs: lhs, Rhs: rhs, Result: res} }

// SubI returns the instruction res := lhs - rhs.
func SubI(lhs, rhs OperandI, res TempI) BinaryI { return BinaryI{Op: Sub, Lhs: lhs, Rhs: rhs, Result: res} }

// MulI returns the instruction res := lhs * rhs.
func MulI(lhs, rhs OperandI, res TempI) BinaryI { return BinaryI{Op: Mul, Lhs: lhs, Rhs: rhs, Result: res} }

// DivI returns the instruction res := lhs / rhs.
func DivI(lhs, rhs OperandI, res TempI) BinaryI { return BinaryI{Op: Div, Lhs: lhs, Rhs: rhs, Result: res} }

func AddF(lhs, rhs OperandF, res TempF) BinaryF { return BinaryF{Op: Add, Lhs: lhs, Rhs: rhs, Result: res} }
func SubF(lhs, rhs OperandF, res TempF) BinaryF { return BinaryF{Op: Sub, Lhs: lhs, Rhs: rhs, Result: res} }
func MulF(lhs, rhs OperandF, res TempF) BinaryF { return BinaryF{Op: Mul, Lhs: lhs, Rhs: rhs, Result: res} }
func DivF(lhs, rhs OperandF, res TempF) BinaryF { return BinaryF{Op: Div, Lhs: lhs, Rhs: rhs, Result: res} }

// GtI returns a branch to l taken if lhs > rhs.
func GtI(lhs, rhs OperandI, l Label) CompareI { return CompareI{Cmp: Gt, Lhs: lhs, Rhs: rhs, Target: l} }
func LtI(lhs, rhs OperandI, l Label) CompareI { return CompareI{Cmp: Lt, Lhs: lhs, Rhs: rhs, Target: l} }
func GteI(lhs, rhs OperandI, l Label) CompareI {
	return CompareI{Cmp: Gte, Lhs: lhs, Rhs: rhs, Target: l}
}
func LteI(lhs, rhs OperandI, l Label) CompareI {
	return CompareI{Cmp: Lte, Lhs: lhs, Rhs: rhs, Target: l}
}
func NeI(lhs, rhs OperandI, l Label) CompareI { return CompareI{Cmp: Ne, Lhs: lhs, Rhs: rhs, Target: l} }
func EqI(lhs, rhs OperandI, l Label) CompareI { return CompareI{Cmp: Eq, Lhs: lhs, Rhs: rhs, Target: l} }

// GtF returns a branch to l taken if lhs > rhs.
func GtF(lhs, rhs OperandF, l Label) CompareF { return CompareF{Cmp: Gt, Lhs: lhs, Rhs: rhs, Target: l} }
func LtF(lhs, rhs OperandF, l Label) CompareF { return CompareF{Cmp: Lt, Lhs: lhs, Rhs: rhs, Target: l} }
func GteF(lhs, rhs OperandF, l Label) CompareF {
	return CompareF{Cmp: Gte, Lhs: lhs, Rhs: rhs, Target: l}
}
func LteF(lhs, rhs OperandF, l Label) CompareF {
	return CompareF{Cmp: Lte, Lhs: lhs, Rhs: rhs, Target: l}
}
func NeF(lhs, rhs OperandF, l Label) CompareF { return CompareF{Cmp: Ne, Lhs: lhs, Rhs: rhs, Target: l} }
func EqF(lhs, rhs OperandF, l Label) CompareF { return CompareF{Cmp: Eq, Lhs: lhs, Rhs: rhs, Target: l} }

// JumpTarget returns the label that instruction in may transfer control to.
func JumpTarget(in Instruction) (Label, bool) {
	switch v := in.(type) {
	case CompareI:
		return v.Target, true
	case CompareF:
		return v.Target, true
	case Jump:
		return v.Target, true
	}
	return 0, false
}

// IsBranchOrJump returns true if in is a conditional branch or an unconditional jump.
func IsBranchOrJump(in Instruction) bool {
	_, ok := JumpTarget(in)
	return ok
}

// IsUnconditionalJump returns true if in always transfers control to its target.
func IsUnconditionalJump(in Instruction) bool {
	_, ok := in.(Jump)
	return ok
}

// IsReturn returns true if in returns from the current function.
func IsReturn(in Instruction) bool {
	_, ok := in.(Ret)
	return ok
}

// EndsBlock returns true if no instruction may follow in within the same basic block.
func EndsBlock(in Instruction) bool {
	return IsBranchOrJump(in) || IsReturn(in)
}
