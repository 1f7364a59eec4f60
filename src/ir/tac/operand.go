package tac

import (
	"fmt"
	"strconv"
	"strings"

	"microc/src/ir/symtab"

	"tlog.app/go/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Operand is a value consumed by a three address code instruction.
type Operand interface {
	fmt.Stringer
	DataType() symtab.DataType // Data type of the operand value.
	operand()
}

// OperandI is an integer operand: TempI, IdentI or IntLiteral.
type OperandI interface {
	Operand
	operandI()
}

// OperandF is a floating point operand: TempF, IdentF or FloatLiteral.
type OperandF interface {
	Operand
	operandF()
}

// LValue is an operand that names storage: a temporary or an identifier.
type LValue interface {
	Operand
	lvalue()
}

// LValueI is an integer temporary or identifier.
type LValueI interface {
	OperandI
	lvalue()
}

// LValueF is a floating point temporary or identifier.
type LValueF interface {
	OperandF
	lvalue()
}

// TempI is a compiler generated integer temporary.
type TempI uint64

// TempF is a compiler generated floating point temporary.
type TempF uint64

// IdentI refers to an integer variable.
type IdentI struct {
	Sym *symtab.Symbol
}

// IdentF refers to a floating point variable.
type IdentF struct {
	Sym *symtab.Symbol
}

// IdentS refers to a string constant.
type IdentS struct {
	Sym *symtab.Symbol
}

// IntLiteral is a 32-bit integer constant.
type IntLiteral int32

// FloatLiteral is a floating point constant.
type FloatLiteral float64

// Label is a control flow target.
type Label uint64

// ---------------------
// ----- Functions -----
// ---------------------

func (TempI) operand()  {}
func (TempI) operandI() {}
func (TempI) lvalue()   {}

// DataType returns symtab.Int.
func (TempI) DataType() symtab.DataType {
	return symtab.Int
}

// String returns the temporary name $T<n>.
func (t TempI) String() string {
	return fmt.Sprintf("$T%d", uint64(t))
}

func (TempF) operand()  {}
func (TempF) operandF() {}
func (TempF) lvalue()   {}

// DataType returns symtab.Float.
func (TempF) DataType() symtab.DataType {
	return symtab.Float
}

// String returns the temporary name $T<n>. Integer and floating point temporaries share one counter.
func (t TempF) String() string {
	return fmt.Sprintf("$T%d", uint64(t))
}

func (IdentI) operand()  {}
func (IdentI) operandI() {}
func (IdentI) lvalue()   {}

// DataType returns symtab.Int.
func (IdentI) DataType() symtab.DataType {
	return symtab.Int
}

// String returns the symbol name.
func (id IdentI) String() string {
	return id.Sym.String()
}

func (IdentF) operand()  {}
func (IdentF) operandF() {}
func (IdentF) lvalue()   {}

// DataType returns symtab.Float.
func (IdentF) DataType() symtab.DataType {
	return symtab.Float
}

// String returns the symbol name.
func (id IdentF) String() string {
	return id.Sym.String()
}

// DataType returns symtab.String.
func (IdentS) DataType() symtab.DataType {
	return symtab.String
}

// String returns the symbol name.
func (id IdentS) String() string {
	return id.Sym.String()
}

func (IntLiteral) operand()  {}
func (IntLiteral) operandI() {}

// DataType returns symtab.Int.
func (IntLiteral) DataType() symtab.DataType {
	return symtab.Int
}

// String returns the literal in decimal notation.
func (l IntLiteral) String() string {
	return strconv.Itoa(int(l))
}

func (FloatLiteral) operand()  {}
func (FloatLiteral) operandF() {}

// DataType returns symtab.Float.
func (FloatLiteral) DataType() symtab.DataType {
	return symtab.Float
}

// String returns the literal with at least one decimal, such that it is never mistaken for an integer.
func (l FloatLiteral) String() string {
	s := strconv.FormatFloat(float64(l), 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

// String returns the label name.
func (l Label) String() string {
	return fmt.Sprintf("label%d", uint64(l))
}

// Ident returns the identifier operand of an integer or floating point symbol s.
func Ident(s *symtab.Symbol) (LValue, error) {
	switch s.Type {
	case symtab.Int:
		return IdentI{Sym: s}, nil
	case symtab.Float:
		return IdentF{Sym: s}, nil
	default:
		return nil, errors.New("symbol %s of type %v is not a variable", s.Name, s.Type)
	}
}

// IsMemRef returns true if operand op refers to a variable in memory rather than a temporary or constant.
func IsMemRef(op Operand) bool {
	switch op.(type) {
	case IdentI, IdentF:
		return true
	}
	return false
}

// Symbol returns the symbol referenced by operand op, if any.
func Symbol(op Operand) (*symtab.Symbol, bool) {
	switch v := op.(type) {
	case IdentI:
		return v.Sym, true
	case IdentF:
		return v.Sym, true
	}
	return nil, false
}
