package frontend

import (
	"fmt"
	"strconv"
	"strings"

	"microc/src/ir/symtab"
	"microc/src/ir/tac"

	"tlog.app/go/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// line holds the items of one non-empty listing line, without the terminating newline.
type line []item

// parser builds a three address code program from listing lines.
//
// Parsing runs in two passes. The first pass reads the program name, the global declarations and every function
// header, such that calls may refer to functions declared further down. The second pass reads the instructions.
type parser struct {
	prog   *tac.Program
	bld    *tac.Builder
	fn     *symtab.Function           // Function being parsed. <nil> for top level code.
	temps  map[uint64]symtab.DataType // Data types of the temporaries written so far in the current function.
	callee *symtab.Function           // Function called by the most recent JSR.
	marks  map[tac.Label]bool         // Labels defined so far in the program.
}

// ---------------------
// ----- Functions -----
// ---------------------

// parse returns the program described by lines.
func parse(lines []line) (*tac.Program, error) {
	if len(lines) == 0 {
		return nil, errors.New("empty program")
	}
	p := &parser{marks: make(map[tac.Label]bool)}
	if err := p.declarations(lines); err != nil {
		return nil, err
	}
	p.bld = tac.NewBuilder(p.prog.Ctx)
	if err := p.code(lines); err != nil {
		return nil, err
	}
	return p.prog, nil
}

// errorf returns an error positioned at item it.
func errorf(it item, format string, args ...interface{}) error {
	return errors.New("line %d:%d: %s", it.line, it.pos, fmt.Sprintf(format, args...))
}

// ---------------------------
// ----- Declaration pass -----
// ---------------------------

// declarations reads the program header, global declarations and function headers of lines.
func (p *parser) declarations(lines []line) error {
	first := lines[0]
	if first[0].typ != itemKeyword || first[0].val != "PROGRAM" {
		return errorf(first[0], "expected PROGRAM, got %s", first[0])
	}
	if len(first) != 2 || first[1].typ != itemWord {
		return errorf(first[0], "expected program name after PROGRAM")
	}
	p.prog = tac.NewProgram(first[1].val)

	for _, e1 := range lines[1:] {
		if e1[0].typ != itemKeyword {
			continue
		}
		var err error
		switch e1[0].val {
		case "PROGRAM":
			err = errorf(e1[0], "duplicate PROGRAM statement")
		case "INT", "FLOAT":
			err = p.variables(e1)
		case "STRING":
			err = p.str(e1)
		case "FUNCTION":
			err = p.header(e1)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// variables declares the comma separated global variables of an INT or FLOAT line.
func (p *parser) variables(l line) error {
	dt, _ := symtab.ParseDataType(l[0].val)
	if len(l) < 2 {
		return errorf(l[0], "expected variable name after %s", l[0].val)
	}
	for i1 := 1; i1 < len(l); i1++ {
		if i1%2 == 0 {
			if l[i1].typ != itemComma || i1 == len(l)-1 {
				return errorf(l[i1], "expected ',' between variable names, got %s", l[i1])
			}
			continue
		}
		if l[i1].typ != itemWord {
			return errorf(l[i1], "expected variable name, got %s", l[i1])
		}
		if _, err := p.prog.Symbols.AddGlobal(l[i1].val, dt); err != nil {
			return errorf(l[i1], "%s", err)
		}
	}
	return nil
}

// str declares the string constant of a STRING line.
func (p *parser) str(l line) error {
	if len(l) != 3 || l[1].typ != itemWord || l[2].typ != itemString {
		return errorf(l[0], "expected STRING <name> \"<value>\"")
	}
	if _, err := p.prog.Symbols.AddString(l[1].val, l[2].val); err != nil {
		return errorf(l[1], "%s", err)
	}
	return nil
}

// header declares the function of a FUNCTION line: FUNCTION <type> <name> [PARAMS <types>] [LOCALS <types>].
func (p *parser) header(l line) error {
	if len(l) < 3 || l[1].typ != itemKeyword || l[2].typ != itemWord {
		return errorf(l[0], "expected FUNCTION <type> <name>")
	}
	ret, err := symtab.ParseDataType(l[1].val)
	if err != nil || ret == symtab.String {
		return errorf(l[1], "invalid return type %s", l[1].val)
	}

	var params, locals []symtab.DataType
	var cur *[]symtab.DataType
	for _, e1 := range l[3:] {
		switch {
		case e1.typ == itemKeyword && e1.val == "PARAMS" && params == nil && locals == nil:
			params = []symtab.DataType{}
			cur = &params
		case e1.typ == itemKeyword && e1.val == "LOCALS" && locals == nil:
			locals = []symtab.DataType{}
			cur = &locals
		case e1.typ == itemKeyword && (e1.val == "INT" || e1.val == "FLOAT") && cur != nil:
			dt, _ := symtab.ParseDataType(e1.val)
			*cur = append(*cur, dt)
		default:
			return errorf(e1, "unexpected %s in function header", e1)
		}
	}

	if err := p.prog.Symbols.AddFunction(symtab.NewFunction(l[2].val, ret, params, locals)); err != nil {
		return errorf(l[2], "%s", err)
	}
	return nil
}

// --------------------
// ----- Code pass -----
// --------------------

// code reads the instructions of lines. Instructions before the first FUNCTION header form the top level code.
func (p *parser) code(lines []line) error {
	p.begin(nil)
	for _, e1 := range lines[1:] {
		if e1[0].typ == itemKeyword {
			switch e1[0].val {
			case "INT", "FLOAT", "STRING":
				continue
			case "FUNCTION":
				p.end()
				fn, _ := p.prog.Symbols.Function(e1[2].val)
				p.begin(fn)
				continue
			}
		}
		in, err := p.instruction(e1)
		if err != nil {
			return err
		}
		p.bld.Emit(in)
	}
	p.end()
	return nil
}

// begin starts function fn, or top level code if fn is <nil>.
func (p *parser) begin(fn *symtab.Function) {
	p.fn = fn
	p.callee = nil
	p.temps = make(map[uint64]symtab.DataType)
	p.bld.Begin(nil)
}

// end adds the function being parsed to the program. Empty top level code is dropped.
func (p *parser) end() {
	f := p.bld.End()
	if p.fn == nil && len(f.Code) == 0 {
		return
	}
	f.Symbol = p.fn
	p.prog.Functions = append(p.prog.Functions, f)
}

// instruction returns the instruction of line l.
func (p *parser) instruction(l line) (tac.Instruction, error) {
	m := l[0]
	if m.typ != itemKeyword {
		return nil, errorf(m, "expected instruction, got %s", m)
	}
	args := l[1:]

	if op, dt, ok := tac.ParseArithOp(m.val); ok {
		if err := arity(m, args, 3); err != nil {
			return nil, err
		}
		return p.binary(op, dt, args)
	}
	if cmp, ok := tac.ParseCmp(m.val); ok {
		if err := arity(m, args, 3); err != nil {
			return nil, err
		}
		return p.compare(cmp, args)
	}

	switch m.val {
	case "LABEL", "JUMP", "JSR", "READI", "READF", "WRITEI", "WRITEF", "WRITES":
		if err := arity(m, args, 1); err != nil {
			return nil, err
		}
	case "STOREI", "STOREF":
		if err := arity(m, args, 2); err != nil {
			return nil, err
		}
	case "LINK", "UNLINK", "RET":
		if err := arity(m, args, 0); err != nil {
			return nil, err
		}
	case "PUSH", "POP":
		if len(args) > 1 {
			return nil, errorf(m, "%s takes at most one operand, got %d", m.val, len(args))
		}
	}

	switch m.val {
	case "LABEL":
		if args[0].typ == itemWord && p.fn != nil && args[0].val == p.fn.Name {
			return tac.FunctionLabel{Fn: p.fn}, nil
		}
		lbl, err := p.label(args[0])
		if err != nil {
			return nil, err
		}
		if p.marks[lbl] {
			return nil, errorf(args[0], "label %s defined twice", lbl)
		}
		p.marks[lbl] = true
		return tac.Mark{Label: lbl}, nil
	case "JUMP":
		lbl, err := p.label(args[0])
		if err != nil {
			return nil, err
		}
		return tac.Jump{Target: lbl}, nil
	case "LINK":
		if p.fn == nil {
			return nil, errorf(m, "LINK outside function")
		}
		return tac.Link{Fn: p.fn}, nil
	case "UNLINK":
		return tac.Unlink{}, nil
	case "RET":
		return tac.Ret{}, nil
	case "JSR":
		fn, ok := p.prog.Symbols.Function(args[0].val)
		if args[0].typ != itemWord || !ok {
			return nil, errorf(args[0], "call to undeclared function %s", args[0].val)
		}
		p.callee = fn
		return tac.Jsr{Fn: fn}, nil
	case "PUSH":
		return p.push(args)
	case "POP":
		return p.pop(args)
	case "STOREI":
		src, err := p.operandI(args[0])
		if err != nil {
			return nil, err
		}
		dst, err := p.lvalueI(args[1])
		if err != nil {
			return nil, err
		}
		return tac.StoreI{Dst: dst, Src: src}, nil
	case "STOREF":
		src, err := p.operandF(args[0])
		if err != nil {
			return nil, err
		}
		dst, err := p.lvalueF(args[1])
		if err != nil {
			return nil, err
		}
		return tac.StoreF{Dst: dst, Src: src}, nil
	case "READI", "WRITEI":
		id, err := p.ident(args[0], symtab.Int)
		if err != nil {
			return nil, err
		}
		if m.val == "READI" {
			return tac.ReadI{Id: tac.IdentI{Sym: id}}, nil
		}
		return tac.WriteI{Id: tac.IdentI{Sym: id}}, nil
	case "READF", "WRITEF":
		id, err := p.ident(args[0], symtab.Float)
		if err != nil {
			return nil, err
		}
		if m.val == "READF" {
			return tac.ReadF{Id: tac.IdentF{Sym: id}}, nil
		}
		return tac.WriteF{Id: tac.IdentF{Sym: id}}, nil
	case "WRITES":
		id, err := p.ident(args[0], symtab.String)
		if err != nil {
			return nil, err
		}
		return tac.WriteS{Id: tac.IdentS{Sym: id}}, nil
	}
	return nil, errorf(m, "unexpected %s", m.val)
}

// arity returns an error if instruction m does not have exactly n operands.
func arity(m item, args []item, n int) error {
	if len(args) != n {
		return errorf(m, "%s takes %d operands, got %d", m.val, n, len(args))
	}
	return nil
}

// binary returns the arithmetic instruction <op><dt> lhs rhs result.
func (p *parser) binary(op tac.ArithOp, dt symtab.DataType, args []item) (tac.Instruction, error) {
	if args[2].typ != itemVar || !strings.HasPrefix(args[2].val, "$T") {
		return nil, errorf(args[2], "expected temporary as result, got %s", args[2])
	}
	if dt == symtab.Float {
		lhs, err := p.operandF(args[0])
		if err != nil {
			return nil, err
		}
		rhs, err := p.operandF(args[1])
		if err != nil {
			return nil, err
		}
		res, err := p.lvalueF(args[2])
		if err != nil {
			return nil, err
		}
		return tac.BinaryF{Op: op, Lhs: lhs, Rhs: rhs, Result: res.(tac.TempF)}, nil
	}
	lhs, err := p.operandI(args[0])
	if err != nil {
		return nil, err
	}
	rhs, err := p.operandI(args[1])
	if err != nil {
		return nil, err
	}
	res, err := p.lvalueI(args[2])
	if err != nil {
		return nil, err
	}
	return tac.BinaryI{Op: op, Lhs: lhs, Rhs: rhs, Result: res.(tac.TempI)}, nil
}

// compare returns the conditional branch <cmp> lhs rhs label. The comparison is on floating point values if either
// operand is a floating point value.
func (p *parser) compare(cmp tac.Cmp, args []item) (tac.Instruction, error) {
	lbl, err := p.label(args[2])
	if err != nil {
		return nil, err
	}
	if p.typeOf(args[0]) == symtab.Float || p.typeOf(args[1]) == symtab.Float {
		lhs, err := p.operandF(args[0])
		if err != nil {
			return nil, err
		}
		rhs, err := p.operandF(args[1])
		if err != nil {
			return nil, err
		}
		return tac.CompareF{Cmp: cmp, Lhs: lhs, Rhs: rhs, Target: lbl}, nil
	}
	lhs, err := p.operandI(args[0])
	if err != nil {
		return nil, err
	}
	rhs, err := p.operandI(args[1])
	if err != nil {
		return nil, err
	}
	return tac.CompareI{Cmp: cmp, Lhs: lhs, Rhs: rhs, Target: lbl}, nil
}

// push returns PUSH with an optional operand, typed by the operand.
func (p *parser) push(args []item) (tac.Instruction, error) {
	if len(args) == 0 {
		return tac.PushI{}, nil
	}
	if p.typeOf(args[0]) == symtab.Float {
		src, err := p.operandF(args[0])
		return tac.PushF{Src: src}, err
	}
	src, err := p.operandI(args[0])
	return tac.PushI{Src: src}, err
}

// pop returns POP with an optional destination. A temporary written by POP for the first time takes the return
// type of the most recently called function.
func (p *parser) pop(args []item) (tac.Instruction, error) {
	if len(args) == 0 {
		return tac.PopI{}, nil
	}
	dt := p.typeOf(args[0])
	if dt == symtab.Void && p.callee != nil && p.callee.Return == symtab.Float {
		dt = symtab.Float
	}
	if dt == symtab.Float {
		dst, err := p.lvalueF(args[0])
		return tac.PopF{Dst: dst}, err
	}
	dst, err := p.lvalueI(args[0])
	return tac.PopI{Dst: dst}, err
}

// -----------------------------
// ----- Operand functions -----
// -----------------------------

// label returns the label named labelN by it.
func (p *parser) label(it item) (tac.Label, error) {
	if it.typ != itemWord || !strings.HasPrefix(it.val, "label") {
		return 0, errorf(it, "expected label, got %s", it)
	}
	n, err := strconv.ParseUint(it.val[len("label"):], 10, 64)
	if err != nil || n == 0 {
		return 0, errorf(it, "malformed label %s", it.val)
	}
	p.prog.Ctx.ObserveLabel(tac.Label(n))
	return tac.Label(n), nil
}

// typeOf returns the data type of operand it if it is known, and symtab.Void otherwise. Integer literals and
// temporaries not yet written have no known type.
func (p *parser) typeOf(it item) symtab.DataType {
	switch it.typ {
	case itemFloat:
		return symtab.Float
	case itemVar:
		if n, ok := temp(it.val); ok {
			if dt, ok := p.temps[n]; ok {
				return dt
			}
			return symtab.Void
		}
		if s, err := p.slot(it); err == nil {
			return s.Type
		}
	case itemWord:
		if s, ok := p.prog.Symbols.Lookup(it.val); ok {
			return s.Type
		}
	}
	return symtab.Void
}

// temp returns the id of temporary name s.
func temp(s string) (uint64, bool) {
	if !strings.HasPrefix(s, "$T") {
		return 0, false
	}
	n, err := strconv.ParseUint(s[2:], 10, 64)
	return n, err == nil && n > 0
}

// slot returns the parameter, local or return slot named by it.
func (p *parser) slot(it item) (*symtab.Symbol, error) {
	if p.fn == nil {
		return nil, errorf(it, "frame slot %s outside function", it.val)
	}
	if it.val == "$R" {
		if p.fn.Ret == nil {
			return nil, errorf(it, "function %s has no return value", p.fn.Name)
		}
		return p.fn.Ret, nil
	}
	if len(it.val) < 3 {
		return nil, errorf(it, "malformed frame slot %s", it.val)
	}
	n, err := strconv.Atoi(it.val[2:])
	if err != nil {
		return nil, errorf(it, "malformed frame slot %s", it.val)
	}
	var s *symtab.Symbol
	var ok bool
	switch it.val[1] {
	case 'P':
		s, ok = p.fn.Param(n)
	case 'L':
		s, ok = p.fn.Local(n)
	default:
		return nil, errorf(it, "malformed frame slot %s", it.val)
	}
	if !ok {
		return nil, errorf(it, "function %s has no frame slot %s", p.fn.Name, it.val)
	}
	return s, nil
}

// ident returns the global or frame slot named by it, which must be of data type dt.
func (p *parser) ident(it item, dt symtab.DataType) (*symtab.Symbol, error) {
	var s *symtab.Symbol
	switch it.typ {
	case itemWord:
		var ok bool
		if s, ok = p.prog.Symbols.Lookup(it.val); !ok {
			return nil, errorf(it, "undeclared variable %s", it.val)
		}
	case itemVar:
		if _, ok := temp(it.val); ok {
			return nil, errorf(it, "expected variable, got temporary %s", it.val)
		}
		var err error
		if s, err = p.slot(it); err != nil {
			return nil, err
		}
	default:
		return nil, errorf(it, "expected variable, got %s", it)
	}
	if s.Type != dt {
		return nil, errorf(it, "%s is %v, expected %v", it.val, s.Type, dt)
	}
	return s, nil
}

// tempOf returns the temporary id of it for a value of data type dt. Writes record the type of the temporary.
func (p *parser) tempOf(it item, dt symtab.DataType, write bool) (uint64, bool, error) {
	n, ok := temp(it.val)
	if !ok {
		return 0, false, nil
	}
	if old, ok := p.temps[n]; ok && old != dt {
		return 0, false, errorf(it, "temporary %s is %v, expected %v", it.val, old, dt)
	}
	if write {
		p.temps[n] = dt
	}
	p.bld.ObserveTemp(n)
	return n, true, nil
}

// operandI returns it as an integer operand.
func (p *parser) operandI(it item) (tac.OperandI, error) {
	switch it.typ {
	case itemInteger:
		n, err := strconv.ParseInt(it.val, 10, 32)
		if err != nil {
			return nil, errorf(it, "integer %s out of range", it.val)
		}
		return tac.IntLiteral(n), nil
	case itemFloat:
		return nil, errorf(it, "expected integer, got %s", it.val)
	}
	lv, err := p.lvalue(it, symtab.Int, false)
	if err != nil {
		return nil, err
	}
	return lv.(tac.OperandI), nil
}

// operandF returns it as a floating point operand. Integer literals are accepted.
func (p *parser) operandF(it item) (tac.OperandF, error) {
	switch it.typ {
	case itemInteger, itemFloat:
		f, err := strconv.ParseFloat(it.val, 64)
		if err != nil {
			return nil, errorf(it, "malformed number %s", it.val)
		}
		return tac.FloatLiteral(f), nil
	}
	lv, err := p.lvalue(it, symtab.Float, false)
	if err != nil {
		return nil, err
	}
	return lv.(tac.OperandF), nil
}

// lvalueI returns the integer temporary or variable written by it.
func (p *parser) lvalueI(it item) (tac.LValueI, error) {
	lv, err := p.lvalue(it, symtab.Int, true)
	if err != nil {
		return nil, err
	}
	return lv.(tac.LValueI), nil
}

// lvalueF returns the floating point temporary or variable written by it.
func (p *parser) lvalueF(it item) (tac.LValueF, error) {
	lv, err := p.lvalue(it, symtab.Float, true)
	if err != nil {
		return nil, err
	}
	return lv.(tac.LValueF), nil
}

// lvalue returns the temporary or variable of data type dt named by it.
func (p *parser) lvalue(it item, dt symtab.DataType, write bool) (tac.LValue, error) {
	if it.typ == itemVar {
		n, ok, err := p.tempOf(it, dt, write)
		if err != nil {
			return nil, err
		}
		if ok {
			if dt == symtab.Float {
				return tac.TempF(n), nil
			}
			return tac.TempI(n), nil
		}
	}
	s, err := p.ident(it, dt)
	if err != nil {
		return nil, err
	}
	return tac.Ident(s)
}
