// Package symtab provides the symbols referenced by three address code: global variables, string constants,
// function parameters, function locals and function return slots.
package symtab

import (
	"fmt"
	"strings"
	"sync"

	"tlog.app/go/errors"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// DataType differentiates the value types of symbols.
type DataType int

// Scope differentiates where a symbol lives at run time.
type Scope int

// Symbol is a named storage location.
type Symbol struct {
	Name   string   // Source name of symbol. Generated for parameters, locals and return slots.
	Type   DataType // Data type of the stored value.
	Scope  Scope    // Storage class of symbol.
	Index  int      // 1-indexed sequence number of parameters and locals.
	Offset int      // Frame pointer relative offset of non-global symbols.
	Value  string   // Value of string constants.
}

// Function is a function symbol with its parameters, locals and return slot.
type Function struct {
	Name   string    // Function name. Also used as its entry label.
	Return DataType  // Return type. Void functions use Void.
	Params []*Symbol // Parameters in declaration order.
	Locals []*Symbol // Local variables in declaration order.
	Ret    *Symbol   // Return value slot. <nil> for void functions.
}

// Table holds global symbols and functions of a program.
type Table struct {
	globals   []*Symbol            // Globals in order of declaration.
	functions []*Function          // Functions in order of declaration.
	names     map[string]*Symbol   // Globals by name.
	funcs     map[string]*Function // Functions by name.
	mx        sync.RWMutex         // Guards concurrent access from worker threads.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	Int DataType = iota
	Float
	String
	Void
)

const (
	Global Scope = iota
	Param
	Local
	Return
)

var dtNames = [...]string{"INT", "FLOAT", "STRING", "VOID"}

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the listing keyword of data type dt.
func (dt DataType) String() string {
	if int(dt) < len(dtNames) {
		return dtNames[dt]
	}
	return fmt.Sprintf("DataType(%d)", int(dt))
}

// ParseDataType returns the data type named by s, which is matched case insensitively.
func ParseDataType(s string) (DataType, error) {
	for i1, e1 := range dtNames {
		if strings.EqualFold(s, e1) {
			return DataType(i1), nil
		}
	}
	return 0, errors.New("unknown data type %q", s)
}

// IsGlobal returns true if symbol s is statically allocated.
func (s *Symbol) IsGlobal() bool {
	return s.Scope == Global
}

// String returns the name used for symbol s in three address code listings.
func (s *Symbol) String() string {
	switch s.Scope {
	case Param:
		return fmt.Sprintf("$P%d", s.Index)
	case Local:
		return fmt.Sprintf("$L%d", s.Index)
	case Return:
		return "$R"
	default:
		return s.Name
	}
}

// NewFunction creates a function symbol and lays out its stack frame.
//
// The caller pushes the return slot and then every argument from left to right before jumping to the function.
// The jump pushes the return address and the function prologue pushes the old frame pointer, such that the
// parameter i of n is found at $(n-i+2), the return slot at $(n+2) and local i at $-i.
func NewFunction(name string, ret DataType, params, locals []DataType) *Function {
	fn := &Function{
		Name:   name,
		Return: ret,
		Params: make([]*Symbol, len(params)),
		Locals: make([]*Symbol, len(locals)),
	}
	n := len(params)
	for i1, e1 := range params {
		fn.Params[i1] = &Symbol{
			Name:   fmt.Sprintf("%s.p%d", name, i1+1),
			Type:   e1,
			Scope:  Param,
			Index:  i1 + 1,
			Offset: n - i1 + 1,
		}
	}
	for i1, e1 := range locals {
		fn.Locals[i1] = &Symbol{
			Name:   fmt.Sprintf("%s.l%d", name, i1+1),
			Type:   e1,
			Scope:  Local,
			Index:  i1 + 1,
			Offset: -(i1 + 1),
		}
	}
	if ret != Void {
		fn.Ret = &Symbol{
			Name:   name + ".ret",
			Type:   ret,
			Scope:  Return,
			Offset: n + 2,
		}
	}
	return fn
}

// Param returns the 1-indexed parameter i of fn.
func (fn *Function) Param(i int) (*Symbol, bool) {
	if i < 1 || i > len(fn.Params) {
		return nil, false
	}
	return fn.Params[i-1], true
}

// Local returns the 1-indexed local variable i of fn.
func (fn *Function) Local(i int) (*Symbol, bool) {
	if i < 1 || i > len(fn.Locals) {
		return nil, false
	}
	return fn.Locals[i-1], true
}

// String returns the function name.
func (fn *Function) String() string {
	return fn.Name
}

// New returns an empty symbol table.
func New() *Table {
	return &Table{
		names: make(map[string]*Symbol),
		funcs: make(map[string]*Function),
	}
}

// AddGlobal declares a global int or float variable.
func (t *Table) AddGlobal(name string, typ DataType) (*Symbol, error) {
	if typ != Int && typ != Float {
		return nil, errors.New("global %s: expected INT or FLOAT, got %v", name, typ)
	}
	return t.add(&Symbol{Name: name, Type: typ, Scope: Global})
}

// AddString declares a global string constant with value v.
func (t *Table) AddString(name, v string) (*Symbol, error) {
	return t.add(&Symbol{Name: name, Type: String, Scope: Global, Value: v})
}

// add registers global s with the table.
func (t *Table) add(s *Symbol) (*Symbol, error) {
	t.mx.Lock()
	defer t.mx.Unlock()
	if _, ok := t.names[s.Name]; ok {
		return nil, errors.New("duplicate declaration of global %s", s.Name)
	}
	if _, ok := t.funcs[s.Name]; ok {
		return nil, errors.New("global %s already declared as function", s.Name)
	}
	t.names[s.Name] = s
	t.globals = append(t.globals, s)
	return s, nil
}

// AddFunction registers function fn with the table.
func (t *Table) AddFunction(fn *Function) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	if _, ok := t.funcs[fn.Name]; ok {
		return errors.New("duplicate declaration of function %s", fn.Name)
	}
	if _, ok := t.names[fn.Name]; ok {
		return errors.New("function %s already declared as global", fn.Name)
	}
	t.funcs[fn.Name] = fn
	t.functions = append(t.functions, fn)
	return nil
}

// Lookup returns the global symbol with the given name.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	t.mx.RLock()
	defer t.mx.RUnlock()
	s, ok := t.names[name]
	return s, ok
}

// Function returns the function with the given name.
func (t *Table) Function(name string) (*Function, bool) {
	t.mx.RLock()
	defer t.mx.RUnlock()
	fn, ok := t.funcs[name]
	return fn, ok
}

// Globals returns every global symbol in order of declaration, string constants included.
func (t *Table) Globals() []*Symbol {
	t.mx.RLock()
	defer t.mx.RUnlock()
	res := make([]*Symbol, len(t.globals))
	copy(res, t.globals)
	return res
}

// Functions returns every function in order of declaration.
func (t *Table) Functions() []*Function {
	t.mx.RLock()
	defer t.mx.RUnlock()
	res := make([]*Function, len(t.functions))
	copy(res, t.functions)
	return res
}
