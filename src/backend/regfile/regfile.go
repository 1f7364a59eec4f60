// Package regfile provides the register file of the Tiny target machine.
package regfile

import (
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Register is a general purpose Tiny register. Registers hold either integers or floating point values.
type Register int

// File hands out registers in increasing order. Registers are never freed, so a File must be discarded at the end
// of every function.
type File struct {
	next  int // Id of the next free register.
	limit int // Number of registers available.
}

// ---------------------
// ----- Constants -----
// ---------------------

// MaxRegisters is the number of registers of the Tiny machine.
const MaxRegisters = 200

// ErrExhausted is returned when every register of a File is in use.
var ErrExhausted = errors.New("register file exhausted")

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the assembler name r<n> of the register.
func (r Register) String() string {
	return fmt.Sprintf("r%d", int(r))
}

// Id returns the register number.
func (r Register) Id() int {
	return int(r)
}

// New returns a register file with MaxRegisters free registers.
func New() *File {
	return &File{limit: MaxRegisters}
}

// Next allocates and returns the lowest numbered free register.
func (f *File) Next() (Register, error) {
	if f.next >= f.limit {
		tlog.V("regs").Printw("register file exhausted", "limit", f.limit, "from", loc.Caller(1))
		return 0, errors.Wrap(ErrExhausted, "allocate register %d of %d", f.next+1, f.limit)
	}
	r := Register(f.next)
	f.next++
	return r, nil
}

// Used returns the number of allocated registers.
func (f *File) Used() int {
	return f.next
}

// Limit returns the number of registers in the file.
func (f *File) Limit() int {
	return f.limit
}
