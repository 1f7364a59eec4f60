// Package cfg partitions three address code into basic blocks and connects the blocks into a control flow graph.
package cfg

import (
	"fmt"
	"strings"

	"microc/src/ir/tac"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"tlog.app/go/errors"
	"tlog.app/go/loc"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// BBLabel identifies a basic block. Labels are issued in order of block creation, starting at 0.
type BBLabel int

// BasicBlock is a maximal straight line sequence of instructions. Control enters at the first instruction and
// leaves after the last one. A basic block is never empty.
type BasicBlock struct {
	label BBLabel
	code  []tac.Instruction
}

// BlockFunction is a function partitioned into basic blocks.
type BlockFunction struct {
	Blocks  *orderedmap.OrderedMap[BBLabel, *BasicBlock] // Blocks in program order.
	Targets map[tac.Label]BBLabel                         // The block each three address code label starts.
}

// ---------------------
// ----- Functions -----
// ---------------------

// String returns the block name BB<n>.
func (l BBLabel) String() string {
	return fmt.Sprintf("BB%d", int(l))
}

// GoString returns the block label as it appears in graph dumps.
func (l BBLabel) GoString() string {
	return fmt.Sprintf("BBLabel(%d)", int(l))
}

// newBlock creates basic block l from code. It panics if code is empty.
func newBlock(l BBLabel, code []tac.Instruction) *BasicBlock {
	if len(code) == 0 {
		panic(errors.New("empty basic block %v (%v)", l, loc.Caller(1)))
	}
	return &BasicBlock{label: l, code: code}
}

// Label returns the label of block bb.
func (bb *BasicBlock) Label() BBLabel {
	return bb.label
}

// Instructions returns the instructions of bb in program order.
func (bb *BasicBlock) Instructions() []tac.Instruction {
	return bb.code
}

// First returns the entry instruction of bb.
func (bb *BasicBlock) First() tac.Instruction {
	return bb.code[0]
}

// Last returns the exit instruction of bb.
func (bb *BasicBlock) Last() tac.Instruction {
	return bb.code[len(bb.code)-1]
}

// Len returns the number of instructions in bb.
func (bb *BasicBlock) Len() int {
	return len(bb.code)
}

// String returns the block label followed by its instructions, one per line.
func (bb *BasicBlock) String() string {
	sb := strings.Builder{}
	sb.WriteString(bb.label.String() + ":\n")
	for _, e1 := range bb.code {
		sb.WriteString(e1.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// BuildBlocks partitions code into basic blocks.
//
// A new block starts at the first instruction, at every label and after every branch, jump or return. Every
// label is mapped to the first block it starts. Labels starting more than one block are rejected by New.
// Concatenating the instructions of all blocks in order yields code.
func BuildBlocks(code []tac.Instruction) *BlockFunction {
	bf := &BlockFunction{
		Blocks:  orderedmap.New[BBLabel, *BasicBlock](),
		Targets: make(map[tac.Label]BBLabel),
	}

	start := 0
	closeBlock := func(end int) {
		if end > start {
			l := BBLabel(bf.Blocks.Len())
			bf.Blocks.Set(l, newBlock(l, code[start:end:end]))
		}
		start = end
	}

	for i1, e1 := range code {
		if m, ok := e1.(tac.Mark); ok {
			// Labels always lead a block.
			closeBlock(i1)
			if _, ok := bf.Targets[m.Label]; !ok {
				bf.Targets[m.Label] = BBLabel(bf.Blocks.Len())
			}
		}
		if tac.EndsBlock(e1) {
			closeBlock(i1 + 1)
		}
	}
	closeBlock(len(code))
	return bf
}

// Len returns the number of blocks.
func (bf *BlockFunction) Len() int {
	return bf.Blocks.Len()
}

// Code returns the instructions of all blocks concatenated in order.
func (bf *BlockFunction) Code() []tac.Instruction {
	var res []tac.Instruction
	for pair := bf.Blocks.Oldest(); pair != nil; pair = pair.Next() {
		res = append(res, pair.Value.code...)
	}
	return res
}
