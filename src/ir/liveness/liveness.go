// Package liveness computes the variables live before and after every three address code instruction of a control
// flow graph.
//
// Every instruction is decorated with its GEN set (variables read) and KILL set (variables written). The IN and OUT
// sets are then computed by backward passes over the graph until a pass changes no IN set:
//
//	OUT = union of IN over all successors
//	IN  = (OUT - KILL) + GEN
//
// The successor of an instruction is the next instruction of its block. The successors of the last instruction of
// a block are the first instructions of the successor blocks in the graph.
package liveness

import (
	"microc/src/ir/cfg"
	"microc/src/ir/symtab"
	"microc/src/ir/tac"

	mapset "github.com/deckarep/golang-set/v2"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"tlog.app/go/tlog"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Set is a set of temporaries and variables.
type Set = mapset.Set[tac.LValue]

// GlobalEnumerator lists the global symbols of a program.
type GlobalEnumerator interface {
	Globals() []*symtab.Symbol
}

// Instruction is a three address code instruction decorated with liveness sets.
type Instruction struct {
	Code tac.Instruction // The decorated instruction.
	Gen  Set             // Variables read by Code.
	Kill Set             // Variables written by Code.
	In   Set             // Variables live before Code.
	Out  Set             // Variables live after Code.
	exit Set             // Variables live after Code regardless of successors. <nil> unless Code returns.
}

// Block is a basic block of decorated instructions.
type Block struct {
	Label cfg.BBLabel
	Code  []*Instruction
}

// Graph is a control flow graph of decorated instructions.
type Graph struct {
	cfg    *cfg.Graph                                  // Graph providing the edges.
	blocks *orderedmap.OrderedMap[cfg.BBLabel, *Block] // Decorated blocks in program order.
}

// ---------------------
// ----- Functions -----
// ---------------------

// newSet returns an empty set.
func newSet(v ...tac.LValue) Set {
	return mapset.NewThreadUnsafeSet[tac.LValue](v...)
}

// globalSet returns every integer and floating point global of ge. String constants are never written, so they
// are never tracked.
func globalSet(ge GlobalEnumerator) Set {
	res := newSet()
	if ge == nil {
		return res
	}
	for _, e1 := range ge.Globals() {
		switch e1.Type {
		case symtab.Int:
			res.Add(tac.IdentI{Sym: e1})
		case symtab.Float:
			res.Add(tac.IdentF{Sym: e1})
		}
	}
	return res
}

// addOperands adds every operand that names storage to s. Literals and <nil> operands are skipped.
func addOperands(s Set, ops ...tac.Operand) {
	for _, e1 := range ops {
		if lv, ok := e1.(tac.LValue); ok {
			s.Add(lv)
		}
	}
}

// decorate computes the GEN and KILL sets of a single instruction. The IN and OUT sets are left empty.
func decorate(in tac.Instruction, globals Set) *Instruction {
	res := &Instruction{
		Code: in,
		Gen:  newSet(),
		Kill: newSet(),
		In:   newSet(),
		Out:  newSet(),
	}
	switch v := in.(type) {
	case tac.BinaryI:
		addOperands(res.Gen, v.Lhs, v.Rhs)
		res.Kill.Add(v.Result)
	case tac.BinaryF:
		addOperands(res.Gen, v.Lhs, v.Rhs)
		res.Kill.Add(v.Result)
	case tac.StoreI:
		addOperands(res.Gen, v.Src)
		res.Kill.Add(v.Dst)
	case tac.StoreF:
		addOperands(res.Gen, v.Src)
		res.Kill.Add(v.Dst)
	case tac.ReadI:
		res.Kill.Add(v.Id)
	case tac.ReadF:
		res.Kill.Add(v.Id)
	case tac.WriteI:
		res.Gen.Add(v.Id)
	case tac.WriteF:
		res.Gen.Add(v.Id)
	case tac.CompareI:
		addOperands(res.Gen, v.Lhs, v.Rhs)
	case tac.CompareF:
		addOperands(res.Gen, v.Lhs, v.Rhs)
	case tac.PushI:
		if v.Src != nil {
			addOperands(res.Gen, v.Src)
		}
	case tac.PushF:
		if v.Src != nil {
			addOperands(res.Gen, v.Src)
		}
	case tac.PopI:
		if v.Dst != nil {
			res.Kill.Add(v.Dst)
		}
	case tac.PopF:
		if v.Dst != nil {
			res.Kill.Add(v.Dst)
		}
	case tac.Jsr:
		// The callee may read any global.
		res.Gen = globals.Clone()
	case tac.Ret:
		// Every global is live on return to the caller.
		res.exit = globals.Clone()
		res.Out = globals.Clone()
	}
	return res
}

// Decorate decorates every instruction of g with its GEN and KILL sets.
func Decorate(g *cfg.Graph, ge GlobalEnumerator) *Graph {
	globals := globalSet(ge)
	res := &Graph{
		cfg:    g,
		blocks: orderedmap.New[cfg.BBLabel, *Block](),
	}
	for _, e1 := range g.Blocks() {
		bb := &Block{
			Label: e1.Label(),
			Code:  make([]*Instruction, e1.Len()),
		}
		for i1, e2 := range e1.Instructions() {
			bb.Code[i1] = decorate(e2, globals)
		}
		res.blocks.Set(bb.Label, bb)
	}
	return res
}

// Analyze decorates g and computes its IN and OUT sets.
func Analyze(g *cfg.Graph, ge GlobalEnumerator) *Graph {
	res := Decorate(g, ge)
	res.Solve()
	return res
}

// Solve iterates backward passes over g until no IN set changes and returns the number of passes run, including
// the final pass that observed no change. Solving an already solved graph runs one pass and changes nothing.
func (g *Graph) Solve() int {
	passes := 0
	for changed := true; changed; {
		changed = false
		passes++
		for pair := g.blocks.Newest(); pair != nil; pair = pair.Prev() {
			bb := pair.Value
			for i1 := len(bb.Code) - 1; i1 >= 0; i1-- {
				in := bb.Code[i1]
				out := newSet()
				if in.exit != nil {
					out = out.Union(in.exit)
				}
				if i1 < len(bb.Code)-1 {
					out = out.Union(bb.Code[i1+1].In)
				} else {
					for _, e1 := range g.cfg.Successors(bb.Label) {
						if succ, ok := g.blocks.Get(e1); ok {
							out = out.Union(succ.Code[0].In)
						}
					}
				}
				in.Out = out
				if live := out.Difference(in.Kill).Union(in.Gen); !live.Equal(in.In) {
					in.In = live
					changed = true
				}
			}
		}
	}
	tlog.V("live").Printw("liveness converged", "blocks", g.blocks.Len(), "passes", passes)
	return passes
}

// Blocks returns the decorated blocks in program order.
func (g *Graph) Blocks() []*Block {
	res := make([]*Block, 0, g.blocks.Len())
	for pair := g.blocks.Oldest(); pair != nil; pair = pair.Next() {
		res = append(res, pair.Value)
	}
	return res
}

// Block returns the decorated block l.
func (g *Graph) Block(l cfg.BBLabel) (*Block, bool) {
	return g.blocks.Get(l)
}

// CFG returns the control flow graph g was built from.
func (g *Graph) CFG() *cfg.Graph {
	return g.cfg
}

// Instructions returns every decorated instruction in program order.
func (g *Graph) Instructions() []*Instruction {
	var res []*Instruction
	for pair := g.blocks.Oldest(); pair != nil; pair = pair.Next() {
		res = append(res, pair.Value.Code...)
	}
	return res
}
