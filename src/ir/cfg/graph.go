package cfg

import (
	"fmt"
	"strings"

	"microc/src/ir/tac"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Graph is the control flow graph of a function. Blocks without successors have no entry in the edge map.
type Graph struct {
	edges  *orderedmap.OrderedMap[BBLabel, []BBLabel]   // Successors per block, in order of discovery.
	blocks *orderedmap.OrderedMap[BBLabel, *BasicBlock] // Blocks in program order.
}

// ---------------------
// ----- Functions -----
// ---------------------

// New connects the blocks of bf.
//
// Blocks are scanned in order. Unless the previous block ended in an unconditional jump or a return, an edge
// from the previous block to the current one is added for fall through. If the current block ends in a branch or
// jump an edge to the block its label starts is added. A target label without a block, or a label that starts more
// than one block, is an error.
func New(bf *BlockFunction) (*Graph, error) {
	g := &Graph{
		edges:  orderedmap.New[BBLabel, []BBLabel](),
		blocks: bf.Blocks,
	}

	marks := make(map[tac.Label]BBLabel, len(bf.Targets))
	var prev *BasicBlock
	for pair := bf.Blocks.Oldest(); pair != nil; pair = pair.Next() {
		bb := pair.Value
		if m, ok := bb.code[0].(tac.Mark); ok {
			if first, ok := marks[m.Label]; ok {
				return nil, errors.New("%v: label %v defined twice, first in %v", bb.label, m.Label, first)
			}
			marks[m.Label] = bb.label
		}
		if prev != nil {
			if last := prev.Last(); !tac.IsUnconditionalJump(last) && !tac.IsReturn(last) {
				g.addEdge(prev.label, bb.label)
			}
		}
		if l, ok := tac.JumpTarget(bb.Last()); ok {
			dst, ok := bf.Targets[l]
			if !ok {
				return nil, errors.New("%v: jump to undefined label %v", bb.label, l)
			}
			g.addEdge(bb.label, dst)
		}
		prev = bb
	}

	if tlog.If("cfg") {
		tlog.Printw("cfg", "blocks", g.blocks.Len(), "edges", g.NumEdges())
	}
	return g, nil
}

// FromCode partitions code into blocks and connects them.
func FromCode(code []tac.Instruction) (*Graph, error) {
	return New(BuildBlocks(code))
}

// addEdge appends the edge from -> to.
func (g *Graph) addEdge(from, to BBLabel) {
	succ, _ := g.edges.Get(from)
	g.edges.Set(from, append(succ, to))
}

// Block returns block l.
func (g *Graph) Block(l BBLabel) (*BasicBlock, bool) {
	return g.blocks.Get(l)
}

// Blocks returns the blocks of g in program order.
func (g *Graph) Blocks() []*BasicBlock {
	res := make([]*BasicBlock, 0, g.blocks.Len())
	for pair := g.blocks.Oldest(); pair != nil; pair = pair.Next() {
		res = append(res, pair.Value)
	}
	return res
}

// Successors returns the successors of block l in order of discovery.
func (g *Graph) Successors(l BBLabel) []BBLabel {
	succ, _ := g.edges.Get(l)
	return succ
}

// Edges returns the successor map of g. Keys are ordered by the first edge leaving each block.
func (g *Graph) Edges() *orderedmap.OrderedMap[BBLabel, []BBLabel] {
	return g.edges
}

// Len returns the number of blocks in g.
func (g *Graph) Len() int {
	return g.blocks.Len()
}

// NumEdges returns the number of edges in g.
func (g *Graph) NumEdges() int {
	n := 0
	for pair := g.edges.Oldest(); pair != nil; pair = pair.Next() {
		n += len(pair.Value)
	}
	return n
}

// String returns a dump of all blocks followed by the edges of g.
func (g *Graph) String() string {
	sb := strings.Builder{}
	sb.WriteString("==== Basic Blocks ===\n")
	for pair := g.blocks.Oldest(); pair != nil; pair = pair.Next() {
		sb.WriteString(pair.Value.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("==== CFG ===\n")
	WriteEdges(&sb, g.edges)
	return sb.String()
}

// WriteEdges writes one line per block with successors, e.g. "BB0: [BBLabel(2), BBLabel(1)]".
func WriteEdges(sb *strings.Builder, edges *orderedmap.OrderedMap[BBLabel, []BBLabel]) {
	for pair := edges.Oldest(); pair != nil; pair = pair.Next() {
		succ := make([]string, len(pair.Value))
		for i1, e1 := range pair.Value {
			succ[i1] = e1.GoString()
		}
		sb.WriteString(fmt.Sprintf("%v: [%s]\n", pair.Key, strings.Join(succ, ", ")))
	}
}
