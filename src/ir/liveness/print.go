package liveness

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"microc/src/ir/cfg"
)

// setString returns the members of s sorted by name and separated by spaces.
func setString(s Set) string {
	names := make([]string, 0, s.Cardinality())
	for _, e1 := range s.ToSlice() {
		names = append(names, e1.String())
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}

// String returns the instruction followed by its liveness sets.
func (in *Instruction) String() string {
	return fmt.Sprintf("%s\t| GEN: %s\t| KILL: %s\t| IN: %s\t| OUT: %s",
		in.Code, setString(in.Gen), setString(in.Kill), setString(in.In), setString(in.Out))
}

// String returns a dump of all decorated blocks followed by the edges of g.
func (g *Graph) String() string {
	sb := strings.Builder{}
	sb.WriteString("==== Basic Blocks ===\n")
	for pair := g.blocks.Oldest(); pair != nil; pair = pair.Next() {
		sb.WriteString(pair.Key.String() + ":\n")
		tw := tabwriter.NewWriter(&sb, 0, 4, 1, ' ', 0)
		for _, e1 := range pair.Value.Code {
			_, _ = fmt.Fprintln(tw, e1.String())
		}
		_ = tw.Flush()
		sb.WriteByte('\n')
	}
	sb.WriteString("==== CFG ===\n")
	cfg.WriteEdges(&sb, g.cfg.Edges())
	return sb.String()
}
