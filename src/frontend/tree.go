// Package frontend reads three address code listings. The scanner runs concurrently to the parser, which lets one
// go routine scan the source for lexemes while the other groups them into lines.
package frontend

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"microc/src/ir/tac"
	"microc/src/util"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Parse parses the three address code program listed in src.
func Parse(src string) (*tac.Program, error) {
	lines, err := scan(src)
	if err != nil {
		return nil, err
	}
	prog, err := parse(lines)
	if err != nil {
		return nil, err
	}
	tlog.V("stats").Printw("program parsed", "name", prog.Name, "lines", len(lines), "functions", len(prog.Functions))
	return prog, nil
}

// scan returns the non-empty lines of src.
func scan(src string) ([]line, error) {
	l := newLexer(src, lexGlobal)

	// Start scanner and run it concurrently to the line splitter.
	go l.run()

	var res []line
	var cur line
	for {
		it := l.nextItem()
		switch it.typ {
		case itemError:
			return nil, errors.New("%s", it.val)
		case itemNewline, itemEOF:
			if len(cur) > 0 {
				res = append(res, cur)
				cur = nil
			}
			if it.typ == itemEOF {
				return res, nil
			}
		default:
			cur = append(cur, it)
		}
	}
}

// TokenStream writes the token stream of the given source string to w.
func TokenStream(src string, w *util.Writer) error {
	l := newLexer(src, lexGlobal)
	go l.run()

	sb := strings.Builder{}
	tw := tabwriter.NewWriter(&sb, 10, 20, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Value\tType\tPosition\n")
	for {
		t := l.nextItem()
		switch t.typ {
		case itemEOF:
			err := tw.Flush()
			w.WriteString(sb.String())
			w.Flush()
			return err
		case itemError:
			_ = tw.Flush()
			w.WriteString(sb.String())
			w.Flush()
			return errors.New("%s", t.val)
		case itemNewline:
			continue
		default:
			if len(t.val) > 20 {
				_, _ = fmt.Fprintf(tw, "%.17q...\t%s\tline: %d:%d\n", t.val, t.typ, t.line, t.pos)
			} else {
				_, _ = fmt.Fprintf(tw, "%q\t%s\tline: %d:%d\n", t.val, t.typ, t.line, t.pos)
			}
		}
	}
}
