package view

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// TreeOptions controls WriteTree output.
type TreeOptions struct {
	Layout bool // append LayoutInfo to every line
	Hidden bool // include nodes that are not visible
}

// WriteTree writes one line per node, indented two spaces per level:
//
//	android.widget.Button@1a2b id/ok <Rect (10, 20) w=100 h=40> "OK"
//
// Without opts.Hidden, lines for non-visible nodes are omitted but their
// children are still written.
func WriteTree(w io.Writer, root *Node, opts TreeOptions) error {
	bw := bufio.NewWriter(w)
	Walk(root, func(n *Node) bool {
		if !opts.Hidden && n.Visibility() != Visible {
			return true
		}
		bw.WriteString(strings.Repeat("  ", n.Depth()))
		bw.WriteString(n.Name)
		bw.WriteByte('@')
		bw.WriteString(n.HashCode)
		if n.ID != UnknownID {
			bw.WriteByte(' ')
			bw.WriteString(n.ID)
		}
		bw.WriteByte(' ')
		bw.WriteString(AbsoluteRect(n).String())
		if text, ok := n.Value("text:text"); ok && text != "" {
			bw.WriteByte(' ')
			bw.WriteString(strconv.Quote(text))
		}
		if opts.Layout {
			bw.WriteByte(' ')
			bw.WriteString(LayoutInfo(n))
		}
		bw.WriteByte('\n')
		return true
	})
	return bw.Flush()
}
