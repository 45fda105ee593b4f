package analyzer

import (
	"fmt"
	"sort"
	"strings"
)

// Dot renders g in graphviz format. Collapsed nodes are expanded into
// clusters holding their nested graph.
func (g *FlowGraph) Dot() string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", g.name)
	b.WriteString("  node [shape=box];\n")
	g.writeDot(&b, "  ", make(map[*FlowGraph]bool))
	b.WriteString("}\n")
	return b.String()
}

func (g *FlowGraph) writeDot(b *strings.Builder, indent string, seen map[*FlowGraph]bool) {
	seen[g] = true
	nodes := g.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })

	for _, n := range nodes {
		attrs := fmt.Sprintf("label=%q", n.NameString())
		switch {
		case n == g.entry:
			attrs += ", style=bold"
		case n.IsArtificial():
			attrs += ", style=dashed"
		}
		fmt.Fprintf(b, "%sn%d [%s];\n", indent, n.id, attrs)
	}
	for _, n := range nodes {
		for _, e := range n.succs {
			var attrs []string
			if len(e.Info.Labels) > 0 {
				labels := make([]string, len(e.Info.Labels))
				for i, l := range e.Info.Labels {
					labels[i] = fmt.Sprintf("%d", l)
				}
				attrs = append(attrs, fmt.Sprintf("label=%q", strings.Join(labels, ",")))
			}
			if e.Info.Inlined {
				attrs = append(attrs, "color=blue")
			}
			if len(attrs) == 0 {
				fmt.Fprintf(b, "%sn%d -> n%d;\n", indent, n.id, e.Target.id)
			} else {
				fmt.Fprintf(b, "%sn%d -> n%d [%s];\n", indent, n.id, e.Target.id, strings.Join(attrs, ", "))
			}
		}
	}

	for _, n := range nodes {
		if !n.IsCollapsed() || n.nested == nil || seen[n.nested] {
			continue
		}
		fmt.Fprintf(b, "%ssubgraph cluster_%d {\n", indent, n.id)
		fmt.Fprintf(b, "%s  label=%q;\n", indent, n.nested.name)
		n.nested.writeDot(b, indent+"  ", seen)
		fmt.Fprintf(b, "%s}\n", indent)
		if entry := n.nested.entry; entry != nil {
			fmt.Fprintf(b, "%sn%d -> n%d [style=dotted];\n", indent, n.id, entry.id)
		}
	}
}
