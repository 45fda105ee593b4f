package ast

import (
	"fmt"
	"strings"
)

// Label returns a one-line description of n used by dumps and reports
func Label(n Node) string {
	switch v := n.(type) {
	case *Code:
		return "code " + v.Block.Label()
	case *If:
		return "if " + v.Cond.String()
	case *Scs:
		return "loop " + v.Loop.String()
	case *Sequence:
		return "sequence"
	case *Switch:
		if v.OnStateVariable() {
			return "switch " + v.StateVar.String()
		}
		return "switch " + v.Condition.Label()
	case *Break:
		if v.BreakFromWithinSwitch {
			return "break (from switch)"
		}
		return "break"
	case *SwitchBreak:
		return "switch break"
	case *Continue:
		if v.Implicit {
			return "continue (implicit)"
		}
		return "continue"
	case *Set:
		return fmt.Sprintf("%s = %d", v.Var, v.Value)
	}
	return "?"
}

// Dot renders the subtree rooted at root in graphviz format
func Dot(name string, root Node) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", name)
	b.WriteString("  node [shape=box];\n")

	seen := make(map[Node]bool)
	var visit func(n Node)
	visit = func(n Node) {
		if n == nil || seen[n] {
			return
		}
		seen[n] = true
		fmt.Fprintf(&b, "  n%d [label=%q];\n", n.ID(), Label(n))

		edge := func(to Node, label string) {
			if to == nil {
				return
			}
			if label == "" {
				fmt.Fprintf(&b, "  n%d -> n%d;\n", n.ID(), to.ID())
			} else {
				fmt.Fprintf(&b, "  n%d -> n%d [label=%q];\n", n.ID(), to.ID(), label)
			}
			visit(to)
		}

		switch v := n.(type) {
		case *If:
			edge(v.Then, "then")
			edge(v.Else, "else")
		case *Scs:
			edge(v.Body, "body")
			if v.RelatedCondition != nil {
				edge(v.RelatedCondition, "condition")
			}
		case *Sequence:
			for i, c := range v.Nodes {
				edge(c, fmt.Sprintf("%d", i))
			}
		case *Switch:
			for _, c := range v.Cases {
				edge(c.Body, fmt.Sprint(c.Labels))
			}
			edge(v.Default, "default")
		}
		if s := SuccessorOf(n); s != nil {
			fmt.Fprintf(&b, "  n%d -> n%d [style=dashed];\n", n.ID(), s.ID())
			visit(s)
		}
	}
	visit(root)

	b.WriteString("}\n")
	return b.String()
}
