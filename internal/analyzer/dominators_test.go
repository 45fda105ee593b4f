package analyzer

import (
	"testing"
)

func TestDominators(t *testing.T) {
	g, n := newTestGraph("A", "B", "C", "D", "E")
	g.AddPlainEdge(n["A"], n["B"])
	g.AddPlainEdge(n["A"], n["C"])
	g.AddPlainEdge(n["B"], n["D"])
	g.AddPlainEdge(n["C"], n["D"])
	g.AddPlainEdge(n["D"], n["E"])

	dt := Dominators(g)
	tests := []struct {
		node string
		idom string
	}{
		{"B", "A"},
		{"C", "A"},
		{"D", "A"},
		{"E", "D"},
	}
	for _, tt := range tests {
		if got := dt.IDom(n[tt.node]); got != n[tt.idom] {
			t.Errorf("idom(%s) = %v, want %s", tt.node, got, tt.idom)
		}
	}
	if dt.IDom(n["A"]) != nil {
		t.Error("the root has no immediate dominator")
	}
	if !dt.Dominates(n["A"], n["E"]) || dt.Dominates(n["B"], n["D"]) || !dt.Dominates(n["D"], n["D"]) {
		t.Error("unexpected dominance relation")
	}
	if children := dt.Children(n["A"]); len(children) != 3 {
		t.Errorf("A should dominate B, C and D immediately, got %v", children)
	}
}

func TestPostDominators(t *testing.T) {
	t.Run("Diamond", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C", "D")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["A"], n["C"])
		g.AddPlainEdge(n["B"], n["D"])
		g.AddPlainEdge(n["C"], n["D"])

		pdt, sink := PostDominators(g)
		if pdt.IDom(n["A"]) != n["D"] {
			t.Errorf("ipdom(A) = %v, want D", pdt.IDom(n["A"]))
		}
		if pdt.IDom(n["D"]) != sink {
			t.Error("the only exit is post-dominated by the sink")
		}
	})

	t.Run("TwoExits", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["A"], n["C"])

		pdt, sink := PostDominators(g)
		if pdt.IDom(n["A"]) != sink {
			t.Errorf("ipdom(A) = %v, want the sink", pdt.IDom(n["A"]))
		}
	})

	t.Run("InlinedEdgesAreIgnored", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C", "D")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["A"], n["C"])
		g.AddPlainEdge(n["B"], n["D"])
		g.AddPlainEdge(n["C"], n["D"])
		g.SetEdgeInlined(n["A"], n["C"], true)

		pdt, _ := PostDominators(g)
		if pdt.IDom(n["A"]) != n["B"] {
			t.Errorf("ipdom(A) = %v, want B", pdt.IDom(n["A"]))
		}
	})
}

func TestMarkInlinedEdges(t *testing.T) {
	g, n := newTestGraph("A", "B", "C", "D", "X")
	g.AddPlainEdge(n["A"], n["B"])
	g.AddPlainEdge(n["A"], n["C"])
	g.AddPlainEdge(n["B"], n["X"])
	g.AddPlainEdge(n["C"], n["D"])
	g.AddPlainEdge(n["A"], n["D"])

	markInlinedEdges(g, Dominators(g))

	inlined := func(from, to string) bool {
		info, ok := n[from].EdgeTo(n[to])
		if !ok {
			t.Fatalf("no edge %s -> %s", from, to)
		}
		return info.Inlined
	}
	if !inlined("A", "B") {
		t.Error("A -> B leads to a private subgraph")
	}
	if inlined("A", "C") {
		t.Error("C does not dominate D")
	}
	if inlined("A", "D") {
		t.Error("D has two predecessors")
	}
	if inlined("B", "X") {
		t.Error("single successor edges are never inlined")
	}
}
