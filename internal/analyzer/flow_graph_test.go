package analyzer

import (
	"strings"
	"testing"

	"github.com/ludo-technologies/decomb/internal/ir"
)

// expectInvariant runs fn and fails unless it panics with an InvariantError
func expectInvariant(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Expected an invariant violation")
		}
		if _, ok := r.(*InvariantError); !ok {
			t.Fatalf("Expected *InvariantError, got %T: %v", r, r)
		}
	}()
	fn()
}

func newTestGraph(names ...string) (*FlowGraph, map[string]*Node) {
	g := NewFlowGraph("test")
	nodes := make(map[string]*Node, len(names))
	for i, name := range names {
		nodes[name] = g.AddCode(&ir.Block{Address: uint64(0x100 + i*0x10), Name: name, Weight: 1})
	}
	if len(names) > 0 {
		g.SetEntry(nodes[names[0]])
	}
	return g, nodes
}

func TestFlowGraphEdges(t *testing.T) {
	t.Run("AddEdgeMergesLabels", func(t *testing.T) {
		g, n := newTestGraph("A", "B")
		g.AddEdge(n["A"], n["B"], Labeled(3, 1))
		g.AddEdge(n["A"], n["B"], Labeled(2, 3))

		edges := n["A"].Edges()
		if len(edges) != 1 {
			t.Fatalf("Expected 1 edge, got %d", len(edges))
		}
		want := []uint64{1, 2, 3}
		if len(edges[0].Info.Labels) != len(want) {
			t.Fatalf("labels = %v, want %v", edges[0].Info.Labels, want)
		}
		for i := range want {
			if edges[0].Info.Labels[i] != want[i] {
				t.Errorf("labels = %v, want %v", edges[0].Info.Labels, want)
			}
		}
		if len(n["B"].Predecessors()) != 1 {
			t.Errorf("B has %d predecessors, want 1", len(n["B"].Predecessors()))
		}
	})

	t.Run("MoveEdgeTargetKeepsPosition", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C", "D")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["A"], n["C"])
		g.MoveEdgeTarget(n["A"], n["B"], n["D"])

		succs := n["A"].Successors()
		if len(succs) != 2 || succs[0] != n["D"] || succs[1] != n["C"] {
			t.Errorf("successors = %v, want [D C]", succs)
		}
		if len(n["B"].Predecessors()) != 0 {
			t.Error("B still has a predecessor")
		}
		if preds := n["D"].Predecessors(); len(preds) != 1 || preds[0] != n["A"] {
			t.Errorf("D predecessors = %v", preds)
		}
	})

	t.Run("MoveEdgeTargetMergesDuplicate", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C")
		g.AddEdge(n["A"], n["B"], Labeled(1))
		g.AddEdge(n["A"], n["C"], Labeled(2))
		g.MoveEdgeTarget(n["A"], n["B"], n["C"])

		edges := n["A"].Edges()
		if len(edges) != 1 || edges[0].Target != n["C"] {
			t.Fatalf("Expected a single edge to C, got %v", edges)
		}
		if len(edges[0].Info.Labels) != 2 {
			t.Errorf("labels = %v, want [1 2]", edges[0].Info.Labels)
		}
		if len(n["C"].Predecessors()) != 1 {
			t.Errorf("C has %d predecessors, want 1", len(n["C"].Predecessors()))
		}
	})

	t.Run("RemoveEdge", func(t *testing.T) {
		g, n := newTestGraph("A", "B")
		g.AddEdge(n["A"], n["B"], Labeled(7))
		info := g.RemoveEdge(n["A"], n["B"])
		if len(info.Labels) != 1 || info.Labels[0] != 7 {
			t.Errorf("removed info = %v", info)
		}
		if len(n["A"].Edges()) != 0 || len(n["B"].Predecessors()) != 0 {
			t.Error("edge still present")
		}
		expectInvariant(t, func() { g.RemoveEdge(n["A"], n["B"]) })
	})
}

func TestFlowGraphNodes(t *testing.T) {
	t.Run("IDsAreNeverReused", func(t *testing.T) {
		g, n := newTestGraph("A", "B")
		g.AddPlainEdge(n["A"], n["B"])
		g.RemoveNode(n["B"])
		c := g.AddEmpty("c")
		if c.ID() <= n["B"].ID() {
			t.Errorf("new id %d reuses a removed id", c.ID())
		}

		nested := g.newNested("nested")
		d := nested.AddBreak()
		if d.ID() <= c.ID() {
			t.Errorf("nested graph id %d collides with the parent", d.ID())
		}
	})

	t.Run("RemoveNodeDropsEdges", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["B"], n["C"])
		g.RemoveNode(n["B"])

		if g.Size() != 2 || g.Contains(n["B"]) {
			t.Errorf("B is still in the graph")
		}
		if len(n["A"].Edges()) != 0 || len(n["C"].Predecessors()) != 0 {
			t.Error("dangling edges after RemoveNode")
		}
	})

	t.Run("EntryCannotBeRemoved", func(t *testing.T) {
		g, n := newTestGraph("A")
		expectInvariant(t, func() { g.RemoveNode(n["A"]) })
		if !g.Contains(n["A"]) {
			t.Error("a failed removal must not detach the entry")
		}
	})

	t.Run("ForeignNodesAreRejected", func(t *testing.T) {
		g, n := newTestGraph("A")
		other, m := newTestGraph("X")
		_ = other
		expectInvariant(t, func() { g.AddPlainEdge(n["A"], m["X"]) })
	})

	t.Run("CloneSharesPayload", func(t *testing.T) {
		g, n := newTestGraph("A")
		nested := g.newNested("body")
		col := g.AddCollapsed(nested)
		clone := g.CloneNode(col)
		if clone.Nested() != nested || clone.Kind() != NodeCollapsed {
			t.Error("clone of a collapsed node must share the nested graph")
		}
		codeClone := g.CloneNode(n["A"])
		if codeClone.Block() != n["A"].Block() || codeClone.ID() == n["A"].ID() {
			t.Error("code clone must share the block and get a fresh id")
		}
	})

	t.Run("Weight", func(t *testing.T) {
		g := NewFlowGraph("w")
		a := g.AddCode(&ir.Block{Address: 1, Weight: 4})
		g.AddEmpty("e")
		nested := g.newNested("n")
		nested.AddCode(&ir.Block{Address: 2, Weight: 3})
		col := g.AddCollapsed(nested)
		g.SetEntry(a)

		if col.Weight() != 3 {
			t.Errorf("collapsed weight = %d, want 3", col.Weight())
		}
		if g.Weight() != 7 {
			t.Errorf("graph weight = %d, want 7", g.Weight())
		}
	})
}

func TestFlowGraphDot(t *testing.T) {
	g, n := newTestGraph("A", "B")
	g.AddEdge(n["A"], n["B"], Labeled(1, 2))
	nested := g.newNested("inner")
	brk := nested.AddBreak()
	nested.SetEntry(brk)
	col := g.AddCollapsed(nested)
	g.AddPlainEdge(n["B"], col)

	out := g.Dot()
	for _, want := range []string{
		`digraph "test"`,
		`label="1,2"`,
		"subgraph cluster_",
		`label="inner"`,
		"style=dotted",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dot output lacks %q:\n%s", want, out)
		}
	}
}
