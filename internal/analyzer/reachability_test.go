package analyzer

import (
	"testing"
)

func TestReachability(t *testing.T) {
	t.Run("LinearFlow", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["B"], n["C"])

		result := AnalyzeReachability(g)
		if len(result.Reachable) != 3 {
			t.Errorf("Expected 3 reachable nodes, got %d", len(result.Reachable))
		}
		if len(result.Unreachable) != 0 {
			t.Errorf("Expected 0 unreachable nodes, got %d", len(result.Unreachable))
		}
	})

	t.Run("UnreachableCode", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["C"], n["B"])

		result := AnalyzeReachability(g)
		if len(result.Unreachable) != 1 || result.Unreachable[0] != n["C"] {
			t.Errorf("Expected C to be unreachable, got %v", result.Unreachable)
		}

		removed := g.removeNotReachables(nil)
		if len(removed) != 1 || g.Contains(n["C"]) {
			t.Error("C should have been removed")
		}
		if len(n["B"].Predecessors()) != 1 {
			t.Error("the edge from C should have been removed")
		}
	})

	t.Run("RemoveFromRegions", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C")
		g.AddPlainEdge(n["A"], n["B"])
		r := NewMetaRegion(1, []*Node{n["B"], n["C"]}, true)
		g.removeNotReachables([]*MetaRegion{r})
		if r.Contains(n["C"]) || !r.Contains(n["B"]) {
			t.Errorf("region after pruning: %s", r)
		}
	})

	t.Run("SkipEdge", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["B"], n["C"])
		skip := EdgePair{Source: n["A"], Target: n["B"]}
		if got := reachableFrom(n["A"], &skip); len(got) != 1 {
			t.Errorf("Expected only A, got %d nodes", len(got))
		}
		if got := reachingTo(n["C"], nil); len(got) != 3 {
			t.Errorf("Expected A, B and C to reach C, got %d nodes", len(got))
		}
	})
}

func TestReversePostOrder(t *testing.T) {
	g, n := newTestGraph("A", "B", "C", "D")
	g.AddPlainEdge(n["A"], n["B"])
	g.AddPlainEdge(n["A"], n["C"])
	g.AddPlainEdge(n["B"], n["D"])
	g.AddPlainEdge(n["C"], n["D"])

	rpo := ReversePostOrder(g)
	if len(rpo) != 4 {
		t.Fatalf("Expected 4 nodes, got %d", len(rpo))
	}
	pos := make(map[*Node]int)
	for i, node := range rpo {
		pos[node] = i
	}
	if pos[n["A"]] != 0 || pos[n["D"]] != 3 {
		t.Errorf("unexpected order %v", rpo)
	}
	if pos[n["B"]] > pos[n["D"]] || pos[n["C"]] > pos[n["D"]] {
		t.Errorf("predecessors must come before D: %v", rpo)
	}
}

func TestFindBackedges(t *testing.T) {
	t.Run("Acyclic", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["A"], n["C"])
		g.AddPlainEdge(n["B"], n["C"])
		if be := FindBackedges(g); len(be) != 0 {
			t.Errorf("Expected no backedges, got %v", be)
		}
		if !g.IsDAG() {
			t.Error("graph should be a DAG")
		}
	})

	t.Run("SimpleLoop", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["B"], n["C"])
		g.AddPlainEdge(n["C"], n["B"])

		be := FindBackedges(g)
		if len(be) != 1 || be[0].Source != n["C"] || be[0].Target != n["B"] {
			t.Errorf("Expected C -> B, got %v", be)
		}
		if g.IsDAG() {
			t.Error("graph should be cyclic")
		}
	})

	t.Run("SelfLoop", func(t *testing.T) {
		g, n := newTestGraph("A", "B")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["B"], n["B"])
		be := FindBackedges(g)
		if len(be) != 1 || be[0].Source != n["B"] || be[0].Target != n["B"] {
			t.Errorf("Expected B -> B, got %v", be)
		}
	})

	t.Run("AcyclicOutsidePending", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C", "D")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["B"], n["C"])
		g.AddPlainEdge(n["C"], n["B"])
		g.AddPlainEdge(n["D"], n["D"])

		none := func(*Node) bool { return false }
		if g.acyclicOutside(none) {
			t.Error("the B-C loop must be reported")
		}
		loop := NewMetaRegion(1, []*Node{n["B"], n["C"]}, true)
		if g.acyclicOutside(loop.Contains) {
			t.Error("the unreachable self loop on D must be reported")
		}
		both := func(x *Node) bool { return loop.Contains(x) || x == n["D"] }
		if !g.acyclicOutside(both) {
			t.Error("no cycle is left once B, C and D are pending")
		}
	})

	t.Run("DummiesOnEveryBackedge", func(t *testing.T) {
		g, n := newTestGraph("A", "B", "C")
		g.AddPlainEdge(n["A"], n["B"])
		g.AddPlainEdge(n["B"], n["C"])
		g.AddPlainEdge(n["C"], n["B"])
		g.AddPlainEdge(n["C"], n["A"])

		backedges := insertBackedgeDummies(g)
		if len(backedges) != 2 {
			t.Fatalf("Expected 2 backedges, got %d", len(backedges))
		}
		for _, be := range backedges {
			if !be.Source.IsEmpty() || len(be.Source.Successors()) != 1 {
				t.Errorf("backedge %s does not leave a dummy", be)
			}
		}
		if succs := n["C"].Successors(); len(succs) != 2 || !succs[0].IsEmpty() || !succs[1].IsEmpty() {
			t.Errorf("C successors should be the two dummies, got %v", succs)
		}
	})
}
