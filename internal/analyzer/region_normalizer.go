package analyzer

import (
	"sort"

	"github.com/ludo-technologies/decomb/internal/ast"
)

// RegionReport summarizes how one region was normalized and collapsed
type RegionReport struct {
	Index          int
	Size           int
	Head           string
	Retreatings    int
	NewHeadNeeded  bool
	NewExitNeeded  bool
	Successors     int
	Refinements    int
	OutlinedNodes  int
	EntryStateVar  ast.StateVar
	ExitStateVar   ast.StateVar
	EntryStateIDs  []uint64
	ExitStateIDs   []uint64
	NestedGraph    *FlowGraph
	CollapsedNode  *Node
	EntryDispatch  *Node
	ExitDispatcher *Node
}

// combState is the mutable state of one comb run over a function
type combState struct {
	r         *Restructurer
	g         *FlowGraph
	regions   []*MetaRegion
	backedges []EdgePair
	nextVar   ast.StateVar
	reports   []*RegionReport
}

func (s *combState) newStateVar() ast.StateVar {
	v := s.nextVar
	s.nextVar++
	return v
}

func (s *combState) isBackedge(source, target *Node) bool {
	for _, be := range s.backedges {
		if be.Source == source && be.Target == target {
			return true
		}
	}
	return false
}

func (s *combState) replaceBackedge(old, updated EdgePair) {
	for i, be := range s.backedges {
		if be == old {
			s.backedges[i] = updated
		}
	}
}

func (s *combState) inOtherRegion(meta *MetaRegion, n *Node) bool {
	for _, other := range s.regions {
		if other != meta && other.Contains(n) {
			return true
		}
	}
	return false
}

// pruneBackedges forgets backedges whose edge no longer exists in the root
// graph, for instance when their dummy became unreachable
func (s *combState) pruneBackedges() {
	kept := s.backedges[:0]
	for _, be := range s.backedges {
		if s.g.Contains(be.Source) && s.g.Contains(be.Target) {
			if _, ok := be.Source.EdgeTo(be.Target); ok {
				kept = append(kept, be)
			}
		}
	}
	s.backedges = kept
}

// takeRetreatings removes from the pending set the backedges leaving meta
func (s *combState) takeRetreatings(meta *MetaRegion) []EdgePair {
	var retreatings []EdgePair
	pending := s.backedges[:0]
	for _, be := range s.backedges {
		if meta.Contains(be.Source) {
			invariant(meta.Contains(be.Target), "retreating edge %s leaves region %d", be, meta.Index())
			retreatings = append(retreatings, be)
			continue
		}
		pending = append(pending, be)
	}
	s.backedges = pending
	return retreatings
}

// electHead returns the retreating targets of meta in reverse post-order;
// the first one is the elected head
func (s *combState) electHead(meta *MetaRegion, retreatings []EdgePair) []*Node {
	isTarget := make(map[*Node]bool)
	for _, be := range retreatings {
		isTarget[be.Target] = true
	}

	var ordered []*Node
	for _, n := range ReversePostOrder(s.g) {
		if meta.Contains(n) && isTarget[n] {
			ordered = append(ordered, n)
		}
	}
	invariant(len(ordered) > 0, "region %d has no reachable retreating target", meta.Index())
	invariant(len(ordered) == len(isTarget), "region %d has unreachable retreating targets", meta.Index())
	return ordered
}

// buildEntryDispatcher routes every retreating edge through a Set node into
// a fresh dispatcher and moves the external entries of the elected head to
// it
func (s *combState) buildEntryDispatcher(meta *MetaRegion, targets []*Node, retreatings []EdgePair, report *RegionReport) *Node {
	v := s.newStateVar()
	head := s.g.AddDispatcher(v, "entry dispatcher")
	meta.Insert(head)
	report.EntryStateVar = v

	ids := make(map[*Node]uint64, len(targets))
	for i, t := range targets {
		ids[t] = uint64(i)
		s.g.AddEdge(head, t, Labeled(uint64(i)))
		report.EntryStateIDs = append(report.EntryStateIDs, uint64(i))
	}

	for _, be := range retreatings {
		set := s.g.AddSet(v, ids[be.Target], be.Target.Name())
		meta.Insert(set)
		s.g.MoveEdgeTarget(be.Source, be.Target, set)
		s.g.AddPlainEdge(set, head)
	}

	first := targets[0]
	for _, p := range first.Predecessors() {
		if meta.Contains(p) {
			continue
		}
		s.g.MoveEdgeTarget(p, first, head)
		s.replaceBackedge(EdgePair{Source: p, Target: first}, EdgePair{Source: p, Target: head})
	}
	return head
}

// refineSuccessors absorbs into meta the successors that every exit path
// must reach anyway, and returns the remaining successors
func (s *combState) refineSuccessors(meta *MetaRegion, head *Node, report *RegionReport) []*Node {
	successors := meta.Successors()
	limit := s.r.options.MaxRefinementIterations
	if limit <= 0 {
		limit = s.g.Size() + 1
	}

	type frontier struct {
		node, source, target *Node
	}

	another := true
	for another && len(successors) > 1 {
		report.Refinements++
		invariant(report.Refinements <= limit,
			"successor refinement of region %d did not converge after %d iterations", meta.Index(), limit)
		another = false

		var frontiers []frontier
		for _, e := range meta.OutEdges() {
			f := s.g.AddEmpty("frontier dummy")
			s.g.MoveEdgeTarget(e.Source, e.Target, f)
			s.g.AddPlainEdge(f, e.Target)
			meta.Insert(f)
			frontiers = append(frontiers, frontier{node: f, source: e.Source, target: e.Target})
		}

		dt := Dominators(s.g)
		for _, f := range frontiers {
			for _, succ := range successors {
				if meta.Contains(succ) {
					continue
				}
				if dt.Dominates(head, succ) && dt.Dominates(f.node, succ) && !s.inOtherRegion(meta, succ) {
					meta.Insert(succ)
					another = true
					s.r.logf("region %d absorbs successor %s", meta.Index(), succ.NameString())
				}
			}
		}

		for _, f := range frontiers {
			s.g.MoveEdgeTarget(f.source, f.node, f.target)
			s.g.RemoveNode(f.node)
			meta.Remove(f.node)
		}

		successors = meta.Successors()
	}
	return successors
}

// outline clones every node of meta except the head. The clones model the
// first iteration: external predecessors of region nodes are redirected to
// them, so afterwards the head is the only entry of the region.
func (s *combState) outline(meta *MetaRegion, head *Node) []*Node {
	nodes := meta.Nodes()
	clones := make(map[*Node]*Node, len(nodes))
	var outlined []*Node
	for _, n := range nodes {
		if n == head {
			continue
		}
		c := s.g.CloneNode(n)
		c.SetName(n.Name() + " outlined")
		clones[n] = c
		outlined = append(outlined, c)
	}

	for _, n := range nodes {
		if n == head {
			continue
		}
		for _, e := range append([]Edge(nil), n.succs...) {
			invariant(!s.isBackedge(n, e.Target), "outlining would copy the backedge %s -> %s",
				n.NameString(), e.Target.NameString())
			target := e.Target
			if meta.Contains(target) && target != head {
				target = clones[target]
			}
			s.g.AddEdge(clones[n], target, e.Info)
		}

		for _, p := range n.Predecessors() {
			if meta.Contains(p) {
				continue
			}
			invariant(!s.isBackedge(p, n), "outlining would move the backedge %s -> %s",
				p.NameString(), n.NameString())
			s.g.MoveEdgeTarget(p, n, clones[n])
		}
	}
	return outlined
}

// insertDefaultEntrySets gives every plain entry of the dispatcher a Set
// node selecting the elected head
func (s *combState) insertDefaultEntrySets(head *Node) []*Node {
	var sets []*Node
	for _, p := range head.Predecessors() {
		if p.IsSet() && p.StateVar() == head.StateVar() {
			continue
		}
		set := s.g.AddSet(head.StateVar(), 0, head.Name())
		s.g.MoveEdgeTarget(p, head, set)
		s.g.AddPlainEdge(set, head)
		s.replaceBackedge(EdgePair{Source: p, Target: head}, EdgePair{Source: set, Target: head})
		sets = append(sets, set)
	}
	return sets
}

// deduplicateSuccessors orders successors by reverse post-order and maps
// backedge dummies leading to the same target onto one representative
func (s *combState) deduplicateSuccessors(successors []*Node) ([]*Node, map[*Node]*Node) {
	rank := make(map[*Node]int)
	for i, n := range ReversePostOrder(s.g) {
		rank[n] = i
	}
	ordered := append([]*Node(nil), successors...)
	sort.SliceStable(ordered, func(i, j int) bool { return rank[ordered[i]] < rank[ordered[j]] })

	var distinct []*Node
	mapping := make(map[*Node]*Node, len(ordered))
	byTarget := make(map[*Node]*Node)
	for _, succ := range ordered {
		if succ.IsEmpty() && len(succ.succs) > 0 {
			invariant(len(succ.succs) == 1, "empty successor %s has several successors", succ.NameString())
			target := succ.succs[0].Target
			if prev, ok := byTarget[target]; ok {
				mapping[succ] = prev
				continue
			}
			byTarget[target] = succ
		}
		distinct = append(distinct, succ)
		mapping[succ] = succ
	}
	return distinct, mapping
}

// buildExitDispatcher creates the exit dispatcher and a Set node on every
// edge leaving meta
func (s *combState) buildExitDispatcher(meta *MetaRegion, distinct []*Node, mapping map[*Node]*Node, report *RegionReport) *Node {
	v := s.newStateVar()
	exit := s.g.AddDispatcher(v, "exit dispatcher")
	report.ExitStateVar = v

	ids := make(map[*Node]uint64, len(distinct))
	for i, succ := range distinct {
		ids[succ] = uint64(i)
		s.g.AddEdge(exit, succ, Labeled(uint64(i)))
		report.ExitStateIDs = append(report.ExitStateIDs, uint64(i))
	}

	for _, e := range meta.OutEdges() {
		invariant(!s.isBackedge(e.Source, e.Target), "exit edge %s is a backedge", e)
		set := s.g.AddSet(v, ids[mapping[e.Target]], e.Target.Name())
		meta.Insert(set)
		s.g.MoveEdgeTarget(e.Source, e.Target, set)
		s.g.AddPlainEdge(set, e.Target)
	}
	return exit
}
