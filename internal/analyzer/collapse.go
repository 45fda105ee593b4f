package analyzer

import (
	"fmt"
)

// processRegion normalizes meta and collapses it into one node
func (s *combState) processRegion(meta *MetaRegion) *RegionReport {
	report := &RegionReport{Index: meta.Index()}
	s.r.logf("analyzing region %d with %d nodes", meta.Index(), meta.Size())

	retreatings := s.takeRetreatings(meta)
	invariant(len(retreatings) > 0, "region %d has no retreating edge", meta.Index())
	report.Retreatings = len(retreatings)

	targets := s.electHead(meta, retreatings)
	head := targets[0]
	report.NewHeadNeeded = len(targets) > 1
	s.r.logf("elected head %s, new head needed: %t", head.NameString(), report.NewHeadNeeded)

	if report.NewHeadNeeded {
		head = s.buildEntryDispatcher(meta, targets, retreatings, report)
		report.EntryDispatch = head
	}

	s.refineSuccessors(meta, head, report)

	outlined := s.outline(meta, head)
	report.OutlinedNodes = len(outlined)

	var defaultSets []*Node
	if report.NewHeadNeeded {
		defaultSets = s.insertDefaultEntrySets(head)
	}

	distinct, mapping := s.deduplicateSuccessors(meta.Successors())
	report.Successors = len(distinct)
	report.NewExitNeeded = len(distinct) > 1

	var exit *Node
	var exitNodes []*Node
	if report.NewExitNeeded {
		exit = s.buildExitDispatcher(meta, distinct, mapping, report)
		report.ExitDispatcher = exit
		exitNodes = append(exitNodes, exit)
	}

	s.collapse(meta, head, exit, distinct, exitNodes, defaultSets, outlined, report)
	report.Head = head.NameString()
	s.r.logf("region %d collapsed into %s", meta.Index(), report.CollapsedNode.NameString())
	return report
}

// collapse moves the nodes of meta into a nested graph entered at head and
// replaces them in the root graph with a single Collapsed node
func (s *combState) collapse(meta *MetaRegion, head, exit *Node, distinct, exitNodes, defaultSets, outlined []*Node, report *RegionReport) {
	nested := s.g.newNested(fmt.Sprintf("%s region %d", s.g.Name(), meta.Index()))
	collapsed := s.g.AddCollapsed(nested)
	report.CollapsedNode = collapsed
	report.NestedGraph = nested

	// pending backedges may only enter the region at its head
	for i, be := range s.backedges {
		invariant(!meta.Contains(be.Source), "pending backedge %s leaves collapsing region %d", be, meta.Index())
		if meta.Contains(be.Target) {
			invariant(be.Target == head, "pending backedge %s enters region %d away from its head", be, meta.Index())
			s.backedges[i].Target = collapsed
		}
	}

	outEdges := meta.OutEdges()
	for _, e := range meta.InEdges() {
		invariant(e.Target == head, "edge %s enters region %d away from its head", e, meta.Index())
		s.g.MoveEdgeTarget(e.Source, head, collapsed)
	}

	for _, e := range outEdges {
		brk := s.g.AddBreak()
		meta.Insert(brk)
		s.g.MoveEdgeTarget(e.Source, e.Target, brk)
	}

	for _, p := range head.Predecessors() {
		invariant(meta.Contains(p), "head %s keeps the external predecessor %s", head.NameString(), p.NameString())
		cont := s.g.AddContinue()
		meta.Insert(cont)
		s.g.MoveEdgeTarget(p, head, cont)
	}

	if exit != nil {
		s.g.AddPlainEdge(collapsed, exit)
	} else {
		invariant(len(distinct) <= 1, "region %d has %d exits but no exit dispatcher", meta.Index(), len(distinct))
		if len(distinct) == 1 {
			s.g.AddPlainEdge(collapsed, distinct[0])
		}
	}

	removed := meta.Nodes()
	for _, n := range removed {
		for _, e := range n.succs {
			invariant(meta.Contains(e.Target), "edge %s -> %s escapes region %d", n.NameString(), e.Target.NameString(), meta.Index())
		}
		for _, p := range n.preds {
			invariant(meta.Contains(p), "edge %s -> %s enters region %d", p.NameString(), n.NameString(), meta.Index())
		}
	}
	for _, n := range removed {
		s.g.detach(n)
		nested.adopt(n)
	}
	nested.SetEntry(head)

	for _, other := range s.regions {
		if other != meta {
			other.UpdateNodes(removed, collapsed, exitNodes, defaultSets, outlined)
		}
	}
	meta.ReplaceNodes(nested.Nodes())

	nested.removeNotReachables(s.regions)
	s.g.removeNotReachables(s.regions)
	s.pruneBackedges()

	report.Size = nested.Size()
	invariant(nested.IsDAG(), "collapsed region %d is not acyclic", meta.Index())
	invariant(s.g.acyclicOutside(s.pendingAfter(meta)),
		"root graph of %s has a cycle outside pending regions after collapsing region %d", s.g.Name(), meta.Index())
}

// pendingAfter returns a predicate matching the nodes of the regions still
// to be collapsed once meta is done
func (s *combState) pendingAfter(meta *MetaRegion) func(*Node) bool {
	var pending []*MetaRegion
	for i, r := range s.regions {
		if r == meta {
			pending = s.regions[i+1:]
			break
		}
	}
	return func(n *Node) bool {
		for _, r := range pending {
			if r.Contains(n) {
				return true
			}
		}
		return false
	}
}
