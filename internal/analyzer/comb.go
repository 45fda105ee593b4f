package analyzer

import (
	"sort"
)

// dagInfo is the dominance information the AST builder works from
type dagInfo struct {
	dt   *DomTree
	pdt  *DomTree
	sink *Node
}

func analyzeDAG(g *FlowGraph) *dagInfo {
	dt := Dominators(g)
	markInlinedEdges(g, dt)
	pdt, sink := PostDominators(g)
	return &dagInfo{dt: dt, pdt: pdt, sink: sink}
}

// ipdom returns the immediate post-dominator of n, nil when it is the sink
func (d *dagInfo) ipdom(n *Node) *Node {
	p := d.pdt.IDom(n)
	if p == d.sink {
		return nil
	}
	return p
}

// markInlinedEdges flags every edge (u, v) where u branches, v has no other
// predecessor and v dominates everything reachable from it
func markInlinedEdges(g *FlowGraph, dt *DomTree) {
	for _, u := range g.nodes {
		for i := range u.succs {
			u.succs[i].Info.Inlined = false
		}
	}
	for _, u := range g.nodes {
		if len(u.succs) < 2 {
			continue
		}
		for i, e := range u.succs {
			v := e.Target
			if len(v.preds) != 1 {
				continue
			}
			inlined := true
			for n := range reachableFrom(v, nil) {
				if !dt.Dominates(v, n) {
					inlined = false
					break
				}
			}
			u.succs[i].Info.Inlined = inlined
		}
	}
}

// combLimit bounds the number of node splits on g
func (b *astBuilder) combLimit(g *FlowGraph) int {
	if b.r.options.MaxCombIterations > 0 {
		return b.r.options.MaxCombIterations
	}
	limit := 16 * g.Size()
	if limit < 4096 {
		limit = 4096
	}
	return limit
}

// combGraph splits join nodes until every join is the immediate
// post-dominator of its immediate dominator. Each split clones the join
// for all predecessors but one dominator-tree subtree.
func (b *astBuilder) combGraph(g *FlowGraph) *dagInfo {
	limit := b.combLimit(g)
	splits := 0
	for {
		info := analyzeDAG(g)
		x := findCombCandidate(g, info)
		if x == nil {
			return info
		}
		splits++
		invariant(splits <= limit, "comb of %q did not converge after %d splits", g.Name(), limit)
		b.stats.Duplications += splitJoin(g, info, x)
	}
}

func findCombCandidate(g *FlowGraph, info *dagInfo) *Node {
	for _, x := range ReversePostOrder(g) {
		if len(x.preds) < 2 {
			continue
		}
		d := info.dt.IDom(x)
		if d == nil {
			continue
		}
		if info.ipdom(d) != x {
			return x
		}
	}
	return nil
}

// splitJoin groups the predecessors of x by the child of idom(x) they
// descend from; the first group keeps x and every other group gets a
// clone. It returns the number of clones.
func splitJoin(g *FlowGraph, info *dagInfo, x *Node) int {
	d := info.dt.IDom(x)

	groupOf := func(p *Node) *Node {
		if p == d {
			return d
		}
		for n := p; n != nil; n = info.dt.IDom(n) {
			if info.dt.IDom(n) == d {
				return n
			}
		}
		invariant(false, "predecessor %s of %s is not dominated by %s", p.NameString(), x.NameString(), d.NameString())
		return nil
	}

	groups := make(map[*Node][]*Node)
	var keys []*Node
	for _, p := range x.Predecessors() {
		key := groupOf(p)
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], p)
	}
	invariant(len(keys) > 1, "join %s has a single predecessor group", x.NameString())
	sort.SliceStable(keys, func(i, j int) bool { return info.dt.Order(keys[i]) < info.dt.Order(keys[j]) })

	for _, key := range keys[1:] {
		clone := cloneWithEdges(g, x)
		for _, p := range groups[key] {
			g.MoveEdgeTarget(p, x, clone)
		}
	}
	return len(keys) - 1
}

// cloneWithEdges copies n and its outgoing edges
func cloneWithEdges(g *FlowGraph, n *Node) *Node {
	c := g.CloneNode(n)
	for _, e := range n.succs {
		g.AddEdge(c, e.Target, e.Info)
	}
	return c
}

// untangle duplicates the tail after a two-way branch into its else side
// when the tail is lighter than both sides, so that the branches no longer
// reconverge
func (b *astBuilder) untangle(g *FlowGraph) {
	examined := make(map[*Node]bool)
	limit := b.combLimit(g)
	for pass := 0; ; pass++ {
		invariant(pass <= limit, "untangle of %q did not converge", g.Name())
		info := analyzeDAG(g)
		performed := false

		for _, c := range ReversePostOrder(g) {
			if !c.IsCode() || len(c.succs) != 2 || len(c.succs[0].Info.Labels) > 0 || len(c.succs[1].Info.Labels) > 0 {
				continue
			}
			p := info.ipdom(c)
			then, els := c.succs[0], c.succs[1]
			if p == nil || then.Target == p || els.Target == p || then.Info.Inlined || els.Info.Inlined {
				continue
			}
			if !examined[c] {
				examined[c] = true
				b.stats.TentativeUntangle++
			}

			thenSide := sideOf(then.Target, p)
			elseSide := sideOf(els.Target, p)
			if !disjoint(thenSide, elseSide) || len(els.Target.preds) != 1 {
				continue
			}
			tail := reachableFrom(p, nil)
			tailWeight := weightOf(tail)
			if tailWeight >= weightOf(thenSide) || tailWeight >= weightOf(elseSide) {
				continue
			}

			duplicateTail(g, p, tail, elseSide)
			b.stats.PerformedUntangle++
			b.r.logf("untangled %s by duplicating the tail at %s", c.NameString(), p.NameString())
			performed = true
			break
		}

		if !performed {
			return
		}
	}
}

// sideOf collects the nodes reachable from start without passing stop
func sideOf(start, stop *Node) map[*Node]bool {
	side := map[*Node]bool{start: true}
	stack := []*Node{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range n.succs {
			if e.Target == stop || side[e.Target] {
				continue
			}
			side[e.Target] = true
			stack = append(stack, e.Target)
		}
	}
	return side
}

func disjoint(a, b map[*Node]bool) bool {
	for n := range a {
		if b[n] {
			return false
		}
	}
	return true
}

func weightOf(nodes map[*Node]bool) int {
	total := 0
	for n := range nodes {
		total += n.Weight()
	}
	return total
}

// duplicateTail clones the tail starting at p and redirects the edges from
// side into p to the clone
func duplicateTail(g *FlowGraph, p *Node, tail, side map[*Node]bool) {
	ordered := make([]*Node, 0, len(tail))
	for _, n := range g.nodes {
		if tail[n] {
			ordered = append(ordered, n)
		}
	}

	clones := make(map[*Node]*Node, len(ordered))
	for _, n := range ordered {
		clones[n] = g.CloneNode(n)
	}
	for _, n := range ordered {
		for _, e := range n.succs {
			g.AddEdge(clones[n], clones[e.Target], e.Info)
		}
	}

	for _, pred := range p.Predecessors() {
		if side[pred] {
			g.MoveEdgeTarget(pred, p, clones[p])
		}
	}
}
