package analyzer

// DomTree is an immediate dominator tree computed with the Cooper, Harvey
// and Kennedy iterative algorithm. The same code computes post-dominators
// by walking the reverse graph from a virtual sink.
type DomTree struct {
	root     *Node
	idom     map[*Node]*Node
	rpoNum   map[*Node]int
	children map[*Node][]*Node
}

type neighbors func(*Node) []*Node

// computeDomTree builds the dominator tree of the graph described by succs
// and preds, rooted at root
func computeDomTree(root *Node, succs, preds neighbors) *DomTree {
	rpo := reversePostOrderBy(root, succs)
	t := &DomTree{
		root:     root,
		idom:     make(map[*Node]*Node, len(rpo)),
		rpoNum:   make(map[*Node]int, len(rpo)),
		children: make(map[*Node][]*Node),
	}
	for i, n := range rpo {
		t.rpoNum[n] = i
	}

	intersect := func(b1, b2 *Node) *Node {
		for b1 != b2 {
			for t.rpoNum[b1] > t.rpoNum[b2] {
				b1 = t.idom[b1]
			}
			for t.rpoNum[b2] > t.rpoNum[b1] {
				b2 = t.idom[b2]
			}
		}
		return b1
	}

	t.idom[root] = root
	changed := true
	for changed {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom *Node
			for _, p := range preds(b) {
				if _, done := t.idom[p]; !done {
					continue
				}
				if newIdom == nil {
					newIdom = p
				} else {
					newIdom = intersect(p, newIdom)
				}
			}
			if newIdom != nil && t.idom[b] != newIdom {
				t.idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(t.idom, root)

	for _, n := range rpo {
		if d, ok := t.idom[n]; ok {
			t.children[d] = append(t.children[d], n)
		}
	}
	return t
}

func reversePostOrderBy(root *Node, succs neighbors) []*Node {
	type frame struct {
		node  *Node
		succs []*Node
		next  int
	}
	visited := map[*Node]bool{root: true}
	stack := []frame{{node: root, succs: succs(root)}}
	var order []*Node
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.succs) {
			s := top.succs[top.next]
			top.next++
			if !visited[s] {
				visited[s] = true
				stack = append(stack, frame{node: s, succs: succs(s)})
			}
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// Root returns the tree root
func (t *DomTree) Root() *Node { return t.root }

// Contains reports whether n was reachable when the tree was built
func (t *DomTree) Contains(n *Node) bool {
	_, ok := t.rpoNum[n]
	return ok
}

// IDom returns the immediate dominator of n, nil for the root
func (t *DomTree) IDom(n *Node) *Node { return t.idom[n] }

// Children returns the nodes immediately dominated by n, in reverse
// post-order
func (t *DomTree) Children(n *Node) []*Node { return t.children[n] }

// Dominates reports whether a dominates b; every node dominates itself
func (t *DomTree) Dominates(a, b *Node) bool {
	if !t.Contains(a) || !t.Contains(b) {
		return false
	}
	for n := b; n != nil; n = t.idom[n] {
		if n == a {
			return true
		}
	}
	return false
}

// Order returns the reverse post-order number of n
func (t *DomTree) Order(n *Node) int { return t.rpoNum[n] }

// Dominators computes the dominator tree of g
func Dominators(g *FlowGraph) *DomTree {
	return computeDomTree(g.entry,
		func(n *Node) []*Node { return n.Successors() },
		func(n *Node) []*Node { return n.preds },
	)
}

// postDomSink is the virtual exit joining every exit of a graph
func newPostDomSink() *Node {
	return &Node{id: -1, kind: NodeEmpty, name: "sink"}
}

// PostDominators computes the post-dominator tree of the DAG g rooted at a
// virtual sink. Inlined edges are ignored, so a branch that never
// reconverges does not prevent its siblings from reconverging.
func PostDominators(g *FlowGraph) (*DomTree, *Node) {
	sink := newPostDomSink()
	forward := func(n *Node) []*Node {
		var out []*Node
		for _, e := range n.succs {
			if !e.Info.Inlined {
				out = append(out, e.Target)
			}
		}
		return out
	}

	var exits []*Node
	for _, n := range g.nodes {
		if len(forward(n)) == 0 {
			exits = append(exits, n)
		}
	}

	reverseSuccs := func(n *Node) []*Node {
		if n == sink {
			return exits
		}
		var out []*Node
		for _, p := range n.preds {
			if info, ok := p.EdgeTo(n); ok && !info.Inlined {
				out = append(out, p)
			}
		}
		return out
	}
	reversePreds := func(n *Node) []*Node {
		out := forward(n)
		if len(out) == 0 {
			out = append(out, sink)
		}
		return out
	}

	return computeDomTree(sink, reverseSuccs, reversePreds), sink
}
