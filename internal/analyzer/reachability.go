package analyzer

// ReachabilityResult contains the results of reachability analysis
type ReachabilityResult struct {
	// Reachable contains nodes that can be reached from entry
	Reachable map[*Node]bool

	// Unreachable contains nodes that cannot be reached from entry
	Unreachable []*Node
}

// AnalyzeReachability performs reachability analysis starting from the entry node
func AnalyzeReachability(g *FlowGraph) *ReachabilityResult {
	result := &ReachabilityResult{Reachable: make(map[*Node]bool)}
	if g == nil || g.entry == nil {
		result.Unreachable = g.Nodes()
		return result
	}

	result.Reachable = reachableFrom(g.entry, nil)
	for _, n := range g.nodes {
		if !result.Reachable[n] {
			result.Unreachable = append(result.Unreachable, n)
		}
	}
	return result
}

// reachableFrom walks successors from start. The skip edge, when set, is
// not traversed.
func reachableFrom(start *Node, skip *EdgePair) map[*Node]bool {
	visited := map[*Node]bool{start: true}
	stack := []*Node{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, e := range n.succs {
			if skip != nil && skip.Source == n && skip.Target == e.Target {
				continue
			}
			if !visited[e.Target] {
				visited[e.Target] = true
				stack = append(stack, e.Target)
			}
		}
	}
	return visited
}

// reachingTo walks predecessors from start, skipping the given edge
func reachingTo(start *Node, skip *EdgePair) map[*Node]bool {
	visited := map[*Node]bool{start: true}
	stack := []*Node{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range n.preds {
			if skip != nil && skip.Source == p && skip.Target == n {
				continue
			}
			if !visited[p] {
				visited[p] = true
				stack = append(stack, p)
			}
		}
	}
	return visited
}

// removeNotReachables deletes every node unreachable from the entry and
// drops it from the given regions. It returns the removed nodes.
func (g *FlowGraph) removeNotReachables(regions []*MetaRegion) []*Node {
	result := AnalyzeReachability(g)
	for _, n := range result.Unreachable {
		g.RemoveNode(n)
		for _, r := range regions {
			r.Remove(n)
		}
	}
	return result.Unreachable
}

// ReversePostOrder returns the nodes reachable from the entry in reverse
// post-order
func ReversePostOrder(g *FlowGraph) []*Node {
	if g.entry == nil {
		return nil
	}
	order := postOrder(g.entry)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

type dfsFrame struct {
	node *Node
	next int
}

// postOrder is an iterative depth first post-order from entry
func postOrder(entry *Node) []*Node {
	visited := map[*Node]bool{entry: true}
	stack := []dfsFrame{{node: entry}}
	var order []*Node
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.node.succs) {
			succ := top.node.succs[top.next].Target
			top.next++
			if !visited[succ] {
				visited[succ] = true
				stack = append(stack, dfsFrame{node: succ})
			}
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	return order
}

// FindBackedges returns the retreating edges of g in discovery order: edges
// whose target has been entered but not yet finished by a depth first
// traversal from the entry
func FindBackedges(g *FlowGraph) []EdgePair {
	if g.entry == nil {
		return nil
	}

	started := map[*Node]bool{g.entry: true}
	finished := make(map[*Node]bool)
	stack := []dfsFrame{{node: g.entry}}
	var backedges []EdgePair

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.node.succs) {
			source := top.node
			succ := source.succs[top.next].Target
			top.next++
			switch {
			case !started[succ]:
				started[succ] = true
				stack = append(stack, dfsFrame{node: succ})
			case !finished[succ]:
				backedges = append(backedges, EdgePair{Source: source, Target: succ})
			}
			continue
		}
		finished[top.node] = true
		stack = stack[:len(stack)-1]
	}
	return backedges
}

// IsDAG reports whether no cycle is reachable from the entry
func (g *FlowGraph) IsDAG() bool {
	return len(FindBackedges(g)) == 0
}

// acyclicOutside reports whether the nodes of g for which pending returns
// false induce an acyclic subgraph. Unlike IsDAG it also looks at nodes the
// entry cannot reach.
func (g *FlowGraph) acyclicOutside(pending func(*Node) bool) bool {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[*Node]int, len(g.nodes))
	for _, root := range g.nodes {
		if pending(root) || state[root] != unvisited {
			continue
		}
		state[root] = active
		stack := []dfsFrame{{node: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(top.node.succs) {
				succ := top.node.succs[top.next].Target
				top.next++
				if pending(succ) {
					continue
				}
				switch state[succ] {
				case unvisited:
					state[succ] = active
					stack = append(stack, dfsFrame{node: succ})
				case active:
					return false
				}
				continue
			}
			state[top.node] = done
			stack = stack[:len(stack)-1]
		}
	}
	return true
}
