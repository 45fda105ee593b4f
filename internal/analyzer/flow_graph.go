package analyzer

import (
	"fmt"
	"sort"

	"github.com/ludo-technologies/decomb/internal/ast"
	"github.com/ludo-technologies/decomb/internal/ir"
)

// NodeKind represents the kind of a flow graph node
type NodeKind int

const (
	// NodeCode wraps an original basic block
	NodeCode NodeKind = iota
	// NodeEmpty is an artificial pass-through node
	NodeEmpty
	// NodeBreak leaves the enclosing collapsed region
	NodeBreak
	// NodeContinue jumps back to the head of the enclosing collapsed region
	NodeContinue
	// NodeSet assigns a value to a state variable
	NodeSet
	// NodeCollapsed stands for a whole region moved into a nested graph
	NodeCollapsed
	// NodeDispatcher branches on a state variable
	NodeDispatcher
)

// String returns string representation of NodeKind
func (k NodeKind) String() string {
	switch k {
	case NodeCode:
		return "code"
	case NodeEmpty:
		return "empty"
	case NodeBreak:
		return "break"
	case NodeContinue:
		return "continue"
	case NodeSet:
		return "set"
	case NodeCollapsed:
		return "collapsed"
	case NodeDispatcher:
		return "dispatcher"
	default:
		return "unknown"
	}
}

// EdgeInfo carries the switch labels of an edge and whether the edge is
// inlined, i.e. dominates every path to the exits reachable from it
type EdgeInfo struct {
	Labels  []uint64
	Inlined bool
}

// Labeled returns an EdgeInfo with the given labels
func Labeled(labels ...uint64) EdgeInfo {
	return EdgeInfo{Labels: normalizeLabels(labels)}
}

func (e EdgeInfo) merge(other EdgeInfo) EdgeInfo {
	return EdgeInfo{
		Labels:  normalizeLabels(append(append([]uint64{}, e.Labels...), other.Labels...)),
		Inlined: e.Inlined && other.Inlined,
	}
}

func (e EdgeInfo) clone() EdgeInfo {
	return EdgeInfo{Labels: append([]uint64(nil), e.Labels...), Inlined: e.Inlined}
}

func normalizeLabels(labels []uint64) []uint64 {
	if len(labels) == 0 {
		return nil
	}
	out := append([]uint64{}, labels...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// Edge is an outgoing edge as stored on its source node
type Edge struct {
	Target *Node
	Info   EdgeInfo
}

// Node is a vertex of a FlowGraph. A node belongs to exactly one graph at a
// time and all of its edges stay inside that graph.
type Node struct {
	id    int
	kind  NodeKind
	name  string
	graph *FlowGraph

	block    *ir.Block
	stateVar ast.StateVar
	value    uint64
	nested   *FlowGraph

	succs []Edge
	preds []*Node
}

// ID returns the function-wide unique id of the node
func (n *Node) ID() int { return n.id }

// Kind returns the node kind
func (n *Node) Kind() NodeKind { return n.kind }

// Name returns the display name
func (n *Node) Name() string { return n.name }

// NameString renders the node for diagnostics
func (n *Node) NameString() string { return fmt.Sprintf("ID:%d %s", n.id, n.name) }

// Graph returns the owning graph
func (n *Node) Graph() *FlowGraph { return n.graph }

// Block returns the original block of a Code node
func (n *Node) Block() *ir.Block { return n.block }

// StateVar returns the state variable of a Set or Dispatcher node
func (n *Node) StateVar() ast.StateVar { return n.stateVar }

// Value returns the value assigned by a Set node
func (n *Node) Value() uint64 { return n.value }

// Nested returns the region graph of a Collapsed node
func (n *Node) Nested() *FlowGraph { return n.nested }

func (n *Node) IsCode() bool       { return n.kind == NodeCode }
func (n *Node) IsEmpty() bool      { return n.kind == NodeEmpty }
func (n *Node) IsBreak() bool      { return n.kind == NodeBreak }
func (n *Node) IsContinue() bool   { return n.kind == NodeContinue }
func (n *Node) IsSet() bool        { return n.kind == NodeSet }
func (n *Node) IsCollapsed() bool  { return n.kind == NodeCollapsed }
func (n *Node) IsDispatcher() bool { return n.kind == NodeDispatcher }

// IsArtificial reports whether the node was synthesized by the structurer
func (n *Node) IsArtificial() bool {
	return n.kind != NodeCode && n.kind != NodeCollapsed
}

// Weight is the block weight for Code, the nested weight for Collapsed
// and 0 for synthetic nodes
func (n *Node) Weight() int {
	switch n.kind {
	case NodeCode:
		return n.block.Weight
	case NodeCollapsed:
		return n.nested.Weight()
	}
	return 0
}

// Edges returns the outgoing edges in order
func (n *Node) Edges() []Edge { return n.succs }

// Successors returns the successor nodes in edge order
func (n *Node) Successors() []*Node {
	out := make([]*Node, len(n.succs))
	for i, e := range n.succs {
		out[i] = e.Target
	}
	return out
}

// Predecessors returns the predecessor nodes
func (n *Node) Predecessors() []*Node {
	return append([]*Node(nil), n.preds...)
}

// EdgeTo returns the info of the edge to target, if any
func (n *Node) EdgeTo(target *Node) (EdgeInfo, bool) {
	for _, e := range n.succs {
		if e.Target == target {
			return e.Info, true
		}
	}
	return EdgeInfo{}, false
}

func (n *Node) edgeIndex(target *Node) int {
	for i, e := range n.succs {
		if e.Target == target {
			return i
		}
	}
	return -1
}

func (n *Node) removePred(p *Node) {
	for i, q := range n.preds {
		if q == p {
			n.preds = append(n.preds[:i], n.preds[i+1:]...)
			return
		}
	}
}

func (n *Node) String() string { return n.NameString() }

// idAllocator hands out node ids shared by every graph of one function
type idAllocator struct {
	next int
}

func (a *idAllocator) take() int {
	id := a.next
	a.next++
	return id
}

// FlowGraph is a mutable directed graph of structuring nodes with a single
// entry. Every graph of one function, the root and the nested region
// graphs, draws ids from the same allocator, so ids are never reused.
type FlowGraph struct {
	name  string
	ids   *idAllocator
	nodes []*Node
	entry *Node
}

// NewFlowGraph creates an empty graph with its own id allocator
func NewFlowGraph(name string) *FlowGraph {
	return &FlowGraph{name: name, ids: &idAllocator{}}
}

// newNested creates an empty graph sharing the id allocator of g
func (g *FlowGraph) newNested(name string) *FlowGraph {
	return &FlowGraph{name: name, ids: g.ids}
}

// Name returns the graph name
func (g *FlowGraph) Name() string { return g.name }

// Entry returns the entry node
func (g *FlowGraph) Entry() *Node { return g.entry }

// SetEntry designates the entry node
func (g *FlowGraph) SetEntry(n *Node) {
	g.checkOwned(n)
	g.entry = n
}

// Nodes returns the nodes in insertion order
func (g *FlowGraph) Nodes() []*Node {
	return append([]*Node(nil), g.nodes...)
}

// Size returns the number of nodes
func (g *FlowGraph) Size() int { return len(g.nodes) }

// Contains reports whether n belongs to g
func (g *FlowGraph) Contains(n *Node) bool { return n != nil && n.graph == g }

// Weight sums the weights of every node
func (g *FlowGraph) Weight() int {
	total := 0
	for _, n := range g.nodes {
		total += n.Weight()
	}
	return total
}

func (g *FlowGraph) checkOwned(nodes ...*Node) {
	for _, n := range nodes {
		invariant(n != nil, "nil node in graph %q", g.name)
		invariant(n.graph == g, "node %s does not belong to graph %q", n.NameString(), g.name)
	}
}

func (g *FlowGraph) addNode(kind NodeKind, name string) *Node {
	n := &Node{id: g.ids.take(), kind: kind, name: name, graph: g}
	g.nodes = append(g.nodes, n)
	return n
}

// AddCode adds a node wrapping an original block
func (g *FlowGraph) AddCode(block *ir.Block) *Node {
	n := g.addNode(NodeCode, block.Label())
	n.block = block
	return n
}

// AddEmpty adds an artificial pass-through node
func (g *FlowGraph) AddEmpty(name string) *Node {
	return g.addNode(NodeEmpty, name)
}

// AddBreak adds a break node
func (g *FlowGraph) AddBreak() *Node {
	return g.addNode(NodeBreak, "break")
}

// AddContinue adds a continue node
func (g *FlowGraph) AddContinue() *Node {
	return g.addNode(NodeContinue, "continue")
}

// AddSet adds a node assigning value to v
func (g *FlowGraph) AddSet(v ast.StateVar, value uint64, name string) *Node {
	n := g.addNode(NodeSet, fmt.Sprintf("set %s=%d %s", v, value, name))
	n.stateVar = v
	n.value = value
	return n
}

// AddDispatcher adds a node branching on v
func (g *FlowGraph) AddDispatcher(v ast.StateVar, name string) *Node {
	n := g.addNode(NodeDispatcher, name)
	n.stateVar = v
	return n
}

// AddCollapsed adds a node standing for the region graph nested
func (g *FlowGraph) AddCollapsed(nested *FlowGraph) *Node {
	n := g.addNode(NodeCollapsed, "collapsed "+nested.name)
	n.nested = nested
	return n
}

// CloneNode adds a copy of n without edges. Clones of Collapsed nodes share
// the nested graph, which is read-only once collapsed.
func (g *FlowGraph) CloneNode(n *Node) *Node {
	g.checkOwned(n)
	c := g.addNode(n.kind, n.name)
	c.block = n.block
	c.stateVar = n.stateVar
	c.value = n.value
	c.nested = n.nested
	return c
}

// SetName renames a node
func (n *Node) SetName(name string) { n.name = name }

// AddEdge adds from -> to. Adding an already existing pair merges labels.
func (g *FlowGraph) AddEdge(from, to *Node, info EdgeInfo) {
	g.checkOwned(from, to)
	if i := from.edgeIndex(to); i >= 0 {
		from.succs[i].Info = from.succs[i].Info.merge(info)
		return
	}
	from.succs = append(from.succs, Edge{Target: to, Info: info.clone()})
	to.preds = append(to.preds, from)
}

// AddPlainEdge adds an unlabeled edge
func (g *FlowGraph) AddPlainEdge(from, to *Node) {
	g.AddEdge(from, to, EdgeInfo{})
}

// RemoveEdge removes from -> to and returns its info
func (g *FlowGraph) RemoveEdge(from, to *Node) EdgeInfo {
	g.checkOwned(from, to)
	i := from.edgeIndex(to)
	invariant(i >= 0, "no edge %s -> %s", from.NameString(), to.NameString())
	info := from.succs[i].Info
	from.succs = append(from.succs[:i], from.succs[i+1:]...)
	to.removePred(from)
	return info
}

// MoveEdgeTarget retargets from -> oldTo to newTo, keeping the edge at the
// same position in the successor list of from
func (g *FlowGraph) MoveEdgeTarget(from, oldTo, newTo *Node) {
	g.checkOwned(from, oldTo, newTo)
	i := from.edgeIndex(oldTo)
	invariant(i >= 0, "no edge %s -> %s to move", from.NameString(), oldTo.NameString())
	if oldTo == newTo {
		return
	}

	info := from.succs[i].Info
	oldTo.removePred(from)
	if j := from.edgeIndex(newTo); j >= 0 {
		from.succs[j].Info = from.succs[j].Info.merge(info)
		from.succs = append(from.succs[:i], from.succs[i+1:]...)
		return
	}
	from.succs[i].Target = newTo
	newTo.preds = append(newTo.preds, from)
}

// SetEdgeInlined updates the inlined flag of from -> to
func (g *FlowGraph) SetEdgeInlined(from, to *Node, inlined bool) {
	i := from.edgeIndex(to)
	invariant(i >= 0, "no edge %s -> %s", from.NameString(), to.NameString())
	from.succs[i].Info.Inlined = inlined
}

// RemoveNode deletes n together with its edges
func (g *FlowGraph) RemoveNode(n *Node) {
	g.checkOwned(n)
	invariant(g.entry != n, "cannot remove the entry node %s of graph %q", n.NameString(), g.name)
	for _, e := range n.succs {
		e.Target.removePred(n)
	}
	for _, p := range n.preds {
		if i := p.edgeIndex(n); i >= 0 {
			p.succs = append(p.succs[:i], p.succs[i+1:]...)
		}
	}
	n.succs = nil
	n.preds = nil
	g.detach(n)
}

// detach drops n from the node list without touching its edges
func (g *FlowGraph) detach(n *Node) {
	for i, m := range g.nodes {
		if m == n {
			g.nodes = append(g.nodes[:i], g.nodes[i+1:]...)
			break
		}
	}
	n.graph = nil
}

// adopt appends a detached node to g
func (g *FlowGraph) adopt(n *Node) {
	invariant(n.graph == nil, "node %s is still owned by another graph", n.NameString())
	n.graph = g
	g.nodes = append(g.nodes, n)
}

// Edges lists every edge of the graph as (source, target) pairs
func (g *FlowGraph) Edges() []EdgePair {
	var out []EdgePair
	for _, n := range g.nodes {
		for _, e := range n.succs {
			out = append(out, EdgePair{Source: n, Target: e.Target})
		}
	}
	return out
}

// EdgePair identifies an edge by its endpoints
type EdgePair struct {
	Source *Node
	Target *Node
}

func (e EdgePair) String() string {
	return e.Source.NameString() + " -> " + e.Target.NameString()
}
