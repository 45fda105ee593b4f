package analyzer

import (
	"fmt"
	"strings"

	"github.com/google/btree"
)

const regionTreeDegree = 8

func nodeLess(a, b *Node) bool { return a.id < b.id }

// MetaRegion is a set of nodes forming a loop body, ordered by node id.
// Regions reference nodes weakly: the graph owns them.
type MetaRegion struct {
	index  int
	nodes  *btree.BTreeG[*Node]
	isSCS  bool
	parent *MetaRegion
}

// NewMetaRegion creates a region holding nodes
func NewMetaRegion(index int, nodes []*Node, isSCS bool) *MetaRegion {
	r := &MetaRegion{
		index: index,
		nodes: btree.NewG[*Node](regionTreeDegree, nodeLess),
		isSCS: isSCS,
	}
	for _, n := range nodes {
		r.nodes.ReplaceOrInsert(n)
	}
	return r
}

// Index returns the region number; the root region is 0
func (r *MetaRegion) Index() int { return r.index }

// IsSCS reports whether the region is a strongly connected loop body
func (r *MetaRegion) IsSCS() bool { return r.isSCS }

// Parent returns the nearest enclosing region
func (r *MetaRegion) Parent() *MetaRegion { return r.parent }

// SetParent records the nearest enclosing region
func (r *MetaRegion) SetParent(p *MetaRegion) { r.parent = p }

// Contains reports membership of n
func (r *MetaRegion) Contains(n *Node) bool { return r.nodes.Has(n) }

// Insert adds n
func (r *MetaRegion) Insert(n *Node) { r.nodes.ReplaceOrInsert(n) }

// Remove drops n if present
func (r *MetaRegion) Remove(n *Node) { r.nodes.Delete(n) }

// Size returns the number of nodes
func (r *MetaRegion) Size() int { return r.nodes.Len() }

// Nodes returns the nodes in ascending id order
func (r *MetaRegion) Nodes() []*Node {
	out := make([]*Node, 0, r.nodes.Len())
	r.nodes.Ascend(func(n *Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// OutEdges returns the edges leaving the region
func (r *MetaRegion) OutEdges() []EdgePair {
	var out []EdgePair
	r.nodes.Ascend(func(n *Node) bool {
		for _, e := range n.succs {
			if !r.Contains(e.Target) {
				out = append(out, EdgePair{Source: n, Target: e.Target})
			}
		}
		return true
	})
	return out
}

// InEdges returns the edges entering the region
func (r *MetaRegion) InEdges() []EdgePair {
	var in []EdgePair
	r.nodes.Ascend(func(n *Node) bool {
		for _, p := range n.preds {
			if !r.Contains(p) {
				in = append(in, EdgePair{Source: p, Target: n})
			}
		}
		return true
	})
	return in
}

// Successors returns the distinct targets of the out edges
func (r *MetaRegion) Successors() []*Node {
	seen := make(map[*Node]bool)
	var out []*Node
	for _, e := range r.OutEdges() {
		if !seen[e.Target] {
			seen[e.Target] = true
			out = append(out, e.Target)
		}
	}
	return out
}

// Intersects reports whether the regions share a node
func (r *MetaRegion) Intersects(other *MetaRegion) bool {
	small, large := r, other
	if small.Size() > large.Size() {
		small, large = large, small
	}
	found := false
	small.nodes.Ascend(func(n *Node) bool {
		found = large.Contains(n)
		return !found
	})
	return found
}

// IsSubSetOf reports whether every node of r is in other
func (r *MetaRegion) IsSubSetOf(other *MetaRegion) bool {
	if r.Size() > other.Size() {
		return false
	}
	all := true
	r.nodes.Ascend(func(n *Node) bool {
		all = other.Contains(n)
		return all
	})
	return all
}

// IsSuperSetOf reports whether r contains every node of other
func (r *MetaRegion) IsSuperSetOf(other *MetaRegion) bool {
	return other.IsSubSetOf(r)
}

// NodesEqual reports whether both regions hold the same nodes
func (r *MetaRegion) NodesEqual(other *MetaRegion) bool {
	return r.Size() == other.Size() && r.IsSubSetOf(other)
}

// MergeWith adds every node of other to r
func (r *MetaRegion) MergeWith(other *MetaRegion) {
	other.nodes.Ascend(func(n *Node) bool {
		r.nodes.ReplaceOrInsert(n)
		return true
	})
}

// UpdateNodes reflects the collapse of another region: when r held any of
// the removed nodes, they are replaced by the collapsed node together with
// the exit dispatcher, the default entry sets and the outlined clones.
func (r *MetaRegion) UpdateNodes(removed []*Node, collapsed *Node, dispatcher, defaultSets, outlined []*Node) {
	touched := false
	for _, n := range removed {
		if r.Contains(n) {
			touched = true
			r.Remove(n)
		}
	}
	if !touched {
		return
	}
	r.Insert(collapsed)
	for _, group := range [][]*Node{dispatcher, defaultSets, outlined} {
		for _, n := range group {
			r.Insert(n)
		}
	}
}

// ReplaceNodes swaps the whole node set
func (r *MetaRegion) ReplaceNodes(nodes []*Node) {
	r.nodes.Clear(false)
	for _, n := range nodes {
		r.nodes.ReplaceOrInsert(n)
	}
}

func (r *MetaRegion) String() string {
	names := make([]string, 0, r.Size())
	for _, n := range r.Nodes() {
		names = append(names, fmt.Sprint(n.id))
	}
	return fmt.Sprintf("region %d {%s}", r.index, strings.Join(names, ", "))
}
