package analyzer

import (
	"github.com/ludo-technologies/decomb/internal/ast"
)

// builderStats accumulates the duplication counters of one function
type builderStats struct {
	Duplications      int
	TentativeUntangle int
	PerformedUntangle int
}

// astBuilder converts acyclic flow graphs into AST fragments. The body of
// every nested graph is built once into a private tree and copied wherever
// a Collapsed node references it.
type astBuilder struct {
	r     *Restructurer
	lib   *ast.Tree
	memo  map[*FlowGraph]ast.Node
	stats builderStats
}

func newASTBuilder(r *Restructurer) *astBuilder {
	return &astBuilder{
		r:    r,
		lib:  ast.NewTree(),
		memo: make(map[*FlowGraph]ast.Node),
	}
}

// build structures g into tree and returns the root fragment
func (b *astBuilder) build(tree *ast.Tree, g *FlowGraph) ast.Node {
	info := b.prepare(g)
	gb := &graphBuilder{b: b, tree: tree, g: g, info: info, built: make(map[*Node]bool)}
	return gb.node(g.Entry())
}

// nested returns the memoized AST of a collapsed region, living in b.lib
func (b *astBuilder) nested(g *FlowGraph) ast.Node {
	if n, ok := b.memo[g]; ok {
		return n
	}
	body := b.build(b.lib, g)
	if body == nil {
		body = b.lib.NewSequence()
	}
	b.memo[g] = body
	return body
}

// prepare applies untangling and combing to g and returns its dominance
// information
func (b *astBuilder) prepare(g *FlowGraph) *dagInfo {
	invariant(g.IsDAG(), "graph %q handed to the AST builder is cyclic", g.Name())
	if b.r.options.Untangle {
		b.untangle(g)
	}
	return b.combGraph(g)
}

// graphBuilder maps the nodes of one combed graph onto AST nodes
type graphBuilder struct {
	b     *astBuilder
	tree  *ast.Tree
	g     *FlowGraph
	info  *dagInfo
	built map[*Node]bool
}

// successorNode returns the post-dominator that follows n in a sequence:
// the immediate post-dominator of n when n also dominates it
func (gb *graphBuilder) successorNode(n *Node) *Node {
	p := gb.info.ipdom(n)
	if p == nil || gb.info.dt.IDom(p) != n {
		return nil
	}
	return p
}

// branch builds the body reached from n through s, or nil when s is shared
// with the code following n
func (gb *graphBuilder) branch(n, s, successor *Node) ast.Node {
	if s == successor || gb.info.dt.IDom(s) != n {
		return nil
	}
	return gb.node(s)
}

func (gb *graphBuilder) node(n *Node) ast.Node {
	if n == nil {
		return nil
	}
	invariant(!gb.built[n], "node %s is emitted twice", n.NameString())
	gb.built[n] = true

	successor := gb.successorNode(n)
	var result ast.Node

	switch n.Kind() {
	case NodeEmpty:
		gb.checkChildren(n, successor)
		if successor != nil {
			return gb.node(successor)
		}
		if len(n.succs) == 1 {
			return gb.branch(n, n.succs[0].Target, nil)
		}
		return nil

	case NodeCode:
		result = gb.codeNode(n, successor)

	case NodeDispatcher:
		sw := gb.tree.NewStateSwitch(n.StateVar())
		gb.fillSwitch(sw, n, successor)
		result = sw

	case NodeCollapsed:
		body := gb.tree.CopyFrom(gb.b.nested(n.Nested()))
		result = gb.tree.NewScs(body)

	case NodeSet:
		result = gb.tree.NewSet(n.StateVar(), n.Value())

	case NodeBreak:
		invariant(len(n.succs) == 0, "break %s has successors", n.NameString())
		result = gb.tree.NewBreak()

	case NodeContinue:
		invariant(len(n.succs) == 0, "continue %s has successors", n.NameString())
		result = gb.tree.NewContinue()
	}

	gb.checkChildren(n, successor)
	if successor != nil {
		if next := gb.node(successor); next != nil {
			result = gb.attach(result, next)
		}
	}
	return result
}

// attach sets next as successor of result. Variants without a successor
// slot are wrapped into a sequence.
func (gb *graphBuilder) attach(result ast.Node, next ast.Node) ast.Node {
	switch result.(type) {
	case *ast.Code, *ast.If, *ast.Scs, *ast.Switch:
		ast.SetSuccessor(result, next)
		return result
	}
	return gb.tree.NewSequence(result, next)
}

func (gb *graphBuilder) codeNode(n *Node, successor *Node) ast.Node {
	block := n.Block()
	switch {
	case len(n.succs) <= 1:
		return gb.tree.NewCode(block)

	case len(n.succs) == 2 && len(n.succs[0].Info.Labels) == 0 && len(n.succs[1].Info.Labels) == 0:
		then := gb.branch(n, n.succs[0].Target, successor)
		els := gb.branch(n, n.succs[1].Target, successor)
		return gb.tree.NewIf(gb.tree.NewAtomic(block), then, els)

	default:
		sw := gb.tree.NewSwitch(block)
		gb.fillSwitch(sw, n, successor)
		return sw
	}
}

func (gb *graphBuilder) fillSwitch(sw *ast.Switch, n *Node, successor *Node) {
	for _, e := range n.succs {
		body := gb.branch(n, e.Target, successor)
		if len(e.Info.Labels) == 0 {
			sw.Default = body
			continue
		}
		if body == nil {
			body = gb.tree.NewSwitchBreak()
		}
		sw.Cases = append(sw.Cases, ast.Case{
			Labels: append([]uint64(nil), e.Info.Labels...),
			Body:   body,
		})
	}
}

// checkChildren verifies that every node immediately dominated by n is
// emitted as one of its branches or as its successor
func (gb *graphBuilder) checkChildren(n *Node, successor *Node) {
	for _, c := range gb.info.dt.Children(n) {
		if c == successor {
			continue
		}
		direct := false
		for _, e := range n.succs {
			if e.Target == c {
				direct = true
				break
			}
		}
		invariant(direct, "%s immediately dominates %s without reaching it directly", n.NameString(), c.NameString())
	}
}
