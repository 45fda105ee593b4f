package ast

import (
	"fmt"

	"github.com/ludo-technologies/decomb/internal/ir"
)

// Tree owns the nodes and condition expressions of one function
type Tree struct {
	nodes []Node
	exprs []Expr
	root  Node
}

// NewTree creates an empty tree
func NewTree() *Tree {
	return &Tree{
		nodes: []Node{},
		exprs: []Expr{},
	}
}

// Root returns the root node, or nil before SetRoot
func (t *Tree) Root() Node { return t.root }

// SetRoot designates the root node
func (t *Tree) SetRoot(n Node) { t.root = n }

// Nodes returns every node ever inserted, in id order
func (t *Tree) Nodes() []Node { return t.nodes }

// Size returns the number of inserted nodes
func (t *Tree) Size() int { return len(t.nodes) }

// ExprCount returns the number of expressions in the arena
func (t *Tree) ExprCount() int { return len(t.exprs) }

// Lookup returns the node with the given id
func (t *Tree) Lookup(id NodeID) Node {
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

func (t *Tree) insert(n Node, b *base) {
	b.id = NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
}

func (t *Tree) addExpr(e Expr) Expr {
	t.exprs = append(t.exprs, e)
	return e
}

// NewCode inserts a Code node for block
func (t *Tree) NewCode(block *ir.Block) *Code {
	n := &Code{Block: block}
	t.insert(n, &n.base)
	return n
}

// NewIf inserts an If node
func (t *Tree) NewIf(cond Expr, then, els Node) *If {
	n := &If{Cond: cond, Then: then, Else: els}
	t.insert(n, &n.base)
	return n
}

// NewScs inserts a loop node around body
func (t *Tree) NewScs(body Node) *Scs {
	n := &Scs{Body: body, Loop: LoopStandard}
	t.insert(n, &n.base)
	return n
}

// NewSequence inserts a Sequence node
func (t *Tree) NewSequence(nodes ...Node) *Sequence {
	n := &Sequence{Nodes: append([]Node{}, nodes...)}
	t.insert(n, &n.base)
	return n
}

// NewSwitch inserts a Switch on the value computed by block
func (t *Tree) NewSwitch(block *ir.Block) *Switch {
	n := &Switch{Condition: block}
	t.insert(n, &n.base)
	return n
}

// NewStateSwitch inserts a Switch dispatching on a state variable
func (t *Tree) NewStateSwitch(v StateVar) *Switch {
	n := &Switch{StateVar: v, NeedsStateVariable: true}
	t.insert(n, &n.base)
	return n
}

// NewBreak inserts a Break node
func (t *Tree) NewBreak() *Break {
	n := &Break{}
	t.insert(n, &n.base)
	return n
}

// NewSwitchBreak inserts a SwitchBreak node
func (t *Tree) NewSwitchBreak() *SwitchBreak {
	n := &SwitchBreak{}
	t.insert(n, &n.base)
	return n
}

// NewContinue inserts a Continue node
func (t *Tree) NewContinue() *Continue {
	n := &Continue{}
	t.insert(n, &n.base)
	return n
}

// NewSet inserts a state assignment
func (t *Tree) NewSet(v StateVar, value uint64) *Set {
	n := &Set{Var: v, Value: value}
	t.insert(n, &n.base)
	return n
}

// NewAtomic adds the condition of block to the expression arena
func (t *Tree) NewAtomic(block *ir.Block) *Atomic {
	return t.addExpr(&Atomic{Block: block}).(*Atomic)
}

// NewNot adds a negation to the expression arena
func (t *Tree) NewNot(x Expr) *Not {
	return t.addExpr(&Not{X: x}).(*Not)
}

// NewAnd adds a conjunction to the expression arena
func (t *Tree) NewAnd(l, r Expr) *And {
	return t.addExpr(&And{L: l, R: r}).(*And)
}

// NewOr adds a disjunction to the expression arena
func (t *Tree) NewOr(l, r Expr) *Or {
	return t.addExpr(&Or{L: l, R: r}).(*Or)
}

// Negate returns !e, unwrapping a double negation
func (t *Tree) Negate(e Expr) Expr {
	if n, ok := e.(*Not); ok {
		return n.X
	}
	return t.NewNot(e)
}

// CopyFrom clones the subtree rooted at root (which may live in another
// tree) into t and returns the clone. Every node and expression is copied
// and internal references are remapped through a substitution map, so the
// source is left untouched.
func (t *Tree) CopyFrom(root Node) Node {
	if root == nil {
		return nil
	}

	subst := make(map[Node]Node)
	var order []Node
	var collect func(n Node)
	collect = func(n Node) {
		if n == nil {
			return
		}
		if _, seen := subst[n]; seen {
			return
		}
		subst[n] = t.shallowCopy(n)
		order = append(order, n)
		for _, c := range Children(n) {
			collect(c)
		}
		switch v := n.(type) {
		case *Scs:
			if v.RelatedCondition != nil {
				collect(v.RelatedCondition)
			}
		}
		collect(SuccessorOf(n))
	}
	collect(root)

	remap := func(n Node) Node {
		if n == nil {
			return nil
		}
		c, ok := subst[n]
		if !ok {
			panic(fmt.Sprintf("ast: node %d escapes the copied subtree", n.ID()))
		}
		return c
	}

	for _, original := range order {
		switch c := subst[original].(type) {
		case *Code:
			c.Successor = remap(c.Successor)
		case *If:
			c.Then = remap(c.Then)
			c.Else = remap(c.Else)
			c.Successor = remap(c.Successor)
			c.Cond = t.copyExpr(c.Cond)
		case *Scs:
			c.Body = remap(c.Body)
			c.Successor = remap(c.Successor)
			if c.RelatedCondition != nil {
				c.RelatedCondition = remap(c.RelatedCondition).(*If)
			}
		case *Sequence:
			for i, child := range c.Nodes {
				c.Nodes[i] = remap(child)
			}
		case *Switch:
			for i := range c.Cases {
				c.Cases[i].Body = remap(c.Cases[i].Body)
			}
			c.Default = remap(c.Default)
			c.Successor = remap(c.Successor)
		}
	}

	return subst[root]
}

// shallowCopy inserts a field-wise copy of n, still pointing at the
// original children
func (t *Tree) shallowCopy(n Node) Node {
	switch v := n.(type) {
	case *Code:
		c := *v
		t.insert(&c, &c.base)
		return &c
	case *If:
		c := *v
		t.insert(&c, &c.base)
		return &c
	case *Scs:
		c := *v
		t.insert(&c, &c.base)
		return &c
	case *Sequence:
		c := *v
		c.Nodes = append([]Node{}, v.Nodes...)
		t.insert(&c, &c.base)
		return &c
	case *Switch:
		c := *v
		c.Cases = make([]Case, len(v.Cases))
		for i, cs := range v.Cases {
			c.Cases[i] = Case{Labels: append([]uint64{}, cs.Labels...), Body: cs.Body}
		}
		t.insert(&c, &c.base)
		return &c
	case *Break:
		c := *v
		t.insert(&c, &c.base)
		return &c
	case *SwitchBreak:
		c := *v
		t.insert(&c, &c.base)
		return &c
	case *Continue:
		c := *v
		t.insert(&c, &c.base)
		return &c
	case *Set:
		c := *v
		t.insert(&c, &c.base)
		return &c
	}
	panic(fmt.Sprintf("ast: unknown node type %T", n))
}

func (t *Tree) copyExpr(e Expr) Expr {
	switch v := e.(type) {
	case nil:
		return nil
	case *Atomic:
		return t.NewAtomic(v.Block)
	case *Not:
		return t.NewNot(t.copyExpr(v.X))
	case *And:
		return t.NewAnd(t.copyExpr(v.L), t.copyExpr(v.R))
	case *Or:
		return t.NewOr(t.copyExpr(v.L), t.copyExpr(v.R))
	}
	panic(fmt.Sprintf("ast: unknown expression type %T", e))
}

// IsEqual compares two subtrees structurally: same shape, same flags and
// the same underlying blocks. Node identities are not compared.
func IsEqual(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	if !IsEqual(SuccessorOf(a), SuccessorOf(b)) {
		return false
	}

	switch x := a.(type) {
	case *Code:
		return x.Block == b.(*Code).Block
	case *If:
		y := b.(*If)
		return ExprEqual(x.Cond, y.Cond) && IsEqual(x.Then, y.Then) && IsEqual(x.Else, y.Else)
	case *Scs:
		y := b.(*Scs)
		if x.Loop != y.Loop || !IsEqual(x.Body, y.Body) {
			return false
		}
		if x.RelatedCondition == nil || y.RelatedCondition == nil {
			return x.RelatedCondition == nil && y.RelatedCondition == nil
		}
		return IsEqual(x.RelatedCondition, y.RelatedCondition)
	case *Sequence:
		y := b.(*Sequence)
		if len(x.Nodes) != len(y.Nodes) {
			return false
		}
		for i := range x.Nodes {
			if !IsEqual(x.Nodes[i], y.Nodes[i]) {
				return false
			}
		}
		return true
	case *Switch:
		y := b.(*Switch)
		if x.Condition != y.Condition || x.OnStateVariable() != y.OnStateVariable() ||
			x.NeedsStateVariable != y.NeedsStateVariable ||
			x.NeedsLoopBreakDispatcher != y.NeedsLoopBreakDispatcher ||
			len(x.Cases) != len(y.Cases) {
			return false
		}
		if x.OnStateVariable() && x.StateVar != y.StateVar {
			return false
		}
		for i := range x.Cases {
			if !equalLabels(x.Cases[i].Labels, y.Cases[i].Labels) || !IsEqual(x.Cases[i].Body, y.Cases[i].Body) {
				return false
			}
		}
		return IsEqual(x.Default, y.Default)
	case *Break:
		return x.BreakFromWithinSwitch == b.(*Break).BreakFromWithinSwitch
	case *SwitchBreak:
		return true
	case *Continue:
		return x.Implicit == b.(*Continue).Implicit
	case *Set:
		y := b.(*Set)
		return x.Var == y.Var && x.Value == y.Value
	}
	return false
}

func equalLabels(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
