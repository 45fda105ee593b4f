package ast

import (
	"fmt"

	"github.com/ludo-technologies/decomb/internal/ir"
)

// ExprKind enumerates the condition expression variants
type ExprKind int

const (
	ExprAtomic ExprKind = iota
	ExprNot
	ExprAnd
	ExprOr
)

// Expr is a boolean combination of branch conditions
type Expr interface {
	ExprKind() ExprKind
	String() string
	exprNode()
}

// Atomic is the branch condition computed by a block
type Atomic struct {
	Block *ir.Block
}

// Not negates its operand
type Not struct {
	X Expr
}

// And is the short-circuit conjunction of two conditions
type And struct {
	L, R Expr
}

// Or is the short-circuit disjunction of two conditions
type Or struct {
	L, R Expr
}

func (*Atomic) ExprKind() ExprKind { return ExprAtomic }
func (*Not) ExprKind() ExprKind    { return ExprNot }
func (*And) ExprKind() ExprKind    { return ExprAnd }
func (*Or) ExprKind() ExprKind     { return ExprOr }

func (*Atomic) exprNode() {}
func (*Not) exprNode()    {}
func (*And) exprNode()    {}
func (*Or) exprNode()     {}

func (e *Atomic) String() string { return "cond(" + e.Block.Label() + ")" }
func (e *Not) String() string    { return "!" + e.X.String() }
func (e *And) String() string    { return fmt.Sprintf("(%s && %s)", e.L, e.R) }
func (e *Or) String() string     { return fmt.Sprintf("(%s || %s)", e.L, e.R) }

// ExprBlocks returns the blocks referenced by e, left to right
func ExprBlocks(e Expr) []*ir.Block {
	switch v := e.(type) {
	case *Atomic:
		return []*ir.Block{v.Block}
	case *Not:
		return ExprBlocks(v.X)
	case *And:
		return append(ExprBlocks(v.L), ExprBlocks(v.R)...)
	case *Or:
		return append(ExprBlocks(v.L), ExprBlocks(v.R)...)
	}
	return nil
}

// ExprEqual compares two expressions structurally
func ExprEqual(a, b Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.ExprKind() != b.ExprKind() {
		return false
	}
	switch x := a.(type) {
	case *Atomic:
		return x.Block == b.(*Atomic).Block
	case *Not:
		return ExprEqual(x.X, b.(*Not).X)
	case *And:
		y := b.(*And)
		return ExprEqual(x.L, y.L) && ExprEqual(x.R, y.R)
	case *Or:
		y := b.(*Or)
		return ExprEqual(x.L, y.L) && ExprEqual(x.R, y.R)
	}
	return false
}
