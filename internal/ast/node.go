// Package ast holds the goto-free syntax tree produced by the structurer.
//
// Nodes are created through a Tree, which assigns dense ids in insertion
// order and owns every node and condition expression. The tree is mutated
// only by the normalizer and released as a whole.
package ast

import (
	"fmt"

	"github.com/ludo-technologies/decomb/internal/ir"
)

// NodeID is the dense identifier of a node within its tree
type NodeID int

// StateVar names a synthetic dispatch variable
type StateVar int

// String returns the variable name used in dumps
func (v StateVar) String() string {
	return fmt.Sprintf("state_%d", v)
}

// Kind enumerates the node variants
type Kind int

const (
	KindCode Kind = iota
	KindIf
	KindScs
	KindSequence
	KindSwitch
	KindBreak
	KindSwitchBreak
	KindContinue
	KindSet
)

// String returns string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindIf:
		return "if"
	case KindScs:
		return "scs"
	case KindSequence:
		return "sequence"
	case KindSwitch:
		return "switch"
	case KindBreak:
		return "break"
	case KindSwitchBreak:
		return "switch_break"
	case KindContinue:
		return "continue"
	case KindSet:
		return "set"
	default:
		return "unknown"
	}
}

// LoopKind classifies an Scs node
type LoopKind int

const (
	LoopStandard LoopKind = iota
	LoopWhile
	LoopDoWhile
)

// String returns string representation of LoopKind
func (k LoopKind) String() string {
	switch k {
	case LoopWhile:
		return "while"
	case LoopDoWhile:
		return "do_while"
	default:
		return "standard"
	}
}

// Node is implemented by every syntax tree variant
type Node interface {
	ID() NodeID
	Kind() Kind
	astNode()
}

type base struct {
	id NodeID
}

func (b *base) ID() NodeID { return b.id }
func (b *base) astNode()   {}

// Code is a straight-line original block
type Code struct {
	base
	Block     *ir.Block
	Successor Node
}

// If is a two-way branch on the condition computed by a block
type If struct {
	base
	Cond      Expr
	Then      Node
	Else      Node
	Successor Node
}

// Scs is a loop whose body came from a collapsed region
type Scs struct {
	base
	Body             Node
	Loop             LoopKind
	RelatedCondition *If
	Successor        Node
}

// Sequence is an ordered statement list
type Sequence struct {
	base
	Nodes []Node
}

// Case is one labeled arm of a Switch
type Case struct {
	Labels []uint64
	Body   Node
}

// Switch is a multi-way branch. It switches on the value computed by
// Condition, or on StateVar when Condition is nil.
type Switch struct {
	base
	Condition                *ir.Block
	StateVar                 StateVar
	Cases                    []Case
	Default                  Node
	NeedsStateVariable       bool
	NeedsLoopBreakDispatcher bool
	Successor                Node
}

// OnStateVariable reports whether the switch dispatches on a state variable
func (s *Switch) OnStateVariable() bool {
	return s.Condition == nil
}

// Break leaves the innermost loop
type Break struct {
	base
	BreakFromWithinSwitch bool
}

// SwitchBreak leaves the innermost switch
type SwitchBreak struct {
	base
}

// Continue jumps to the next iteration of the innermost loop
type Continue struct {
	base
	Implicit bool
}

// Set assigns a value to a state variable
type Set struct {
	base
	Var   StateVar
	Value uint64
}

func (*Code) Kind() Kind        { return KindCode }
func (*If) Kind() Kind          { return KindIf }
func (*Scs) Kind() Kind         { return KindScs }
func (*Sequence) Kind() Kind    { return KindSequence }
func (*Switch) Kind() Kind      { return KindSwitch }
func (*Break) Kind() Kind       { return KindBreak }
func (*SwitchBreak) Kind() Kind { return KindSwitchBreak }
func (*Continue) Kind() Kind    { return KindContinue }
func (*Set) Kind() Kind         { return KindSet }

// SuccessorOf returns the pre-flattening successor of n, if any
func SuccessorOf(n Node) Node {
	switch v := n.(type) {
	case *Code:
		return v.Successor
	case *If:
		return v.Successor
	case *Scs:
		return v.Successor
	case *Switch:
		return v.Successor
	}
	return nil
}

// SetSuccessor replaces the successor of n. Variants without a successor
// slot ignore the call.
func SetSuccessor(n, succ Node) {
	switch v := n.(type) {
	case *Code:
		v.Successor = succ
	case *If:
		v.Successor = succ
	case *Scs:
		v.Successor = succ
	case *Switch:
		v.Successor = succ
	}
}

// Children returns the nested statements of n, excluding the successor
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		if c != nil {
			out = append(out, c)
		}
	}
	switch v := n.(type) {
	case *If:
		add(v.Then)
		add(v.Else)
	case *Scs:
		add(v.Body)
	case *Sequence:
		for _, c := range v.Nodes {
			add(c)
		}
	case *Switch:
		for _, c := range v.Cases {
			add(c.Body)
		}
		add(v.Default)
	}
	return out
}

// IsJump reports whether n unconditionally transfers control
func IsJump(n Node) bool {
	switch n.(type) {
	case *Break, *Continue, *SwitchBreak:
		return true
	}
	return false
}

// Walk visits n and everything below it in pre-order, successors included.
// Returning false from fn skips the subtree of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		walkSuccessor(n, fn)
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
	// a loop condition detached from the body is still emitted code
	if scs, ok := n.(*Scs); ok && scs.RelatedCondition != nil {
		Walk(scs.RelatedCondition, fn)
	}
	walkSuccessor(n, fn)
}

func walkSuccessor(n Node, fn func(Node) bool) {
	if s := SuccessorOf(n); s != nil {
		Walk(s, fn)
	}
}
