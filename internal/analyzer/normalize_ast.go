package analyzer

import (
	"github.com/ludo-technologies/decomb/internal/ast"
)

// normalizeAST rewrites the built AST into its final shape and returns the
// new root, which is always a Sequence
func normalizeAST(tree *ast.Tree, root ast.Node) ast.Node {
	nz := &astNormalizer{tree: tree}

	root = nz.sequence(root)
	root = nz.classifyLoops(root)
	nz.markImplicitContinues(root)
	root = nz.terminateSwitchCases(root)
	nz.markLoopBreaksInSwitches(root, nil)
	root = nz.removeDeadJumps(root)
	root = nz.flipEmptyThen(root)
	root = nz.simplifySequences(root)

	if root == nil {
		return tree.NewSequence()
	}
	if _, ok := root.(*ast.Sequence); !ok {
		return tree.NewSequence(root)
	}
	return root
}

type astNormalizer struct {
	tree *ast.Tree
}

// rewriteChildren replaces every nested statement slot of n with fn(slot)
func rewriteChildren(n ast.Node, fn func(ast.Node) ast.Node) {
	switch v := n.(type) {
	case *ast.If:
		v.Then = fn(v.Then)
		v.Else = fn(v.Else)
	case *ast.Scs:
		v.Body = fn(v.Body)
	case *ast.Sequence:
		for i, c := range v.Nodes {
			v.Nodes[i] = fn(c)
		}
	case *ast.Switch:
		for i := range v.Cases {
			v.Cases[i].Body = fn(v.Cases[i].Body)
		}
		v.Default = fn(v.Default)
	}
}

func statements(n ast.Node) []ast.Node {
	switch v := n.(type) {
	case nil:
		return nil
	case *ast.Sequence:
		return v.Nodes
	}
	return []ast.Node{n}
}

func (nz *astNormalizer) makeSequence(items []ast.Node) ast.Node {
	var flat []ast.Node
	for _, it := range items {
		if it == nil {
			continue
		}
		if seq, ok := it.(*ast.Sequence); ok {
			flat = append(flat, seq.Nodes...)
			continue
		}
		flat = append(flat, it)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return nz.tree.NewSequence(flat...)
}

// sequence turns successor chains into sequences and splices nested ones
func (nz *astNormalizer) sequence(n ast.Node) ast.Node {
	var items []ast.Node
	for cur := n; cur != nil; {
		next := ast.SuccessorOf(cur)
		ast.SetSuccessor(cur, nil)
		if seq, ok := cur.(*ast.Sequence); ok {
			for _, c := range seq.Nodes {
				items = append(items, nz.sequence(c))
			}
		} else {
			rewriteChildren(cur, nz.sequence)
			items = append(items, cur)
		}
		cur = next
	}
	return nz.makeSequence(items)
}

// classifyLoops turns Scs nodes into do-while or while loops when the body
// starts or ends with the loop test. A do-while is only formed when the
// trailing test holds the sole continue of the loop: any other continue
// would re-evaluate the condition instead of jumping to the loop head.
func (nz *astNormalizer) classifyLoops(n ast.Node) ast.Node {
	if n == nil {
		return nil
	}
	rewriteChildren(n, nz.classifyLoops)

	scs, ok := n.(*ast.Scs)
	if !ok || scs.Loop != ast.LoopStandard {
		return n
	}
	body := statements(scs.Body)
	if len(body) == 0 {
		return n
	}

	if last, ok := body[len(body)-1].(*ast.If); ok {
		_, thenContinue := last.Then.(*ast.Continue)
		_, thenBreak := last.Then.(*ast.Break)
		_, elseContinue := last.Else.(*ast.Continue)
		_, elseBreak := last.Else.(*ast.Break)
		if ((thenContinue && elseBreak) || (thenBreak && elseContinue)) && countContinues(scs.Body) == 1 {
			if thenBreak {
				last.Cond = nz.tree.Negate(last.Cond)
			}
			last.Then, last.Else = nil, nil
			scs.Loop = ast.LoopDoWhile
			scs.RelatedCondition = last
			scs.Body = nz.bodyOf(body[:len(body)-1])
			return n
		}
	}

	if first, ok := body[0].(*ast.If); ok {
		_, thenBreak := first.Then.(*ast.Break)
		_, elseBreak := first.Else.(*ast.Break)
		if thenBreak != elseBreak {
			stay := first.Else
			if elseBreak {
				stay = first.Then
			} else {
				first.Cond = nz.tree.Negate(first.Cond)
			}
			first.Then, first.Else = nil, nil
			scs.Loop = ast.LoopWhile
			scs.RelatedCondition = first
			rest := append(append([]ast.Node{}, statements(stay)...), body[1:]...)
			scs.Body = nz.bodyOf(rest)
		}
	}
	return n
}

func (nz *astNormalizer) bodyOf(items []ast.Node) ast.Node {
	body := nz.makeSequence(items)
	if body == nil {
		return nz.tree.NewSequence()
	}
	return body
}

// countContinues counts the continues that target the enclosing loop,
// leaving out those of nested loops
func countContinues(n ast.Node) int {
	switch n.(type) {
	case nil:
		return 0
	case *ast.Continue:
		return 1
	case *ast.Scs:
		return 0
	}
	count := 0
	for _, c := range ast.Children(n) {
		count += countContinues(c)
	}
	return count
}

// markImplicitContinues flags the continues that end a loop body
func (nz *astNormalizer) markImplicitContinues(n ast.Node) {
	if n == nil {
		return
	}
	for _, c := range ast.Children(n) {
		nz.markImplicitContinues(c)
	}
	if scs, ok := n.(*ast.Scs); ok {
		markTrailingContinue(scs.Body)
	}
}

func markTrailingContinue(n ast.Node) {
	stmts := statements(n)
	if len(stmts) == 0 {
		return
	}
	switch last := stmts[len(stmts)-1].(type) {
	case *ast.Continue:
		last.Implicit = true
	case *ast.If:
		markTrailingContinue(last.Then)
		markTrailingContinue(last.Else)
	}
}

// terminateSwitchCases appends a SwitchBreak to every case that can fall
// off its end
func (nz *astNormalizer) terminateSwitchCases(n ast.Node) ast.Node {
	if n == nil {
		return nil
	}
	rewriteChildren(n, nz.terminateSwitchCases)
	sw, ok := n.(*ast.Switch)
	if !ok {
		return n
	}
	terminate := func(body ast.Node) ast.Node {
		stmts := statements(body)
		if len(stmts) > 0 && ast.IsJump(stmts[len(stmts)-1]) {
			return body
		}
		return nz.makeSequence(append(append([]ast.Node{}, stmts...), nz.tree.NewSwitchBreak()))
	}
	for i := range sw.Cases {
		sw.Cases[i].Body = terminate(sw.Cases[i].Body)
	}
	if sw.Default != nil {
		sw.Default = terminate(sw.Default)
	}
	return n
}

// markLoopBreaksInSwitches flags the switches that a loop break has to
// cross. switches holds the switches entered since the innermost loop.
func (nz *astNormalizer) markLoopBreaksInSwitches(n ast.Node, switches []*ast.Switch) {
	switch v := n.(type) {
	case nil:
		return
	case *ast.Scs:
		nz.markLoopBreaksInSwitches(v.Body, nil)
		return
	case *ast.Switch:
		inner := append(append([]*ast.Switch{}, switches...), v)
		for _, c := range ast.Children(v) {
			nz.markLoopBreaksInSwitches(c, inner)
		}
		return
	case *ast.Break:
		if len(switches) == 0 {
			return
		}
		v.BreakFromWithinSwitch = true
		for _, sw := range switches {
			sw.NeedsLoopBreakDispatcher = true
			sw.NeedsStateVariable = true
		}
		return
	}
	for _, c := range ast.Children(n) {
		nz.markLoopBreaksInSwitches(c, switches)
	}
}

// removeDeadJumps drops jumps that follow an unconditional jump
func (nz *astNormalizer) removeDeadJumps(n ast.Node) ast.Node {
	if n == nil {
		return nil
	}
	rewriteChildren(n, nz.removeDeadJumps)
	seq, ok := n.(*ast.Sequence)
	if !ok {
		return n
	}
	kept := seq.Nodes[:0]
	terminated := false
	for _, c := range seq.Nodes {
		if terminated && ast.IsJump(c) {
			continue
		}
		if ast.IsJump(c) {
			terminated = true
		}
		kept = append(kept, c)
	}
	seq.Nodes = kept
	return n
}

// flipEmptyThen rewrites if (c) {} else {x} into if (!c) {x}
func (nz *astNormalizer) flipEmptyThen(n ast.Node) ast.Node {
	if n == nil {
		return nil
	}
	rewriteChildren(n, nz.flipEmptyThen)
	if v, ok := n.(*ast.If); ok && v.Then == nil && v.Else != nil {
		v.Cond = nz.tree.Negate(v.Cond)
		v.Then, v.Else = v.Else, nil
	}
	return n
}

// simplifySequences splices nested sequences, replaces single statement
// sequences by their statement and empty branches by nil
func (nz *astNormalizer) simplifySequences(n ast.Node) ast.Node {
	if n == nil {
		return nil
	}
	rewriteChildren(n, nz.simplifySequences)

	switch v := n.(type) {
	case *ast.Sequence:
		var flat []ast.Node
		for _, c := range v.Nodes {
			if c == nil {
				continue
			}
			if inner, ok := c.(*ast.Sequence); ok {
				flat = append(flat, inner.Nodes...)
				continue
			}
			flat = append(flat, c)
		}
		v.Nodes = flat
		switch len(flat) {
		case 0:
			return nil
		case 1:
			return flat[0]
		}
	case *ast.Scs:
		if v.Body == nil {
			v.Body = nz.tree.NewSequence()
		}
	}
	return n
}
