package service

import (
	"fmt"
	"strconv"

	"github.com/ludo-technologies/decomb/domain"
	"github.com/ludo-technologies/decomb/internal/analyzer"
	"github.com/ludo-technologies/decomb/internal/ast"
)

// ConvertAST converts a structured syntax tree to its serializable form
func ConvertAST(root ast.Node) *domain.StructuredNode {
	if root == nil {
		return nil
	}
	return convertNode(root, "")
}

func convertNode(n ast.Node, role string) *domain.StructuredNode {
	out := &domain.StructuredNode{
		ID:    int(n.ID()),
		Kind:  n.Kind().String(),
		Label: ast.Label(n),
		Role:  role,
	}

	add := func(child ast.Node, role string) {
		if child != nil {
			out.Children = append(out.Children, convertNode(child, role))
		}
	}

	switch v := n.(type) {
	case *ast.Code:
		out.Block = v.Block.Label()
	case *ast.If:
		out.Condition = v.Cond.String()
		add(v.Then, "then")
		add(v.Else, "else")
	case *ast.Scs:
		out.Loop = v.Loop.String()
		add(v.Body, "body")
		if v.RelatedCondition != nil {
			add(v.RelatedCondition, "condition")
		}
	case *ast.Sequence:
		for i, c := range v.Nodes {
			add(c, strconv.Itoa(i))
		}
	case *ast.Switch:
		if v.OnStateVariable() {
			out.StateVar = v.StateVar.String()
		} else {
			out.Block = v.Condition.Label()
		}
		if v.NeedsStateVariable {
			out.Flags = append(out.Flags, "needs_state_variable")
		}
		if v.NeedsLoopBreakDispatcher {
			out.Flags = append(out.Flags, "needs_loop_break_dispatcher")
		}
		for _, c := range v.Cases {
			if c.Body == nil {
				continue
			}
			child := convertNode(c.Body, fmt.Sprintf("case %v", c.Labels))
			child.Labels = append([]uint64(nil), c.Labels...)
			out.Children = append(out.Children, child)
		}
		add(v.Default, "default")
	case *ast.Break:
		if v.BreakFromWithinSwitch {
			out.Flags = append(out.Flags, "break_from_within_switch")
		}
	case *ast.Continue:
		if v.Implicit {
			out.Flags = append(out.Flags, "implicit")
		}
	case *ast.Set:
		out.StateVar = v.Var.String()
		value := v.Value
		out.Value = &value
	}

	// Nodes that were never flattened keep their successor as a trailing child
	add(ast.SuccessorOf(n), "successor")
	return out
}

func astDot(result *analyzer.Result) string {
	return ast.Dot(result.Function, result.Root)
}
