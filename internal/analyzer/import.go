package analyzer

import (
	"fmt"

	"github.com/ludo-technologies/decomb/internal/ir"
)

// ImportResult is the flow graph built from a lifted function
type ImportResult struct {
	Graph *FlowGraph

	// Reachable lists the blocks imported into the graph
	Reachable []*ir.Block

	// Unreachable lists the blocks dropped because the entry cannot reach them
	Unreachable []*ir.Block

	// CodeNodes maps each imported block to its node
	CodeNodes map[*ir.Block]*Node
}

// ImportFunction validates fn and builds its flow graph. Successor entries
// sharing a target collapse into one edge with the union of their labels.
// When the entry block has predecessors an artificial entry node is
// prepended, so the graph entry is never a loop head.
func ImportFunction(fn *ir.Function) (*ImportResult, error) {
	if err := fn.Validate(); err != nil {
		return nil, err
	}

	g := NewFlowGraph(fn.Name)
	result := &ImportResult{
		Graph:     g,
		CodeNodes: make(map[*ir.Block]*Node),
	}
	if len(fn.Blocks) == 0 {
		return result, nil
	}

	result.Reachable = fn.Reachable()
	reachable := make(map[uint64]bool, len(result.Reachable))
	for _, b := range result.Reachable {
		reachable[b.Address] = true
		result.CodeNodes[b] = g.AddCode(b)
	}
	for _, b := range fn.Blocks {
		if !reachable[b.Address] {
			result.Unreachable = append(result.Unreachable, b)
		}
	}

	for _, b := range result.Reachable {
		from := result.CodeNodes[b]
		var targets []*ir.Block
		labels := make(map[*ir.Block][]uint64)
		isDefault := make(map[*ir.Block]bool)
		for _, s := range b.Successors {
			target, ok := fn.Block(s.Target)
			if !ok {
				return nil, fmt.Errorf("block %s: unknown successor 0x%x", b.Label(), s.Target)
			}
			if _, seen := labels[target]; !seen {
				targets = append(targets, target)
				labels[target] = []uint64{}
			}
			labels[target] = append(labels[target], s.Labels...)
			// a default edge absorbs the cases sharing its target
			if len(s.Labels) == 0 {
				isDefault[target] = true
			}
		}
		for _, target := range targets {
			info := Labeled(labels[target]...)
			if isDefault[target] {
				info = EdgeInfo{}
			}
			g.AddEdge(from, result.CodeNodes[target], info)
		}
	}

	entry := result.CodeNodes[fn.EntryBlock()]
	if len(entry.preds) > 0 {
		artificial := g.AddEmpty("entry")
		g.AddPlainEdge(artificial, entry)
		g.SetEntry(artificial)
	} else {
		g.SetEntry(entry)
	}

	return result, nil
}
