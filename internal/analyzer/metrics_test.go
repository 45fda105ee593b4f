package analyzer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ludo-technologies/decomb/internal/ast"
	"github.com/ludo-technologies/decomb/internal/ir"
)

func TestCountDuplicates(t *testing.T) {
	tree := ast.NewTree()
	b := testBlocks("A", "B", "C")
	b["B"].Weight = 5

	loop := tree.NewScs(tree.NewCode(b["A"]))
	loop.Loop = ast.LoopDoWhile
	loop.RelatedCondition = tree.NewIf(tree.NewAtomic(b["B"]), nil, nil)
	root := tree.NewSequence(loop, tree.NewCode(b["A"]), tree.NewSwitch(b["C"]), tree.NewBreak())

	reachable := []*ir.Block{b["A"], b["B"], b["C"]}
	dups := countDuplicates(root, reachable)
	if dups[b["A"]] != 2 || dups[b["B"]] != 1 || dups[b["C"]] != 1 {
		t.Errorf("duplicates = A:%d B:%d C:%d, want 2/1/1", dups[b["A"]], dups[b["B"]], dups[b["C"]])
	}

	m := computeMetrics("f", root, reachable, dups, builderStats{Duplications: 1, TentativeUntangle: 2, PerformedUntangle: 1})
	if m.Duplications != 1 {
		t.Errorf("duplications = %d, want 1", m.Duplications)
	}
	if m.InitialWeight != 7 {
		t.Errorf("initial weight = %d, want 7", m.InitialWeight)
	}
	// scs, if, switch, break: 4; blocks: A twice, B, C
	if m.FinalWeight != 4+1+1+5+1 {
		t.Errorf("final weight = %d, want 12", m.FinalWeight)
	}
	if m.Percentage != float64(12)/float64(7) {
		t.Errorf("percentage = %f", m.Percentage)
	}
	if m.TentativeUntangle != 2 || m.PerformedUntangle != 1 || m.CombSplits != 1 {
		t.Errorf("unexpected counters %+v", m)
	}
}

func TestWriteMetricsCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteMetricsCSV(&buf, Metrics{
		Function:          "main",
		Duplications:      3,
		Percentage:        1.5,
		TentativeUntangle: 2,
		PerformedUntangle: 1,
		InitialWeight:     40,
	})
	if err != nil {
		t.Fatalf("WriteMetricsCSV failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected header and one row, got %q", buf.String())
	}
	if lines[0] != "function,duplications,percentage,tuntangle,puntangle,iweight" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "main,3,1.5,2,1,40" {
		t.Errorf("row = %q", lines[1])
	}
}

func TestMetricsEmptyFunction(t *testing.T) {
	tree := ast.NewTree()
	m := computeMetrics("empty", tree.NewSequence(), nil, map[*ir.Block]int{}, builderStats{})
	if m.Percentage != 0 || m.InitialWeight != 0 || m.FinalWeight != 0 {
		t.Errorf("Expected zero metrics, got %+v", m)
	}
}
