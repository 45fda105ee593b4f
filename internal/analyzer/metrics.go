package analyzer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ludo-technologies/decomb/internal/ast"
	"github.com/ludo-technologies/decomb/internal/ir"
)

// MetricsHeader is the header line of a metrics record
var MetricsHeader = []string{"function", "duplications", "percentage", "tuntangle", "puntangle", "iweight"}

// Metrics summarizes the code growth caused by structuring one function
type Metrics struct {
	Function          string  `json:"function" yaml:"function"`
	Duplications      int     `json:"duplications" yaml:"duplications"`
	InitialWeight     int     `json:"initial_weight" yaml:"initial_weight"`
	FinalWeight       int     `json:"final_weight" yaml:"final_weight"`
	Percentage        float64 `json:"percentage" yaml:"percentage"`
	TentativeUntangle int     `json:"tentative_untangle" yaml:"tentative_untangle"`
	PerformedUntangle int     `json:"performed_untangle" yaml:"performed_untangle"`
	CombSplits        int     `json:"comb_splits" yaml:"comb_splits"`
}

// countDuplicates counts, for every reachable block, the AST nodes that
// emit its code
func countDuplicates(root ast.Node, reachable []*ir.Block) map[*ir.Block]int {
	counts := make(map[*ir.Block]int, len(reachable))
	for _, b := range reachable {
		counts[b] = 0
	}
	ast.Walk(root, func(n ast.Node) bool {
		if b := emittedBlock(n); b != nil {
			counts[b]++
		}
		return true
	})
	return counts
}

// emittedBlock returns the original block whose code n emits, if any
func emittedBlock(n ast.Node) *ir.Block {
	switch v := n.(type) {
	case *ast.Code:
		return v.Block
	case *ast.If:
		if a, ok := unwrapAtomic(v.Cond); ok {
			return a.Block
		}
	case *ast.Switch:
		return v.Condition
	}
	return nil
}

func unwrapAtomic(e ast.Expr) (*ast.Atomic, bool) {
	for {
		switch v := e.(type) {
		case *ast.Atomic:
			return v, true
		case *ast.Not:
			e = v.X
		default:
			return nil, false
		}
	}
}

// finalWeight estimates the size of the emitted code
func finalWeight(root ast.Node) int {
	weight := 0
	ast.Walk(root, func(n ast.Node) bool {
		switch n.Kind() {
		case ast.KindScs, ast.KindIf, ast.KindSwitch,
			ast.KindSet, ast.KindBreak, ast.KindSwitchBreak, ast.KindContinue:
			weight++
		}
		if b := emittedBlock(n); b != nil {
			weight += b.Weight
		}
		return true
	})
	return weight
}

func computeMetrics(name string, root ast.Node, reachable []*ir.Block, dups map[*ir.Block]int, stats builderStats) Metrics {
	m := Metrics{
		Function:          name,
		InitialWeight:     ir.TotalWeight(reachable),
		FinalWeight:       finalWeight(root),
		TentativeUntangle: stats.TentativeUntangle,
		PerformedUntangle: stats.PerformedUntangle,
		CombSplits:        stats.Duplications,
	}
	for _, n := range dups {
		if n > 1 {
			m.Duplications += n - 1
		}
	}
	if m.InitialWeight > 0 {
		m.Percentage = float64(m.FinalWeight) / float64(m.InitialWeight)
	}
	return m
}

// Record returns the metrics as a CSV row matching MetricsHeader
func (m Metrics) Record() []string {
	return []string{
		m.Function,
		strconv.Itoa(m.Duplications),
		strconv.FormatFloat(m.Percentage, 'g', 6, 64),
		strconv.Itoa(m.TentativeUntangle),
		strconv.Itoa(m.PerformedUntangle),
		strconv.Itoa(m.InitialWeight),
	}
}

// WriteMetricsCSV writes the header followed by one row per record
func WriteMetricsCSV(w io.Writer, records ...Metrics) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MetricsHeader); err != nil {
		return fmt.Errorf("failed to write metrics header: %w", err)
	}
	for _, m := range records {
		if err := cw.Write(m.Record()); err != nil {
			return fmt.Errorf("failed to write metrics of %s: %w", m.Function, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
