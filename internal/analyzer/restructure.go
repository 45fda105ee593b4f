package analyzer

import (
	"log"

	"github.com/ludo-technologies/decomb/internal/ast"
	"github.com/ludo-technologies/decomb/internal/ir"
)

// Options tunes the structuring algorithm
type Options struct {
	// Untangle duplicates short conditional tails to avoid nested ifs
	Untangle bool

	// MaxRefinementIterations bounds successor refinement per region;
	// zero means the graph size plus one
	MaxRefinementIterations int

	// MaxCombIterations bounds the node splits performed on one graph;
	// zero means sixteen times the graph size, at least 4096
	MaxCombIterations int
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{Untangle: true}
}

// Result is the structured form of one function
type Result struct {
	Function string

	// Tree owns every AST node; Root is its root Sequence
	Tree *ast.Tree
	Root ast.Node

	// Graph is the residual acyclic root graph
	Graph *FlowGraph

	// Regions describes every collapsed region in processing order
	Regions []*RegionReport

	// Backedges is the number of retreating edges found at import
	Backedges int

	// Unreachable lists input blocks dropped at import
	Unreachable []*ir.Block

	// Duplicates counts the AST nodes referencing each reachable block
	Duplicates map[*ir.Block]int

	Metrics Metrics
}

// Restructurer turns lifted control-flow graphs into goto-free ASTs
type Restructurer struct {
	options Options
	logger  *log.Logger
}

// NewRestructurer creates a restructurer with the given options
func NewRestructurer(options Options) *Restructurer {
	return &Restructurer{
		options: options,
		logger:  nil, // Can be set via SetLogger if needed
	}
}

// SetLogger sets an optional logger for tracing the algorithm
func (r *Restructurer) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Restructurer) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf("Restructurer: "+format, args...)
	}
}

// Restructure structures one function. Input contract violations and
// internal consistency failures are returned as errors; the latter wrap an
// *InvariantError.
func (r *Restructurer) Restructure(fn *ir.Function) (result *Result, err error) {
	defer func() {
		if err != nil {
			result = nil
		}
	}()
	defer recoverInvariant(fn.Name, &err)

	imported, err := ImportFunction(fn)
	if err != nil {
		return nil, err
	}

	result = &Result{
		Function:    fn.Name,
		Graph:       imported.Graph,
		Unreachable: imported.Unreachable,
	}
	for _, b := range imported.Unreachable {
		r.logf("dropping unreachable block %s of %s", b.Label(), fn.Name)
	}

	if imported.Graph.Entry() == nil {
		tree := ast.NewTree()
		root := tree.NewSequence()
		tree.SetRoot(root)
		result.Tree, result.Root = tree, root
		result.Duplicates = map[*ir.Block]int{}
		result.Metrics = Metrics{Function: fn.Name}
		return result, nil
	}

	regions := r.comb(imported.Graph, result)

	builder := newASTBuilder(r)
	tree := ast.NewTree()
	root := builder.build(tree, imported.Graph)
	root = normalizeAST(tree, root)
	tree.SetRoot(root)
	result.Tree, result.Root = tree, root
	result.Regions = regions

	result.Duplicates = countDuplicates(root, imported.Reachable)
	result.Metrics = computeMetrics(fn.Name, root, imported.Reachable, result.Duplicates, builder.stats)

	for _, b := range imported.Reachable {
		invariant(result.Duplicates[b] > 0, "block %s is missing from the AST", b.Label())
	}
	return result, nil
}

// comb runs backedge detection, region normalization and collapsing until
// the root graph is acyclic
func (r *Restructurer) comb(g *FlowGraph, result *Result) []*RegionReport {
	backedges := insertBackedgeDummies(g)
	result.Backedges = len(backedges)
	r.logf("%s: %d backedges", g.Name(), len(backedges))

	regions := createMetaRegions(backedges)
	regions = simplifyAbnormalRetreating(regions, backedges)
	checkRegionConsistency(regions, backedges)
	regions = simplifyOverlapping(regions)
	checkRegionConsistency(regions, backedges)

	sortRegions(regions)
	root := NewMetaRegion(0, nil, false)
	computeParents(regions, root)
	ordered := applyPartialOrder(regions, root)

	state := &combState{
		r:         r,
		g:         g,
		regions:   ordered,
		backedges: append([]EdgePair(nil), backedges...),
	}
	for _, meta := range ordered {
		state.reports = append(state.reports, state.processRegion(meta))
	}

	g.removeNotReachables(nil)
	invariant(g.IsDAG(), "root graph of %s is not acyclic after collapsing", g.Name())
	return state.reports
}
