package domain

import (
	"context"
	"io"
)

// StructureRequest represents a request for control-flow structuring
type StructureRequest struct {
	// Input CFG files or directories
	Paths []string

	// Output configuration
	OutputFormat OutputFormat
	OutputWriter io.Writer
	OutputPath   string
	ShowAST      bool
	SortBy       SortCriteria

	// OutputDirectory receives generated report files when OutputPath is empty
	OutputDirectory string

	// Function selection; glob patterns matched against function names
	FunctionPatterns []string

	// Algorithm options
	Untangle                *bool
	MaxRefinementIterations int
	MaxCombIterations       int

	// Side outputs; empty disables them
	MetricsDir string
	DotDir     string

	// Configuration
	ConfigPath string

	// Input options
	Recursive       *bool
	IncludePatterns []string
	ExcludePatterns []string
	MaxFileSize     int64

	// Execution options
	MaxConcurrency int
	TimeoutSeconds int
}

// StructuredNode is the serializable form of one syntax tree node
type StructuredNode struct {
	ID    int    `json:"id" yaml:"id"`
	Kind  string `json:"kind" yaml:"kind"`
	Label string `json:"label" yaml:"label"`

	// Role is the position of the node inside its parent (then, else,
	// body, condition, case, default, or a sequence index)
	Role string `json:"role,omitempty" yaml:"role,omitempty"`

	Block     string   `json:"block,omitempty" yaml:"block,omitempty"`
	Condition string   `json:"condition,omitempty" yaml:"condition,omitempty"`
	Loop      string   `json:"loop,omitempty" yaml:"loop,omitempty"`
	StateVar  string   `json:"state_var,omitempty" yaml:"state_var,omitempty"`
	Value     *uint64  `json:"value,omitempty" yaml:"value,omitempty"`
	Labels    []uint64 `json:"labels,omitempty" yaml:"labels,omitempty"`
	Flags     []string `json:"flags,omitempty" yaml:"flags,omitempty"`

	Children []*StructuredNode `json:"children,omitempty" yaml:"children,omitempty"`
}

// RegionSummary describes one collapsed loop region
type RegionSummary struct {
	Index           int    `json:"index" yaml:"index"`
	Size            int    `json:"size" yaml:"size"`
	Head            string `json:"head" yaml:"head"`
	Retreatings     int    `json:"retreatings" yaml:"retreatings"`
	EntryDispatcher bool   `json:"entry_dispatcher" yaml:"entry_dispatcher"`
	ExitDispatcher  bool   `json:"exit_dispatcher" yaml:"exit_dispatcher"`
	Successors      int    `json:"successors" yaml:"successors"`
	Refinements     int    `json:"refinements" yaml:"refinements"`
	OutlinedNodes   int    `json:"outlined_nodes" yaml:"outlined_nodes"`
}

// StructureMetrics is the size and duplication record of one function
type StructureMetrics struct {
	Duplications      int     `json:"duplications" yaml:"duplications"`
	InitialWeight     int     `json:"initial_weight" yaml:"initial_weight"`
	FinalWeight       int     `json:"final_weight" yaml:"final_weight"`
	Percentage        float64 `json:"percentage" yaml:"percentage"`
	TentativeUntangle int     `json:"tentative_untangle" yaml:"tentative_untangle"`
	PerformedUntangle int     `json:"performed_untangle" yaml:"performed_untangle"`
	CombSplits        int     `json:"comb_splits" yaml:"comb_splits"`
}

// FunctionStructure is the structuring result of a single function
type FunctionStructure struct {
	Name     string `json:"name" yaml:"name"`
	FilePath string `json:"file_path" yaml:"file_path"`

	// Position of the function inside its file
	Index int `json:"index" yaml:"index"`

	Blocks            int      `json:"blocks" yaml:"blocks"`
	ReachableBlocks   int      `json:"reachable_blocks" yaml:"reachable_blocks"`
	UnreachableBlocks []string `json:"unreachable_blocks,omitempty" yaml:"unreachable_blocks,omitempty"`
	Backedges         int      `json:"backedges" yaml:"backedges"`

	Regions []RegionSummary  `json:"regions,omitempty" yaml:"regions,omitempty"`
	Metrics StructureMetrics `json:"metrics" yaml:"metrics"`

	// Duplicates lists the blocks emitted more than once and their count
	Duplicates map[string]int `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`

	AST *StructuredNode `json:"ast,omitempty" yaml:"ast,omitempty"`

	// ASTDot and GraphDot hold graphviz renderings for the dot format
	ASTDot   string `json:"-" yaml:"-"`
	GraphDot string `json:"-" yaml:"-"`

	// Error is set when structuring failed; every other result field is then empty
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Succeeded reports whether the function was structured
func (f *FunctionStructure) Succeeded() bool {
	return f.Error == ""
}

// StructureSummary represents aggregate statistics
type StructureSummary struct {
	FilesAnalyzed       int     `json:"files_analyzed" yaml:"files_analyzed"`
	TotalFunctions      int     `json:"total_functions" yaml:"total_functions"`
	StructuredFunctions int     `json:"structured_functions" yaml:"structured_functions"`
	FailedFunctions     int     `json:"failed_functions" yaml:"failed_functions"`
	TotalRegions        int     `json:"total_regions" yaml:"total_regions"`
	EntryDispatchers    int     `json:"entry_dispatchers" yaml:"entry_dispatchers"`
	ExitDispatchers     int     `json:"exit_dispatchers" yaml:"exit_dispatchers"`
	TotalDuplications   int     `json:"total_duplications" yaml:"total_duplications"`
	AverageGrowth       float64 `json:"average_growth" yaml:"average_growth"`
	MaxGrowth           float64 `json:"max_growth" yaml:"max_growth"`
}

// StructureResponse represents the complete structuring result
type StructureResponse struct {
	RunID     string              `json:"run_id" yaml:"run_id"`
	Functions []FunctionStructure `json:"functions" yaml:"functions"`
	Summary   StructureSummary    `json:"summary" yaml:"summary"`

	// Warnings and issues
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty" yaml:"errors,omitempty"`

	// Metadata
	GeneratedAt string      `json:"generated_at" yaml:"generated_at"`
	Version     string      `json:"version" yaml:"version"`
	Config      interface{} `json:"config,omitempty" yaml:"config,omitempty"`
}

// StructureService defines the core business logic for control-flow structuring
type StructureService interface {
	// Structure structures every selected function of the requested files
	Structure(ctx context.Context, req StructureRequest) (*StructureResponse, error)

	// StructureFile structures a single CFG file
	StructureFile(ctx context.Context, filePath string, req StructureRequest) (*StructureResponse, error)

	// StructureContent structures an in-memory CFG document; name selects
	// the decoder by extension
	StructureContent(ctx context.Context, name string, content []byte, req StructureRequest) (*StructureResponse, error)
}

// CFGReader defines the interface for locating CFG files
type CFGReader interface {
	// CollectCFGFiles finds all CFG files in the given paths
	CollectCFGFiles(paths []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error)

	// IsValidCFGFile checks if a path has a supported CFG extension
	IsValidCFGFile(path string) bool

	// FileExists checks if a file exists and returns an error if not
	FileExists(path string) (bool, error)
}

// StructureOutputFormatter defines the interface for formatting structuring results
type StructureOutputFormatter interface {
	// Format formats the response according to the specified format
	Format(response *StructureResponse, format OutputFormat) (string, error)

	// Write writes the formatted output to the writer
	Write(response *StructureResponse, format OutputFormat, writer io.Writer) error
}

// StructureConfigurationLoader defines the interface for loading configuration
type StructureConfigurationLoader interface {
	// LoadConfig loads configuration from the specified path
	LoadConfig(path string) (*StructureRequest, error)

	// LoadDefaultConfig loads the configuration discovered from the working tree
	LoadDefaultConfig() *StructureRequest

	// MergeConfig merges CLI flags with configuration file
	MergeConfig(base *StructureRequest, override *StructureRequest) *StructureRequest
}

// BoolPtr returns a pointer to b
func BoolPtr(b bool) *bool {
	return &b
}

// BoolValue returns the value of b, or def when b is nil
func BoolValue(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
