package domain

// ============================================================================
// Structuring Defaults
// ============================================================================

const (
	// DefaultUntangle enables duplication of short conditional tails.
	// Untangling trades a little code growth for shallower if nesting.
	DefaultUntangle = true

	// DefaultMaxRefinementIterations bounds successor refinement per region.
	// 0 means the region's graph size plus one.
	DefaultMaxRefinementIterations = 0

	// DefaultMaxCombIterations bounds node splits per graph.
	// 0 means sixteen times the graph size, at least 4096.
	DefaultMaxCombIterations = 0
)

// ============================================================================
// Input Defaults
// ============================================================================

const (
	// DefaultMaxFileSize is the largest CFG file accepted, in go-units notation.
	DefaultMaxFileSize = "64MB"

	// DefaultRecursive controls directory traversal.
	DefaultRecursive = true
)

// DefaultIncludePatterns selects every supported CFG encoding
var DefaultIncludePatterns = []string{
	"**/*.json", "**/*.json.gz", "**/*.json.xz",
	"**/*.yaml", "**/*.yml", "**/*.yaml.gz", "**/*.yml.gz",
	"**/*.msgpack", "**/*.msgpack.gz", "**/*.msgpack.xz",
}

// DefaultExcludePatterns skips report directories written by previous runs
var DefaultExcludePatterns = []string{".decomb/**"}

// ============================================================================
// Output Defaults
// ============================================================================

const (
	// DefaultOutputFormat is used when no format flag is given.
	DefaultOutputFormat = OutputFormatText

	// DefaultSortBy keeps functions in file order.
	DefaultSortBy = SortByLocation

	// DefaultReportDirectory is created under the working directory for file outputs.
	DefaultReportDirectory = ".decomb/reports"
)

// ============================================================================
// Performance Defaults
// ============================================================================

const (
	// DefaultMaxConcurrency is the number of functions structured in parallel.
	// 0 means no limit.
	DefaultMaxConcurrency = 0

	// DefaultTimeoutSeconds bounds a whole run.
	DefaultTimeoutSeconds = 300
)
