package service

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/ludo-technologies/decomb/domain"
	"github.com/ludo-technologies/decomb/internal/config"
)

// StructureConfigurationLoaderImpl implements the StructureConfigurationLoader
// interface. Values given on the command line override the configuration
// file only when their flag was explicitly set.
type StructureConfigurationLoaderImpl struct {
	flagTracker *config.FlagTracker
	targetPath  string
}

// NewStructureConfigurationLoader creates a loader with no explicit flags
func NewStructureConfigurationLoader() *StructureConfigurationLoaderImpl {
	return &StructureConfigurationLoaderImpl{flagTracker: config.NewFlagTracker()}
}

// NewStructureConfigurationLoaderWithFlags creates a loader tracking the given explicit flags
func NewStructureConfigurationLoaderWithFlags(explicitFlags map[string]bool) *StructureConfigurationLoaderImpl {
	return &StructureConfigurationLoaderImpl{flagTracker: config.NewFlagTrackerWithFlags(explicitFlags)}
}

// NewStructureConfigurationLoaderFromFlagSet tracks every flag changed on fs
func NewStructureConfigurationLoaderFromFlagSet(fs *pflag.FlagSet) *StructureConfigurationLoaderImpl {
	return &StructureConfigurationLoaderImpl{flagTracker: config.NewFlagTrackerFromFlagSet(fs)}
}

// SetTargetPath sets where .decomb.toml discovery starts
func (c *StructureConfigurationLoaderImpl) SetTargetPath(path string) {
	c.targetPath = path
}

// LoadConfig loads configuration from the specified path
func (c *StructureConfigurationLoaderImpl) LoadConfig(path string) (*domain.StructureRequest, error) {
	cfg, err := config.LoadConfigWithTarget(path, c.targetPath)
	if err != nil {
		return nil, domain.NewConfigError("failed to load configuration file", err)
	}
	req := cfg.ToRequest()
	req.ConfigPath = path
	return req, nil
}

// LoadDefaultConfig loads the discovered .decomb.toml, falling back to the
// built-in defaults when none exists or it cannot be read
func (c *StructureConfigurationLoaderImpl) LoadDefaultConfig() *domain.StructureRequest {
	target := c.targetPath
	if target == "" {
		if wd, err := os.Getwd(); err == nil {
			target = wd
		}
	}
	if cfg, err := config.LoadConfigWithTarget("", target); err == nil {
		return cfg.ToRequest()
	}
	return config.DefaultConfig().ToRequest()
}

// MergeConfig merges CLI flags with configuration file, respecting explicit flags
func (c *StructureConfigurationLoaderImpl) MergeConfig(base *domain.StructureRequest, override *domain.StructureRequest) *domain.StructureRequest {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := *base
	ft := c.flagTracker

	// Paths always come from command arguments
	if len(override.Paths) > 0 {
		merged.Paths = override.Paths
	}

	if ft.AnyWasSet("json", "yaml", "csv", "dot", "format") ||
		(override.OutputFormat != "" && override.OutputFormat != domain.OutputFormatText) {
		merged.OutputFormat = override.OutputFormat
	}
	if override.OutputWriter != nil {
		merged.OutputWriter = override.OutputWriter
	}
	if override.OutputPath != "" {
		merged.OutputPath = override.OutputPath
	}
	if override.OutputDirectory != "" {
		merged.OutputDirectory = override.OutputDirectory
	}
	if override.ConfigPath != "" {
		merged.ConfigPath = override.ConfigPath
	}

	merged.ShowAST = ft.MergeBool(merged.ShowAST, override.ShowAST, "show-ast")
	if ft.WasSet("sort") {
		merged.SortBy = override.SortBy
	}

	merged.FunctionPatterns = ft.MergeStringSlice(merged.FunctionPatterns, override.FunctionPatterns, "functions")

	// --no-untangle is the only switch for this option
	merged.Untangle = ft.MergeBoolPtr(merged.Untangle, override.Untangle, "no-untangle")
	merged.MaxRefinementIterations = ft.MergeInt(merged.MaxRefinementIterations, override.MaxRefinementIterations, "max-refinement-iterations")
	merged.MaxCombIterations = ft.MergeInt(merged.MaxCombIterations, override.MaxCombIterations, "max-comb-iterations")

	merged.MetricsDir = ft.MergeString(merged.MetricsDir, override.MetricsDir, "metrics-dir")
	merged.DotDir = ft.MergeString(merged.DotDir, override.DotDir, "dot-dir")

	merged.Recursive = ft.MergeBoolPtr(merged.Recursive, override.Recursive, "recursive")
	merged.IncludePatterns = ft.MergeStringSlice(merged.IncludePatterns, override.IncludePatterns, "include")
	merged.ExcludePatterns = ft.MergeStringSlice(merged.ExcludePatterns, override.ExcludePatterns, "exclude")
	merged.MaxFileSize = ft.MergeInt64(merged.MaxFileSize, override.MaxFileSize, "max-file-size")

	merged.MaxConcurrency = ft.MergeInt(merged.MaxConcurrency, override.MaxConcurrency, "jobs")
	merged.TimeoutSeconds = ft.MergeInt(merged.TimeoutSeconds, override.TimeoutSeconds, "timeout")

	return &merged
}
