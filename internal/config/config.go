package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/docker/go-units"
	"github.com/spf13/viper"

	"github.com/ludo-technologies/decomb/domain"
)

// Config represents the main configuration structure
type Config struct {
	// Structure holds the structuring algorithm configuration
	Structure StructureConfig `mapstructure:"structure" yaml:"structure" toml:"structure"`

	// Input holds CFG file discovery configuration
	Input InputConfig `mapstructure:"input" yaml:"input" toml:"input"`

	// Output holds output formatting configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" toml:"output"`

	// Performance holds execution limits
	Performance PerformanceConfig `mapstructure:"performance" yaml:"performance" toml:"performance"`
}

// StructureConfig holds configuration for the structuring algorithm
type StructureConfig struct {
	// Untangle duplicates short conditional tails into both branches
	Untangle bool `mapstructure:"untangle" yaml:"untangle" toml:"untangle"`

	// MaxRefinementIterations bounds successor refinement per region, 0 = automatic
	MaxRefinementIterations int `mapstructure:"max_refinement_iterations" yaml:"max_refinement_iterations" toml:"max_refinement_iterations"`

	// MaxCombIterations bounds node splits per graph, 0 = automatic
	MaxCombIterations int `mapstructure:"max_comb_iterations" yaml:"max_comb_iterations" toml:"max_comb_iterations"`

	// FunctionPatterns selects functions by name; empty selects all
	FunctionPatterns []string `mapstructure:"function_patterns" yaml:"function_patterns" toml:"function_patterns"`

	// MetricsDir receives one metrics CSV per function when set
	MetricsDir string `mapstructure:"metrics_dir" yaml:"metrics_dir" toml:"metrics_dir"`

	// DotDir receives graphviz dumps of every function when set
	DotDir string `mapstructure:"dot_dir" yaml:"dot_dir" toml:"dot_dir"`
}

// InputConfig holds configuration for CFG file discovery
type InputConfig struct {
	// Recursive controls whether to descend into subdirectories
	Recursive bool `mapstructure:"recursive" yaml:"recursive" toml:"recursive"`

	// IncludePatterns specifies file patterns to include
	IncludePatterns []string `mapstructure:"include_patterns" yaml:"include_patterns" toml:"include_patterns"`

	// ExcludePatterns specifies file patterns to exclude
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns" toml:"exclude_patterns"`

	// MaxFileSize is a human readable size limit such as "64MB"; empty means no limit
	MaxFileSize string `mapstructure:"max_file_size" yaml:"max_file_size" toml:"max_file_size"`
}

// OutputConfig holds configuration for output formatting
type OutputConfig struct {
	// Format specifies the output format: text, json, yaml, csv, dot
	Format string `mapstructure:"format" yaml:"format" toml:"format"`

	// Directory receives report files for non-text formats
	Directory string `mapstructure:"directory" yaml:"directory" toml:"directory"`

	// ShowAST controls whether the text report prints the structured tree
	ShowAST bool `mapstructure:"show_ast" yaml:"show_ast" toml:"show_ast"`

	// SortBy specifies how to sort functions: name, duplication, growth, size, location
	SortBy string `mapstructure:"sort_by" yaml:"sort_by" toml:"sort_by"`
}

// PerformanceConfig holds execution limits
type PerformanceConfig struct {
	// MaxConcurrency is the number of functions structured in parallel, 0 = unlimited
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency" toml:"max_concurrency"`

	// TimeoutSeconds bounds a whole run
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Structure: StructureConfig{
			Untangle:                domain.DefaultUntangle,
			MaxRefinementIterations: domain.DefaultMaxRefinementIterations,
			MaxCombIterations:       domain.DefaultMaxCombIterations,
			FunctionPatterns:        []string{},
		},
		Input: InputConfig{
			Recursive:       domain.DefaultRecursive,
			IncludePatterns: append([]string{}, domain.DefaultIncludePatterns...),
			ExcludePatterns: append([]string{}, domain.DefaultExcludePatterns...),
			MaxFileSize:     domain.DefaultMaxFileSize,
		},
		Output: OutputConfig{
			Format: string(domain.DefaultOutputFormat),
			SortBy: string(domain.DefaultSortBy),
		},
		Performance: PerformanceConfig{
			MaxConcurrency: domain.DefaultMaxConcurrency,
			TimeoutSeconds: domain.DefaultTimeoutSeconds,
		},
	}
}

// LoadConfig loads configuration from a file. TOML files go through the
// TOML loader so that unset booleans keep their defaults; YAML and JSON
// files are read with viper. An empty path yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		cfg, err := NewTomlConfigLoader().LoadFile(configPath)
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := DefaultConfig()
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithTarget loads the explicit config file when given, otherwise
// discovers .decomb.toml by walking up from targetPath, otherwise returns
// the defaults.
func LoadConfigWithTarget(configPath, targetPath string) (*Config, error) {
	if configPath != "" {
		return LoadConfig(configPath)
	}
	return NewTomlConfigLoader().LoadConfig(startDirectory(targetPath))
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	if c.Structure.MaxRefinementIterations < 0 {
		return fmt.Errorf("structure.max_refinement_iterations must be >= 0, got %d", c.Structure.MaxRefinementIterations)
	}

	if c.Structure.MaxCombIterations < 0 {
		return fmt.Errorf("structure.max_comb_iterations must be >= 0, got %d", c.Structure.MaxCombIterations)
	}

	for _, pattern := range c.Structure.FunctionPatterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid structure.function_patterns entry '%s'", pattern)
		}
	}

	if len(c.Input.IncludePatterns) == 0 {
		return fmt.Errorf("input.include_patterns cannot be empty")
	}

	for _, pattern := range append(append([]string{}, c.Input.IncludePatterns...), c.Input.ExcludePatterns...) {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid input pattern '%s'", pattern)
		}
	}

	if _, err := c.Input.MaxFileSizeBytes(); err != nil {
		return err
	}

	if !domain.OutputFormat(c.Output.Format).IsValid() {
		return fmt.Errorf("invalid output.format '%s', must be one of: text, json, yaml, csv, dot", c.Output.Format)
	}

	if !domain.SortCriteria(c.Output.SortBy).IsValid() {
		return fmt.Errorf("invalid output.sort_by '%s', must be one of: name, duplication, growth, size, location", c.Output.SortBy)
	}

	if c.Performance.MaxConcurrency < 0 {
		return fmt.Errorf("performance.max_concurrency must be >= 0, got %d", c.Performance.MaxConcurrency)
	}

	if c.Performance.TimeoutSeconds < 0 {
		return fmt.Errorf("performance.timeout_seconds must be >= 0, got %d", c.Performance.TimeoutSeconds)
	}

	return nil
}

// MaxFileSizeBytes parses MaxFileSize; 0 means no limit
func (c *InputConfig) MaxFileSizeBytes() (int64, error) {
	if strings.TrimSpace(c.MaxFileSize) == "" {
		return 0, nil
	}
	size, err := units.RAMInBytes(c.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("invalid input.max_file_size '%s': %w", c.MaxFileSize, err)
	}
	if size < 0 {
		return 0, fmt.Errorf("input.max_file_size must be >= 0, got %s", c.MaxFileSize)
	}
	return size, nil
}

// ToRequest maps the configuration onto a structuring request
func (c *Config) ToRequest() *domain.StructureRequest {
	maxSize, _ := c.Input.MaxFileSizeBytes()
	return &domain.StructureRequest{
		OutputFormat:            domain.OutputFormat(c.Output.Format),
		OutputDirectory:         c.Output.Directory,
		ShowAST:                 c.Output.ShowAST,
		SortBy:                  domain.SortCriteria(c.Output.SortBy),
		FunctionPatterns:        append([]string{}, c.Structure.FunctionPatterns...),
		Untangle:                domain.BoolPtr(c.Structure.Untangle),
		MaxRefinementIterations: c.Structure.MaxRefinementIterations,
		MaxCombIterations:       c.Structure.MaxCombIterations,
		MetricsDir:              c.Structure.MetricsDir,
		DotDir:                  c.Structure.DotDir,
		Recursive:               domain.BoolPtr(c.Input.Recursive),
		IncludePatterns:         append([]string{}, c.Input.IncludePatterns...),
		ExcludePatterns:         append([]string{}, c.Input.ExcludePatterns...),
		MaxFileSize:             maxSize,
		MaxConcurrency:          c.Performance.MaxConcurrency,
		TimeoutSeconds:          c.Performance.TimeoutSeconds,
	}
}
