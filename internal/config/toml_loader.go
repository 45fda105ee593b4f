package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the dedicated configuration file discovered from the target upwards
const ConfigFileName = ".decomb.toml"

// DecombTomlConfig represents the structure of .decomb.toml
type DecombTomlConfig struct {
	Structure   DecombTomlStructureConfig   `toml:"structure"`
	Input       DecombTomlInputConfig       `toml:"input"`
	Output      DecombTomlOutputConfig      `toml:"output"`
	Performance DecombTomlPerformanceConfig `toml:"performance"`
}

type DecombTomlStructureConfig struct {
	Untangle                *bool    `toml:"untangle"` // pointer to detect unset
	MaxRefinementIterations *int     `toml:"max_refinement_iterations"`
	MaxCombIterations       *int     `toml:"max_comb_iterations"`
	FunctionPatterns        []string `toml:"function_patterns"`
	MetricsDir              string   `toml:"metrics_dir"`
	DotDir                  string   `toml:"dot_dir"`
}

type DecombTomlInputConfig struct {
	Recursive       *bool    `toml:"recursive"` // pointer to detect unset
	IncludePatterns []string `toml:"include_patterns"`
	ExcludePatterns []string `toml:"exclude_patterns"`
	MaxFileSize     string   `toml:"max_file_size"`
}

type DecombTomlOutputConfig struct {
	Format    string `toml:"format"`
	Directory string `toml:"directory"`
	ShowAST   *bool  `toml:"show_ast"` // pointer to detect unset
	SortBy    string `toml:"sort_by"`
}

type DecombTomlPerformanceConfig struct {
	MaxConcurrency *int `toml:"max_concurrency"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
}

// TomlConfigLoader handles TOML configuration loading
type TomlConfigLoader struct{}

// NewTomlConfigLoader creates a new TOML configuration loader
func NewTomlConfigLoader() *TomlConfigLoader {
	return &TomlConfigLoader{}
}

// LoadConfig loads .decomb.toml found by walking up from startDir, or the
// defaults when no file exists
func (l *TomlConfigLoader) LoadConfig(startDir string) (*Config, error) {
	configPath, err := l.findDecombToml(startDir)
	if err != nil {
		return DefaultConfig(), nil
	}
	return l.LoadFile(configPath)
}

// LoadFile parses a TOML configuration file and merges it into the defaults
func (l *TomlConfigLoader) LoadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var tomlCfg DecombTomlConfig
	if err := toml.Unmarshal(data, &tomlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	l.mergeDecombTomlConfig(cfg, &tomlCfg)

	// Relative output directories are resolved against the config file
	baseDir := filepath.Dir(configPath)
	cfg.Output.Directory = resolveRelative(baseDir, cfg.Output.Directory)
	cfg.Structure.MetricsDir = resolveRelative(baseDir, cfg.Structure.MetricsDir)
	cfg.Structure.DotDir = resolveRelative(baseDir, cfg.Structure.DotDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}
	return cfg, nil
}

// FindConfigFile returns the path of the closest .decomb.toml above startDir
func (l *TomlConfigLoader) FindConfigFile(startDir string) (string, bool) {
	path, err := l.findDecombToml(startDir)
	return path, err == nil
}

// findDecombToml walks up the directory tree to find .decomb.toml
func (l *TomlConfigLoader) findDecombToml(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}

	return "", os.ErrNotExist
}

// mergeDecombTomlConfig merges the parsed file into defaults using pointer
// fields and zero values to detect what was left unset
func (l *TomlConfigLoader) mergeDecombTomlConfig(defaults *Config, t *DecombTomlConfig) {
	s := &t.Structure
	if s.Untangle != nil {
		defaults.Structure.Untangle = *s.Untangle
	}
	if s.MaxRefinementIterations != nil {
		defaults.Structure.MaxRefinementIterations = *s.MaxRefinementIterations
	}
	if s.MaxCombIterations != nil {
		defaults.Structure.MaxCombIterations = *s.MaxCombIterations
	}
	if len(s.FunctionPatterns) > 0 {
		defaults.Structure.FunctionPatterns = s.FunctionPatterns
	}
	if s.MetricsDir != "" {
		defaults.Structure.MetricsDir = s.MetricsDir
	}
	if s.DotDir != "" {
		defaults.Structure.DotDir = s.DotDir
	}

	in := &t.Input
	if in.Recursive != nil {
		defaults.Input.Recursive = *in.Recursive
	}
	if len(in.IncludePatterns) > 0 {
		defaults.Input.IncludePatterns = in.IncludePatterns
	}
	if len(in.ExcludePatterns) > 0 {
		defaults.Input.ExcludePatterns = in.ExcludePatterns
	}
	if in.MaxFileSize != "" {
		defaults.Input.MaxFileSize = in.MaxFileSize
	}

	out := &t.Output
	if out.Format != "" {
		defaults.Output.Format = out.Format
	}
	if out.Directory != "" {
		defaults.Output.Directory = out.Directory
	}
	if out.ShowAST != nil {
		defaults.Output.ShowAST = *out.ShowAST
	}
	if out.SortBy != "" {
		defaults.Output.SortBy = out.SortBy
	}

	p := &t.Performance
	if p.MaxConcurrency != nil {
		defaults.Performance.MaxConcurrency = *p.MaxConcurrency
	}
	if p.TimeoutSeconds > 0 {
		defaults.Performance.TimeoutSeconds = p.TimeoutSeconds
	}
}

func resolveRelative(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// startDirectory returns the directory discovery starts from for a target
// path, which may be a file, a directory or empty
func startDirectory(targetPath string) string {
	if targetPath == "" {
		if wd, err := os.Getwd(); err == nil {
			return wd
		}
		return "."
	}
	info, err := os.Stat(targetPath)
	if err == nil && !info.IsDir() {
		return filepath.Dir(targetPath)
	}
	if err != nil {
		return filepath.Dir(targetPath)
	}
	return targetPath
}
