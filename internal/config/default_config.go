package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/pelletier/go-toml/v2"

	"github.com/ludo-technologies/decomb/domain"
)

// defaultConfigTmpl contains the embedded default configuration template
//
//go:embed default_config.toml.tmpl
var defaultConfigTmpl string

// DefaultConfigValues holds all values used to render the default config template.
// All values are sourced from the domain package.
type DefaultConfigValues struct {
	// Structure
	Untangle                bool
	MaxRefinementIterations int
	MaxCombIterations       int

	// Input
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
	MaxFileSize     string

	// Output
	OutputFormat    string
	SortBy          string
	ReportDirectory string

	// Performance
	MaxConcurrency int
	TimeoutSeconds int
}

func newDefaultConfigValues() DefaultConfigValues {
	return DefaultConfigValues{
		Untangle:                domain.DefaultUntangle,
		MaxRefinementIterations: domain.DefaultMaxRefinementIterations,
		MaxCombIterations:       domain.DefaultMaxCombIterations,

		Recursive:       domain.DefaultRecursive,
		IncludePatterns: domain.DefaultIncludePatterns,
		ExcludePatterns: domain.DefaultExcludePatterns,
		MaxFileSize:     domain.DefaultMaxFileSize,

		OutputFormat:    string(domain.DefaultOutputFormat),
		SortBy:          string(domain.DefaultSortBy),
		ReportDirectory: domain.DefaultReportDirectory,

		MaxConcurrency: domain.DefaultMaxConcurrency,
		TimeoutSeconds: domain.DefaultTimeoutSeconds,
	}
}

// GenerateDefaultConfigTOML renders the default config template with domain values
// and returns the resulting TOML string.
func GenerateDefaultConfigTOML() (string, error) {
	tmpl, err := template.New("default_config").Parse(defaultConfigTmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse default config template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newDefaultConfigValues()); err != nil {
		return "", fmt.Errorf("failed to render default config template: %w", err)
	}

	return buf.String(), nil
}

// LoadDefaultConfigFromTOML parses the rendered default config back into a Config
func LoadDefaultConfigFromTOML() (*Config, error) {
	configTOML, err := GenerateDefaultConfigTOML()
	if err != nil {
		return nil, err
	}

	var tomlCfg DecombTomlConfig
	if err := toml.Unmarshal([]byte(configTOML), &tomlCfg); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	NewTomlConfigLoader().mergeDecombTomlConfig(cfg, &tomlCfg)
	return cfg, nil
}
