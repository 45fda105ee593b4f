package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ludo-technologies/decomb/domain"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if !config.Structure.Untangle {
		t.Error("Expected untangling to be enabled by default")
	}
	if config.Structure.MaxCombIterations != 0 || config.Structure.MaxRefinementIterations != 0 {
		t.Error("Expected automatic iteration limits by default")
	}
	if config.Output.Format != "text" {
		t.Errorf("Expected format 'text', got %s", config.Output.Format)
	}
	if config.Output.SortBy != "location" {
		t.Errorf("Expected sort_by 'location', got %s", config.Output.SortBy)
	}
	if !config.Input.Recursive {
		t.Error("Expected recursive to be true by default")
	}
	if len(config.Input.IncludePatterns) != len(domain.DefaultIncludePatterns) {
		t.Errorf("Expected %d include patterns, got %d", len(domain.DefaultIncludePatterns), len(config.Input.IncludePatterns))
	}

	// The defaults must not alias the package level slices
	config.Input.IncludePatterns[0] = "changed"
	if domain.DefaultIncludePatterns[0] == "changed" {
		t.Error("DefaultConfig must copy the default include patterns")
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(c *Config)
		wantError string
	}{
		{"valid default", func(c *Config) {}, ""},
		{"negative comb limit", func(c *Config) { c.Structure.MaxCombIterations = -1 }, "max_comb_iterations"},
		{"negative refinement limit", func(c *Config) { c.Structure.MaxRefinementIterations = -3 }, "max_refinement_iterations"},
		{"bad function pattern", func(c *Config) { c.Structure.FunctionPatterns = []string{"main["} }, "function_patterns"},
		{"empty include", func(c *Config) { c.Input.IncludePatterns = nil }, "include_patterns"},
		{"bad file size", func(c *Config) { c.Input.MaxFileSize = "lots" }, "max_file_size"},
		{"no size limit", func(c *Config) { c.Input.MaxFileSize = "" }, ""},
		{"unknown format", func(c *Config) { c.Output.Format = "html" }, "output.format"},
		{"dot format", func(c *Config) { c.Output.Format = "dot" }, ""},
		{"unknown sort", func(c *Config) { c.Output.SortBy = "complexity" }, "sort_by"},
		{"negative concurrency", func(c *Config) { c.Performance.MaxConcurrency = -2 }, "max_concurrency"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantError == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q", tc.wantError)
			}
			if !strings.Contains(err.Error(), tc.wantError) {
				t.Errorf("Expected error containing %q, got %v", tc.wantError, err)
			}
		})
	}
}

func TestMaxFileSizeBytes(t *testing.T) {
	in := InputConfig{MaxFileSize: "2MB"}
	size, err := in.MaxFileSizeBytes()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if size != 2*1024*1024 {
		t.Errorf("Expected 2MiB, got %d", size)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "decomb.yaml")
	content := `structure:
  untangle: false
  max_comb_iterations: 64
output:
  format: json
  sort_by: growth
performance:
  max_concurrency: 2
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Structure.Untangle {
		t.Error("Expected untangle=false from file")
	}
	if cfg.Structure.MaxCombIterations != 64 {
		t.Errorf("Expected max_comb_iterations 64, got %d", cfg.Structure.MaxCombIterations)
	}
	if cfg.Output.Format != "json" || cfg.Output.SortBy != "growth" {
		t.Errorf("Unexpected output config: %+v", cfg.Output)
	}
	if cfg.Performance.MaxConcurrency != 2 {
		t.Errorf("Expected max_concurrency 2, got %d", cfg.Performance.MaxConcurrency)
	}
	// Untouched sections keep their defaults
	if cfg.Performance.TimeoutSeconds != domain.DefaultTimeoutSeconds {
		t.Errorf("Expected default timeout, got %d", cfg.Performance.TimeoutSeconds)
	}
}

func TestLoadConfigInvalidFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "decomb.json")
	if err := os.WriteFile(configPath, []byte(`{"output": {"format": "pdf"}}`), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadConfig(configPath); err == nil {
		t.Error("Expected validation error for unsupported format")
	}
	if _, err := LoadConfig(filepath.Join(tempDir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestToRequest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Structure.Untangle = false
	cfg.Structure.FunctionPatterns = []string{"sub_*"}
	cfg.Input.MaxFileSize = "1KB"

	req := cfg.ToRequest()
	if domain.BoolValue(req.Untangle, true) {
		t.Error("Expected untangle=false in request")
	}
	if req.MaxFileSize != 1024 {
		t.Errorf("Expected max file size 1024, got %d", req.MaxFileSize)
	}
	if len(req.FunctionPatterns) != 1 || req.FunctionPatterns[0] != "sub_*" {
		t.Errorf("Unexpected function patterns %v", req.FunctionPatterns)
	}
	if req.OutputFormat != domain.OutputFormatText {
		t.Errorf("Expected text format, got %s", req.OutputFormat)
	}
}

func TestGenerateDefaultConfigTOML(t *testing.T) {
	content, err := GenerateDefaultConfigTOML()
	if err != nil {
		t.Fatalf("Failed to render default config: %v", err)
	}
	for _, section := range []string{"[structure]", "[input]", "[output]", "[performance]"} {
		if !strings.Contains(content, section) {
			t.Errorf("Rendered config is missing %s", section)
		}
	}

	cfg, err := LoadDefaultConfigFromTOML()
	if err != nil {
		t.Fatalf("Rendered config does not parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Rendered config is invalid: %v", err)
	}
	if cfg.Structure.Untangle != domain.DefaultUntangle {
		t.Error("Rendered untangle differs from the default")
	}
	if len(cfg.Input.IncludePatterns) != len(domain.DefaultIncludePatterns) {
		t.Errorf("Rendered include patterns %v differ from the defaults", cfg.Input.IncludePatterns)
	}
}
