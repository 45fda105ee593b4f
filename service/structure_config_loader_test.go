package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/decomb/domain"
)

func TestStructureConfigurationLoader_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".decomb.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[structure]
untangle = false
max_comb_iterations = 12
function_patterns = ["sub_*"]
metrics_dir = "metrics"

[output]
sort_by = "growth"
`), 0644))

	req, err := NewStructureConfigurationLoader().LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, domain.BoolValue(req.Untangle, true))
	assert.Equal(t, 12, req.MaxCombIterations)
	assert.Equal(t, []string{"sub_*"}, req.FunctionPatterns)
	assert.Equal(t, filepath.Join(dir, "metrics"), req.MetricsDir)
	assert.Equal(t, domain.SortByGrowth, req.SortBy)
	assert.Equal(t, path, req.ConfigPath)

	_, err = NewStructureConfigurationLoader().LoadConfig(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeConfigError, domain.ErrorCode(err))
}

func TestStructureConfigurationLoader_LoadDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	loader := NewStructureConfigurationLoader()
	loader.SetTargetPath(dir)

	req := loader.LoadDefaultConfig()
	require.NotNil(t, req)
	assert.True(t, domain.BoolValue(req.Untangle, false))
	assert.Equal(t, domain.DefaultIncludePatterns, req.IncludePatterns)
	assert.Equal(t, domain.DefaultTimeoutSeconds, req.TimeoutSeconds)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".decomb.toml"), []byte("[performance]\nmax_concurrency = 3\n"), 0644))
	req = loader.LoadDefaultConfig()
	assert.Equal(t, 3, req.MaxConcurrency)
}

func TestStructureConfigurationLoader_MergeConfig(t *testing.T) {
	base := &domain.StructureRequest{
		OutputFormat:      domain.OutputFormatJSON,
		SortBy:            domain.SortByName,
		Untangle:          domain.BoolPtr(true),
		MaxCombIterations: 100,
		MetricsDir:        "from-config",
		Recursive:         domain.BoolPtr(true),
		IncludePatterns:   []string{"**/*.json"},
		MaxConcurrency:    4,
	}
	override := &domain.StructureRequest{
		Paths:             []string{"bin"},
		OutputFormat:      domain.OutputFormatText,
		SortBy:            domain.SortByGrowth,
		Untangle:          domain.BoolPtr(false),
		MaxCombIterations: 7,
		Recursive:         domain.BoolPtr(false),
		MaxConcurrency:    1,
	}

	t.Run("unset flags keep the config values", func(t *testing.T) {
		merged := NewStructureConfigurationLoader().MergeConfig(base, override)
		assert.Equal(t, []string{"bin"}, merged.Paths)
		assert.Equal(t, domain.OutputFormatJSON, merged.OutputFormat)
		assert.Equal(t, domain.SortByName, merged.SortBy)
		assert.True(t, *merged.Untangle)
		assert.Equal(t, 100, merged.MaxCombIterations)
		assert.Equal(t, "from-config", merged.MetricsDir)
		assert.True(t, *merged.Recursive)
		assert.Equal(t, 4, merged.MaxConcurrency)
	})

	t.Run("explicit flags win", func(t *testing.T) {
		fs := pflag.NewFlagSet("structure", pflag.ContinueOnError)
		fs.Bool("no-untangle", false, "")
		fs.String("sort", "", "")
		fs.Int("max-comb-iterations", 0, "")
		fs.Int("jobs", 0, "")
		require.NoError(t, fs.Parse([]string{"--no-untangle", "--sort=growth", "--max-comb-iterations=7", "--jobs=1"}))

		merged := NewStructureConfigurationLoaderFromFlagSet(fs).MergeConfig(base, override)
		assert.False(t, *merged.Untangle)
		assert.Equal(t, domain.SortByGrowth, merged.SortBy)
		assert.Equal(t, 7, merged.MaxCombIterations)
		assert.Equal(t, 1, merged.MaxConcurrency)
		assert.True(t, *merged.Recursive)
	})

	t.Run("format flag resets to text", func(t *testing.T) {
		merged := NewStructureConfigurationLoaderWithFlags(map[string]bool{"format": true}).MergeConfig(base, override)
		assert.Equal(t, domain.OutputFormatText, merged.OutputFormat)
	})

	t.Run("nil sides", func(t *testing.T) {
		loader := NewStructureConfigurationLoader()
		assert.Same(t, override, loader.MergeConfig(nil, override))
		assert.Same(t, base, loader.MergeConfig(base, nil))
	})

	assert.Equal(t, 100, base.MaxCombIterations, "base is not modified")
}
