package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/decomb/domain"
	"github.com/ludo-technologies/decomb/internal/version"
)

const diamondJSON = `{
  "functions": [
    {
      "name": "diamond",
      "entry": 4096,
      "blocks": [
        {"address": 4096, "name": "A", "successors": [{"target": 4112}, {"target": 4128}]},
        {"address": 4112, "name": "B", "successors": [{"target": 4144}]},
        {"address": 4128, "name": "C", "successors": [{"target": 4144}]},
        {"address": 4144, "name": "D"}
      ]
    }
  ]
}`

const brokenJSON = `{
  "functions": [
    {"name": "broken", "entry": 1, "blocks": [{"address": 1, "successors": [{"target": 99}]}]}
  ]
}`

func newTestRoot() *cobra.Command {
	root := &cobra.Command{Use: "decomb", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	root.AddCommand(NewStructureCmd(), NewInitCmd(), NewVersionCmd())
	return root
}

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newTestRoot()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestVersion(t *testing.T) {
	// Version package should provide version info
	if version.Short() == "" {
		t.Error("version should not be empty")
	}

	stdout, _, err := runCommand(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Short(), strings.TrimSpace(stdout))
}

func TestStructureCommand_Text(t *testing.T) {
	path := writeFile(t, t.TempDir(), "diamond.json", diamondJSON)

	stdout, _, err := runCommand(t, "structure", "--show-ast", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Control-Flow Structuring Report")
	assert.Contains(t, stdout, "diamond")
	assert.NotContains(t, stdout, "\x1b[")
}

func TestStructureCommand_JSONToFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "diamond.json", diamondJSON)
	out := filepath.Join(dir, "report.json")

	_, stderr, err := runCommand(t, "structure", "--json", "-o", out, path)
	require.NoError(t, err)
	assert.Contains(t, stderr, out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "diamond"`)
}

func TestStructureCommand_StdoutDash(t *testing.T) {
	path := writeFile(t, t.TempDir(), "diamond.json", diamondJSON)

	stdout, _, err := runCommand(t, "structure", "--csv", "-o", "-", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "file,function,status"))
}

func TestStructureCommand_FailedFunction(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "diamond.json", diamondJSON)
	writeFile(t, dir, "broken.json", brokenJSON)

	stdout, _, err := runCommand(t, "structure", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 function(s) could not be structured")
	assert.Contains(t, stdout, "diamond")
}

func TestStructureCommand_InvalidFlags(t *testing.T) {
	path := writeFile(t, t.TempDir(), "diamond.json", diamondJSON)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad sort", []string{"--sort", "color"}, "unsupported sort criteria"},
		{"bad size", []string{"--max-file-size", "lots"}, "invalid --max-file-size"},
		{"two formats", []string{"--json", "--yaml"}, "none of the others can be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"structure"}, tt.args...)
			_, _, err := runCommand(t, append(args, path)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStructureCommand_NoFiles(t *testing.T) {
	_, stderr, err := runCommand(t, "structure", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeInvalidInput, domain.ErrorCode(err))
	assert.Contains(t, stderr, string(domain.ErrorCategoryInput))
}

func TestDetermineOutputFormat(t *testing.T) {
	c := NewStructureCommand()
	format, ext := c.determineOutputFormat()
	assert.Equal(t, domain.OutputFormatText, format)
	assert.Equal(t, "txt", ext)

	c.dot = true
	format, ext = c.determineOutputFormat()
	assert.Equal(t, domain.OutputFormatDOT, format)
	assert.Equal(t, "dot", ext)
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".decomb.toml")

	_, _, err := runCommand(t, "init", "--config", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[structure]")

	_, _, err = runCommand(t, "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, _, err = runCommand(t, "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestGenerateOutputFilePath(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, dir, ".decomb.toml", "[output]\ndirectory = \""+filepath.ToSlash(filepath.Join(dir, "reports"))+"\"\n")

	path, err := generateOutputFilePath("structure", "json", configPath, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reports"), filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "structure_"))
	assert.Equal(t, ".json", filepath.Ext(path))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
