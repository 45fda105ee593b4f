package e2e

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// buildDecombBinary builds the decomb binary into a temporary directory
func buildDecombBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "decomb")

	// Build the binary from the project root (one level up from e2e directory)
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/decomb")
	projectRoot, err := filepath.Abs("..")
	if err != nil {
		t.Fatalf("Failed to get project root: %v", err)
	}
	cmd.Dir = projectRoot

	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build decomb binary: %v\n%s", err, out)
	}

	return binaryPath
}

// createTestConfigFile creates a temporary .decomb.toml config file for testing
// that directs output to the specified output directory
func createTestConfigFile(t *testing.T, testDir, outputDir string) {
	t.Helper()
	configFile := filepath.Join(testDir, ".decomb.toml")
	configContent := fmt.Sprintf("[output]\ndirectory = \"%s\"\n", filepath.ToSlash(outputDir))
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
}

// copyTestdata copies a file from testdata/cfg into dir
func copyTestdata(t *testing.T, dir, relPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "testdata", "cfg", relPath))
	if err != nil {
		t.Fatalf("Failed to read testdata %s: %v", relPath, err)
	}
	dst := filepath.Join(dir, filepath.Base(relPath))
	if err := os.WriteFile(dst, data, 0644); err != nil {
		t.Fatalf("Failed to copy testdata %s: %v", relPath, err)
	}
	return dst
}
