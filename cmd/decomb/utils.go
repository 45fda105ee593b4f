package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ludo-technologies/decomb/domain"
	"github.com/ludo-technologies/decomb/internal/config"
)

// generateTimestampedFileName generates a filename with timestamp suffix
func generateTimestampedFileName(command, extension string) string {
	timestamp := time.Now().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", command, timestamp, extension)
}

// resolveOutputDirectory returns output.directory from the configuration,
// or .decomb/reports under the working directory
func resolveOutputDirectory(configPath, targetPath string) (string, error) {
	cfg, err := config.LoadConfigWithTarget(configPath, targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg != nil && cfg.Output.Directory != "" {
		return cfg.Output.Directory, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return domain.DefaultReportDirectory, nil
	}
	return filepath.Join(cwd, domain.DefaultReportDirectory), nil
}

// generateOutputFilePath returns a timestamped report path inside the
// output directory, creating the directory
func generateOutputFilePath(command, extension, configPath, targetPath string) (string, error) {
	outputDir, err := resolveOutputDirectory(configPath, targetPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	return filepath.Join(outputDir, generateTimestampedFileName(command, extension)), nil
}

// getTargetPathFromArgs extracts the first argument as target path, or returns empty string
func getTargetPathFromArgs(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
