package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ludo-technologies/decomb/domain"
	"github.com/ludo-technologies/decomb/internal/analyzer"
)

// SideOutputWriter writes the per-function metrics records and graphviz
// dumps next to the main report
type SideOutputWriter struct {
	metricsDir string
	dotDir     string
}

// NewSideOutputWriter creates a writer; an empty directory disables that output
func NewSideOutputWriter(metricsDir, dotDir string) *SideOutputWriter {
	return &SideOutputWriter{metricsDir: metricsDir, dotDir: dotDir}
}

// Enabled reports whether any side output is configured
func (w *SideOutputWriter) Enabled() bool {
	return w.metricsDir != "" || w.dotDir != ""
}

// WriteFunction writes the outputs of one structured function and returns
// the paths it created
func (w *SideOutputWriter) WriteFunction(result *analyzer.Result) ([]string, error) {
	var written []string
	name := sanitizeFileName(result.Function)

	if w.metricsDir != "" {
		path := filepath.Join(w.metricsDir, name+".csv")
		if err := w.writeFile(path, func(f *os.File) error {
			return analyzer.WriteMetricsCSV(f, result.Metrics)
		}); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if w.dotDir != "" {
		dumps := []struct {
			suffix  string
			content string
		}{
			{"graph", result.Graph.Dot()},
			{"ast", astDot(result)},
		}
		for _, region := range result.Regions {
			if region.NestedGraph != nil {
				dumps = append(dumps, struct {
					suffix  string
					content string
				}{fmt.Sprintf("region-%d", region.Index), region.NestedGraph.Dot()})
			}
		}

		for _, d := range dumps {
			path := filepath.Join(w.dotDir, fmt.Sprintf("%s-%s.dot", name, d.suffix))
			content := d.content
			if err := w.writeFile(path, func(f *os.File) error {
				_, err := f.WriteString(content)
				return err
			}); err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}

	return written, nil
}

func (w *SideOutputWriter) writeFile(path string, fill func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return domain.NewOutputError(fmt.Sprintf("failed to create directory for %s", path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return domain.NewOutputError(fmt.Sprintf("failed to create %s", path), err)
	}
	if err := fill(f); err != nil {
		f.Close()
		return domain.NewOutputError(fmt.Sprintf("failed to write %s", path), err)
	}
	if err := f.Close(); err != nil {
		return domain.NewOutputError(fmt.Sprintf("failed to close %s", path), err)
	}
	return nil
}

// sanitizeFileName keeps function names usable as file names
func sanitizeFileName(name string) string {
	if name == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
}
