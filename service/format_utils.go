package service

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ludo-technologies/decomb/domain"
)

// EncodeJSON returns an indented JSON string for the given value.
func EncodeJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", domain.NewOutputError("failed to marshal JSON", err)
	}
	return string(data), nil
}

// WriteJSON writes indented JSON for the given value to the writer.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return domain.NewOutputError("failed to encode JSON", err)
	}
	return nil
}

// EncodeYAML returns a YAML string for the given value.
func EncodeYAML(v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", domain.NewOutputError("failed to marshal YAML", err)
	}
	return string(data), nil
}

// WriteYAML writes YAML for the given value to the writer.
func WriteYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return domain.NewOutputError("failed to encode YAML", err)
	}
	return nil
}

// Standard formatting constants
const (
	HeaderWidth    = 40
	LabelWidth     = 25
	SectionPadding = 2
	ItemPadding    = 4
)

// ANSI color codes for consistent color usage
const (
	ColorReset  = "\x1b[0m"
	ColorRed    = "\x1b[31m"
	ColorYellow = "\x1b[33m"
	ColorGreen  = "\x1b[32m"
	ColorCyan   = "\x1b[36m"
	ColorBold   = "\x1b[1m"
)

// Growth percentages above these values are reported as moderate or high
const (
	ModerateGrowthPercentage = 110.0
	HighGrowthPercentage     = 150.0
)

// Stat is one labeled value of a summary section
type Stat struct {
	Label string
	Value interface{}
}

// FormatUtils provides shared formatting utilities
type FormatUtils struct {
	color bool
}

// NewFormatUtils creates a new format utilities instance
func NewFormatUtils() *FormatUtils {
	return &FormatUtils{}
}

// WithColor enables ANSI colors in the formatted output
func (f *FormatUtils) WithColor(enabled bool) *FormatUtils {
	f.color = enabled
	return f
}

// FormatMainHeader creates a standardized main header
func (f *FormatUtils) FormatMainHeader(title string) string {
	var builder strings.Builder
	builder.WriteString(title + "\n")
	builder.WriteString(strings.Repeat("=", HeaderWidth) + "\n\n")
	return builder.String()
}

// FormatSectionHeader creates a standardized section header
func (f *FormatUtils) FormatSectionHeader(title string) string {
	var builder strings.Builder
	builder.WriteString(strings.ToUpper(title) + "\n")
	builder.WriteString(strings.Repeat("-", len(title)) + "\n")
	return builder.String()
}

// FormatSectionSeparator creates a section separator
func (f *FormatUtils) FormatSectionSeparator() string {
	return "\n"
}

// FormatLabel creates a consistently formatted label with right alignment
func (f *FormatUtils) FormatLabel(label string, value interface{}) string {
	padding := LabelWidth - len(label)
	if padding < 0 {
		padding = 0
	}
	return fmt.Sprintf("%s%s: %v\n", strings.Repeat(" ", padding), label, value)
}

// FormatLabelWithIndent creates a formatted label with specific indentation
func (f *FormatUtils) FormatLabelWithIndent(indent int, label string, value interface{}) string {
	return fmt.Sprintf("%s%s: %v\n", strings.Repeat(" ", indent), label, value)
}

// FormatPercentage formats a percentage value consistently
func (f *FormatUtils) FormatPercentage(value float64) string {
	return fmt.Sprintf("%.1f%%", value)
}

// GetGrowthColor returns the color for a final/initial weight percentage
func (f *FormatUtils) GetGrowthColor(percentage float64) string {
	switch {
	case percentage > HighGrowthPercentage:
		return ColorRed
	case percentage > ModerateGrowthPercentage:
		return ColorYellow
	default:
		return ColorGreen
	}
}

// FormatGrowth formats a growth percentage, colored when colors are enabled
func (f *FormatUtils) FormatGrowth(percentage float64) string {
	text := f.FormatPercentage(percentage)
	if !f.color {
		return text
	}
	return f.GetGrowthColor(percentage) + text + ColorReset
}

// FormatTableHeader creates a table header with consistent formatting
func (f *FormatUtils) FormatTableHeader(columns ...string) string {
	header := strings.Join(columns, "  ")
	separator := strings.Repeat("-", len(header))
	return header + "\n" + separator + "\n"
}

// FormatSummaryStats creates a summary section keeping the order of stats
func (f *FormatUtils) FormatSummaryStats(stats []Stat) string {
	var builder strings.Builder
	builder.WriteString(f.FormatSectionHeader("SUMMARY"))

	for _, s := range stats {
		builder.WriteString(f.FormatLabelWithIndent(SectionPadding, s.Label, s.Value))
	}

	builder.WriteString(f.FormatSectionSeparator())
	return builder.String()
}

// FormatWarningsSection creates a standardized warnings section
func (f *FormatUtils) FormatWarningsSection(title string, warnings []string) string {
	if len(warnings) == 0 {
		return ""
	}

	var builder strings.Builder
	builder.WriteString(f.FormatSectionHeader(title))

	for _, warning := range warnings {
		builder.WriteString(strings.Repeat(" ", SectionPadding) + "- " + warning + "\n")
	}

	builder.WriteString(f.FormatSectionSeparator())
	return builder.String()
}
