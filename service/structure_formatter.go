package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ludo-technologies/decomb/domain"
)

// StructureFormatterImpl implements the StructureOutputFormatter interface
type StructureFormatterImpl struct {
	color bool
}

// NewStructureFormatter creates a new structuring output formatter
func NewStructureFormatter() *StructureFormatterImpl {
	return &StructureFormatterImpl{}
}

// WithColor enables growth coloring in text reports
func (f *StructureFormatterImpl) WithColor(enabled bool) *StructureFormatterImpl {
	f.color = enabled
	return f
}

// Format formats the response according to the specified format
func (f *StructureFormatterImpl) Format(response *domain.StructureResponse, format domain.OutputFormat) (string, error) {
	switch format {
	case domain.OutputFormatText:
		return f.formatText(response), nil
	case domain.OutputFormatJSON:
		return EncodeJSON(response)
	case domain.OutputFormatYAML:
		return EncodeYAML(response)
	case domain.OutputFormatCSV:
		return f.formatCSV(response)
	case domain.OutputFormatDOT:
		return f.formatDOT(response), nil
	default:
		return "", domain.NewUnsupportedFormatError(string(format))
	}
}

// Write writes the formatted output to the writer
func (f *StructureFormatterImpl) Write(response *domain.StructureResponse, format domain.OutputFormat, writer io.Writer) error {
	switch format {
	case domain.OutputFormatJSON:
		return WriteJSON(writer, response)
	case domain.OutputFormatYAML:
		return WriteYAML(writer, response)
	}

	formatted, err := f.Format(response, format)
	if err != nil {
		return err
	}
	_, err = io.WriteString(writer, formatted)
	return err
}

// formatText formats the response as human-readable text
func (f *StructureFormatterImpl) formatText(response *domain.StructureResponse) string {
	var builder strings.Builder
	utils := NewFormatUtils().WithColor(f.color)

	builder.WriteString(utils.FormatMainHeader("Control-Flow Structuring Report"))

	s := response.Summary
	builder.WriteString(utils.FormatSummaryStats([]Stat{
		{"Files Analyzed", s.FilesAnalyzed},
		{"Functions", s.TotalFunctions},
		{"Structured", s.StructuredFunctions},
		{"Failed", s.FailedFunctions},
		{"Loop Regions", s.TotalRegions},
		{"Entry Dispatchers", s.EntryDispatchers},
		{"Exit Dispatchers", s.ExitDispatchers},
		{"Duplicated Blocks", s.TotalDuplications},
		{"Average Growth", utils.FormatGrowth(s.AverageGrowth * 100)},
		{"Max Growth", utils.FormatGrowth(s.MaxGrowth * 100)},
	}))

	if len(response.Functions) > 0 {
		builder.WriteString(utils.FormatSectionHeader("FUNCTIONS"))
		for _, fn := range response.Functions {
			f.writeFunctionDetails(&builder, fn, utils)
		}
		builder.WriteString(utils.FormatSectionSeparator())
	}

	builder.WriteString(utils.FormatWarningsSection("WARNINGS", response.Warnings))
	builder.WriteString(utils.FormatWarningsSection("ERRORS", response.Errors))

	return builder.String()
}

func (f *StructureFormatterImpl) writeFunctionDetails(builder *strings.Builder, fn domain.FunctionStructure, utils *FormatUtils) {
	pad := strings.Repeat(" ", SectionPadding)
	fmt.Fprintf(builder, "%s%s (%s #%d)\n", pad, fn.Name, fn.FilePath, fn.Index)

	if !fn.Succeeded() {
		builder.WriteString(utils.FormatLabelWithIndent(ItemPadding, "Error", fn.Error))
		builder.WriteString("\n")
		return
	}

	builder.WriteString(utils.FormatLabelWithIndent(ItemPadding, "Blocks",
		fmt.Sprintf("%d (%d reachable)", fn.Blocks, fn.ReachableBlocks)))
	builder.WriteString(utils.FormatLabelWithIndent(ItemPadding, "Backedges", fn.Backedges))
	builder.WriteString(utils.FormatLabelWithIndent(ItemPadding, "Weight",
		fmt.Sprintf("%d -> %d (%s)", fn.Metrics.InitialWeight, fn.Metrics.FinalWeight, utils.FormatGrowth(fn.Metrics.Percentage*100))))
	builder.WriteString(utils.FormatLabelWithIndent(ItemPadding, "Duplications", fn.Metrics.Duplications))
	if fn.Metrics.TentativeUntangle > 0 {
		builder.WriteString(utils.FormatLabelWithIndent(ItemPadding, "Untangle",
			fmt.Sprintf("%d of %d performed", fn.Metrics.PerformedUntangle, fn.Metrics.TentativeUntangle)))
	}

	for _, r := range fn.Regions {
		var dispatchers []string
		if r.EntryDispatcher {
			dispatchers = append(dispatchers, "entry")
		}
		if r.ExitDispatcher {
			dispatchers = append(dispatchers, "exit")
		}
		line := fmt.Sprintf("head %s, %d nodes, %d retreating, %d successors", r.Head, r.Size, r.Retreatings, r.Successors)
		if len(dispatchers) > 0 {
			line += ", dispatchers: " + strings.Join(dispatchers, "+")
		}
		builder.WriteString(utils.FormatLabelWithIndent(ItemPadding, fmt.Sprintf("Region %d", r.Index), line))
	}

	if len(fn.UnreachableBlocks) > 0 {
		builder.WriteString(utils.FormatLabelWithIndent(ItemPadding, "Unreachable", strings.Join(fn.UnreachableBlocks, ", ")))
	}

	if len(fn.Duplicates) > 0 {
		labels := make([]string, 0, len(fn.Duplicates))
		for label := range fn.Duplicates {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		parts := make([]string, len(labels))
		for i, label := range labels {
			parts[i] = fmt.Sprintf("%s x%d", label, fn.Duplicates[label])
		}
		builder.WriteString(utils.FormatLabelWithIndent(ItemPadding, "Duplicated", strings.Join(parts, ", ")))
	}

	if fn.AST != nil {
		builder.WriteString(strings.Repeat(" ", ItemPadding) + "AST:\n")
		writeTree(builder, fn.AST, ItemPadding+2)
	}
	builder.WriteString("\n")
}

// writeTree prints the structured tree one node per line
func writeTree(builder *strings.Builder, n *domain.StructuredNode, indent int) {
	builder.WriteString(strings.Repeat(" ", indent))
	if n.Role != "" {
		if _, err := strconv.Atoi(n.Role); err != nil {
			builder.WriteString(n.Role + ": ")
		}
	}
	builder.WriteString(n.Label)
	for _, flag := range n.Flags {
		if flag != "implicit" && flag != "break_from_within_switch" {
			builder.WriteString(" [" + flag + "]")
		}
	}
	builder.WriteString("\n")
	for _, c := range n.Children {
		writeTree(builder, c, indent+2)
	}
}

// formatCSV writes one metrics row per function
func (f *StructureFormatterImpl) formatCSV(response *domain.StructureResponse) (string, error) {
	var builder strings.Builder
	writer := csv.NewWriter(&builder)

	header := []string{
		"file", "function", "status", "blocks", "reachable", "backedges", "regions",
		"duplications", "initial_weight", "final_weight", "percentage",
		"tentative_untangle", "performed_untangle", "comb_splits",
	}
	if err := writer.Write(header); err != nil {
		return "", domain.NewOutputError("failed to write CSV header", err)
	}

	for _, fn := range response.Functions {
		status := "ok"
		if !fn.Succeeded() {
			status = "error"
		}
		record := []string{
			fn.FilePath,
			fn.Name,
			status,
			strconv.Itoa(fn.Blocks),
			strconv.Itoa(fn.ReachableBlocks),
			strconv.Itoa(fn.Backedges),
			strconv.Itoa(len(fn.Regions)),
			strconv.Itoa(fn.Metrics.Duplications),
			strconv.Itoa(fn.Metrics.InitialWeight),
			strconv.Itoa(fn.Metrics.FinalWeight),
			strconv.FormatFloat(fn.Metrics.Percentage, 'f', 4, 64),
			strconv.Itoa(fn.Metrics.TentativeUntangle),
			strconv.Itoa(fn.Metrics.PerformedUntangle),
			strconv.Itoa(fn.Metrics.CombSplits),
		}
		if err := writer.Write(record); err != nil {
			return "", domain.NewOutputError("failed to write CSV record", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", domain.NewOutputError("failed to flush CSV", err)
	}
	return builder.String(), nil
}

// formatDOT concatenates the graphviz renderings of every structured
// function, residual graph first
func (f *StructureFormatterImpl) formatDOT(response *domain.StructureResponse) string {
	var builder strings.Builder
	for _, fn := range response.Functions {
		if !fn.Succeeded() {
			fmt.Fprintf(&builder, "// %s: %s\n", fn.Name, fn.Error)
			continue
		}
		fmt.Fprintf(&builder, "// %s (%s)\n", fn.Name, fn.FilePath)
		if fn.GraphDot != "" {
			builder.WriteString(fn.GraphDot)
			ensureNewline(&builder)
		}
		if fn.ASTDot != "" {
			builder.WriteString(fn.ASTDot)
			ensureNewline(&builder)
		}
	}
	return builder.String()
}

func ensureNewline(builder *strings.Builder) {
	s := builder.String()
	if len(s) > 0 && s[len(s)-1] != '\n' {
		builder.WriteByte('\n')
	}
}
