package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ludo-technologies/decomb/domain"
	"github.com/ludo-technologies/decomb/service"
)

const (
	outputModeSummary = "summary"
	outputModeFull    = "full"
	outputModeText    = "text"
)

var outputModes = []string{outputModeSummary, outputModeFull, outputModeText}

// HandlerSet exposes MCP tool handlers with shared dependencies.
type HandlerSet struct {
	deps *Dependencies
}

// NewHandlerSet constructs a handler set.
func NewHandlerSet(deps *Dependencies) *HandlerSet {
	if deps == nil {
		deps = NewDependencies("")
	}
	return &HandlerSet{deps: deps}
}

// HandleStructureFile handles the structure_file tool
func (h *HandlerSet) HandleStructureFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// Parse arguments with type assertion
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return mcp.NewToolResultError("path parameter is required and must be a string"), nil
	}

	// Validate path exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return mcp.NewToolResultError(fmt.Sprintf("path does not exist: %s", path)), nil
	}

	outputMode, err := parseOutputMode(args, outputModeSummary)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req, explicit := h.parseRequest(args)
	req.Paths = []string{path}

	structureUC, err := h.deps.BuildStructureUseCase(explicit, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create structurer: %v", err)), nil
	}

	result, err := structureUC.StructureAndReturn(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("structuring failed: %v", err)), nil
	}

	return formatResult(result, outputMode)
}

// HandleStructureCFG handles the structure_cfg tool
func (h *HandlerSet) HandleStructureCFG(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}

	content, ok := args["content"].(string)
	if !ok || content == "" {
		return mcp.NewToolResultError("content parameter is required and must be a string"), nil
	}

	name := "inline.json"
	if enc, ok := args["encoding"].(string); ok {
		switch enc {
		case "json":
		case "yaml":
			name = "inline.yaml"
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unsupported encoding: %s (use json or yaml)", enc)), nil
		}
	}

	outputMode, err := parseOutputMode(args, outputModeFull)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req, explicit := h.parseRequest(args)
	loader := h.deps.newConfigLoader(explicit, "")

	base := loader.LoadDefaultConfig()
	if path := h.deps.ConfigPath(); path != "" {
		if base, err = loader.LoadConfig(path); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load configuration: %v", err)), nil
		}
	}
	merged := loader.MergeConfig(base, &req)

	result, err := h.deps.Service().StructureContent(ctx, name, []byte(content), *merged)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("structuring failed: %v", err)), nil
	}

	return formatResult(result, outputMode)
}

// parseRequest maps the optional tool arguments onto a request and reports
// which of them were given, keyed by their command line flag names
func (h *HandlerSet) parseRequest(args map[string]interface{}) (domain.StructureRequest, map[string]bool) {
	explicit := map[string]bool{"json": true}
	req := domain.StructureRequest{
		OutputFormat: domain.OutputFormatJSON,
		OutputWriter: io.Discard,
		ConfigPath:   h.deps.ConfigPath(),
	}

	if raw, ok := args["functions"].([]interface{}); ok {
		for _, f := range raw {
			if str, ok := f.(string); ok && str != "" {
				req.FunctionPatterns = append(req.FunctionPatterns, str)
			}
		}
		explicit["functions"] = len(req.FunctionPatterns) > 0
	}
	if untangle, ok := args["untangle"].(bool); ok {
		req.Untangle = domain.BoolPtr(untangle)
		explicit["no-untangle"] = true
	}
	if recursive, ok := args["recursive"].(bool); ok {
		req.Recursive = domain.BoolPtr(recursive)
		explicit["recursive"] = true
	}

	return req, explicit
}

func parseOutputMode(args map[string]interface{}, defaultMode string) (string, error) {
	mode, ok := args["output_mode"].(string)
	if !ok || mode == "" {
		return defaultMode, nil
	}
	for _, m := range outputModes {
		if mode == m {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unsupported output_mode: %s (use summary, full or text)", mode)
}

// formatResult renders a response in the requested output mode
func formatResult(result *domain.StructureResponse, outputMode string) (*mcp.CallToolResult, error) {
	var responseData interface{}
	switch outputMode {
	case outputModeText:
		text, err := service.NewStructureFormatter().Format(result, domain.OutputFormatText)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to format result: %v", err)), nil
		}
		return mcp.NewToolResultText(text), nil
	case outputModeFull:
		responseData = result
	default:
		responseData = formatSummary(result)
	}

	// Convert result to JSON
	jsonData, err := json.Marshal(responseData)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

// formatSummary drops syntax trees and keeps per-function metrics
func formatSummary(result *domain.StructureResponse) map[string]interface{} {
	functions := make([]map[string]interface{}, 0, len(result.Functions))
	for _, fn := range result.Functions {
		entry := map[string]interface{}{
			"name":      fn.Name,
			"file_path": fn.FilePath,
		}
		if !fn.Succeeded() {
			entry["error"] = fn.Error
			functions = append(functions, entry)
			continue
		}
		entry["blocks"] = fn.Blocks
		entry["backedges"] = fn.Backedges
		entry["regions"] = len(fn.Regions)
		entry["duplications"] = fn.Metrics.Duplications
		entry["initial_weight"] = fn.Metrics.InitialWeight
		entry["final_weight"] = fn.Metrics.FinalWeight
		entry["percentage"] = fn.Metrics.Percentage
		if len(fn.UnreachableBlocks) > 0 {
			entry["unreachable_blocks"] = fn.UnreachableBlocks
		}
		functions = append(functions, entry)
	}

	data := map[string]interface{}{
		"summary":   result.Summary,
		"functions": functions,
	}
	if len(result.Warnings) > 0 {
		data["warnings"] = result.Warnings
	}
	if len(result.Errors) > 0 {
		data["errors"] = result.Errors
	}
	return data
}
