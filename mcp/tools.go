package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterTools registers all decomb MCP tools with the server
func RegisterTools(s *server.MCPServer, h *HandlerSet) {
	if h == nil {
		h = NewHandlerSet(nil)
	}

	// Tool 1: structure_file - Structure CFG files on disk
	s.AddTool(mcp.NewTool("structure_file",
		mcp.WithDescription("Structure the control-flow graphs stored in a CFG file or directory into goto-free syntax trees, with duplication metrics"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to a CFG file (.json, .yaml, .msgpack, optionally .gz or .xz) or a directory of them")),
		mcp.WithArray("functions",
			mcp.WithStringItems(),
			mcp.Description("Glob patterns selecting functions by name. Default: all functions")),
		mcp.WithBoolean("untangle",
			mcp.Description("Duplicate short conditional tails (default: true)")),
		mcp.WithBoolean("recursive",
			mcp.Description("Recursively search directories (default: true)")),
		mcp.WithString("output_mode",
			mcp.Enum(outputModes...),
			mcp.Description("summary: metrics per function, full: complete result with syntax trees, text: human readable report (default: summary)")),
	), h.HandleStructureFile)

	// Tool 2: structure_cfg - Structure an inline CFG document
	s.AddTool(mcp.NewTool("structure_cfg",
		mcp.WithDescription("Structure a CFG document passed inline as JSON or YAML"),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The CFG document: a program with a functions list, or a single function")),
		mcp.WithString("encoding",
			mcp.Enum("json", "yaml"),
			mcp.Description("Encoding of content (default: json)")),
		mcp.WithArray("functions",
			mcp.WithStringItems(),
			mcp.Description("Glob patterns selecting functions by name. Default: all functions")),
		mcp.WithBoolean("untangle",
			mcp.Description("Duplicate short conditional tails (default: true)")),
		mcp.WithString("output_mode",
			mcp.Enum(outputModes...),
			mcp.Description("summary: metrics per function, full: complete result with syntax trees, text: human readable report (default: full)")),
	), h.HandleStructureCFG)
}
