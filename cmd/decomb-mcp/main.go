package main

import (
	"fmt"
	"log"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ludo-technologies/decomb/internal/version"
	"github.com/ludo-technologies/decomb/mcp"
)

const serverName = "decomb"

func main() {
	// Set up logging to stderr (MCP uses stdout for JSON-RPC)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Create MCP server with tool capabilities
	server := mcpserver.NewMCPServer(
		serverName,
		version.Short(),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
	)

	// DECOMB_CONFIG pins a configuration file; otherwise .decomb.toml is
	// discovered from each structured path
	configPath := os.Getenv("DECOMB_CONFIG")
	mcp.RegisterTools(server, mcp.NewHandlerSet(mcp.NewDependencies(configPath)))

	log.Printf("Starting %s MCP server %s\n", serverName, version.Short())
	if configPath != "" {
		log.Printf("Using configuration %s\n", configPath)
	}
	log.Println("Registered tools:")
	log.Println("  - structure_file: Structure CFG files on disk")
	log.Println("  - structure_cfg: Structure an inline CFG document")
	log.Println("")
	log.Println("Server ready - waiting for MCP client connection...")

	// Start server with stdio transport
	// This blocks until the server is terminated
	if err := mcpserver.ServeStdio(server); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
