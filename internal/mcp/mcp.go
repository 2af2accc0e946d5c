// Package mcp implements the Model Context Protocol server for Hakari.
//
// The MCP server exposes run aggregation through tools, a resource template
// and a prompt, so MCP-compatible agents can read evaluation results
// without going through the REST API.
package mcp

import (
	"encoding/json"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/hakari/internal/service/runstats"
)

// maxAggregateEntries bounds the entries accepted by hakari_aggregate.
const maxAggregateEntries = 10000

// Server wraps the MCP server with Hakari's service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	runStats  *runstats.Service
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools, resources
// and prompts registered.
func New(runStats *runstats.Service, logger *slog.Logger, version string) *Server {
	s := &Server{
		runStats: runStats,
		logger:   logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"hakari",
		version,
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}
