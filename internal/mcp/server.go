package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"fixtures/internal/service"
)

// Server is the MCP server over the test-data pipeline.
// It lets agents inspect fixtures and trigger preprocessing.
type Server struct {
	mcp      *server.MCPServer
	provider *service.Provider
	pre      *service.Preprocessor
	log      logrus.FieldLogger
}

// Deps holds everything the server reads through.
type Deps struct {
	Provider     *service.Provider
	Preprocessor *service.Preprocessor // nil disables the write tools
	Log          logrus.FieldLogger
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		provider: deps.Provider,
		pre:      deps.Preprocessor,
		log:      log.WithField("component", "mcp"),
	}

	s.mcp = server.NewMCPServer(
		"fixtures-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTestDataTools()
	if s.pre != nil {
		s.registerPreprocessTools()
	}
	s.registerResources()
	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// Emit forwards a pipeline event to every connected client. A refresh
// also drops the provider cache.
func (s *Server) Emit(_ context.Context, event string, data any) {
	if event == service.EventRefreshed {
		s.provider.Refresh()
	}
	s.mcp.SendNotificationToAllClients(event, map[string]any{"data": data})
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
