package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"fixtures/internal/service"
)

func (s *Server) registerPreprocessTools() {
	s.mcp.AddTool(mcp.NewTool("preprocess_source",
		mcp.WithDescription("Convert the configured source into the canonical JSON file. The previous canonical file is backed up first."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handlePreprocessSource)

	s.mcp.AddTool(mcp.NewTool("restore_canonical",
		mcp.WithDescription("Put the backed-up canonical JSON file back in place and remove the backup"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRestoreCanonical)
}

func (s *Server) handlePreprocessSource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := s.pre.Preprocess(ctx)
	if errors.Is(err, service.ErrAlreadyRunning) {
		return textResult("A preprocess run is already in progress"), nil
	}
	if err != nil {
		s.Emit(ctx, service.EventRefreshFailed, map[string]string{"error": err.Error()})
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	s.Emit(ctx, service.EventRefreshed, result)
	return jsonResult(result)
}

func (s *Server) handleRestoreCanonical(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	restored := s.pre.RestoreCanonical(ctx)
	if restored {
		s.provider.Refresh()
	}
	return jsonResult(map[string]bool{"restored": restored})
}

func boolPtr(b bool) *bool { return &b }
