package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"fixtures/internal/etl/sources"
)

const (
	testDataURI = "fixtures://test-data"
	sourcesURI  = "fixtures://sources"
)

func (s *Server) registerResources() {
	// ── fixtures://test-data ───────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		testDataURI,
		"Bound Test Data",
		mcp.WithResourceDescription("Every record of the bound source with summary counts"),
		mcp.WithMIMEType("application/json"),
	), s.handleTestDataResource)

	// ── fixtures://sources ─────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		sourcesURI,
		"Source Kinds",
		mcp.WithResourceDescription("Supported source kinds and their configuration keys"),
		mcp.WithMIMEType("application/json"),
	), s.handleSourcesResource)
}

func (s *Server) handleTestDataResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	result, err := s.provider.GetTestData(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContents(testDataURI, result)
}

func (s *Server) handleSourcesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonContents(sourcesURI, sources.Specs())
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
