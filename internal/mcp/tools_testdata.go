package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"fixtures/internal/domain"
	"fixtures/internal/etl"
	"fixtures/internal/etl/sources"
	"fixtures/internal/service"
)

func (s *Server) registerTestDataTools() {
	s.mcp.AddTool(mcp.NewTool("list_test_data",
		mcp.WithDescription("List test cases from the configured source (or another source kind). Returns counts plus the records."),
		mcp.WithString("source", mcp.Description("Source kind to read instead of the configured one (json, csv, excel, database)")),
		mcp.WithBoolean("enabledOnly", mcp.Description("Only return records whose enabled flag is not false")),
		mcp.WithString("fields", mcp.Description("Comma-separated list of fields to keep in each record, e.g. \"id,name,enabled\"")),
	), s.handleListTestData)

	s.mcp.AddTool(mcp.NewTool("get_test_case",
		mcp.WithDescription("Get a single test case by id"),
		mcp.WithString("id", mcp.Description("Test case id"), mcp.Required()),
		mcp.WithString("source", mcp.Description("Source kind to read instead of the configured one")),
	), s.handleGetTestCase)

	s.mcp.AddTool(mcp.NewTool("filter_test_data",
		mcp.WithDescription(`Return test cases matching every field of a JSON filter object.
Values are compared after type coercion, so {"enabled": true, "priority": 1} matches CSV rows holding "yes" and "1".`),
		mcp.WithString("filterJSON", mcp.Description("Filter object as JSON"), mcp.Required()),
		mcp.WithString("source", mcp.Description("Source kind to read instead of the configured one")),
	), s.handleFilterTestData)

	s.mcp.AddTool(mcp.NewTool("source_status",
		mcp.WithDescription("Show which source is bound, where it lives, whether it can be read, and the configuration each source kind accepts"),
	), s.handleSourceStatus)
}

// withProvider runs fn against the bound provider or, when kind names a
// different source, against a temporary one that is closed afterwards.
func (s *Server) withProvider(kind domain.SourceKind, fn func(p *service.Provider) error) error {
	if kind == "" || kind == s.provider.Source() {
		return fn(s.provider)
	}
	p, err := s.provider.ForSource(kind)
	if err != nil {
		return err
	}
	defer p.Close()
	return fn(p)
}

func (s *Server) handleListTestData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := sourceArg(req.GetArguments())
	if err != nil {
		return nil, err
	}
	enabledOnly := req.GetBool("enabledOnly", false)
	fields := splitFields(req.GetString("fields", ""))

	var result *service.TestDataResult
	err = s.withProvider(kind, func(p *service.Provider) error {
		var err error
		result, err = p.GetTestData(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read test data: %w", err)
	}

	var ts []etl.Transformer
	if enabledOnly {
		ts = append(ts, etl.EnabledTransform)
	}
	if len(fields) > 0 {
		ts = append(ts, &etl.SelectTransform{Fields: fields})
	}
	records := etl.ApplyAll(result.Records, ts...)

	return jsonResult(map[string]any{
		"source":       result.Source,
		"recordCount":  result.RecordCount,
		"enabledCount": result.EnabledCount,
		"returned":     len(records),
		"records":      records,
	})
}

func (s *Server) handleGetTestCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}
	kind, err := sourceArg(req.GetArguments())
	if err != nil {
		return nil, err
	}

	var record etl.Record
	err = s.withProvider(kind, func(p *service.Provider) error {
		var err error
		record, err = p.GetTestDataByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read test case: %w", err)
	}
	if record == nil {
		return textResult(fmt.Sprintf("No test case with id %q", id)), nil
	}
	return jsonResult(record)
}

func (s *Server) handleFilterTestData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	filter, err := parseFilter(args["filterJSON"])
	if err != nil {
		return nil, err
	}
	kind, err := sourceArg(args)
	if err != nil {
		return nil, err
	}

	var records []etl.Record
	err = s.withProvider(kind, func(p *service.Provider) error {
		var err error
		records, err = p.GetFilteredTestData(ctx, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("filter test data: %w", err)
	}
	if records == nil {
		records = []etl.Record{}
	}
	return jsonResult(records)
}

type sourceStatus struct {
	Source    domain.SourceKind `json:"source"`
	Section   string            `json:"section"`
	Location  string            `json:"location"`
	Available bool              `json:"available"`
	Sources   []etl.SourceSpec  `json:"sources"`
}

func (s *Server) handleSourceStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	desc := s.provider.Descriptor()
	return jsonResult(sourceStatus{
		Source:    desc.Kind,
		Section:   desc.Section,
		Location:  desc.Path(),
		Available: s.provider.IsSourceAvailable(ctx),
		Sources:   sources.Specs(),
	})
}
