package mcpserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"fixtures/internal/domain"
)

// parseFilter reads a JSON object given either as a string or as an
// already decoded object.
func parseFilter(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("filterJSON is required")
	case map[string]any:
		return v, nil
	case string:
		var filter map[string]any
		if err := json.Unmarshal([]byte(v), &filter); err != nil {
			return nil, fmt.Errorf("parse filterJSON: %w", err)
		}
		if filter == nil {
			return nil, fmt.Errorf("filterJSON must be an object")
		}
		return filter, nil
	default:
		return nil, fmt.Errorf("filterJSON must be an object, got %T", raw)
	}
}

// splitFields turns "id, name,,email" into [id name email].
func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// sourceArg returns the requested kind, or "" when the bound source applies.
func sourceArg(args map[string]any) (domain.SourceKind, error) {
	s, _ := args["source"].(string)
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	kind, ok := domain.ParseSourceKind(s)
	if !ok {
		return "", fmt.Errorf("unknown source %q", s)
	}
	return kind, nil
}
