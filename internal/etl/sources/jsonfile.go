package sources

import (
	"context"

	"fixtures/internal/domain"
	"fixtures/internal/etl"
	"fixtures/internal/storage"
)

// ── Canonical JSON Source ──────────────────────────────────
// Reads the section array out of the canonical snapshot file.

func init() {
	Register(domain.SourceJSON, etl.SourceSpec{
		Type:  string(domain.SourceJSON),
		Label: "Canonical JSON",
		ConfigFields: []etl.ConfigField{
			{Key: "TEST_DATA_JSON_PATH", Label: "File Path", Default: "data/test-data.json"},
			{Key: "TEST_DATA_SECTION", Label: "Section", Default: "testCases", Help: "Top-level array holding the records"},
		},
	}, newJSONReader)
}

// JSONReader reads the canonical file. A missing file or section is an
// empty result.
type JSONReader struct {
	*cache
	store   *storage.CanonicalStore
	coercer *etl.Coercer
}

func newJSONReader(desc domain.SourceDescriptor, deps Deps) (Reader, error) {
	return NewJSONReader(desc, deps), nil
}

// NewJSONReader creates a canonical reader for desc.JSONPath.
func NewJSONReader(desc domain.SourceDescriptor, deps Deps) *JSONReader {
	deps = deps.WithDefaults()
	r := &JSONReader{
		store:   storage.NewCanonicalStore(deps.Fs, desc.JSONPath, desc.Section),
		coercer: etl.NewCoercer(desc.ArrayDelimiter, etl.WithNumericAutoconvert(desc.AutoconvertFor(domain.SourceJSON))),
	}
	r.cache = newCache(string(domain.SourceJSON), r.load)
	return r
}

func (r *JSONReader) load(ctx context.Context) ([]etl.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	return r.coercer.CoerceAll(snap.Rows), nil
}

// Metadata returns the snapshot metadata, or nil when the file has none.
func (r *JSONReader) Metadata() (*etl.Metadata, error) {
	snap, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	return snap.Metadata, nil
}

// IsAvailable reports whether the canonical file exists and parses.
func (r *JSONReader) IsAvailable(context.Context) bool {
	if !r.store.Exists() {
		return false
	}
	_, err := r.store.Load()
	return err == nil
}
