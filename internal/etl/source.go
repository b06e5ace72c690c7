package etl

import (
	"context"
)

// ── Reader ─────────────────────────────────────────────────
// A Reader loads one test-data source in full and hands out coerced
// Records. This is the only interface fixtures and page objects may
// depend on. Implementations live in etl/sources/, one file per kind.

// Reader is the capability contract shared by every source kind.
type Reader interface {
	// Kind returns the source kind this reader serves, e.g. "csv".
	Kind() string

	// ReadAll returns every record. The first call parses the backing
	// store; later calls return the cached result until ClearCache.
	ReadAll(ctx context.Context) ([]Record, error)

	// ReadByID returns the first record whose id matches, or nil.
	ReadByID(ctx context.Context, id string) (Record, error)

	// ReadFiltered returns records matching every field of filter.
	ReadFiltered(ctx context.Context, filter map[string]any) ([]Record, error)

	// ReadEnabled returns records whose enabled flag is not false.
	ReadEnabled(ctx context.Context) ([]Record, error)

	// IsAvailable reports whether the backing store can be read.
	// It never fails; internal errors turn into false.
	IsAvailable(ctx context.Context) bool

	// ClearCache forces the next ReadAll to hit the backing store.
	ClearCache()
}

// ConfigField describes a single configuration input of a source.
type ConfigField struct {
	Key     string `json:"key"` // environment variable
	Label   string `json:"label"`
	Default string `json:"default,omitempty"`
	Help    string `json:"help,omitempty"`
}

// SourceSpec describes a source kind and the settings that drive it.
type SourceSpec struct {
	Type         string        `json:"type"`
	Label        string        `json:"label"`
	ConfigFields []ConfigField `json:"configFields"`
}
