package etl

import (
	"context"
	"time"
)

// ── Destination ────────────────────────────────────────────
// A Destination persists a full set of coerced records together with a
// description of where they came from. The canonical snapshot file is the
// only destination.

// Metadata describes a materialised snapshot.
type Metadata struct {
	SourceType     string    `json:"sourceType"`
	OriginalSource string    `json:"originalSource"`
	GeneratedAt    time.Time `json:"generatedAt"`
	RecordCount    int       `json:"recordCount"`
	PreprocessedBy string    `json:"preprocessedBy"`
}

// Destination writes records to a target.
type Destination interface {
	Write(ctx context.Context, meta Metadata, records []Record) error
}
