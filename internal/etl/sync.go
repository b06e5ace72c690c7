package etl

import (
	"context"
	"fmt"
	"time"
)

// ── Engine ─────────────────────────────────────────────────
// Orchestrates: reader.ReadAll → destination.Write.

// GeneratorID identifies this pipeline in snapshot metadata.
const GeneratorID = "fixtures/preprocessor"

// SyncResult is the outcome of materialising one source.
type SyncResult struct {
	SourceType  string        `json:"sourceType"`
	Status      string        `json:"status"` // "success" | "error"
	RowsRead    int           `json:"rowsRead"`
	RowsWritten int           `json:"rowsWritten"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// Engine materialises a source into a destination.
type Engine struct {
	Dest Destination
	Now  func() time.Time
}

// RunSync reads every record from r and writes them to the destination
// with fresh metadata. A read failure aborts before anything is written.
func (e *Engine) RunSync(ctx context.Context, r Reader, originalSource string) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{SourceType: r.Kind()}

	fail := func(err error) (*SyncResult, error) {
		result.Status = "error"
		result.Error = err.Error()
		result.Duration = time.Since(start)
		return result, err
	}

	// 1. Read + coerce.
	records, err := r.ReadAll(ctx)
	if err != nil {
		return fail(fmt.Errorf("read: %w", err))
	}
	result.RowsRead = len(records)

	// 2. Write.
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	meta := Metadata{
		SourceType:     r.Kind(),
		OriginalSource: originalSource,
		GeneratedAt:    now().UTC(),
		RecordCount:    len(records),
		PreprocessedBy: GeneratorID,
	}
	if err := e.Dest.Write(ctx, meta, records); err != nil {
		return fail(fmt.Errorf("write: %w", err))
	}

	result.Status = "success"
	result.RowsWritten = len(records)
	result.Duration = time.Since(start)
	return result, nil
}
