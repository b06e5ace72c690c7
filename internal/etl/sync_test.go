package etl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	records []Record
	err     error
}

func (s *stubReader) Kind() string { return "csv" }
func (s *stubReader) ReadAll(context.Context) ([]Record, error) {
	return s.records, s.err
}
func (s *stubReader) ReadByID(context.Context, string) (Record, error) { return nil, nil }
func (s *stubReader) ReadFiltered(context.Context, map[string]any) ([]Record, error) {
	return nil, nil
}
func (s *stubReader) ReadEnabled(context.Context) ([]Record, error) { return nil, nil }
func (s *stubReader) IsAvailable(context.Context) bool              { return true }
func (s *stubReader) ClearCache()                                   {}

type recordingDest struct {
	meta    Metadata
	records []Record
	calls   int
}

func (d *recordingDest) Write(_ context.Context, meta Metadata, records []Record) error {
	d.calls++
	d.meta = meta
	d.records = records
	return nil
}

func TestEngine_RunSync(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dest := &recordingDest{}
	engine := &Engine{Dest: dest, Now: func() time.Time { return fixed }}

	records := []Record{{"id": "1"}, {"id": "2"}}
	result, err := engine.RunSync(context.Background(), &stubReader{records: records}, "/abs/cases.csv")
	require.NoError(t, err)

	assert.Equal(t, "success", result.Status)
	assert.Equal(t, 2, result.RowsRead)
	assert.Equal(t, 2, result.RowsWritten)
	assert.Equal(t, Metadata{
		SourceType:     "csv",
		OriginalSource: "/abs/cases.csv",
		GeneratedAt:    fixed,
		RecordCount:    2,
		PreprocessedBy: GeneratorID,
	}, dest.meta)
	assert.Equal(t, records, dest.records)
}

func TestEngine_RunSync_ReadFailureWritesNothing(t *testing.T) {
	t.Parallel()

	dest := &recordingDest{}
	engine := &Engine{Dest: dest}

	boom := ParseFailed("csv", "cases.csv", errors.New("bad quote"))
	result, err := engine.RunSync(context.Background(), &stubReader{err: boom}, "cases.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParseFailure)
	assert.Equal(t, "error", result.Status)
	assert.Zero(t, dest.calls)
}
