package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixtures/internal/domain"
	"fixtures/internal/etl"
)

func TestJSONReaderMissingFileOrSection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, fs := testDeps(t)
	r := NewJSONReader(testDescriptor(domain.SourceJSON), deps)
	assert.False(t, r.IsAvailable(ctx))

	all, err := r.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NotNil(t, all)

	writeFile(t, fs, "data/test-data.json", `{"otherSection": [{"id": "x"}]}`)
	r.ClearCache()
	all, err = r.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.True(t, r.IsAvailable(ctx))
}

func TestJSONReaderMalformed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, fs := testDeps(t)
	writeFile(t, fs, "data/test-data.json", `{"testCases": [`)
	r := NewJSONReader(testDescriptor(domain.SourceJSON), deps)

	_, err := r.ReadAll(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, etl.ErrParseFailure))
	assert.False(t, r.IsAvailable(ctx))
}

func TestJSONReaderCoercesAndCaches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, fs := testDeps(t)
	writeFile(t, fs, "data/test-data.json", `{
  "_metadata": {"sourceType": "csv", "recordCount": 1},
  "testCases": [{"id": "1", "enabled": true, "tags": ["a", "b"], "retries": "2"}]
}`)
	r := NewJSONReader(testDescriptor(domain.SourceJSON), deps)

	all, err := r.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []etl.Record{{
		"id": "1", "enabled": true, "tags": []string{"a", "b"}, "retries": float64(2),
	}}, all)

	meta, err := r.Metadata()
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "csv", meta.SourceType)

	// Cached until cleared.
	writeFile(t, fs, "data/test-data.json", `{"testCases": []}`)
	again, err := r.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 1)

	r.ClearCache()
	again, err = r.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestReadsReturnCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, fs := testDeps(t)
	writeFile(t, fs, "data/test-data.json", `{"testCases": [{"id": "1", "tags": ["a", "b"]}]}`)
	r := NewJSONReader(testDescriptor(domain.SourceJSON), deps)

	all, err := r.ReadAll(ctx)
	require.NoError(t, err)
	all[0]["tags"] = append(all[0]["tags"].([]string), "c")
	all[0]["name"] = "changed"

	byID, err := r.ReadByID(ctx, "1")
	require.NoError(t, err)
	byID["tags"].([]string)[0] = "z"

	enabled, err := r.ReadEnabled(ctx)
	require.NoError(t, err)
	enabled[0]["id"] = "other"

	filtered, err := r.ReadFiltered(ctx, map[string]any{"id": "1"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	delete(filtered[0], "tags")

	again, err := r.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []etl.Record{{"id": "1", "tags": []string{"a", "b"}}}, again)
}
