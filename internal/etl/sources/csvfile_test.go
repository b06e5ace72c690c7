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

func TestCSVReaderCoercion(t *testing.T) {
	t.Parallel()

	deps, fs := testDeps(t)
	writeFile(t, fs, "data/test-data.csv", "id,enabled,tags\n1,yes,a|b\n")
	r, err := NewCSVReader(testDescriptor(domain.SourceCSV), deps)
	require.NoError(t, err)

	all, err := r.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []etl.Record{{"id": "1", "enabled": true, "tags": []string{"a", "b"}}}, all)
}

func TestCSVReaderEdgeCases(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		deps, _ := testDeps(t)
		r, err := NewCSVReader(testDescriptor(domain.SourceCSV), deps)
		require.NoError(t, err)
		assert.False(t, r.IsAvailable(ctx))

		_, err = r.ReadAll(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, etl.ErrSourceUnavailable))
		assert.Contains(t, err.Error(), "data/test-data.csv")
		assert.Contains(t, err.Error(), "TEST_DATA_CSV_PATH")
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()
		deps, fs := testDeps(t)
		writeFile(t, fs, "data/test-data.csv", "")
		r, err := NewCSVReader(testDescriptor(domain.SourceCSV), deps)
		require.NoError(t, err)

		all, err := r.ReadAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("invalid delimiter", func(t *testing.T) {
		t.Parallel()
		deps, _ := testDeps(t)
		desc := testDescriptor(domain.SourceCSV)
		desc.CSVDelimiter = ";;"
		_, err := NewCSVReader(desc, deps)
		require.Error(t, err)
		assert.True(t, errors.Is(err, etl.ErrConfiguration))
	})
}

func TestCSVReaderNoHeaderCustomDelimiter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, fs := testDeps(t)
	writeFile(t, fs, "data/test-data.csv", "TC1;true;x\nTC2;no;y\n\n")
	desc := testDescriptor(domain.SourceCSV)
	desc.CSVDelimiter = ";"
	desc.CSVHasHeader = false
	r, err := NewCSVReader(desc, deps)
	require.NoError(t, err)

	headers, err := r.Headers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"col_1", "col_2", "col_3"}, headers)

	all, err := r.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []etl.Record{
		{"col_1": "TC1", "col_2": true, "col_3": "x"},
		{"col_1": "TC2", "col_2": false, "col_3": "y"},
	}, all)
}

func TestCSVReaderMappingAndHeaders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, fs := testDeps(t)
	writeFile(t, fs, "data/test-data.csv", "Test ID, Title ,enabled\nTC1,Login,1\n")
	r, err := NewCSVReader(testDescriptor(domain.SourceCSV), deps)
	require.NoError(t, err)

	headers, err := r.Headers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Test ID", "Title", "enabled"}, headers)

	mapped, err := r.ReadWithMapping(ctx, map[string]string{"Test ID": "id", "Title": "name"})
	require.NoError(t, err)
	assert.Equal(t, []etl.Record{{"id": "TC1", "name": "Login", "enabled": true}}, mapped)

	byID, err := r.ReadByID(ctx, "TC1")
	require.NoError(t, err)
	assert.Nil(t, byID, "mapping does not touch the cached records")
}

func TestAutoconvertIsOptInForCSV(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, fs := testDeps(t)
	writeFile(t, fs, "data/test-data.csv", "id,amount\nTC1,42.5\n")

	r, err := NewCSVReader(testDescriptor(domain.SourceCSV), deps)
	require.NoError(t, err)
	all, err := r.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42.5", all[0]["amount"])

	desc := testDescriptor(domain.SourceCSV)
	on := true
	desc.NumericAutoconvert = &on
	r, err = NewCSVReader(desc, deps)
	require.NoError(t, err)
	all, err = r.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42.5, all[0]["amount"])
	assert.Equal(t, "TC1", all[0]["id"])
}
