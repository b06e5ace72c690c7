package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixtures/internal/etl"
)

func testMeta() etl.Metadata {
	return etl.Metadata{
		SourceType:     "csv",
		OriginalSource: "/work/data/test-data.csv",
		GeneratedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		RecordCount:    1,
		PreprocessedBy: etl.GeneratorID,
	}
}

func TestCanonicalStore_WriteAndLoad(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	s := NewCanonicalStore(fs, "data/test-data.json", "testCases")

	records := []etl.Record{{"id": "1", "enabled": true, "tags": []string{"a", "b"}}}
	require.NoError(t, s.Write(context.Background(), testMeta(), records))

	data, err := afero.ReadFile(fs, s.Path())
	require.NoError(t, err)
	assert.Regexp(t, `^\{\n  "_metadata": \{`, string(data))

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "_metadata")
	assert.Contains(t, doc, "testCases")

	snap, err := s.Load()
	require.NoError(t, err)
	require.True(t, snap.FileFound)
	require.True(t, snap.SectionFound)
	require.NotNil(t, snap.Metadata)
	assert.Equal(t, testMeta(), *snap.Metadata)
	assert.Equal(t, []etl.RawRow{{"id": "1", "enabled": true, "tags": []any{"a", "b"}}}, snap.Rows)
	assert.Equal(t, 1, s.RecordCount())

	// No temp files left behind.
	entries, err := afero.ReadDir(fs, "data")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "test-data.json", entries[0].Name())
}

func TestCanonicalStore_MissingFileAndSection(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	s := NewCanonicalStore(fs, "missing.json", "testCases")
	snap, err := s.Load()
	require.NoError(t, err)
	assert.False(t, snap.FileFound)
	assert.Empty(t, snap.Rows)
	assert.Zero(t, s.RecordCount())

	require.NoError(t, afero.WriteFile(fs, "other.json", []byte(`{"otherSection": [{"id": "x"}]}`), 0o644))
	snap, err = NewCanonicalStore(fs, "other.json", "testCases").Load()
	require.NoError(t, err)
	assert.True(t, snap.FileFound)
	assert.False(t, snap.SectionFound)
	assert.Empty(t, snap.Rows)
}

func TestCanonicalStore_Malformed(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "bad.json", []byte(`{"testCases": [`), 0o644))
	_, err := NewCanonicalStore(fs, "bad.json", "testCases").Load()
	assert.ErrorIs(t, err, etl.ErrParseFailure)

	require.NoError(t, afero.WriteFile(fs, "obj.json", []byte(`{"testCases": {"id": "1"}}`), 0o644))
	_, err = NewCanonicalStore(fs, "obj.json", "testCases").Load()
	assert.ErrorIs(t, err, etl.ErrParseFailure)
}

func TestCanonicalStore_BackupRestore(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	s := NewCanonicalStore(fs, "data/test-data.json", "testCases")
	original := []byte("{\n  \"testCases\": [ {\"id\": \"orig\"} ]\n}\n")
	require.NoError(t, afero.WriteFile(fs, s.Path(), original, 0o644))

	backup := s.Backup()
	require.NoError(t, backup.Err)
	assert.Equal(t, s.Path()+BackupSuffix, backup.Path)
	assert.True(t, s.HasBackup())

	copied, err := afero.ReadFile(fs, backup.Path)
	require.NoError(t, err)
	assert.Equal(t, original, copied)

	require.NoError(t, s.Write(context.Background(), testMeta(), []etl.Record{{"id": "new"}}))

	restored := s.Restore()
	require.NoError(t, restored.Err)
	assert.True(t, restored.Restored)
	assert.False(t, s.HasBackup())

	after, err := afero.ReadFile(fs, s.Path())
	require.NoError(t, err)
	assert.Equal(t, original, after)

	// Second restore is a no-op.
	again := s.Restore()
	assert.False(t, again.Restored)
	assert.NoError(t, again.Err)
}

func TestCanonicalStore_BackupWithoutCanonical(t *testing.T) {
	t.Parallel()

	s := NewCanonicalStore(afero.NewMemMapFs(), "none.json", "testCases")
	out := s.Backup()
	assert.True(t, out.Skipped)
	assert.Empty(t, out.Path)
	assert.NoError(t, out.Err)
	assert.False(t, s.HasBackup())
}

func TestCanonicalStore_BackupFailureIsReported(t *testing.T) {
	t.Parallel()

	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "c.json", []byte(`{}`), 0o644))
	s := NewCanonicalStore(afero.NewReadOnlyFs(base), "c.json", "testCases")

	out := s.Backup()
	assert.Error(t, out.Err)
	assert.Empty(t, out.Path)
}

func TestCanonicalStore_DiscardBackup(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	s := NewCanonicalStore(fs, "data/test-data.json", "testCases")
	require.NoError(t, s.DiscardBackup(), "no backup is fine")

	require.NoError(t, afero.WriteFile(fs, s.BackupPath(), []byte("{}"), 0o644))
	require.True(t, s.HasBackup())
	require.NoError(t, s.DiscardBackup())
	assert.False(t, s.HasBackup())
	assert.False(t, s.Restore().Restored)
}
