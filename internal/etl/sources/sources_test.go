package sources

import (
	"context"
	"errors"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixtures/internal/domain"
	"fixtures/internal/etl"
)

func testDescriptor(kind domain.SourceKind) domain.SourceDescriptor {
	return domain.SourceDescriptor{
		Kind:           kind,
		Section:        "testCases",
		JSONPath:       "data/test-data.json",
		CSVPath:        "data/test-data.csv",
		ExcelPath:      "data/test-data.xlsx",
		DBPath:         "data/test-data.db",
		QueriesPath:    "data/queries.json",
		CSVDelimiter:   ",",
		CSVHasHeader:   true,
		ArrayDelimiter: "|",
		Database:       domain.DatabaseSettings{RunMode: domain.RunModeLocal},
	}
}

func testDeps(t *testing.T) (Deps, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	logger, _ := logtest.NewNullLogger()
	return Deps{Fs: fs, Log: logger}, fs
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestOpenUnknownKind(t *testing.T) {
	t.Parallel()

	deps, _ := testDeps(t)
	_, err := Open(testDescriptor("parquet"), deps)
	require.Error(t, err)
	assert.True(t, errors.Is(err, etl.ErrConfiguration))
	assert.Contains(t, err.Error(), "parquet")
}

func TestOpenPicksReaderByKind(t *testing.T) {
	t.Parallel()

	deps, _ := testDeps(t)
	for _, kind := range domain.KnownSourceKinds {
		r, err := Open(testDescriptor(kind), deps)
		require.NoError(t, err, kind)
		assert.Equal(t, string(kind), r.Kind())
	}

	types := make([]string, 0)
	for _, s := range Specs() {
		types = append(types, s.Type)
	}
	assert.Equal(t, []string{"csv", "database", "excel", "json"}, types)
}

type testCase struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Enabled bool     `json:"enabled"`
	Tags    []string `json:"tags"`
	Timeout float64  `json:"timeout"`
}

func TestTypedAccess(t *testing.T) {
	t.Parallel()

	deps, fs := testDeps(t)
	writeFile(t, fs, "data/test-data.csv",
		"id,name,enabled,tags,timeout\n"+
			"TC1,login,yes,smoke|auth,30\n"+
			"TC2,logout,no,,\n")
	r, err := Open(testDescriptor(domain.SourceCSV), deps)
	require.NoError(t, err)
	ctx := context.Background()

	all, err := ReadAllAs[testCase](ctx, r)
	require.NoError(t, err)
	assert.Equal(t, []testCase{
		{ID: "TC1", Name: "login", Enabled: true, Tags: []string{"smoke", "auth"}, Timeout: 30},
		{ID: "TC2", Name: "logout", Enabled: false, Tags: []string{}, Timeout: 0},
	}, all)

	one, err := ReadByIDAs[testCase](ctx, r, "TC2")
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.Equal(t, "logout", one.Name)

	none, err := ReadByIDAs[testCase](ctx, r, "TC9")
	require.NoError(t, err)
	assert.Nil(t, none)

	enabled, err := ReadEnabledAs[testCase](ctx, r)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "TC1", enabled[0].ID)

	filtered, err := ReadFilteredAs[testCase](ctx, r, map[string]any{"tags": []string{"smoke", "auth"}})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "TC1", filtered[0].ID)
}

func TestReadEnabledTreatsAbsentAsEnabled(t *testing.T) {
	t.Parallel()

	deps, fs := testDeps(t)
	writeFile(t, fs, "data/test-data.json", `{
  "testCases": [
    {"id": "a", "enabled": false},
    {"id": "b"},
    {"id": "c", "enabled": "yes"},
    {"id": "d", "enabled": "off"}
  ]
}`)
	r, err := Open(testDescriptor(domain.SourceJSON), deps)
	require.NoError(t, err)

	enabled, err := r.ReadEnabled(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, rec := range enabled {
		id, _ := rec.ID()
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"b", "c"}, ids)
}
