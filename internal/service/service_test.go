package service_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fixtures/internal/domain"
	"fixtures/internal/etl/sources"
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
		TableName:      "testCases",
		CSVDelimiter:   ",",
		CSVHasHeader:   true,
		ArrayDelimiter: "|",
		Database:       domain.DatabaseSettings{RunMode: domain.RunModeLocal},
	}
}

func testDeps(t *testing.T) (sources.Deps, afero.Fs, *logtest.Hook) {
	t.Helper()
	fs := afero.NewMemMapFs()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return sources.Deps{Fs: fs, Log: logger}, fs, hook
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func readFile(t *testing.T, fs afero.Fs, path string) []byte {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	return data
}

func writeWorkbook(t *testing.T, fs afero.Fs, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0o644))
}

const canonicalF0 = `{
  "_metadata": {"sourceType": "json", "recordCount": 2},
  "testCases": [
    {"id": "orig-1", "name": "original one"},
    {"id": "orig-2", "name": "original two", "enabled": false}
  ]
}
`
