package config

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixtures/internal/domain"
	"fixtures/internal/etl"
	"fixtures/internal/secret"
)

func TestResolveDefaults(t *testing.T) {
	t.Parallel()

	desc, err := Resolve(map[string]string{}, afero.NewMemMapFs())
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDescriptor{
		Kind:           domain.SourceJSON,
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
		Database: domain.DatabaseSettings{
			RunMode: domain.RunModeLocal,
			Driver:  domain.DatabaseDriverMySQL,
			Host:    "localhost",
			SSLMode: "disable",
		},
	}, desc)
}

func TestResolveEnvironment(t *testing.T) {
	t.Parallel()

	desc, err := Resolve(map[string]string{
		"TEST_DATA_SOURCE":              "Spreadsheet",
		"TEST_DATA_SECTION":             "loginCases",
		"TEST_DATA_EXCEL_PATH":          "fixtures/cases.xlsx",
		"TEST_DATA_SHEET":               "Login",
		"TEST_DATA_CSV_DELIMITER":       ";",
		"TEST_DATA_CSV_HAS_HEADER":      "false",
		"TEST_DATA_NUMERIC_AUTOCONVERT": "true",
		"DB_PORT":                       "3307",
	}, afero.NewMemMapFs())
	require.NoError(t, err)

	assert.Equal(t, domain.SourceExcel, desc.Kind)
	assert.Equal(t, "loginCases", desc.Section)
	assert.Equal(t, "loginCases", desc.TableName)
	assert.Equal(t, "fixtures/cases.xlsx", desc.Path())
	assert.Equal(t, "data/test-data.csv", desc.CSVPath)
	assert.Equal(t, "Login", desc.SheetName)
	assert.Equal(t, ";", desc.CSVDelimiter)
	assert.False(t, desc.CSVHasHeader)
	require.NotNil(t, desc.NumericAutoconvert)
	assert.True(t, *desc.NumericAutoconvert)
	assert.True(t, desc.AutoconvertFor(domain.SourceCSV))
	assert.Equal(t, 3307, desc.Database.Port)
}

func TestResolveNumericAutoconvert(t *testing.T) {
	t.Parallel()

	desc, err := Resolve(map[string]string{"TEST_DATA_SOURCE": "excel"}, afero.NewMemMapFs())
	require.NoError(t, err)
	assert.Nil(t, desc.NumericAutoconvert)
	assert.True(t, desc.AutoconvertFor(domain.SourceExcel))
	assert.False(t, desc.AutoconvertFor(domain.SourceCSV))

	desc, err = Resolve(map[string]string{
		"TEST_DATA_SOURCE":              "excel",
		"TEST_DATA_NUMERIC_AUTOCONVERT": "false",
	}, afero.NewMemMapFs())
	require.NoError(t, err)
	assert.False(t, desc.AutoconvertFor(domain.SourceExcel))
}

func TestResolveUnknownKindIsNotAnError(t *testing.T) {
	t.Parallel()

	desc, err := Resolve(map[string]string{"TEST_DATA_SOURCE": "Parquet"}, afero.NewMemMapFs())
	require.NoError(t, err)
	assert.Equal(t, domain.SourceKind("parquet"), desc.Kind)
	assert.False(t, desc.Kind.Known())
}

func TestResolveSideFilePrecedence(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "config/database.json", []byte(`{
  "runMode": "remote",
  "driver": "postgres",
  "host": "db.internal",
  "port": 6543,
  "schema": "qa",
  "username": "`+secret.Encode("tester")+`",
  "password": "`+secret.Encode("s3cret")+`"
}`), 0o644))

	desc, err := Resolve(map[string]string{}, fs)
	require.NoError(t, err)
	assert.Equal(t, domain.DatabaseSettings{
		RunMode:  domain.RunModeRemote,
		Driver:   domain.DatabaseDriverPostgres,
		Host:     "db.internal",
		Port:     6543,
		Schema:   "qa",
		Username: "tester",
		Password: "s3cret",
		SSLMode:  "disable",
	}, desc.Database)
	assert.Equal(t, "postgres://db.internal:6543/qa", desc.PathFor(domain.SourceDatabase))

	desc, err = Resolve(map[string]string{
		"DB_HOST":     "override.internal",
		"DB_PASSWORD": secret.Encode("from-env"),
	}, fs)
	require.NoError(t, err)
	assert.Equal(t, "override.internal", desc.Database.Host)
	assert.Equal(t, "from-env", desc.Database.Password)
	assert.Equal(t, "tester", desc.Database.Username)
}

func TestResolveSideFileCustomPath(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "ci/db.json", []byte(`{"host": "ci-db"}`), 0o644))

	desc, err := Resolve(map[string]string{"DB_CONFIG_PATH": "ci/db.json"}, fs)
	require.NoError(t, err)
	assert.Equal(t, "ci-db", desc.Database.Host)
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		env      map[string]string
		sideFile string
		key      string
	}{
		{name: "long delimiter", env: map[string]string{"TEST_DATA_CSV_DELIMITER": "::"}, key: "TEST_DATA_CSV_DELIMITER"},
		{name: "run mode", env: map[string]string{"DB_RUN_MODE": "cloud"}, key: "DB_RUN_MODE"},
		{name: "driver", env: map[string]string{"DB_DRIVER": "oracle"}, key: "DB_DRIVER"},
		{name: "password", env: map[string]string{"DB_PASSWORD": "%%%"}, key: "DB_PASSWORD"},
		{name: "port", env: map[string]string{"DB_PORT": "abc"}},
		{name: "malformed side-file", sideFile: `{"host": `, key: "DB_CONFIG_PATH"},
		{name: "side-file credentials", sideFile: `{"username": "%%%"}`, key: "DB_CONFIG_PATH"},
		{name: "side-file password", sideFile: `{"password": "%%%"}`, key: "DB_PASSWORD"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fs := afero.NewMemMapFs()
			if tc.sideFile != "" {
				require.NoError(t, afero.WriteFile(fs, "config/database.json", []byte(tc.sideFile), 0o644))
			}
			env := tc.env
			if env == nil {
				env = map[string]string{}
			}
			_, err := Resolve(env, fs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, etl.ErrConfiguration))
			if tc.key != "" {
				assert.Contains(t, err.Error(), tc.key)
			}
		})
	}
}
