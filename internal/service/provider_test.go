package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixtures/internal/domain"
	"fixtures/internal/etl"
	"fixtures/internal/service"
)

func TestProviderOverrideAfterPreprocess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, fs, _ := testDeps(t)
	writeWorkbook(t, fs, "data/test-data.xlsx", [][]any{
		{"id", "name", "enabled"},
		{"TC1", "login", "yes"},
	})
	desc := testDescriptor(domain.SourceExcel)
	flags := &service.MemoryFlags{}

	_, err := service.NewPreprocessor(desc, flags, deps).Preprocess(ctx)
	require.NoError(t, err)

	// The workbook changes after preprocessing; only a direct read sees it.
	writeWorkbook(t, fs, "data/test-data.xlsx", [][]any{
		{"id", "name", "enabled"},
		{"TC1", "login", "yes"},
		{"TC2", "logout", "no"},
	})

	p, err := service.NewProvider(desc, flags.Load(), deps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	assert.Equal(t, domain.SourceJSON, p.Source())

	res, err := p.GetTestData(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceJSON, res.Source)
	assert.Equal(t, 1, res.RecordCount)

	direct, err := p.ForSource(domain.SourceExcel)
	require.NoError(t, err)
	t.Cleanup(func() { _ = direct.Close() })
	assert.Equal(t, domain.SourceExcel, direct.Source())
	assert.Equal(t, domain.SourceJSON, p.Source(), "ForSource leaves the receiver alone")

	res, err = direct.GetTestData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RecordCount)
	assert.Equal(t, 1, res.EnabledCount)

	res, err = p.GetTestData(ctx, domain.SourceExcel)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceExcel, res.Source)
	assert.Equal(t, 2, res.RecordCount)
}

func TestProviderWithoutFlagReadsConfiguredSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, fs, _ := testDeps(t)
	writeFile(t, fs, "data/test-data.csv", "id,name,enabled,tags\nTC1,login,true,smoke\nTC2,logout,false,\nTC3,search,,smoke|regression\n")
	p, err := service.NewProvider(testDescriptor(domain.SourceCSV), service.ProcessFlag{}, deps)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCSV, p.Source())
	assert.True(t, p.IsSourceAvailable(ctx))

	res, err := p.GetTestData(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RecordCount)
	assert.Equal(t, 1, res.EnabledCount, "an empty enabled cell coerces to false")
	assert.False(t, res.Timestamp.IsZero())

	enabled, err := p.GetEnabledTestData(ctx)
	require.NoError(t, err)
	assert.Len(t, enabled, 1)

	rec, err := p.GetTestDataByID(ctx, "TC3")
	require.NoError(t, err)
	assert.Equal(t, []string{"smoke", "regression"}, rec["tags"])

	missing, err := p.GetTestDataByID(ctx, "TC404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	filtered, err := p.GetFilteredTestData(ctx, map[string]any{"enabled": false})
	require.NoError(t, err)
	require.Len(t, filtered, 2)

	runner, err := p.ToRunnerData(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.RunnerMetadata{
		Source:      domain.SourceCSV,
		Section:     "testCases",
		GeneratedAt: runner.Metadata.GeneratedAt,
		RecordCount: 3,
	}, runner.Metadata)
	assert.Equal(t, res.Records, runner.Records)
}

func TestProviderUnknownKindFallsBack(t *testing.T) {
	t.Parallel()

	deps, fs, hook := testDeps(t)
	writeFile(t, fs, "data/test-data.json", canonicalF0)

	p, err := service.NewProvider(testDescriptor("parquet"), service.ProcessFlag{}, deps)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceJSON, p.Source())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Data["source"] == domain.SourceKind("parquet") {
			warned = true
		}
	}
	assert.True(t, warned)

	records, err := p.GetEnabledTestData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []etl.Record{{"id": "orig-1", "name": "original one"}}, records)
}

func TestProviderSurfacesReaderErrors(t *testing.T) {
	t.Parallel()

	deps, _, _ := testDeps(t)
	p, err := service.NewProvider(testDescriptor(domain.SourceCSV), service.ProcessFlag{}, deps)
	require.NoError(t, err)

	assert.False(t, p.IsSourceAvailable(context.Background()))
	_, err = p.GetTestData(context.Background())
	assert.ErrorIs(t, err, etl.ErrSourceUnavailable)
}

func TestDefaultProvider(t *testing.T) {
	deps, _, _ := testDeps(t)
	p, err := service.NewProvider(testDescriptor(domain.SourceJSON), service.ProcessFlag{}, deps)
	require.NoError(t, err)

	service.SetDefault(p)
	t.Cleanup(func() { service.SetDefault(nil) })

	got, err := service.Default()
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestEnvFlags(t *testing.T) {
	t.Setenv(service.EnvPreprocessed, "")
	t.Setenv(service.EnvOriginalSource, "")

	var flags service.EnvFlags
	assert.False(t, flags.Load().Preprocessed)

	require.NoError(t, flags.Mark(domain.SourceExcel))
	assert.Equal(t, service.ProcessFlag{Preprocessed: true, OriginalSource: domain.SourceExcel}, flags.Load())
	assert.Equal(t, map[string]string{
		service.EnvPreprocessed:   "true",
		service.EnvOriginalSource: "excel",
	}, flags.Load().Env())

	assert.Equal(t, service.ProcessFlag{}, service.FlagFromEnv(map[string]string{service.EnvPreprocessed: "false"}))
}

func TestProviderRefreshIsSafeAlongsideReads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	deps, fs, _ := testDeps(t)
	writeFile(t, fs, "data/test-data.json", canonicalF0)
	p, err := service.NewProvider(testDescriptor(domain.SourceJSON), service.ProcessFlag{}, deps)
	require.NoError(t, err)
	defer p.Close()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				p.Refresh()
				result, err := p.GetTestData(ctx)
				assert.NoError(t, err)
				assert.Equal(t, 2, result.RecordCount)
				_, err = p.GetTestDataByID(ctx, "orig-1")
				assert.NoError(t, err)
				_, err = p.GetEnabledTestData(ctx)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
