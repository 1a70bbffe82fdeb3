package comparator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/keysync/internal/config"
	"github.com/dbsmedya/keysync/internal/logger"
	"github.com/dbsmedya/keysync/internal/normalizer"
	"github.com/dbsmedya/keysync/internal/resilience"
)

func testComparator(t *testing.T, processing config.ProcessingConfig, errCfg config.ErrorHandlingConfig) (*Comparator, *resilience.Collector) {
	t.Helper()

	collector := resilience.NewCollector(errCfg)
	cmp, err := New(normalizer.New(), collector, logger.NewDefault(), processing)
	require.NoError(t, err)
	return cmp, collector
}

func defaultErrCfg() config.ErrorHandlingConfig {
	return config.ErrorHandlingConfig{
		OnMissingFile:     "skip",
		OnCorruptData:     "log",
		MaxErrors:         100,
		PartialProcessing: true,
	}
}

func writeSystemFile(t *testing.T, dir, system, content string) string {
	t.Helper()

	path := filepath.Join(dir, system+".csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNew_Validation(t *testing.T) {
	collector := resilience.NewCollector(defaultErrCfg())

	cmp, err := New(nil, collector, nil, config.ProcessingConfig{})
	assert.Error(t, err)
	assert.Nil(t, cmp)

	cmp, err = New(normalizer.New(), nil, nil, config.ProcessingConfig{})
	assert.Error(t, err)
	assert.Nil(t, cmp)

	cmp, err = New(normalizer.New(), collector, nil, config.ProcessingConfig{})
	assert.NoError(t, err)
	require.NotNil(t, cmp)
	assert.Equal(t, DefaultBatchSize, cmp.batchSize)
	assert.Equal(t, DefaultMaxWorkers, cmp.maxWorkers)
}

func TestCompareAll_SetAlgebra(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"A": writeSystemFile(t, dir, "A", "key\nK-1\nK-2\nK-3\n"),
		"B": writeSystemFile(t, dir, "B", "key\nK-1\nK-2\nK-4\n"),
	}

	cmp, _ := testComparator(t, config.ProcessingConfig{}, defaultErrCfg())

	result, err := cmp.CompareAll(context.Background(), files)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"K-000001", "K-000002", "K-000003", "K-000004"}, result.AllKeys.Sorted())
	assert.ElementsMatch(t, []string{"K-000003"}, result.KeysOnlyInAuthority.Sorted())
	assert.ElementsMatch(t, []string{"K-000004"}, result.KeysMissingInAuthority.Sorted())
	assert.ElementsMatch(t, []string{"K-000001", "K-000002"}, result.KeysInAllSystems.Sorted())
	assert.ElementsMatch(t, []string{"K-000003"}, result.SystemGaps["B"].Sorted())
	assert.InDelta(t, 50.0, result.MatchPercentage(), 0.001)
	assert.Equal(t, 6, result.TotalRawKeys)
}

func TestCompareAll_SpellingVariantsConverge(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"A": writeSystemFile(t, dir, "A", "key\nCUST-00042\n"),
		"B": writeSystemFile(t, dir, "B", "key\n  cust_00042  \n"),
	}

	cmp, _ := testComparator(t, config.ProcessingConfig{}, defaultErrCfg())

	result, err := cmp.CompareAll(context.Background(), files)
	require.NoError(t, err)

	assert.Len(t, result.AllKeys, 1)
	assert.Len(t, result.KeysInAllSystems, 1)
	assert.InDelta(t, 100.0, result.MatchPercentage(), 0.001)
}

func TestCompareAll_DuplicateGroups(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"A": writeSystemFile(t, dir, "A", "key\nKEY-001\nkey-001\nKEY_001\nOTHER-1\n"),
	}

	cmp, _ := testComparator(t, config.ProcessingConfig{}, defaultErrCfg())

	result, err := cmp.CompareAll(context.Background(), files)
	require.NoError(t, err)

	dups := result.Duplicates["A"]
	require.Len(t, dups, 1)
	assert.Equal(t, []string{"KEY-001", "KEY_001", "key-001"}, dups["KEY-000001"])
}

func TestCompareAll_BatchSizeDoesNotChangeResult(t *testing.T) {
	dir := t.TempDir()
	content := "key\n"
	for _, k := range []string{"K-1", "K-2", "K-3", "K-4", "K-5", "K-6", "K-7"} {
		content += k + "\n"
	}
	files := map[string]string{
		"A": writeSystemFile(t, dir, "A", content),
		"B": writeSystemFile(t, dir, "B", "key\nK-1\nK-3\nK-5\n"),
	}

	var baseline *Result
	for _, batchSize := range []int{1, 2, 3, 1000} {
		cmp, _ := testComparator(t, config.ProcessingConfig{BatchSize: batchSize}, defaultErrCfg())
		result, err := cmp.CompareAll(context.Background(), files)
		require.NoError(t, err)

		if baseline == nil {
			baseline = result
			continue
		}
		assert.Equal(t, baseline.AllKeys, result.AllKeys, "batch size %d", batchSize)
		assert.Equal(t, baseline.KeysInAllSystems, result.KeysInAllSystems, "batch size %d", batchSize)
		assert.Equal(t, baseline.SystemGaps, result.SystemGaps, "batch size %d", batchSize)
	}
}

func TestCompareAll_ParallelMatchesSequential(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"A": writeSystemFile(t, dir, "A", "key\nK-1\nK-2\nK-3\n"),
		"B": writeSystemFile(t, dir, "B", "key\nK-1\nK-2\n"),
		"C": writeSystemFile(t, dir, "C", "key\nK-2\nK-3\n"),
		"D": writeSystemFile(t, dir, "D", "key\nK-1\nK-4\n"),
	}

	seq, _ := testComparator(t, config.ProcessingConfig{Parallel: false}, defaultErrCfg())
	par, _ := testComparator(t, config.ProcessingConfig{Parallel: true, MaxWorkers: 2}, defaultErrCfg())

	seqResult, err := seq.CompareAll(context.Background(), files)
	require.NoError(t, err)
	parResult, err := par.CompareAll(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, seqResult.AllKeys, parResult.AllKeys)
	assert.Equal(t, seqResult.KeysInAllSystems, parResult.KeysInAllSystems)
	assert.Equal(t, seqResult.KeysMissingInAuthority, parResult.KeysMissingInAuthority)
	assert.Equal(t, seqResult.SystemGaps, parResult.SystemGaps)
}

func TestCompareAll_MissingFileSkipPolicy(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"A": writeSystemFile(t, dir, "A", "key\nK-1\n"),
		"B": filepath.Join(dir, "B.csv"), // never written
	}

	cmp, collector := testComparator(t, config.ProcessingConfig{}, defaultErrCfg())

	result, err := cmp.CompareAll(context.Background(), files)
	require.NoError(t, err)

	// Skipped system participates with an empty key set, so nothing is in
	// all systems.
	assert.Contains(t, result.SystemKeys, "B")
	assert.Empty(t, result.KeysInAllSystems)
	assert.Equal(t, 1, collector.CountByType()["missing_file"])
}

func TestCompareAll_MissingFileFailPolicy(t *testing.T) {
	dir := t.TempDir()
	errCfg := defaultErrCfg()
	errCfg.OnMissingFile = "fail"

	files := map[string]string{
		"A": writeSystemFile(t, dir, "A", "key\nK-1\n"),
		"B": filepath.Join(dir, "B.csv"),
	}

	cmp, _ := testComparator(t, config.ProcessingConfig{}, errCfg)

	_, err := cmp.CompareAll(context.Background(), files)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrSystemUnavailable)
}

func TestCompareAll_MissingAuthority(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"A": filepath.Join(dir, "A.csv"),
		"B": writeSystemFile(t, dir, "B", "key\nK-1\n"),
	}

	errCfg := defaultErrCfg()
	errCfg.OnMissingFile = "fail"
	cmp, _ := testComparator(t, config.ProcessingConfig{}, errCfg)

	result, err := cmp.CompareAll(context.Background(), files)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrSystemUnavailable)
	assert.NotNil(t, result)
	assert.Empty(t, result.KeysInAllSystems)
}

func TestCompareAll_CorruptRowsSkipped(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"A": writeSystemFile(t, dir, "A", "key,status\nK-1,active\n,active\nK-2,active\n"),
	}

	cmp, collector := testComparator(t, config.ProcessingConfig{}, defaultErrCfg())

	result, err := cmp.CompareAll(context.Background(), files)
	require.NoError(t, err)

	assert.Len(t, result.AllKeys, 2)
	assert.Equal(t, 1, collector.CountByType()["corrupt_row"])
}

func TestCompareAll_HeaderWithoutKeyColumn(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"A": writeSystemFile(t, dir, "A", "key\nK-1\n"),
		"B": writeSystemFile(t, dir, "B", "id,status\n1,active\n"),
	}

	cmp, _ := testComparator(t, config.ProcessingConfig{}, defaultErrCfg())

	result, err := cmp.CompareAll(context.Background(), files)
	require.NoError(t, err)

	assert.Contains(t, result.LoadErrors, "B")
	assert.NotContains(t, result.SystemKeys, "B")
}

func TestCompareAll_LoadErrorWithoutPartialProcessing(t *testing.T) {
	dir := t.TempDir()
	errCfg := defaultErrCfg()
	errCfg.PartialProcessing = false

	files := map[string]string{
		"A": writeSystemFile(t, dir, "A", "key\nK-1\n"),
		"B": writeSystemFile(t, dir, "B", "id\n1\n"),
	}

	cmp, _ := testComparator(t, config.ProcessingConfig{}, errCfg)

	_, err := cmp.CompareAll(context.Background(), files)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrSystemUnavailable)
}

func TestCompareAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmp, _ := testComparator(t, config.ProcessingConfig{}, defaultErrCfg())

	_, err := cmp.CompareAll(ctx, map[string]string{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCompareAll_MetadataPassthrough(t *testing.T) {
	dir := t.TempDir()
	path := writeSystemFile(t, dir, "A", "key,last_seen_at,status\nK-1,2025-01-01,active\n")

	cmp, _ := testComparator(t, config.ProcessingConfig{}, defaultErrCfg())

	records, err := cmp.readRecords("A", path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "K-1", records[0].RawValue)
	assert.Equal(t, "active", records[0].Metadata["status"])
	assert.Equal(t, "2025-01-01", records[0].Metadata["last_seen_at"])
}
