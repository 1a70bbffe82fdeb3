package reporter

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/keysync/internal/comparator"
	"github.com/dbsmedya/keysync/internal/provisioner"
	"github.com/dbsmedya/keysync/internal/reconciler"
	"github.com/dbsmedya/keysync/internal/resilience"
	"github.com/dbsmedya/keysync/internal/store"
)

func sampleResult() *reconciler.RunResult {
	return &reconciler.RunResult{
		RunID:         12,
		Mode:          store.RunModeFull,
		ExecutionMode: store.ExecutionModeNormal,
		Duration:      1234 * time.Millisecond,
		Activated:     2,
		Discrepancies: &reconciler.Discrepancies{
			OutOfAuthority: map[string][]provisioner.SourceRef{
				"CUST-000003": {
					{System: "B", RawKey: "cust-3"},
					{System: "C", RawKey: "CUST-3"},
				},
			},
			PropagationGaps: map[string][]string{
				"B": {"CUST-000001", "CUST-000002"},
			},
			DuplicateGroups: map[string]map[string][]string{
				"D": {"CUST-000001": {"CUST-1", "cust_1"}},
			},
		},
		Stats: reconciler.RunStats{
			Comparison: comparator.Stats{
				TotalUniqueKeys:  10,
				KeysInAllSystems: 8,
				MatchPercentage:  80.0,
			},
			Discrepancies: reconciler.DiscrepancySummary{
				TotalOutOfAuthority:  1,
				TotalPropagationGaps: 2,
				TotalDuplicateGroups: 1,
			},
			Provisioning: provisioner.Stats{KeysProposed: 1},
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestWriteDiscrepancyCSV(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, nil)

	path, err := r.WriteDiscrepancyCSV(sampleResult())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "discrepancies_run_12.csv"), path)

	records := readCSV(t, path)
	require.Len(t, records, 6)
	assert.Equal(t, []string{"discrepancy_type", "normalized_key", "system", "detail"}, records[0])
	assert.Equal(t, []string{"out_of_authority", "CUST-000003", "B", "raw=cust-3"}, records[1])
	assert.Equal(t, []string{"out_of_authority", "CUST-000003", "C", "raw=CUST-3"}, records[2])
	assert.Equal(t, []string{"propagation_gap", "CUST-000001", "B", "missing from system"}, records[3])
	assert.Equal(t, []string{"propagation_gap", "CUST-000002", "B", "missing from system"}, records[4])
	assert.Equal(t, []string{"duplicate_group", "CUST-000001", "D", "raw=CUST-1|cust_1"}, records[5])
}

func TestWriteDiscrepancyCSV_NilDiscrepancies(t *testing.T) {
	r := New(t.TempDir(), nil)

	result := sampleResult()
	result.Discrepancies = nil

	path, err := r.WriteDiscrepancyCSV(result)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, path), 1)
}

func TestWriteRunJSON(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, nil)

	path, err := r.WriteRunJSON(sampleResult())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run_12.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var stats reconciler.RunStats
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.Equal(t, 10, stats.Comparison.TotalUniqueKeys)
	assert.Equal(t, 1, stats.Discrepancies.TotalOutOfAuthority)
}

func TestWriteErrorCSV(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, nil)

	records := []resilience.ErrorRecord{
		{
			Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			Type:      "corrupt_row",
			System:    "B",
			File:      "input/B.csv",
			Row:       42,
			Message:   "empty key",
			Action:    "skipped",
		},
	}

	path, err := r.WriteErrorCSV(12, records)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "errors_run_12.csv"), path)

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"2025-06-01T10:00:00Z", "corrupt_row", "B", "input/B.csv", "42", "empty key", "skipped"}, rows[1])
}

func TestWriteErrorCSV_EmptyStillWritesFile(t *testing.T) {
	r := New(t.TempDir(), nil)

	path, err := r.WriteErrorCSV(3, nil)
	require.NoError(t, err)
	assert.Len(t, readCSV(t, path), 1)
}

func TestSummary(t *testing.T) {
	out := Summary(sampleResult())

	assert.Contains(t, out, "Reconciliation summary")
	assert.Contains(t, out, "Run ID")
	assert.Contains(t, out, "12")
	assert.Contains(t, out, "Match percentage")
	assert.Contains(t, out, "80.0%")
	assert.Contains(t, out, "Master keys activated")
	assert.Contains(t, out, "Drift detected")
	assert.NotContains(t, out, "Baseline run")
}

func TestSummary_Incremental(t *testing.T) {
	result := sampleResult()
	result.Incremental = &reconciler.IncrementalChanges{
		BaselineRunID:     9,
		NewKeys:           []string{"K-000005"},
		RemovedKeys:       []string{},
		NewlySynchronized: []string{"K-000003"},
		NewlyDiverged:     []string{},
	}

	out := Summary(result)
	assert.Contains(t, out, "Baseline run")
	assert.Contains(t, out, "Newly synchronized")
}

func TestHealthLine_Thresholds(t *testing.T) {
	assert.Contains(t, healthLine(97.5), "Systems healthy")
	assert.Contains(t, healthLine(95.0), "Systems healthy")
	assert.Contains(t, healthLine(80.0), "Drift detected")
	assert.Contains(t, healthLine(10.0), "Severe divergence")
}
