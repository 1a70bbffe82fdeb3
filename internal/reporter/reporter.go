// Package reporter renders reconciliation run results as files and
// terminal summaries.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/keysync/internal/logger"
	"github.com/dbsmedya/keysync/internal/reconciler"
	"github.com/dbsmedya/keysync/internal/resilience"
)

// Reporter writes discrepancy and error reports into an output directory.
type Reporter struct {
	outputDir string
	logger    *logger.Logger
}

// New creates a Reporter rooted at outputDir.
func New(outputDir string, log *logger.Logger) *Reporter {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Reporter{outputDir: outputDir, logger: log}
}

func (r *Reporter) ensureDir() error {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	return nil
}

// WriteDiscrepancyCSV writes one row per discrepancy finding and returns the
// file path.
func (r *Reporter) WriteDiscrepancyCSV(result *reconciler.RunResult) (string, error) {
	if err := r.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(r.outputDir, fmt.Sprintf("discrepancies_run_%d.csv", result.RunID))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create discrepancy report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"discrepancy_type", "normalized_key", "system", "detail"}); err != nil {
		return "", fmt.Errorf("failed to write report header: %w", err)
	}

	d := result.Discrepancies
	if d != nil {
		for _, key := range sortedKeys(d.OutOfAuthority) {
			for _, ref := range d.OutOfAuthority[key] {
				w.Write([]string{"out_of_authority", key, ref.System, "raw=" + ref.RawKey})
			}
		}
		for _, system := range sortedKeys(d.PropagationGaps) {
			for _, key := range d.PropagationGaps[system] {
				w.Write([]string{"propagation_gap", key, system, "missing from system"})
			}
		}
		for _, system := range sortedKeys(d.DuplicateGroups) {
			groups := d.DuplicateGroups[system]
			for _, key := range sortedKeys(groups) {
				w.Write([]string{"duplicate_group", key, system, "raw=" + strings.Join(groups[key], "|")})
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write discrepancy report: %w", err)
	}

	r.logger.Infow("Wrote discrepancy report", "path", path)
	return path, nil
}

// WriteRunJSON writes the full run result, stats included, as indented JSON.
func (r *Reporter) WriteRunJSON(result *reconciler.RunResult) (string, error) {
	if err := r.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(r.outputDir, fmt.Sprintf("run_%d.json", result.RunID))

	data, err := json.MarshalIndent(result.Stats, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run stats: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write run report: %w", err)
	}

	r.logger.Infow("Wrote run report", "path", path)
	return path, nil
}

// WriteErrorCSV writes the collected non-fatal error records. A report is
// written even when no errors occurred so consumers can rely on its presence.
func (r *Reporter) WriteErrorCSV(runID int64, records []resilience.ErrorRecord) (string, error) {
	if err := r.ensureDir(); err != nil {
		return "", err
	}
	path := filepath.Join(r.outputDir, fmt.Sprintf("errors_run_%d.csv", runID))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create error report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "type", "system", "file", "row", "message", "action"}); err != nil {
		return "", fmt.Errorf("failed to write report header: %w", err)
	}
	for _, rec := range records {
		w.Write([]string{
			rec.Timestamp.Format(time.RFC3339),
			rec.Type,
			rec.System,
			rec.File,
			strconv.Itoa(rec.Row),
			rec.Message,
			rec.Action,
		})
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to write error report: %w", err)
	}

	r.logger.Infow("Wrote error report", "path", path, "records", len(records))
	return path, nil
}

// Summary renders a terminal summary table for a completed run.
func Summary(result *reconciler.RunResult) string {
	stats := result.Stats

	rows := orderedmap.NewOrderedMap[string, string]()
	rows.Set("Run ID", strconv.FormatInt(result.RunID, 10))
	rows.Set("Mode", string(result.Mode))
	rows.Set("Execution", string(result.ExecutionMode))
	rows.Set("Duration", result.Duration.Round(time.Millisecond).String())
	rows.Set("Unique keys", strconv.Itoa(stats.Comparison.TotalUniqueKeys))
	rows.Set("Fully synchronized", strconv.Itoa(stats.Comparison.KeysInAllSystems))
	rows.Set("Match percentage", fmt.Sprintf("%.1f%%", stats.Comparison.MatchPercentage))
	rows.Set("Out of authority", strconv.Itoa(stats.Discrepancies.TotalOutOfAuthority))
	rows.Set("Propagation gaps", strconv.Itoa(stats.Discrepancies.TotalPropagationGaps))
	rows.Set("Duplicate groups", strconv.Itoa(stats.Discrepancies.TotalDuplicateGroups))
	rows.Set("Master keys proposed", strconv.FormatInt(stats.Provisioning.KeysProposed, 10))
	rows.Set("Master keys activated", strconv.FormatInt(result.Activated, 10))
	if result.Incremental != nil {
		rows.Set("Baseline run", strconv.FormatInt(result.Incremental.BaselineRunID, 10))
		rows.Set("New keys", strconv.Itoa(len(result.Incremental.NewKeys)))
		rows.Set("Removed keys", strconv.Itoa(len(result.Incremental.RemovedKeys)))
		rows.Set("Newly synchronized", strconv.Itoa(len(result.Incremental.NewlySynchronized)))
		rows.Set("Newly diverged", strconv.Itoa(len(result.Incremental.NewlyDiverged)))
	}

	labelWidth := 0
	for el := rows.Front(); el != nil; el = el.Next() {
		if w := runewidth.StringWidth(el.Key); w > labelWidth {
			labelWidth = w
		}
	}

	var b strings.Builder
	b.WriteString(color.Bold.Sprint("Reconciliation summary"))
	b.WriteString("\n")
	for el := rows.Front(); el != nil; el = el.Next() {
		b.WriteString("  ")
		b.WriteString(runewidth.FillRight(el.Key, labelWidth))
		b.WriteString("  ")
		b.WriteString(el.Value)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(healthLine(stats.Comparison.MatchPercentage))
	b.WriteString("\n")
	return b.String()
}

// healthLine color-codes the overall synchronization level.
func healthLine(matchPct float64) string {
	switch {
	case matchPct >= 95:
		return color.Green.Sprintf("  Systems healthy (%.1f%% synchronized)", matchPct)
	case matchPct >= 75:
		return color.Yellow.Sprintf("  Drift detected (%.1f%% synchronized)", matchPct)
	default:
		return color.Red.Sprintf("  Severe divergence (%.1f%% synchronized)", matchPct)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
