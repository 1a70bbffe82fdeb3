// Package reconciler sequences a reconciliation run: compare, classify
// discrepancies, track keys, provision master keys and record the run
// lifecycle in the state store.
package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dbsmedya/keysync/internal/comparator"
	"github.com/dbsmedya/keysync/internal/config"
	"github.com/dbsmedya/keysync/internal/logger"
	"github.com/dbsmedya/keysync/internal/normalizer"
	"github.com/dbsmedya/keysync/internal/provisioner"
	"github.com/dbsmedya/keysync/internal/resilience"
	"github.com/dbsmedya/keysync/internal/store"
)

// Checkpoint stage names written during a run.
const (
	CheckpointComparison  = "comparison_complete"
	CheckpointDiscrepancy = "discrepancy_analysis_complete"
)

// CheckpointEntry is the persisted per-stage checkpoint summary. Only the
// stage name and a size/type summary are stored; the summary is not a
// resumable state.
type CheckpointEntry struct {
	Timestamp time.Time `json:"timestamp"`
	DataType  string    `json:"data_type"`
	Size      int       `json:"size"`
}

// RunStats is the aggregate statistics serialized onto a completed run.
type RunStats struct {
	Comparison    comparator.Stats    `json:"comparison"`
	Discrepancies DiscrepancySummary  `json:"discrepancies"`
	Provisioning  provisioner.Stats   `json:"provisioning"`
	Normalizer    normalizer.Stats    `json:"normalizer"`
	Errors        map[string]int      `json:"errors,omitempty"`
	Snapshot      Snapshot            `json:"snapshot"`
	Incremental   *IncrementalChanges `json:"incremental,omitempty"`
}

// RunResult is the outcome of one reconciliation run.
type RunResult struct {
	RunID         int64
	Mode          store.RunMode
	ExecutionMode store.ExecutionMode
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration

	Comparison    *comparator.Result
	Discrepancies *Discrepancies
	Provisioned   []provisioner.Proposed
	Activated     int64
	Incremental   *IncrementalChanges
	Stats         RunStats
}

// Reconciler orchestrates the reconciliation pipeline. One run executes at a
// time; the run lifecycle (running to completed or failed) is owned here.
type Reconciler struct {
	store       *store.Store
	normalizer  *normalizer.Normalizer
	comparator  *comparator.Comparator
	provisioner *provisioner.Provisioner
	collector   *resilience.Collector
	cfg         *config.Config
	logger      *logger.Logger

	checkpoints map[string]CheckpointEntry
}

// New creates a Reconciler from its component modules.
func New(st *store.Store, n *normalizer.Normalizer, cmp *comparator.Comparator,
	prov *provisioner.Provisioner, collector *resilience.Collector,
	cfg *config.Config, log *logger.Logger) (*Reconciler, error) {

	if st == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if n == nil {
		return nil, fmt.Errorf("normalizer is nil")
	}
	if cmp == nil {
		return nil, fmt.Errorf("comparator is nil")
	}
	if prov == nil {
		return nil, fmt.Errorf("provisioner is nil")
	}
	if collector == nil {
		return nil, fmt.Errorf("error collector is nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	return &Reconciler{
		store:       st,
		normalizer:  n,
		comparator:  cmp,
		provisioner: prov,
		collector:   collector,
		cfg:         cfg,
		logger:      log,
		checkpoints: make(map[string]CheckpointEntry),
	}, nil
}

// Execute runs the full reconciliation pipeline against the given system
// files. On any failure after the run row exists, the run is marked failed
// with the captured error and the error propagates to the caller.
func (r *Reconciler) Execute(ctx context.Context, mode store.RunMode, execMode store.ExecutionMode, systemFiles map[string]string) (*RunResult, error) {
	configSnapshot, err := json.Marshal(r.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot config: %w", err)
	}

	runID, err := r.store.StartRun(ctx, mode, execMode, string(configSnapshot))
	if err != nil {
		return nil, err
	}

	log := r.logger.WithRun(runID)
	r.checkpoints = make(map[string]CheckpointEntry)

	result := &RunResult{
		RunID:         runID,
		Mode:          mode,
		ExecutionMode: execMode,
		StartedAt:     time.Now(),
	}

	r.audit(ctx, runID, store.AuditEvent{
		EventType: "run_started",
		Details:   fmt.Sprintf("reconciliation started in %s mode with %s execution", mode, execMode),
	})

	if err := r.runSteps(ctx, log, result, systemFiles); err != nil {
		r.audit(ctx, runID, store.AuditEvent{
			EventType: "reconciliation_failed",
			Details:   err.Error(),
			Result:    "failure",
		})
		if completeErr := r.store.CompleteRun(ctx, runID, r.marshalStats(result), err.Error()); completeErr != nil {
			log.Errorw("Failed to mark run as failed", "error", completeErr)
		}
		return result, fmt.Errorf("reconciliation run %d failed: %w", runID, err)
	}

	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	if err := r.store.CompleteRun(ctx, runID, r.marshalStats(result), ""); err != nil {
		return result, err
	}

	r.audit(ctx, runID, store.AuditEvent{
		EventType: "reconciliation_complete",
		Details:   "reconciliation completed successfully",
		Result:    "success",
	})

	log.Infow("Reconciliation complete",
		"duration", result.Duration,
		"match_percentage", fmt.Sprintf("%.1f", result.Comparison.MatchPercentage()),
		"proposed", len(result.Provisioned),
		"activated", result.Activated,
	)

	return result, nil
}

// runSteps performs pipeline steps 2 through 6; any error marks the run failed.
func (r *Reconciler) runSteps(ctx context.Context, log *logger.Logger, result *RunResult, systemFiles map[string]string) error {
	runID := result.RunID

	// Step 2: cross-system comparison.
	log.Info("Starting system comparison")
	comparison, err := r.comparator.CompareAll(ctx, systemFiles)
	if err != nil {
		return err
	}
	result.Comparison = comparison
	r.checkpoint(ctx, runID, CheckpointComparison, "comparison", len(comparison.AllKeys))

	// Step 3: discrepancy classification.
	log.Info("Analyzing discrepancies")
	discrepancies := AnalyzeDiscrepancies(comparison)
	result.Discrepancies = discrepancies
	r.checkpoint(ctx, runID, CheckpointDiscrepancy, "discrepancies",
		discrepancies.Summary.TotalOutOfAuthority+
			discrepancies.Summary.TotalPropagationGaps+
			discrepancies.Summary.TotalDuplicateGroups)

	r.audit(ctx, runID, store.AuditEvent{
		EventType: "discrepancy_analysis_complete",
		Details: fmt.Sprintf("out_of_authority=%d propagation_gaps=%d duplicate_groups=%d",
			discrepancies.Summary.TotalOutOfAuthority,
			discrepancies.Summary.TotalPropagationGaps,
			discrepancies.Summary.TotalDuplicateGroups),
	})

	// Step 4: key tracking upserts for every raw key observed.
	tracked, err := r.trackKeys(ctx, runID, comparison)
	if err != nil {
		return err
	}
	r.audit(ctx, runID, store.AuditEvent{
		EventType: "keys_tracked",
		Details:   fmt.Sprintf("tracked %d keys across %d systems", tracked, len(comparison.SystemKeys)),
	})

	// Step 5: master key provisioning for out-of-authority keys.
	if len(discrepancies.OutOfAuthority) > 0 {
		log.Infow("Provisioning master keys", "candidates", len(discrepancies.OutOfAuthority))
		proposed, err := r.provisioner.Propose(ctx, runID, discrepancies.OutOfAuthority)
		if err != nil {
			return err
		}
		result.Provisioned = proposed

		r.audit(ctx, runID, store.AuditEvent{
			EventType: "master_keys_proposed",
			Details:   fmt.Sprintf("proposed %d master keys", len(proposed)),
			Action:    "propose",
		})

		// Dry-run performs every step but never activates.
		if result.ExecutionMode == store.ExecutionModeAutoApprove {
			activated, err := r.provisioner.Activate(ctx, runID, true)
			if err != nil {
				return err
			}
			result.Activated = activated
			r.audit(ctx, runID, store.AuditEvent{
				EventType: "master_keys_activated",
				Details:   fmt.Sprintf("activated %d master keys", activated),
				Action:    "activate",
			})
		}
	}

	// Step 6: incremental diff against the last completed run.
	if result.Mode == store.RunModeIncremental {
		baseline, err := r.store.GetLastSuccessfulRun(ctx)
		if err != nil {
			return err
		}
		changes, err := DiffAgainstBaseline(comparison, baseline)
		if err != nil {
			return err
		}
		result.Incremental = changes

		r.audit(ctx, runID, store.AuditEvent{
			EventType: "incremental_diff_complete",
			Details: fmt.Sprintf("baseline_run=%d new=%d removed=%d newly_synchronized=%d newly_diverged=%d",
				changes.BaselineRunID, len(changes.NewKeys), len(changes.RemovedKeys),
				len(changes.NewlySynchronized), len(changes.NewlyDiverged)),
		})
	}

	return nil
}

// trackKeys upserts a tracking row for every raw key in every loaded system.
func (r *Reconciler) trackKeys(ctx context.Context, runID int64, comparison *comparator.Result) (int, error) {
	tracked := 0
	for _, system := range comparison.Systems() {
		for normalized, raws := range comparison.SystemKeys[system] {
			for _, raw := range raws.Sorted() {
				if err := r.store.TrackKey(ctx, runID, system, raw, normalized); err != nil {
					return tracked, err
				}
				tracked++
			}
		}
	}
	return tracked, nil
}

// checkpoint records a named stage summary and persists the accumulated
// checkpoint map onto the run row.
func (r *Reconciler) checkpoint(ctx context.Context, runID int64, stage, dataType string, size int) {
	r.checkpoints[stage] = CheckpointEntry{
		Timestamp: time.Now(),
		DataType:  dataType,
		Size:      size,
	}

	data, err := json.Marshal(r.checkpoints)
	if err != nil {
		r.logger.Warnw("Failed to serialize checkpoint", "stage", stage, "error", err)
		return
	}
	if err := r.store.SaveCheckpoint(ctx, runID, string(data)); err != nil {
		r.logger.Warnw("Failed to save checkpoint", "stage", stage, "error", err)
	}
}

// LastCheckpoint decodes a run's persisted checkpoint map and returns the
// most recently written stage. Used to show where a failed run stopped.
func LastCheckpoint(checkpointJSON string) (string, CheckpointEntry, error) {
	if checkpointJSON == "" {
		return "", CheckpointEntry{}, fmt.Errorf("%w: no checkpoint data", resilience.ErrCheckpointRecovery)
	}

	var checkpoints map[string]CheckpointEntry
	if err := json.Unmarshal([]byte(checkpointJSON), &checkpoints); err != nil {
		return "", CheckpointEntry{}, fmt.Errorf("%w: %v", resilience.ErrCheckpointRecovery, err)
	}
	if len(checkpoints) == 0 {
		return "", CheckpointEntry{}, fmt.Errorf("%w: no checkpoint data", resilience.ErrCheckpointRecovery)
	}

	var lastStage string
	var last CheckpointEntry
	for stage, entry := range checkpoints {
		if lastStage == "" || entry.Timestamp.After(last.Timestamp) {
			lastStage = stage
			last = entry
		}
	}
	return lastStage, last, nil
}

// audit appends an audit event; audit failures are logged, never fatal.
func (r *Reconciler) audit(ctx context.Context, runID int64, event store.AuditEvent) {
	event.RunID = runID
	if err := r.store.LogEvent(ctx, event); err != nil {
		r.logger.Warnw("Failed to write audit event", "event_type", event.EventType, "error", err)
	}
}

// marshalStats builds the serialized run statistics, embedding the
// normalized-key snapshot for later incremental diffs.
func (r *Reconciler) marshalStats(result *RunResult) string {
	stats := RunStats{
		Provisioning: r.provisioner.Stats(),
		Normalizer:   r.normalizer.Stats(),
		Errors:       r.collector.CountByType(),
		Incremental:  result.Incremental,
	}

	if result.Comparison != nil {
		stats.Comparison = result.Comparison.Stats(config.AuthoritySystem)
		stats.Snapshot = Snapshot{
			AllKeys:          result.Comparison.AllKeys.Sorted(),
			KeysInAllSystems: result.Comparison.KeysInAllSystems.Sorted(),
		}
	}
	if result.Discrepancies != nil {
		stats.Discrepancies = result.Discrepancies.Summary
	}
	result.Stats = stats

	data, err := json.Marshal(stats)
	if err != nil {
		r.logger.Warnw("Failed to serialize run stats", "error", err)
		return "{}"
	}
	return string(data)
}
