package reconciler

import (
	"encoding/json"
	"fmt"

	"github.com/dbsmedya/keysync/internal/comparator"
	"github.com/dbsmedya/keysync/internal/store"
)

// Snapshot is the normalized-key state embedded in a completed run's stats,
// giving incremental mode something concrete to diff against.
type Snapshot struct {
	AllKeys          []string `json:"all_keys"`
	KeysInAllSystems []string `json:"keys_in_all_systems"`
}

// IncrementalChanges reports key-set movement relative to the previous
// completed run's snapshot.
type IncrementalChanges struct {
	// BaselineRunID is the run whose snapshot served as the baseline;
	// zero when no completed run existed.
	BaselineRunID int64 `json:"baseline_run_id,omitempty"`

	// NewKeys appeared since the baseline run.
	NewKeys []string `json:"new_keys"`

	// RemovedKeys disappeared since the baseline run.
	RemovedKeys []string `json:"removed_keys"`

	// NewlySynchronized existed at baseline but only now reached every
	// system.
	NewlySynchronized []string `json:"newly_synchronized"`

	// NewlyDiverged were in every system at baseline and still exist, but
	// no longer reach every system.
	NewlyDiverged []string `json:"newly_diverged"`
}

// DiffAgainstBaseline computes the incremental change sets between the
// current comparison and a previous run's snapshot. A nil baseline (no
// completed run yet) yields empty change sets.
func DiffAgainstBaseline(current *comparator.Result, baseline *store.Run) (*IncrementalChanges, error) {
	changes := &IncrementalChanges{
		NewKeys:           []string{},
		RemovedKeys:       []string{},
		NewlySynchronized: []string{},
		NewlyDiverged:     []string{},
	}

	if baseline == nil {
		return changes, nil
	}

	prev, err := snapshotOfRun(baseline)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return changes, nil
	}
	changes.BaselineRunID = baseline.ID

	prevAll := comparator.NewKeySet(prev.AllKeys...)
	prevInAll := comparator.NewKeySet(prev.KeysInAllSystems...)

	changes.NewKeys = current.AllKeys.Difference(prevAll).Sorted()
	changes.RemovedKeys = prevAll.Difference(current.AllKeys).Sorted()
	changes.NewlySynchronized = current.KeysInAllSystems.Difference(prevInAll).Intersect(prevAll).Sorted()
	changes.NewlyDiverged = prevInAll.Difference(current.KeysInAllSystems).Intersect(current.AllKeys).Sorted()

	return changes, nil
}

// snapshotOfRun extracts the embedded snapshot from a run's stats JSON.
// Runs persisted without a snapshot (or with unparseable stats) yield nil.
func snapshotOfRun(run *store.Run) (*Snapshot, error) {
	if run.StatsJSON == "" {
		return nil, nil
	}

	var stats struct {
		Snapshot *Snapshot `json:"snapshot"`
	}
	if err := json.Unmarshal([]byte(run.StatsJSON), &stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats of run %d: %w", run.ID, err)
	}
	return stats.Snapshot, nil
}
