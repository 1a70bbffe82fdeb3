package reconciler

import (
	"sort"

	"github.com/dbsmedya/keysync/internal/comparator"
	"github.com/dbsmedya/keysync/internal/config"
	"github.com/dbsmedya/keysync/internal/provisioner"
)

// Discrepancies classifies a comparison result into the three discrepancy
// kinds: out-of-authority keys, propagation gaps and duplicate groups.
type Discrepancies struct {
	// OutOfAuthority maps each normalized key absent from the authority to
	// its (system, raw key) sightings in dependent systems.
	OutOfAuthority map[string][]provisioner.SourceRef `json:"out_of_authority"`

	// PropagationGaps maps each dependent system to the sorted authority
	// keys it is missing.
	PropagationGaps map[string][]string `json:"propagation_gaps"`

	// DuplicateGroups maps system to normalized key to the distinct raw
	// spellings observed for it.
	DuplicateGroups map[string]map[string][]string `json:"duplicate_groups"`

	Summary DiscrepancySummary `json:"summary"`
}

// DiscrepancySummary carries the aggregate discrepancy counts.
type DiscrepancySummary struct {
	TotalOutOfAuthority  int      `json:"total_out_of_authority"`
	TotalPropagationGaps int      `json:"total_propagation_gaps"`
	TotalDuplicateGroups int      `json:"total_duplicate_groups"`
	AffectedSystems      []string `json:"affected_systems"`
}

// AnalyzeDiscrepancies derives the discrepancy classification from a
// comparison result.
func AnalyzeDiscrepancies(result *comparator.Result) *Discrepancies {
	d := &Discrepancies{
		OutOfAuthority:  make(map[string][]provisioner.SourceRef),
		PropagationGaps: make(map[string][]string),
		DuplicateGroups: make(map[string]map[string][]string),
	}

	systems := result.Systems()

	// Out-of-authority keys carry every dependent-system sighting so the
	// provisioner can pick a source deterministically.
	for key := range result.KeysMissingInAuthority {
		var refs []provisioner.SourceRef
		for _, system := range systems {
			if system == config.AuthoritySystem {
				continue
			}
			raws, ok := result.SystemKeys[system][key]
			if !ok {
				continue
			}
			for _, raw := range raws.Sorted() {
				refs = append(refs, provisioner.SourceRef{System: system, RawKey: raw})
			}
		}
		if len(refs) > 0 {
			d.OutOfAuthority[key] = refs
		}
	}

	for system, gap := range result.SystemGaps {
		if len(gap) > 0 {
			d.PropagationGaps[system] = gap.Sorted()
		}
	}

	for system, groups := range result.Duplicates {
		if len(groups) > 0 {
			d.DuplicateGroups[system] = groups
		}
	}

	d.Summary = summarize(d)
	return d
}

func summarize(d *Discrepancies) DiscrepancySummary {
	summary := DiscrepancySummary{
		TotalOutOfAuthority: len(d.OutOfAuthority),
	}

	affected := make(map[string]struct{})
	for system, gaps := range d.PropagationGaps {
		summary.TotalPropagationGaps += len(gaps)
		affected[system] = struct{}{}
	}
	for system, groups := range d.DuplicateGroups {
		summary.TotalDuplicateGroups += len(groups)
		affected[system] = struct{}{}
	}

	summary.AffectedSystems = make([]string, 0, len(affected))
	for system := range affected {
		summary.AffectedSystems = append(summary.AffectedSystems, system)
	}
	sort.Strings(summary.AffectedSystems)

	return summary
}
