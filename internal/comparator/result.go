package comparator

import "sort"

// Record is one raw key line loaded from a source file. Records are
// ephemeral: they exist between load and normalization only.
type Record struct {
	System   string
	RawValue string
	Metadata map[string]string
}

// NormalizedGroups maps a normalized key to the set of raw spellings that
// produced it within one system. A group with more than one member is a
// duplicate group for that system.
type NormalizedGroups map[string]KeySet

// Keys returns the normalized keys of the groups as a KeySet.
func (g NormalizedGroups) Keys() KeySet {
	s := make(KeySet, len(g))
	for k := range g {
		s[k] = struct{}{}
	}
	return s
}

// Duplicates returns the groups holding two or more distinct raw values,
// as normalized key to sorted raw values.
func (g NormalizedGroups) Duplicates() map[string][]string {
	dups := make(map[string][]string)
	for norm, raws := range g {
		if len(raws) > 1 {
			dups[norm] = raws.Sorted()
		}
	}
	return dups
}

// Result is the immutable snapshot of one cross-system comparison.
type Result struct {
	// SystemKeys holds the per-system normalized key groups for every
	// system whose data loaded, including empty systems.
	SystemKeys map[string]NormalizedGroups

	// AllKeys is the union of normalized keys across loaded systems.
	AllKeys KeySet

	// KeysOnlyInAuthority are authority keys absent from every loaded
	// dependent system (propagation candidates).
	KeysOnlyInAuthority KeySet

	// KeysMissingInAuthority are dependent-system keys the authority does
	// not hold (out-of-authority keys).
	KeysMissingInAuthority KeySet

	// KeysInAllSystems is the intersection across all loaded systems.
	KeysInAllSystems KeySet

	// SystemGaps maps each loaded dependent system to the authority keys
	// it is missing.
	SystemGaps map[string]KeySet

	// Duplicates maps system name to its duplicate groups.
	Duplicates map[string]map[string][]string

	// LoadErrors maps system name to the load failure that excluded it
	// from the comparison. Retained for post-hoc inspection.
	LoadErrors map[string]string

	// TotalRawKeys is the number of raw key records processed.
	TotalRawKeys int
}

// Systems returns the loaded system names in lexical order.
func (r *Result) Systems() []string {
	systems := make([]string, 0, len(r.SystemKeys))
	for s := range r.SystemKeys {
		systems = append(systems, s)
	}
	sort.Strings(systems)
	return systems
}

// MatchPercentage is |keys in all systems| / |all keys| * 100,
// defined as 0 when no keys were seen at all.
func (r *Result) MatchPercentage() float64 {
	if len(r.AllKeys) == 0 {
		return 0
	}
	return float64(len(r.KeysInAllSystems)) / float64(len(r.AllKeys)) * 100
}

// Stats summarizes a comparison for persistence and reporting.
type Stats struct {
	TotalUniqueKeys        int            `json:"total_unique_keys"`
	KeysInAuthority        int            `json:"keys_in_authority"`
	KeysOnlyInAuthority    int            `json:"keys_only_in_authority"`
	KeysMissingInAuthority int            `json:"keys_missing_in_authority"`
	KeysInAllSystems       int            `json:"keys_in_all_systems"`
	MatchPercentage        float64        `json:"match_percentage"`
	SystemCounts           map[string]int `json:"system_counts"`
	DuplicateGroups        map[string]int `json:"duplicate_groups"`
}

// Stats builds the summary statistics for the result.
func (r *Result) Stats(authority string) Stats {
	systemCounts := make(map[string]int, len(r.SystemKeys))
	for system, groups := range r.SystemKeys {
		systemCounts[system] = len(groups)
	}
	dupGroups := make(map[string]int, len(r.Duplicates))
	for system, groups := range r.Duplicates {
		dupGroups[system] = len(groups)
	}

	return Stats{
		TotalUniqueKeys:        len(r.AllKeys),
		KeysInAuthority:        systemCounts[authority],
		KeysOnlyInAuthority:    len(r.KeysOnlyInAuthority),
		KeysMissingInAuthority: len(r.KeysMissingInAuthority),
		KeysInAllSystems:       len(r.KeysInAllSystems),
		MatchPercentage:        r.MatchPercentage(),
		SystemCounts:           systemCounts,
		DuplicateGroups:        dupGroups,
	}
}
