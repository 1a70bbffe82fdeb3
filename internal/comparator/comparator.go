// Package comparator loads per-system key files, normalizes them and
// computes the cross-system set algebra against the authoritative system.
package comparator

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/dbsmedya/keysync/internal/config"
	"github.com/dbsmedya/keysync/internal/logger"
	"github.com/dbsmedya/keysync/internal/normalizer"
	"github.com/dbsmedya/keysync/internal/resilience"
)

// DefaultMaxWorkers bounds the per-system loading pool when the
// configuration does not say otherwise.
const DefaultMaxWorkers = 5

// DefaultBatchSize bounds per-system normalization slices.
const DefaultBatchSize = 1000

// Comparator compares keys across systems after normalization.
type Comparator struct {
	normalizer *normalizer.Normalizer
	collector  *resilience.Collector
	logger     *logger.Logger
	authority  string
	parallel   bool
	batchSize  int
	maxWorkers int
}

// New creates a Comparator. The authoritative system is config.AuthoritySystem.
func New(n *normalizer.Normalizer, collector *resilience.Collector, log *logger.Logger, cfg config.ProcessingConfig) (*Comparator, error) {
	if n == nil {
		return nil, fmt.Errorf("normalizer is nil")
	}
	if collector == nil {
		return nil, fmt.Errorf("error collector is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = DefaultMaxWorkers
	}

	return &Comparator{
		normalizer: n,
		collector:  collector,
		logger:     log,
		authority:  config.AuthoritySystem,
		parallel:   cfg.Parallel,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
	}, nil
}

// systemOutcome is the per-worker accumulation for one system, merged on the
// caller's goroutine after the pool joins.
type systemOutcome struct {
	system   string
	groups   NormalizedGroups
	rawCount int
	err      error
}

// CompareAll loads every system file, normalizes the keys and computes the
// cross-system comparison. Per-system load failures do not stop the other
// systems; the failed system is excluded from the comparison and recorded on
// the result. A missing or failed authoritative system yields a result with
// empty comparison fields and an error wrapping resilience.ErrSystemUnavailable.
func (c *Comparator) CompareAll(ctx context.Context, systemFiles map[string]string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	systems := make([]string, 0, len(systemFiles))
	for system := range systemFiles {
		systems = append(systems, system)
	}
	sort.Strings(systems)

	outcomes := c.loadAll(systems, systemFiles)

	result := &Result{
		SystemKeys: make(map[string]NormalizedGroups),
		Duplicates: make(map[string]map[string][]string),
		SystemGaps: make(map[string]KeySet),
		LoadErrors: make(map[string]string),
		AllKeys:    make(KeySet),

		KeysOnlyInAuthority:    make(KeySet),
		KeysMissingInAuthority: make(KeySet),
		KeysInAllSystems:       make(KeySet),
	}

	for _, outcome := range outcomes {
		if outcome.err != nil {
			c.collector.LoadFailure(outcome.system, outcome.err)
			result.LoadErrors[outcome.system] = outcome.err.Error()

			// The fail policy aborts the run no matter which system hit it;
			// the authority case falls through to the dedicated check below.
			if outcome.system != c.authority && errors.Is(outcome.err, resilience.ErrMissingFile) {
				return result, fmt.Errorf("%w: system %s: %v",
					resilience.ErrSystemUnavailable, outcome.system, outcome.err)
			}

			if outcome.system != c.authority && !c.collector.Policy().PartialProcessing {
				return result, fmt.Errorf("%w: system %s failed to load and partial processing is disabled: %v",
					resilience.ErrSystemUnavailable, outcome.system, outcome.err)
			}
			continue
		}

		result.SystemKeys[outcome.system] = outcome.groups
		result.TotalRawKeys += outcome.rawCount

		if dups := outcome.groups.Duplicates(); len(dups) > 0 {
			result.Duplicates[outcome.system] = dups
			c.logger.Infow("Found duplicate groups",
				"system", outcome.system,
				"groups", len(dups),
			)
		}
	}

	if err := c.collector.CheckCeiling(); err != nil {
		return result, err
	}

	authorityGroups, ok := result.SystemKeys[c.authority]
	if !ok {
		return result, fmt.Errorf("%w: authoritative system %s has no data",
			resilience.ErrSystemUnavailable, c.authority)
	}

	c.compare(result, authorityGroups)

	c.logger.Infow("Comparison complete",
		"systems", len(result.SystemKeys),
		"total_unique_keys", len(result.AllKeys),
		"match_percentage", fmt.Sprintf("%.1f", result.MatchPercentage()),
	)

	return result, nil
}

// loadAll loads and normalizes every system, parallelized across a bounded
// worker pool. Each worker accumulates locally; merging happens after join so
// no mutable state crosses worker boundaries.
func (c *Comparator) loadAll(systems []string, systemFiles map[string]string) []systemOutcome {
	if !c.parallel || len(systems) < 2 {
		outcomes := make([]systemOutcome, 0, len(systems))
		for _, system := range systems {
			outcomes = append(outcomes, c.loadSystem(system, systemFiles[system]))
		}
		return outcomes
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, c.maxWorkers)
	results := make([]systemOutcome, len(systems))

	for i, system := range systems {
		wg.Add(1)
		go func(slot int, system string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[slot] = c.loadSystem(system, systemFiles[system])
		}(i, system)
	}
	wg.Wait()

	return results
}

// loadSystem reads one system's file and builds its normalized key groups.
func (c *Comparator) loadSystem(system, path string) systemOutcome {
	records, err := c.readRecords(system, path)
	if err != nil {
		return systemOutcome{system: system, err: err}
	}

	groups := c.normalizeRecords(records)

	c.logger.Infow("Loaded system keys",
		"system", system,
		"raw_keys", len(records),
		"normalized_keys", len(groups),
	)

	return systemOutcome{
		system:   system,
		groups:   groups,
		rawCount: len(records),
	}
}

// readRecords parses a delimited key file. The header must contain a "key"
// column; other columns pass through as metadata. Missing files and corrupt
// rows are subject to the configured policies.
func (c *Comparator) readRecords(system, path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if policyErr := c.collector.MissingFile(system, path); policyErr != nil {
				return nil, policyErr
			}
			// Skip policy: proceed with an empty key set.
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		// Empty file counts as an empty key set.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	keyIdx := -1
	for i, col := range header {
		if strings.TrimSpace(col) == "key" {
			keyIdx = i
			break
		}
	}
	if keyIdx < 0 {
		return nil, fmt.Errorf("%w: %s has no key column", resilience.ErrCorruptRow, path)
	}

	var records []Record
	for rowNum := 2; ; rowNum++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if policyErr := c.collector.CorruptRow(system, path, rowNum, err); policyErr != nil {
				return nil, policyErr
			}
			continue
		}

		if keyIdx >= len(row) || strings.TrimSpace(row[keyIdx]) == "" {
			if policyErr := c.collector.CorruptRow(system, path, rowNum, fmt.Errorf("empty key field")); policyErr != nil {
				return nil, policyErr
			}
			continue
		}

		metadata := make(map[string]string)
		for i, col := range header {
			if i != keyIdx && i < len(row) {
				metadata[strings.TrimSpace(col)] = row[i]
			}
		}

		records = append(records, Record{
			System:   system,
			RawValue: row[keyIdx],
			Metadata: metadata,
		})
	}

	return records, nil
}

// normalizeRecords builds the normalized key groups for one system. Records
// are processed in batches purely to bound memory and allow incremental
// duplicate accounting; batch boundaries never change the final groups.
func (c *Comparator) normalizeRecords(records []Record) NormalizedGroups {
	groups := make(NormalizedGroups)

	for start := 0; start < len(records); start += c.batchSize {
		end := start + c.batchSize
		if end > len(records) {
			end = len(records)
		}

		for _, rec := range records[start:end] {
			norm := c.normalizer.Normalize(rec.RawValue)
			if _, ok := groups[norm]; !ok {
				groups[norm] = make(KeySet)
			}
			groups[norm].Add(rec.RawValue)
		}
	}

	return groups
}

// compare fills the result's set algebra fields from the loaded systems.
func (c *Comparator) compare(result *Result, authorityGroups NormalizedGroups) {
	authorityKeys := authorityGroups.Keys()

	allKeys := make(KeySet)
	othersUnion := make(KeySet)
	inAll := authorityKeys

	for _, system := range result.Systems() {
		systemKeys := result.SystemKeys[system].Keys()
		allKeys = allKeys.Union(systemKeys)
		inAll = inAll.Intersect(systemKeys)

		if system == c.authority {
			continue
		}
		othersUnion = othersUnion.Union(systemKeys)
		result.SystemGaps[system] = authorityKeys.Difference(systemKeys)
	}

	result.AllKeys = allKeys
	result.KeysOnlyInAuthority = authorityKeys.Difference(othersUnion)
	result.KeysMissingInAuthority = othersUnion.Difference(authorityKeys)
	result.KeysInAllSystems = inAll
}
