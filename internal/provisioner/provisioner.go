// Package provisioner derives canonical master keys for out-of-authority
// identifiers and manages their proposed/active lifecycle in the registry.
package provisioner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dbsmedya/keysync/internal/config"
	"github.com/dbsmedya/keysync/internal/logger"
	"github.com/dbsmedya/keysync/internal/store"
)

// Provisioning strategies.
const (
	StrategyMirror     = "mirror"
	StrategyNamespaced = "namespaced"
)

// SourceRef is one (system, raw key) sighting of an out-of-authority key.
type SourceRef struct {
	System string `json:"system"`
	RawKey string `json:"raw_key"`
}

// Proposed describes one master key created by a Propose call.
type Proposed struct {
	MasterKeyID     int64       `json:"master_key_id"`
	MasterKey       string      `json:"master_key"`
	NormalizedKey   string      `json:"normalized_key"`
	SourceSystem    string      `json:"source_system"`
	SourceKey       string      `json:"source_key"`
	AffectedSystems []string    `json:"affected_systems"`
	Status          store.MasterKeyStatus `json:"status"`
}

// Stats tracks provisioning activity counters.
type Stats struct {
	KeysProposed  int64            `json:"keys_proposed"`
	KeysActivated int64            `json:"keys_activated"`
	KeysSkipped   int64            `json:"keys_skipped"`
	StrategyUsed  map[string]int64 `json:"strategy_used"`
}

// Provisioner proposes and activates master keys against the registry.
type Provisioner struct {
	store  *store.Store
	cfg    config.ProvisioningConfig
	logger *logger.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a Provisioner with the given registry store and configuration.
func New(st *store.Store, cfg config.ProvisioningConfig, log *logger.Logger) (*Provisioner, error) {
	if st == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyMirror
	}
	if cfg.NamespacePrefix == "" {
		cfg.NamespacePrefix = "MASTER"
	}

	return &Provisioner{
		store:  st,
		cfg:    cfg,
		logger: log,
		stats:  Stats{StrategyUsed: make(map[string]int64)},
	}, nil
}

// GenerateMasterKey derives the master key for a normalized key according to
// the configured strategy. An unknown strategy falls back to mirror with a
// warning.
func (p *Provisioner) GenerateMasterKey(sourceSystem, normalizedKey string) string {
	strategy := p.cfg.Strategy

	var masterKey string
	switch strategy {
	case StrategyMirror:
		masterKey = normalizedKey
	case StrategyNamespaced:
		masterKey = fmt.Sprintf("%s-%s-%s", p.cfg.NamespacePrefix, sourceSystem, normalizedKey)
	default:
		p.logger.Warnw("Unknown provisioning strategy, using mirror", "strategy", strategy)
		strategy = StrategyMirror
		masterKey = normalizedKey
	}

	p.mu.Lock()
	p.stats.StrategyUsed[strategy]++
	p.mu.Unlock()

	return masterKey
}

// Propose creates proposed master key registry rows for the given
// out-of-authority keys. A normalized key already covered by a proposed or
// active registry row is skipped; deduplication is checked against the full
// current registry, not scoped to the run. The provisioning source is the
// first (system, raw key) pair in deterministic order.
func (p *Provisioner) Propose(ctx context.Context, runID int64, outOfAuthority map[string][]SourceRef) ([]Proposed, error) {
	if len(outOfAuthority) == 0 {
		return nil, nil
	}

	covered, err := p.coveredNormalizedKeys(ctx)
	if err != nil {
		return nil, err
	}

	normalizedKeys := make([]string, 0, len(outOfAuthority))
	for key := range outOfAuthority {
		normalizedKeys = append(normalizedKeys, key)
	}
	sort.Strings(normalizedKeys)

	var proposed []Proposed
	for _, normalizedKey := range normalizedKeys {
		if _, exists := covered[normalizedKey]; exists {
			p.logger.Infow("Master key already exists, skipping",
				"normalized_key", normalizedKey,
			)
			p.mu.Lock()
			p.stats.KeysSkipped++
			p.mu.Unlock()
			continue
		}

		sources := sortedSources(outOfAuthority[normalizedKey])
		if len(sources) == 0 {
			continue
		}
		source := sources[0]

		masterKey := p.GenerateMasterKey(source.System, normalizedKey)

		id, err := p.store.ProposeMasterKey(ctx, runID, masterKey, source.System, source.RawKey, p.effectiveStrategy())
		if err != nil {
			return proposed, fmt.Errorf("failed to propose master key for %q: %w", normalizedKey, err)
		}

		affected := make([]string, 0, len(sources))
		seen := make(map[string]struct{}, len(sources))
		for _, ref := range sources {
			if _, ok := seen[ref.System]; !ok {
				seen[ref.System] = struct{}{}
				affected = append(affected, ref.System)
			}
		}

		proposed = append(proposed, Proposed{
			MasterKeyID:     id,
			MasterKey:       masterKey,
			NormalizedKey:   normalizedKey,
			SourceSystem:    source.System,
			SourceKey:       source.RawKey,
			AffectedSystems: affected,
			Status:          store.MasterKeyProposed,
		})
		covered[normalizedKey] = struct{}{}

		p.mu.Lock()
		p.stats.KeysProposed++
		p.mu.Unlock()

		p.logger.Infow("Proposed master key",
			"master_key", masterKey,
			"normalized_key", normalizedKey,
			"source_system", source.System,
		)
	}

	return proposed, nil
}

// Activate flips every proposed master key of a run to active when
// autoApprove is true; otherwise it is a no-op and keys stay proposed for
// manual review. Returns the number of keys activated.
func (p *Provisioner) Activate(ctx context.Context, runID int64, autoApprove bool) (int64, error) {
	if !autoApprove {
		p.logger.Info("Auto-approve is disabled, keys remain in proposed state")
		return 0, nil
	}

	activated, err := p.store.ActivateMasterKeys(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("failed to activate master keys: %w", err)
	}

	p.mu.Lock()
	p.stats.KeysActivated += activated
	p.mu.Unlock()

	p.logger.Infow("Activated master keys", "run_id", runID, "activated", activated)
	return activated, nil
}

// Stats returns a snapshot of the provisioning counters.
func (p *Provisioner) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	used := make(map[string]int64, len(p.stats.StrategyUsed))
	for k, v := range p.stats.StrategyUsed {
		used[k] = v
	}
	out := p.stats
	out.StrategyUsed = used
	return out
}

// ResetStats clears the provisioning counters.
func (p *Provisioner) ResetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = Stats{StrategyUsed: make(map[string]int64)}
}

// coveredNormalizedKeys reads the registry once and derives the set of
// normalized keys already holding a proposed or active row. The registry
// stores master keys, not normalized keys, so the mapping is inverted per
// strategy: mirror rows carry the normalized key verbatim, namespaced rows
// carry it behind the "{prefix}-{source_system}-" lead.
func (p *Provisioner) coveredNormalizedKeys(ctx context.Context) (map[string]struct{}, error) {
	existing, err := p.store.GetMasterKeys(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load master key registry: %w", err)
	}

	covered := make(map[string]struct{})
	for _, mk := range existing {
		if mk.Status != store.MasterKeyProposed && mk.Status != store.MasterKeyActive {
			continue
		}
		covered[p.normalizedKeyOf(mk)] = struct{}{}
	}
	return covered, nil
}

func (p *Provisioner) normalizedKeyOf(mk *store.MasterKey) string {
	if mk.Strategy == StrategyNamespaced {
		lead := p.cfg.NamespacePrefix + "-" + mk.SourceSystem + "-"
		if trimmed := strings.TrimPrefix(mk.MasterKey, lead); trimmed != mk.MasterKey {
			return trimmed
		}
	}
	return mk.MasterKey
}

func (p *Provisioner) effectiveStrategy() string {
	switch p.cfg.Strategy {
	case StrategyMirror, StrategyNamespaced:
		return p.cfg.Strategy
	default:
		return StrategyMirror
	}
}

// sortedSources orders source sightings by system name, then raw key, giving
// the deterministic tie-break for source selection.
func sortedSources(refs []SourceRef) []SourceRef {
	out := make([]SourceRef, len(refs))
	copy(out, refs)
	sort.Slice(out, func(i, j int) bool {
		if out[i].System != out[j].System {
			return out[i].System < out[j].System
		}
		return out[i].RawKey < out[j].RawKey
	})
	return out
}
