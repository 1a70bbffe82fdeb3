// Package mockdata generates synthetic per-system key files for exercising
// reconciliation scenarios. Output is deterministic for a given seed.
package mockdata

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dbsmedya/keysync/internal/config"
	"github.com/dbsmedya/keysync/internal/logger"
)

// Scenario names understood by the generator.
const (
	ScenarioNormal   = "normal"
	ScenarioDrift    = "drift"
	ScenarioFailure  = "failure"
	ScenarioRecovery = "recovery"
)

// distribution splits the key population into presence categories.
type distribution struct {
	common             float64 // keys in every system
	missingInAuthority float64 // keys in dependents but not the authority
	authorityOnly      float64 // keys in the authority but missing elsewhere
}

var distributions = map[string]distribution{
	ScenarioNormal:   {common: 0.80, missingInAuthority: 0.10, authorityOnly: 0.10},
	ScenarioDrift:    {common: 0.60, missingInAuthority: 0.20, authorityOnly: 0.20},
	ScenarioFailure:  {common: 0.50, missingInAuthority: 0.25, authorityOnly: 0.25},
	ScenarioRecovery: {common: 0.75, missingInAuthority: 0.12, authorityOnly: 0.13},
}

// Stats summarizes one generation pass.
type Stats struct {
	Scenario    string         `json:"scenario"`
	Seed        int64          `json:"seed"`
	SystemCounts map[string]int `json:"system_counts"`
}

// Generator produces seeded synthetic key data.
type Generator struct {
	rng     *rand.Rand
	seed    int64
	systems []string
	logger  *logger.Logger
}

// New creates a Generator with the given seed and the default system names.
func New(seed int64, log *logger.Logger) *Generator {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Generator{
		rng:     rand.New(rand.NewSource(seed)),
		seed:    seed,
		systems: config.DefaultSystems,
		logger:  log,
	}
}

var keyTypes = []string{"customer", "product", "transaction", "order"}

// businessKey produces a realistic structured identifier.
func (g *Generator) businessKey(keyType string, index int) string {
	switch keyType {
	case "customer":
		return fmt.Sprintf("CUST-%05d", index)
	case "product":
		letters := make([]byte, 3)
		for i := range letters {
			letters[i] = byte('A' + g.rng.Intn(26))
		}
		return fmt.Sprintf("PROD-%s-%03d", letters, index%1000)
	case "transaction":
		return fmt.Sprintf("TXN-%d-%03d", 2023+index/1000, index%1000)
	case "order":
		return fmt.Sprintf("ORD-%06d", 100000+g.rng.Intn(900000))
	default:
		return fmt.Sprintf("KEY-%06d", index)
	}
}

// vary rewrites a key into an equivalent spelling so normalization has
// something to reconcile.
func (g *Generator) vary(key string) string {
	switch g.rng.Intn(5) {
	case 0:
		return strings.ToLower(key)
	case 1:
		return " " + key + " "
	case 2:
		return strings.ReplaceAll(key, "-", "_")
	case 3:
		return strings.ReplaceAll(key, "-", "  ")
	default:
		return key
	}
}

// lastSeen produces a timestamp within the last 30 days of a fixed base so
// generation stays reproducible for a given seed.
func (g *Generator) lastSeen() string {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	offset := time.Duration(g.rng.Intn(30*24)) * time.Hour
	return base.Add(-offset).Format(time.RFC3339)
}

// Generate builds the per-system records for a scenario. duplicateRate and
// corruptionRate are per-key probabilities in [0,1].
func (g *Generator) Generate(scenario string, keysPerSystem int, duplicateRate, corruptionRate float64) map[string][][]string {
	dist, ok := distributions[scenario]
	if !ok {
		dist = distributions[ScenarioNormal]
	}

	commonCount := int(float64(keysPerSystem) * dist.common)
	missingCount := int(float64(keysPerSystem) * dist.missingInAuthority)
	authorityOnlyCount := int(float64(keysPerSystem) * dist.authorityOnly)

	common := g.keyBlock(0, commonCount)
	missingInAuthority := g.keyBlock(commonCount, missingCount)
	authorityOnly := g.keyBlock(commonCount+missingCount, authorityOnlyCount)

	systemData := make(map[string][][]string, len(g.systems))
	for _, system := range g.systems {
		var keys []string
		if system == config.AuthoritySystem {
			keys = append(append([]string{}, common...), authorityOnly...)
		} else {
			keys = append([]string{}, common...)

			// Dependent systems see most (not all) of the out-of-authority keys.
			subset := int(float64(len(missingInAuthority)) * (0.7 + 0.3*g.rng.Float64()))
			perm := g.rng.Perm(len(missingInAuthority))
			for _, idx := range perm[:subset] {
				keys = append(keys, missingInAuthority[idx])
			}

			// Occasionally drop common keys to simulate propagation gaps.
			if g.rng.Float64() < 0.3 && len(keys) > 10 {
				drop := 1 + g.rng.Intn(len(keys)/10)
				for i := 0; i < drop; i++ {
					idx := g.rng.Intn(len(keys))
					keys = append(keys[:idx], keys[idx+1:]...)
				}
			}
		}

		var rows [][]string
		for _, key := range keys {
			if g.rng.Float64() < 0.2 {
				key = g.vary(key)
			}
			if g.rng.Float64() < duplicateRate {
				rows = append(rows, g.row(key, system))
			}
			if g.rng.Float64() < corruptionRate {
				key = key + "!@#$%"
			}
			rows = append(rows, g.row(key, system))
		}
		g.rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

		systemData[system] = rows
	}

	return systemData
}

func (g *Generator) keyBlock(start, count int) []string {
	keys := make([]string, 0, count)
	for i := 0; i < count; i++ {
		keyType := keyTypes[i%len(keyTypes)]
		keys = append(keys, g.businessKey(keyType, start+i))
	}
	return keys
}

func (g *Generator) row(key, system string) []string {
	return []string{key, g.lastSeen(), system, "active"}
}

// GenerateAndWrite runs Generate and WriteFiles in one pass.
func (g *Generator) GenerateAndWrite(scenario string, keysPerSystem int, duplicateRate, corruptionRate float64, outputDir string) (*Stats, error) {
	data := g.Generate(scenario, keysPerSystem, duplicateRate, corruptionRate)
	stats, err := g.WriteFiles(data, outputDir)
	if err != nil {
		return nil, err
	}
	stats.Scenario = scenario
	return stats, nil
}

var csvHeader = []string{"key", "last_seen_at", "system", "status"}

// WriteFiles writes one CSV file per system into outputDir and returns
// per-system record counts.
func (g *Generator) WriteFiles(systemData map[string][][]string, outputDir string) (*Stats, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	stats := &Stats{
		Scenario:     "",
		Seed:         g.seed,
		SystemCounts: make(map[string]int, len(systemData)),
	}

	systems := make([]string, 0, len(systemData))
	for system := range systemData {
		systems = append(systems, system)
	}
	sort.Strings(systems)

	for _, system := range systems {
		rows := systemData[system]
		path := filepath.Join(outputDir, system+".csv")

		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}

		w := csv.NewWriter(f)
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
		if err := w.WriteAll(rows); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write rows to %s: %w", path, err)
		}
		w.Flush()
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("failed to close %s: %w", path, err)
		}

		stats.SystemCounts[system] = len(rows)
		g.logger.Infow("Wrote system key file", "system", system, "path", path, "records", len(rows))
	}

	return stats, nil
}
