// Package normalizer implements the configurable key normalization chain.
//
// Transforms apply in a fixed order, each feeding the next: trim, uppercase,
// delimiter collapsing, non-alphanumeric stripping, numeric left-padding.
// Equivalent spellings of the same identifier normalize to the same value.
package normalizer

import (
	"regexp"
	"strings"
	"sync"

	"github.com/dbsmedya/keysync/internal/config"
)

// Transform step names used in the per-step applied counters.
const (
	StepTrim           = "trim"
	StepUppercase      = "uppercase"
	StepCollapseDelims = "collapse_delims"
	StepStripNonAlnum  = "strip_non_alnum"
	StepPadNumbers     = "pad_numbers"
)

// DefaultPadLength is the zero-padding width applied to digit runs when no
// explicit configuration overrides it.
const DefaultPadLength = 6

var (
	delimRunRe = regexp.MustCompile(`[\s_-]+`)
	digitRunRe = regexp.MustCompile(`[0-9]+`)
)

// Normalizer applies the normalization chain to raw keys. Normalization is a
// pure function of the configuration and input; the invocation counters are
// the only mutable state and are guarded for concurrent use from the
// comparator's worker pool.
type Normalizer struct {
	trimWhitespace bool
	uppercase      bool
	collapseDelims string
	stripNonAlnum  bool
	leftPadNumbers bool
	padLength      int

	stripRe *regexp.Regexp

	mu      sync.Mutex
	total   int64
	applied map[string]int64
}

// New creates a Normalizer with pure defaults. Every step is active,
// including numeric left-padding.
func New() *Normalizer {
	return build(true, true, "-", true, true, DefaultPadLength)
}

// NewWithConfig creates a Normalizer from an explicit configuration. A nil
// configuration is equivalent to New(). When a configuration is supplied,
// numeric padding activates only if the caller set left_pad_numbers
// explicitly; every other toggle takes the value in the configuration.
func NewWithConfig(cfg *config.NormalizeConfig) *Normalizer {
	if cfg == nil {
		return New()
	}

	padNumbers := cfg.LeftPadNumbers != nil && *cfg.LeftPadNumbers
	padLength := cfg.PadLength
	if padLength < 1 {
		padLength = DefaultPadLength
	}

	return build(cfg.TrimWhitespace, cfg.Uppercase, cfg.CollapseDelims,
		cfg.StripNonAlnum, padNumbers, padLength)
}

func build(trim, upper bool, delim string, strip, pad bool, padLength int) *Normalizer {
	// The stripping step keeps alphanumerics plus the collapse delimiter;
	// when collapsing is disabled, hyphens stay allowed so structured keys
	// such as ORD-1 survive stripping.
	allowed := delim
	if allowed == "" {
		allowed = "-"
	}

	return &Normalizer{
		trimWhitespace: trim,
		uppercase:      upper,
		collapseDelims: delim,
		stripNonAlnum:  strip,
		leftPadNumbers: pad,
		padLength:      padLength,
		stripRe:        regexp.MustCompile(`[^a-zA-Z0-9` + regexp.QuoteMeta(allowed) + `]+`),
		applied:        make(map[string]int64),
	}
}

// Normalize applies the configured transform chain to a single raw key.
// Empty input maps to empty output.
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	key := raw
	var steps []string

	if n.trimWhitespace {
		trimmed := strings.TrimSpace(key)
		if trimmed != key {
			steps = append(steps, StepTrim)
		}
		key = trimmed
	}

	if n.uppercase {
		upper := strings.ToUpper(key)
		if upper != key {
			steps = append(steps, StepUppercase)
		}
		key = upper
	}

	if n.collapseDelims != "" {
		collapsed := delimRunRe.ReplaceAllString(key, n.collapseDelims)
		if collapsed != key {
			steps = append(steps, StepCollapseDelims)
		}
		key = collapsed
	}

	if n.stripNonAlnum {
		stripped := n.stripRe.ReplaceAllString(key, "")
		if stripped != key {
			steps = append(steps, StepStripNonAlnum)
		}
		key = stripped
	}

	if n.leftPadNumbers {
		padded := digitRunRe.ReplaceAllStringFunc(key, n.padDigits)
		if padded != key {
			steps = append(steps, StepPadNumbers)
		}
		key = padded
	}

	n.count(steps)
	return key
}

// NormalizeBatch normalizes a slice of keys, preserving order.
func (n *Normalizer) NormalizeBatch(keys []string) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = n.Normalize(key)
	}
	return out
}

// padDigits left-pads a maximal digit run with zeros to the configured
// length. Longer runs are never truncated.
func (n *Normalizer) padDigits(run string) string {
	if len(run) >= n.padLength {
		return run
	}
	return strings.Repeat("0", n.padLength-len(run)) + run
}

func (n *Normalizer) count(steps []string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.total++
	for _, step := range steps {
		n.applied[step]++
	}
}

// Stats is a snapshot of the normalizer's process-local counters.
type Stats struct {
	TotalNormalized int64            `json:"total_normalized"`
	Transformations map[string]int64 `json:"transformations"`
}

// Stats returns a snapshot of the invocation and per-step counters.
func (n *Normalizer) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()

	applied := make(map[string]int64, len(n.applied))
	for step, count := range n.applied {
		applied[step] = count
	}
	return Stats{
		TotalNormalized: n.total,
		Transformations: applied,
	}
}

// ResetStats clears the invocation and per-step counters.
func (n *Normalizer) ResetStats() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.total = 0
	n.applied = make(map[string]int64)
}
