package resilience

import (
	"fmt"
	"sync"
	"time"

	"github.com/dbsmedya/keysync/internal/config"
)

// ErrorRecord is one collected non-fatal error.
type ErrorRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"` // missing_file, corrupt_row, load_failure, ...
	System    string    `json:"system,omitempty"`
	File      string    `json:"file,omitempty"`
	Row       int       `json:"row,omitempty"`
	Message   string    `json:"message"`
	Action    string    `json:"action"` // policy applied: skip, log, fail
}

// Collector accumulates non-fatal errors during a run and enforces the
// configured error ceiling. Safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	policy  config.ErrorHandlingConfig
	records []ErrorRecord
}

// NewCollector creates a Collector enforcing the given error handling policy.
func NewCollector(policy config.ErrorHandlingConfig) *Collector {
	return &Collector{policy: policy}
}

// Policy returns the error handling configuration the collector enforces.
func (c *Collector) Policy() config.ErrorHandlingConfig {
	return c.policy
}

// MissingFile applies the missing-file policy. Under "skip" it records the
// error and returns nil so the caller proceeds with an empty key set; under
// "fail" it returns an error wrapping ErrMissingFile.
func (c *Collector) MissingFile(system, path string) error {
	action := c.policy.OnMissingFile
	c.record(ErrorRecord{
		Type:    "missing_file",
		System:  system,
		File:    path,
		Message: fmt.Sprintf("file not found: %s", path),
		Action:  action,
	})

	if action == PolicyFail {
		return fmt.Errorf("%w: system %s file %s", ErrMissingFile, system, path)
	}
	return nil
}

// CorruptRow applies the corrupt-data policy for a single unparseable row.
// Under "log" and "skip" it records the error and returns nil so processing
// continues; under "fail" it returns an error wrapping ErrCorruptRow.
func (c *Collector) CorruptRow(system, path string, row int, cause error) error {
	action := c.policy.OnCorruptData
	c.record(ErrorRecord{
		Type:    "corrupt_row",
		System:  system,
		File:    path,
		Row:     row,
		Message: cause.Error(),
		Action:  action,
	})

	if action == PolicyFail {
		return fmt.Errorf("%w: %s row %d: %v", ErrCorruptRow, path, row, cause)
	}
	return nil
}

// LoadFailure records a per-system load failure that did not abort the run.
func (c *Collector) LoadFailure(system string, cause error) {
	c.record(ErrorRecord{
		Type:    "load_failure",
		System:  system,
		Message: cause.Error(),
		Action:  PolicyLog,
	})
}

// CheckCeiling returns an error wrapping ErrTooManyErrors once the collected
// error count exceeds the configured maximum.
func (c *Collector) CheckCeiling() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.policy.MaxErrors > 0 && len(c.records) > c.policy.MaxErrors {
		return fmt.Errorf("%w: %d errors collected (max %d)",
			ErrTooManyErrors, len(c.records), c.policy.MaxErrors)
	}
	return nil
}

// Records returns a copy of the collected error records.
func (c *Collector) Records() []ErrorRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]ErrorRecord, len(c.records))
	copy(out, c.records)
	return out
}

// CountByType returns collected error counts grouped by record type.
func (c *Collector) CountByType() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make(map[string]int)
	for _, r := range c.records {
		counts[r.Type]++
	}
	return counts
}

// Reset discards all collected records.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
}

func (c *Collector) record(r ErrorRecord) {
	r.Timestamp = time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, r)
}
