// Package resilience provides the error taxonomy, failure policies and
// retry support used across the reconciliation pipeline.
package resilience

import "errors"

// Sentinel errors for the reconciliation failure taxonomy. Wrap these with
// fmt.Errorf("...: %w", ...) so callers can branch with errors.Is.
var (
	// ErrMissingFile indicates a source key file does not exist.
	ErrMissingFile = errors.New("source file missing")

	// ErrCorruptRow indicates a source row that could not be parsed.
	ErrCorruptRow = errors.New("corrupt source row")

	// ErrSystemUnavailable indicates a required system's data is absent.
	// The authoritative system being unavailable is always fatal.
	ErrSystemUnavailable = errors.New("system unavailable")

	// ErrCheckpointRecovery indicates no valid checkpoint was found while
	// attempting recovery. Fatal to the recovery path only.
	ErrCheckpointRecovery = errors.New("checkpoint recovery failed")

	// ErrTooManyErrors indicates the accumulated error count exceeded the
	// configured ceiling.
	ErrTooManyErrors = errors.New("error ceiling exceeded")
)

// Failure policies recognized by the error_handling configuration.
const (
	PolicySkip = "skip"
	PolicyLog  = "log"
	PolicyFail = "fail"
)
