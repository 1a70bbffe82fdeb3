package store

import "time"

// RunMode selects the reconciliation scope.
type RunMode string

const (
	RunModeFull        RunMode = "full"
	RunModeIncremental RunMode = "incremental"
)

// ExecutionMode selects the side-effect behavior of a run.
type ExecutionMode string

const (
	ExecutionModeNormal      ExecutionMode = "normal"
	ExecutionModeDryRun      ExecutionMode = "dry-run"
	ExecutionModeAutoApprove ExecutionMode = "auto-approve"
)

// RunStatus is the lifecycle state of a reconciliation run. Runs start
// running and transition exactly once to completed or failed.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// MasterKeyStatus is the lifecycle state of a master key registry row.
// deprecated is terminal and reserved for future lifecycle management.
type MasterKeyStatus string

const (
	MasterKeyProposed   MasterKeyStatus = "proposed"
	MasterKeyActive     MasterKeyStatus = "active"
	MasterKeyDeprecated MasterKeyStatus = "deprecated"
)

// Run is one reconciliation run row.
type Run struct {
	ID             int64         `json:"run_id"`
	Timestamp      time.Time     `json:"run_timestamp"`
	Mode           RunMode       `json:"run_mode"`
	ExecutionMode  ExecutionMode `json:"execution_mode"`
	Status         RunStatus     `json:"status"`
	ConfigSnapshot string        `json:"config_snapshot,omitempty"`
	StatsJSON      string        `json:"stats,omitempty"`
	ErrorMessage   string        `json:"error_message,omitempty"`
	CheckpointData string        `json:"checkpoint_data,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// MasterKey is one master key registry row.
type MasterKey struct {
	ID           int64           `json:"master_key_id"`
	MasterKey    string          `json:"master_key"`
	SourceSystem string          `json:"source_system"`
	SourceKey    string          `json:"source_key"`
	Status       MasterKeyStatus `json:"status"`
	Strategy     string          `json:"provisioning_strategy"`
	CreatedAt    time.Time       `json:"created_at"`
	ActivatedAt  *time.Time      `json:"activated_at,omitempty"`
	DeprecatedAt *time.Time      `json:"deprecated_at,omitempty"`
	RunID        int64           `json:"run_id"`
}

// TrackedKey is one key tracking row, keyed by (system, normalized key).
type TrackedKey struct {
	ID            int64     `json:"tracking_id"`
	System        string    `json:"system_name"`
	KeyValue      string    `json:"key_value"`
	NormalizedKey string    `json:"normalized_key"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastSeenAt    time.Time `json:"last_seen_at"`
	RunID         int64     `json:"run_id"`
}

// AuditEvent is one append-only audit log row.
type AuditEvent struct {
	ID        int64     `json:"audit_id"`
	Timestamp time.Time `json:"timestamp"`
	RunID     int64     `json:"run_id"`
	EventType string    `json:"event_type"`
	Details   string    `json:"event_details,omitempty"`
	System    string    `json:"system_name,omitempty"`
	KeyValue  string    `json:"key_value,omitempty"`
	Action    string    `json:"action_taken,omitempty"`
	Result    string    `json:"result,omitempty"`
}
