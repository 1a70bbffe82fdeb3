package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// StartRun inserts a new run in the running state and returns its ID.
func (s *Store) StartRun(ctx context.Context, mode RunMode, execMode ExecutionMode, configSnapshot string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (run_mode, execution_mode, status, config_snapshot)
		VALUES (?, ?, 'running', ?)`,
		string(mode), string(execMode), configSnapshot,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to start run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	s.logger.Infow("Started reconciliation run",
		"run_id", runID,
		"mode", mode,
		"execution_mode", execMode,
	)
	return runID, nil
}

// CompleteRun transitions a run to completed, or failed when errMsg is
// non-empty, recording the serialized stats and completion time. A run is
// mutated exactly once at completion and is immutable thereafter.
func (s *Store) CompleteRun(ctx context.Context, runID int64, statsJSON, errMsg string) error {
	status := RunStatusCompleted
	var errVal interface{}
	if errMsg != "" {
		status = RunStatusFailed
		errVal = errMsg
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE reconciliation_runs
		SET status = ?, stats_json = ?, error_message = ?, completed_at = CURRENT_TIMESTAMP
		WHERE run_id = ? AND status = 'running'`,
		string(status), statsJSON, errVal, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %d: %w", runID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %d is not running (already terminal or unknown)", runID)
	}

	s.logger.Infow("Completed reconciliation run", "run_id", runID, "status", status)
	return nil
}

// SaveCheckpoint stores the serialized checkpoint summary for a run.
func (s *Store) SaveCheckpoint(ctx context.Context, runID int64, checkpointJSON string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE reconciliation_runs SET checkpoint_data = ? WHERE run_id = ?`,
		checkpointJSON, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for run %d: %w", runID, err)
	}
	return nil
}

const runColumns = `run_id, run_timestamp, run_mode, execution_mode, status,
	config_snapshot, stats_json, error_message, checkpoint_data, completed_at`

// GetRun returns one run by ID, or nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, runID int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM reconciliation_runs WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %d: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM reconciliation_runs
		ORDER BY run_timestamp DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetLastSuccessfulRun returns the most recent completed run, or nil when no
// run has completed yet. Incremental mode diffs against this run's snapshot.
func (s *Store) GetLastSuccessfulRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM reconciliation_runs
		WHERE status = 'completed'
		ORDER BY run_timestamp DESC, run_id DESC LIMIT 1`)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last successful run: %w", err)
	}
	return run, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var configSnapshot, statsJSON, errMsg, checkpoint sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&run.ID, &run.Timestamp, &run.Mode, &run.ExecutionMode, &run.Status,
		&configSnapshot, &statsJSON, &errMsg, &checkpoint, &completedAt)
	if err != nil {
		return nil, err
	}

	run.ConfigSnapshot = configSnapshot.String
	run.StatsJSON = statsJSON.String
	run.ErrorMessage = errMsg.String
	run.CheckpointData = checkpoint.String
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}
