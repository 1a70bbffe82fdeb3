package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ProposeMasterKey inserts a new proposed master key registry row tied to a
// run and returns its ID. The master key value is globally unique across all
// statuses; a duplicate insert fails on the unique constraint.
func (s *Store) ProposeMasterKey(ctx context.Context, runID int64, masterKey, sourceSystem, sourceKey, strategy string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO master_key_registry
		(master_key, source_system, source_key, status, provisioning_strategy, run_id)
		VALUES (?, ?, ?, 'proposed', ?, ?)`,
		masterKey, sourceSystem, sourceKey, strategy, runID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to propose master key %q: %w", masterKey, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read master key id: %w", err)
	}
	return id, nil
}

// ActivateMasterKeys flips every proposed master key of a run to active,
// stamping the activation time. Returns the number of keys activated.
func (s *Store) ActivateMasterKeys(ctx context.Context, runID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE master_key_registry
		SET status = 'active', activated_at = CURRENT_TIMESTAMP
		WHERE run_id = ? AND status = 'proposed'`,
		runID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to activate master keys for run %d: %w", runID, err)
	}

	activated, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return activated, nil
}

const masterKeyColumns = `master_key_id, master_key, source_system, source_key,
	status, provisioning_strategy, created_at, activated_at, deprecated_at, run_id`

// GetMasterKeys returns registry rows, newest first. An empty status returns
// every row; otherwise only rows in that status.
func (s *Store) GetMasterKeys(ctx context.Context, status MasterKeyStatus) ([]*MasterKey, error) {
	query := `SELECT ` + masterKeyColumns + ` FROM master_key_registry`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, master_key_id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query master keys: %w", err)
	}
	defer rows.Close()

	var keys []*MasterKey
	for rows.Next() {
		mk, err := scanMasterKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan master key: %w", err)
		}
		keys = append(keys, mk)
	}
	return keys, rows.Err()
}

// GetMasterKeysForRun returns the registry rows proposed by one run.
func (s *Store) GetMasterKeysForRun(ctx context.Context, runID int64) ([]*MasterKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+masterKeyColumns+` FROM master_key_registry
		WHERE run_id = ? ORDER BY master_key_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query master keys for run %d: %w", runID, err)
	}
	defer rows.Close()

	var keys []*MasterKey
	for rows.Next() {
		mk, err := scanMasterKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan master key: %w", err)
		}
		keys = append(keys, mk)
	}
	return keys, rows.Err()
}

func scanMasterKey(rows rowScanner) (*MasterKey, error) {
	var mk MasterKey
	var activatedAt, deprecatedAt sql.NullTime
	var runID sql.NullInt64

	err := rows.Scan(&mk.ID, &mk.MasterKey, &mk.SourceSystem, &mk.SourceKey,
		&mk.Status, &mk.Strategy, &mk.CreatedAt, &activatedAt, &deprecatedAt, &runID)
	if err != nil {
		return nil, err
	}

	if activatedAt.Valid {
		mk.ActivatedAt = &activatedAt.Time
	}
	if deprecatedAt.Valid {
		mk.DeprecatedAt = &deprecatedAt.Time
	}
	mk.RunID = runID.Int64
	return &mk, nil
}
