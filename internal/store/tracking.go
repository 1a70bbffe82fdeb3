package store

import (
	"context"
	"fmt"
)

// TrackKey upserts a key tracking row. First sight of a (system, normalized
// key) pair inserts a new row; later sightings update the last-seen time and
// owning run, preserving first_seen_at for temporal analysis.
func (s *Store) TrackKey(ctx context.Context, runID int64, system, keyValue, normalizedKey string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO key_tracking (system_name, key_value, normalized_key, run_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(system_name, normalized_key)
		DO UPDATE SET last_seen_at = CURRENT_TIMESTAMP, run_id = ?`,
		system, keyValue, normalizedKey, runID, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to track key %q in system %s: %w", keyValue, system, err)
	}
	return nil
}

// GetTrackedKeys returns the tracking rows for one system ordered by
// normalized key.
func (s *Store) GetTrackedKeys(ctx context.Context, system string) ([]*TrackedKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tracking_id, system_name, key_value, normalized_key,
			first_seen_at, last_seen_at, run_id
		FROM key_tracking
		WHERE system_name = ?
		ORDER BY normalized_key ASC`, system)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracked keys for system %s: %w", system, err)
	}
	defer rows.Close()

	var keys []*TrackedKey
	for rows.Next() {
		var tk TrackedKey
		if err := rows.Scan(&tk.ID, &tk.System, &tk.KeyValue, &tk.NormalizedKey,
			&tk.FirstSeenAt, &tk.LastSeenAt, &tk.RunID); err != nil {
			return nil, fmt.Errorf("failed to scan tracked key: %w", err)
		}
		keys = append(keys, &tk)
	}
	return keys, rows.Err()
}
