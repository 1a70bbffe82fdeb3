package store

import (
	"context"
	"database/sql"
	"fmt"
)

// LogEvent appends an immutable audit event for a run. Optional fields are
// passed as empty strings and stored as NULL.
func (s *Store) LogEvent(ctx context.Context, event AuditEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log
		(run_id, event_type, event_details, system_name, key_value, action_taken, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.RunID, event.EventType, nullable(event.Details), nullable(event.System),
		nullable(event.KeyValue), nullable(event.Action), nullable(event.Result),
	)
	if err != nil {
		return fmt.Errorf("failed to log audit event %q: %w", event.EventType, err)
	}
	return nil
}

// GetAuditEvents returns a run's audit trail in insertion order.
func (s *Store) GetAuditEvents(ctx context.Context, runID int64) ([]*AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT audit_id, timestamp, run_id, event_type, event_details,
			system_name, key_value, action_taken, result
		FROM audit_log
		WHERE run_id = ?
		ORDER BY audit_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events for run %d: %w", runID, err)
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		var ev AuditEvent
		var details, system, keyValue, action, result sql.NullString
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.RunID, &ev.EventType,
			&details, &system, &keyValue, &action, &result); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ev.Details = details.String
		ev.System = system.String
		ev.KeyValue = keyValue.String
		ev.Action = action.String
		ev.Result = result.String
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
