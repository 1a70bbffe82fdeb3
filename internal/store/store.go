// Package store provides the persistent reconciliation state registry backed
// by SQLite. Writes are serialized through a single connection; concurrent
// reads are served through WAL journaling.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/dbsmedya/keysync/internal/logger"
)

// Store owns the reconciliation state schema: runs, master key registry,
// key tracking and the audit log.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// Open opens (creating if necessary) the state database at path and applies
// the schema. The connection pool is capped at one open connection to keep
// the single-writer discipline; WAL mode permits concurrent readers.
func Open(ctx context.Context, path string, log *logger.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is empty")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	s := &Store{db: db, logger: log}
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// NewWithDB wraps an existing database handle. The schema is not applied;
// intended for tests.
func NewWithDB(db *sql.DB, log *logger.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Store{db: db, logger: log}, nil
}

// InitSchema creates the state tables and indexes. Idempotent and safe to
// call on every startup.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	s.logger.Debug("State schema initialized")
	return nil
}

// DB exposes the underlying handle for read-only consumers (dashboard).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SchemaVersion identifies the current table layout. Bump it whenever
// schemaStatements change shape in a way existing databases cannot absorb.
const SchemaVersion = 1

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS reconciliation_runs (
		run_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		run_mode TEXT NOT NULL CHECK(run_mode IN ('full', 'incremental')),
		execution_mode TEXT NOT NULL CHECK(execution_mode IN ('normal', 'dry-run', 'auto-approve')),
		status TEXT NOT NULL CHECK(status IN ('running', 'completed', 'failed')),
		config_snapshot TEXT,
		stats_json TEXT,
		error_message TEXT,
		checkpoint_data TEXT,
		completed_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS master_key_registry (
		master_key_id INTEGER PRIMARY KEY AUTOINCREMENT,
		master_key TEXT NOT NULL UNIQUE,
		source_system TEXT NOT NULL,
		source_key TEXT NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('proposed', 'active', 'deprecated')),
		provisioning_strategy TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		activated_at TIMESTAMP,
		deprecated_at TIMESTAMP,
		run_id INTEGER REFERENCES reconciliation_runs(run_id)
	)`,

	`CREATE TABLE IF NOT EXISTS key_tracking (
		tracking_id INTEGER PRIMARY KEY AUTOINCREMENT,
		system_name TEXT NOT NULL,
		key_value TEXT NOT NULL,
		normalized_key TEXT NOT NULL,
		first_seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_seen_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		run_id INTEGER REFERENCES reconciliation_runs(run_id),
		UNIQUE(system_name, normalized_key)
	)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		audit_id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		run_id INTEGER REFERENCES reconciliation_runs(run_id),
		event_type TEXT NOT NULL,
		event_details TEXT,
		system_name TEXT,
		key_value TEXT,
		action_taken TEXT,
		result TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_timestamp
		ON reconciliation_runs(run_timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_master_key_status
		ON master_key_registry(status, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_key_tracking_lookup
		ON key_tracking(system_name, normalized_key)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_log_run
		ON audit_log(run_id, timestamp DESC)`,
}
