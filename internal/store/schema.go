package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// migrations[i] upgrades the run history from version i to i+1. Entries are
// append-only.
var migrations = [...]string{
	// 1: runs and their curves.
	`
CREATE TABLE runs (
    id TEXT PRIMARY KEY,
    name TEXT,
    model TEXT NOT NULL,           -- HSE, DSE, HTE or HTEOE
    parameter_name TEXT NOT NULL,  -- file stem shared with the CSV and Arrow output
    population_size INTEGER NOT NULL,
    replicates INTEGER NOT NULL,
    present INTEGER NOT NULL,
    probability REAL NOT NULL,
    std_err REAL NOT NULL,
    seed TEXT NOT NULL,            -- uint64 does not fit SQLite's signed INTEGER
    spec TEXT NOT NULL,            -- JSON ModelSpec
    config TEXT NOT NULL,          -- JSON SimulationConfig
    summary TEXT NOT NULL,         -- JSON Summary
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
CREATE INDEX idx_runs_model_created ON runs(model, created_at);
CREATE INDEX idx_runs_parameter_name ON runs(parameter_name);

CREATE TABLE curve_points (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    generation INTEGER NOT NULL,
    probability REAL NOT NULL,
    PRIMARY KEY (run_id, generation)
);
`,
	// 2: unfiltered listings sort by creation time.
	`CREATE INDEX idx_runs_created ON runs(created_at);`,
}

// SchemaVersion is the version a fully migrated run history has.
const SchemaVersion = len(migrations)

const createVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
)`

// InitSchema brings db up to SchemaVersion, applying each missing migration
// in its own transaction. An existing database is integrity-checked first,
// and one written by a newer wfsim is refused.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	current, err := getSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("run history schema version %d is newer than supported version %d", current, SchemaVersion)
	}
	if current > 0 {
		if err := ValidateIntegrity(ctx, db); err != nil {
			return fmt.Errorf("run history integrity check failed: %w", err)
		}
	}

	for v := current; v < SchemaVersion; v++ {
		if err := migrate(ctx, db, v+1, migrations[v]); err != nil {
			return err
		}
	}
	return nil
}

// getSchemaVersion returns the highest applied migration, or 0 for an
// empty database.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func migrate(ctx context.Context, db *sql.DB, version int, stmts string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmts); err != nil {
		return fmt.Errorf("migration %d: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, version); err != nil {
		return fmt.Errorf("migration %d: recording version: %w", version, err)
	}
	return tx.Commit()
}

// ValidateIntegrity reports corruption found by PRAGMA integrity_check and
// rows whose foreign keys point nowhere.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity_check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity_check: %s", result)
	}

	rows, err := db.QueryContext(ctx, `PRAGMA foreign_key_check`)
	if err != nil {
		return fmt.Errorf("foreign_key_check: %w", err)
	}
	defer rows.Close()

	orphans := map[string]int{}
	for rows.Next() {
		var table, parent string
		var rowid, fkid sql.NullInt64
		if err := rows.Scan(&table, &rowid, &parent, &fkid); err != nil {
			return fmt.Errorf("foreign_key_check: %w", err)
		}
		orphans[table+" -> "+parent]++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("foreign_key_check: %w", err)
	}
	if len(orphans) == 0 {
		return nil
	}

	var parts []string
	for ref, n := range orphans {
		parts = append(parts, fmt.Sprintf("%s: %d orphaned rows", ref, n))
	}
	return errors.New("foreign_key_check: " + strings.Join(parts, "; "))
}
