package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joshuachristie/biofunc-models/internal/pathutil"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore keeps the run history in <data>/runs.db. It implements Sink
// and answers queries over stored runs.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the run history inside dataDir.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := DatabasePath(dataDir)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema at %s: %w", pathutil.RedactPath(dbPath), err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Record inserts run and its curve in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	spec, err := json.Marshal(run.Model)
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	summary, err := json.Marshal(run.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, name, model, parameter_name, population_size,
			replicates, present, probability, std_err, seed,
			spec, config, summary, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, nullString(run.Name), string(run.Model.Kind), run.ParameterName(), run.Config.PopulationSize,
		run.Summary.Replicates, run.Summary.Present, run.Summary.Probability, run.Summary.StdErr,
		strconv.FormatUint(run.Config.Seed, 10),
		string(spec), string(cfg), string(summary),
		run.Duration.Milliseconds(), run.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(run.Curve) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO curve_points (run_id, generation, probability) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare curve insert: %w", err)
		}
		defer stmt.Close()

		for gen, p := range run.Curve {
			if _, err := stmt.ExecContext(ctx, run.ID, gen, p); err != nil {
				return fmt.Errorf("failed to insert curve point %d: %w", gen, err)
			}
		}
	}

	return tx.Commit()
}

const runColumns = `id, name, spec, config, summary, duration_ms, created_at`

// ListRuns returns stored runs, newest first, without their curves.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if filter.Model != "" {
		query += ` WHERE model = ?`
		args = append(args, string(filter.Model))
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run whose id equals id or, failing that, starts with
// it. The curve is included.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fullID, err := s.resolveIDUnlocked(ctx, id)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, fullID)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	run.Curve, err = s.curveUnlocked(ctx, fullID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// Curve returns the per-generation presence probability stored for a run,
// or nil if none was recorded.
func (s *SQLiteStore) Curve(ctx context.Context, id string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fullID, err := s.resolveIDUnlocked(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.curveUnlocked(ctx, fullID)
}

// DeleteRun removes a run and its curve.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fullID, err := s.resolveIDUnlocked(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, fullID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// CountRuns returns the number of stored runs.
func (s *SQLiteStore) CountRuns(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) resolveIDUnlocked(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrRunNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM runs WHERE id = ? OR substr(id, 1, ?) = ? LIMIT 2`, id, len(id), id)
	if err != nil {
		return "", fmt.Errorf("failed to look up run: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return "", fmt.Errorf("failed to scan run id: %w", err)
		}
		if m == id {
			return m, nil
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to look up run: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

func (s *SQLiteStore) curveUnlocked(ctx context.Context, id string) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT probability FROM curve_points WHERE run_id = ? ORDER BY generation`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query curve: %w", err)
	}
	defer rows.Close()

	var curve []float64
	for rows.Next() {
		var p float64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan curve point: %w", err)
		}
		curve = append(curve, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read curve: %w", err)
	}
	return curve, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run                Run
		name               sql.NullString
		spec, cfg, summary string
		durationMS         int64
		createdAt          string
	)
	if err := row.Scan(&run.ID, &name, &spec, &cfg, &summary, &durationMS, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Name = name.String
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		run.CreatedAt = t
	}
	if err := json.Unmarshal([]byte(spec), &run.Model); err != nil {
		return nil, fmt.Errorf("failed to parse model of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(cfg), &run.Config); err != nil {
		return nil, fmt.Errorf("failed to parse config of run %s: %w", run.ID, err)
	}
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary of run %s: %w", run.ID, err)
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
