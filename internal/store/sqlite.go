// Package store persists investigation checkpoints and results.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/patterns"
)

// ErrNotFound is returned when no row exists for the requested incident.
var ErrNotFound = errors.New("not found")

var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS checkpoints (
    incident_id  TEXT PRIMARY KEY,
    run_id       TEXT NOT NULL,
    current_step TEXT NOT NULL,
    state        TEXT NOT NULL,
    updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
    incident_id TEXT PRIMARY KEY,
    service     TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT '',
    severity    TEXT NOT NULL DEFAULT '',
    confidence  INTEGER NOT NULL DEFAULT 0,
    result      TEXT NOT NULL,
    created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_service ON results(service, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at DESC);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS error_signatures (
    service    TEXT NOT NULL,
    template   TEXT NOT NULL,
    count      INTEGER NOT NULL DEFAULT 0,
    example    TEXT NOT NULL DEFAULT '',
    first_seen DATETIME,
    last_seen  DATETIME,
    updated_at DATETIME NOT NULL,
    PRIMARY KEY (service, template)
);
`,
	},
}

// Checkpoint is a persisted InvestigationState in its serialised form.
type Checkpoint struct {
	IncidentID  string
	RunID       string
	CurrentStep models.Step
	State       json.RawMessage
	UpdatedAt   time.Time
}

// ResultFilter narrows ListResults.
type ResultFilter struct {
	Service string
	Status  string
	Limit   int
}

// SQLiteStore is the SQLite-backed checkpoint and result store. Writes for
// one incident are last-writer-wins upserts.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at path and runs
// pending migrations. Pass ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("store path is required")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// Each connection to ":memory:" is a separate database, and SQLite
	// serialises writers anyway.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// SaveCheckpoint upserts the state keyed by its incident id.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, state models.InvestigationState) error {
	if strings.TrimSpace(state.Incident.IncidentID) == "" {
		return errors.New("checkpoint requires an incident id")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO checkpoints(incident_id, run_id, current_step, state, updated_at)
        VALUES(?,?,?,?,?)
        ON CONFLICT(incident_id) DO UPDATE SET
            run_id       = excluded.run_id,
            current_step = excluded.current_step,
            state        = excluded.state,
            updated_at   = excluded.updated_at
    `, state.Incident.IncidentID, state.RunID, string(state.CurrentStep), string(data), s.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the latest checkpoint for incidentID.
func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, incidentID string) (Checkpoint, error) {
	var (
		cp    Checkpoint
		step  string
		state string
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT incident_id, run_id, current_step, state, updated_at
        FROM checkpoints WHERE incident_id = ?`, incidentID).
		Scan(&cp.IncidentID, &cp.RunID, &step, &state, &cp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("load checkpoint: %w", err)
	}
	cp.CurrentStep = models.Step(step)
	cp.State = json.RawMessage(state)
	return cp, nil
}

// SaveResult upserts a finished investigation.
func (s *SQLiteStore) SaveResult(ctx context.Context, result models.InvestigationResult) error {
	if strings.TrimSpace(result.IncidentID) == "" {
		return errors.New("result requires an incident id")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO results(incident_id, service, status, severity, confidence, result, created_at)
        VALUES(?,?,?,?,?,?,?)
        ON CONFLICT(incident_id) DO UPDATE SET
            service    = excluded.service,
            status     = excluded.status,
            severity   = excluded.severity,
            confidence = excluded.confidence,
            result     = excluded.result,
            created_at = excluded.created_at
    `, result.IncidentID, result.Service, result.Status, string(result.Severity), result.Confidence, string(data), s.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

// GetResult returns the stored result for incidentID.
func (s *SQLiteStore) GetResult(ctx context.Context, incidentID string) (models.InvestigationResult, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM results WHERE incident_id = ?`, incidentID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.InvestigationResult{}, ErrNotFound
	}
	if err != nil {
		return models.InvestigationResult{}, fmt.Errorf("get result: %w", err)
	}
	var result models.InvestigationResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return models.InvestigationResult{}, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}

// ListResults returns stored results, newest first.
func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]models.InvestigationResult, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `SELECT result FROM results WHERE 1=1`
	var args []any
	if filter.Service != "" {
		query += ` AND service = ?`
		args = append(args, filter.Service)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY created_at DESC, incident_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	results := make([]models.InvestigationResult, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var result models.InvestigationResult
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// StoreSignatures upserts mined error signatures for a service.
func (s *SQLiteStore) StoreSignatures(ctx context.Context, service string, signatures []patterns.Signature) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := s.now().UTC()
	for _, sig := range signatures {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO error_signatures(service, template, count, example, first_seen, last_seen, updated_at)
            VALUES(?,?,?,?,?,?,?)
            ON CONFLICT(service, template) DO UPDATE SET
                count      = excluded.count,
                example    = excluded.example,
                first_seen = COALESCE(excluded.first_seen, error_signatures.first_seen),
                last_seen  = COALESCE(excluded.last_seen, error_signatures.last_seen),
                updated_at = excluded.updated_at
        `, service, sig.Template, sig.Count, sig.Example, nullTime(sig.FirstSeen), nullTime(sig.LastSeen), now)
		if err != nil {
			return fmt.Errorf("upsert signature: %w", err)
		}
	}
	return tx.Commit()
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
