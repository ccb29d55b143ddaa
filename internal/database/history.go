package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/secscan/internal/model"
)

// FileName is the name of the history database inside its directory.
const FileName = "secscan.db"

// ErrNotFound is returned when a database file is required but missing.
var ErrNotFound = errors.New("history database not found")

// HistoryDB stores scan sessions and their findings in SQLite.
// One file holds the history of every target.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// With CreateIfNotExists unset, a missing file yields ErrNotFound.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a new file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw&_pragma=foreign_keys(1)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per scan session
	CREATE TABLE IF NOT EXISTS scan_sessions (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		status TEXT NOT NULL,
		failure_reason TEXT NOT NULL DEFAULT '',
		pages INTEGER NOT NULL DEFAULT 0,
		critical_count INTEGER NOT NULL DEFAULT 0,
		high_count INTEGER NOT NULL DEFAULT 0,
		medium_count INTEGER NOT NULL DEFAULT 0,
		low_count INTEGER NOT NULL DEFAULT 0,
		info_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_target ON scan_sessions(target);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON scan_sessions(started_at);

	-- Findings keep their detector-specific detail in typed columns
	CREATE TABLE IF NOT EXISTS findings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES scan_sessions(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		kind TEXT NOT NULL,
		target_url TEXT NOT NULL,
		parameter TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT '',
		candidate_url TEXT NOT NULL DEFAULT '',
		form_identifier TEXT NOT NULL DEFAULT '',
		raw_form TEXT NOT NULL DEFAULT '',
		evidence TEXT NOT NULL DEFAULT '',
		UNIQUE(session_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_findings_session ON findings(session_id);
	CREATE INDEX IF NOT EXISTS idx_findings_kind ON findings(kind);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SessionRecord summarizes a stored scan session.
type SessionRecord struct {
	// ID is the session identifier.
	ID string

	// Target is the seed URL.
	Target string

	// StartedAt and FinishedAt bound the session.
	StartedAt  time.Time
	FinishedAt time.Time

	// Status is the state of the seed page: scanned or failed.
	Status string

	// FailureReason is set when Status is failed. For a scanned seed whose
	// checks were cut short it is InterruptedReason.
	FailureReason string

	// Pages is the number of pages the session touched.
	Pages int

	// Counts holds the number of findings per criticality.
	Counts map[model.Severity]int
}

// InterruptedReason marks a session whose seed page checks did not finish.
const InterruptedReason = "interrupted"

// Total returns the number of findings in the session.
func (r SessionRecord) Total() int {
	total := 0
	for _, n := range r.Counts {
		total += n
	}
	return total
}

// SaveScanReport stores a session and its findings in one transaction.
// Saving the same session twice fails on the primary key.
func (h *HistoryDB) SaveScanReport(ctx context.Context, report *model.ScanReport) (err error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	status, reason := model.PageStateNew.String(), ""
	if len(report.Pages) > 0 {
		status = report.Pages[0].State.String()
		reason = report.Pages[0].FailureReason
		if report.Pages[0].Interrupted {
			reason = InterruptedReason
		}
	}
	counts := report.CountBySeverity()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO scan_sessions (
		id, target, started_at, finished_at, status, failure_reason, pages,
		critical_count, high_count, medium_count, low_count, info_count
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.SessionID,
		report.Target,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		status,
		reason,
		len(report.Pages),
		counts[model.SeverityCritical],
		counts[model.SeverityHigh],
		counts[model.SeverityMedium],
		counts[model.SeverityLow],
		counts[model.SeverityInfo],
	)
	if err != nil {
		return fmt.Errorf("failed to save scan session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO findings (
		session_id, position, kind, target_url, parameter, payload,
		candidate_url, form_identifier, raw_form, evidence
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare finding insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range report.Findings {
		row := toFindingRow(f)
		_, err = stmt.ExecContext(ctx,
			report.SessionID,
			i,
			row.kind,
			row.targetURL,
			row.parameter,
			row.payload,
			row.candidateURL,
			row.formIdentifier,
			row.rawForm,
			row.evidence,
		)
		if err != nil {
			return fmt.Errorf("failed to save finding %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan session: %w", err)
	}
	return nil
}

const sessionColumns = `
	id, target, started_at, finished_at, status, failure_reason, pages,
	critical_count, high_count, medium_count, low_count, info_count`

// ListSessions returns the sessions of target, newest first.
func (h *HistoryDB) ListSessions(ctx context.Context, target string) ([]SessionRecord, error) {
	return h.querySessions(ctx, `SELECT`+sessionColumns+`
	FROM scan_sessions
	WHERE target = ?
	ORDER BY started_at DESC, rowid DESC`, target)
}

// LatestSessions returns at most n sessions of target, newest first.
func (h *HistoryDB) LatestSessions(ctx context.Context, target string, n int) ([]SessionRecord, error) {
	return h.querySessions(ctx, `SELECT`+sessionColumns+`
	FROM scan_sessions
	WHERE target = ?
	ORDER BY started_at DESC, rowid DESC
	LIMIT ?`, target, n)
}

// GetSession returns a session by ID, or nil if it does not exist.
func (h *HistoryDB) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	records, err := h.querySessions(ctx, `SELECT`+sessionColumns+`
	FROM scan_sessions
	WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

func (h *HistoryDB) querySessions(ctx context.Context, query string, args ...any) ([]SessionRecord, error) {
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan sessions: %w", err)
	}
	defer rows.Close()

	var results []SessionRecord
	for rows.Next() {
		var (
			rec                               SessionRecord
			started, finished                 string
			critical, high, medium, low, info int
		)
		err := rows.Scan(
			&rec.ID,
			&rec.Target,
			&started,
			&finished,
			&rec.Status,
			&rec.FailureReason,
			&rec.Pages,
			&critical,
			&high,
			&medium,
			&low,
			&info,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		rec.StartedAt = parseTimestamp(started)
		rec.FinishedAt = parseTimestamp(finished)
		rec.Counts = map[model.Severity]int{
			model.SeverityCritical: critical,
			model.SeverityHigh:     high,
			model.SeverityMedium:   medium,
			model.SeverityLow:      low,
			model.SeverityInfo:     info,
		}
		results = append(results, rec)
	}

	return results, rows.Err()
}

// GetFindings returns the findings of a session in detection order.
// Rows with an unknown kind are skipped.
func (h *HistoryDB) GetFindings(ctx context.Context, sessionID string) ([]model.Finding, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT kind, target_url, parameter, payload, candidate_url, form_identifier, raw_form, evidence
	FROM findings
	WHERE session_id = ?
	ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []model.Finding
	for rows.Next() {
		var row findingRow
		err := rows.Scan(
			&row.kind,
			&row.targetURL,
			&row.parameter,
			&row.payload,
			&row.candidateURL,
			&row.formIdentifier,
			&row.rawForm,
			&row.evidence,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		if f := row.toFinding(); f != nil {
			findings = append(findings, f)
		}
	}

	return findings, rows.Err()
}

// ListTargets returns every target with stored sessions, sorted.
func (h *HistoryDB) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT DISTINCT target FROM scan_sessions
	ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}

// DeleteSession removes a session and its findings.
// It reports whether a session was deleted.
func (h *HistoryDB) DeleteSession(ctx context.Context, id string) (bool, error) {
	result, err := h.db.ExecContext(ctx, `DELETE FROM scan_sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return n > 0, nil
}

// timestampLayout is used for every stored time. It sorts lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats accepted when reading.
// The order matters: more specific formats come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
}

// parseTimestamp parses a stored timestamp, returning zero time when no
// format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
