// Package sqlite provides the SQLite-backed session document store with a
// denormalized issue projection.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/crosscheck/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/crosscheck/internal/services/review/core/filter"
	"github.com/louisbranch/crosscheck/internal/services/review/domain"
	"github.com/louisbranch/crosscheck/internal/services/review/storage"
	"github.com/louisbranch/crosscheck/internal/services/review/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for review sessions.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a session store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_pragma=foreign_keys(ON)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := ensureForeignKeysEnabled(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

func ensureForeignKeysEnabled(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("sqlite db is required")
	}
	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check sqlite foreign key pragma: %w", err)
	}
	if enabled != 1 {
		return fmt.Errorf("sqlite foreign keys are disabled")
	}
	return nil
}

// PutSession writes the whole session document and rewrites its issue
// projection rows in one transaction. The version column is bumped on every
// save as the hook for optimistic concurrency; writes themselves stay
// last-write-wins.
func (s *Store) PutSession(ctx context.Context, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if session == nil || !domain.ValidSessionID(session.ID) {
		return fmt.Errorf("session id fails validation")
	}

	payload, err := storage.EncodeSession(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback session write: %v", cause, rollbackErr)
		}
		return cause
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO sessions (id, version, status, target, current_round, updated_at_unix_ms, payload)
VALUES (?, 1, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    version = sessions.version + 1,
    status = excluded.status,
    target = excluded.target,
    current_round = excluded.current_round,
    updated_at_unix_ms = excluded.updated_at_unix_ms,
    payload = excluded.payload`,
		session.ID,
		string(session.Status),
		session.Target,
		session.CurrentRound,
		session.UpdatedAt.UTC().UnixMilli(),
		string(payload),
	)
	if err != nil {
		return rollbackWith(fmt.Errorf("write session row: %w", err))
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM session_issues WHERE session_id = ?", session.ID); err != nil {
		return rollbackWith(fmt.Errorf("clear issue projection: %w", err))
	}
	for _, row := range storage.IssueRows(session) {
		_, err := tx.ExecContext(ctx, `
INSERT INTO session_issues (session_id, issue_id, category, severity, status, raised_by, raised_round, resolved_round, summary)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.SessionID, row.IssueID, row.Category, row.Severity, row.Status,
			row.RaisedBy, row.RaisedRound, row.ResolvedRound, row.Summary,
		)
		if err != nil {
			return rollbackWith(fmt.Errorf("write issue projection row: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session write: %w", err)
	}
	return nil
}

// GetSession loads one session through the schema-on-read gate.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if !domain.ValidSessionID(id) {
		return nil, storage.ErrNotFound
	}

	var payload string
	err := s.sqlDB.QueryRowContext(ctx, "SELECT payload FROM sessions WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session row: %w", err)
	}

	return storage.DecodeSession(id, []byte(payload))
}

// ListSessions enumerates stored session summaries, most recently updated
// first.
func (s *Store) ListSessions(ctx context.Context) ([]storage.SessionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, version, status, target, current_round, updated_at_unix_ms
FROM sessions ORDER BY updated_at_unix_ms DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []storage.SessionSummary
	for rows.Next() {
		var summary storage.SessionSummary
		var updatedMs int64
		if err := rows.Scan(&summary.ID, &summary.Version, &summary.Status, &summary.Target, &summary.CurrentRound, &updatedMs); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		summary.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		out = append(out, summary)
	}
	return out, rows.Err()
}

// ListRecords returns raw session rows, payload included, for maintenance
// tooling that validates documents without trusting them.
func (s *Store) ListRecords(ctx context.Context) ([]storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, version, status, target, updated_at_unix_ms, payload
FROM sessions ORDER BY updated_at_unix_ms DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}
	defer rows.Close()

	var out []storage.SessionRecord
	for rows.Next() {
		var record storage.SessionRecord
		var updatedMs int64
		var payload string
		if err := rows.Scan(&record.ID, &record.Version, &record.Status, &record.Target, &updatedMs, &payload); err != nil {
			return nil, fmt.Errorf("scan session record: %w", err)
		}
		record.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		record.Payload = []byte(payload)
		out = append(out, record)
	}
	return out, rows.Err()
}

// DeleteSession removes one session and its projection rows.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if !domain.ValidSessionID(id) {
		return storage.ErrNotFound
	}

	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check delete result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// QueryIssues runs a compiled AIP-160 condition against the issue
// projection for one session, in ledger order (raised round, then id).
func (s *Store) QueryIssues(ctx context.Context, sessionID string, cond filter.SQLCondition) ([]storage.IssueRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if !domain.ValidSessionID(sessionID) {
		return nil, storage.ErrNotFound
	}

	query := `
SELECT session_id, issue_id, category, severity, status, raised_by, raised_round, resolved_round, summary
FROM session_issues WHERE session_id = ?`
	params := []any{sessionID}
	if cond.Clause != "" {
		query += " AND (" + cond.Clause + ")"
		params = append(params, cond.Params...)
	}
	query += " ORDER BY raised_round ASC, issue_id ASC"

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query issue projection: %w", err)
	}
	defer rows.Close()

	var out []storage.IssueRecord
	for rows.Next() {
		var record storage.IssueRecord
		if err := rows.Scan(&record.SessionID, &record.IssueID, &record.Category, &record.Severity, &record.Status, &record.RaisedBy, &record.RaisedRound, &record.ResolvedRound, &record.Summary); err != nil {
			return nil, fmt.Errorf("scan issue row: %w", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
