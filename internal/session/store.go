package session

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"quizbooth/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; booths clear the database rather than migrate.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store persists booth session state backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the session database under the data
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "session.db"))
}

// OpenPath opens the session database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// SavePendingJob records the booth's in-flight generation job, replacing any
// previous occupant of the slot.
func (s *Store) SavePendingJob(ctx context.Context, job PendingJob) error {
	if strings.TrimSpace(job.ResultID) == "" {
		return errors.New("pending job requires a result id")
	}
	submitted := job.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now().UTC()
	}
	return s.execWithRetry(ctx,
		`INSERT INTO pending_job (slot, result_id, persona_id, score, client_request_id, submitted_at)
         VALUES (1, ?, ?, ?, ?, ?)
         ON CONFLICT(slot) DO UPDATE SET
             result_id = excluded.result_id,
             persona_id = excluded.persona_id,
             score = excluded.score,
             client_request_id = excluded.client_request_id,
             submitted_at = excluded.submitted_at`,
		job.ResultID, job.PersonaID, job.Score, job.ClientRequestID,
		submitted.Format(time.RFC3339Nano))
}

// PendingJob returns the in-flight job, or nil when the slot is empty.
func (s *Store) PendingJob(ctx context.Context) (*PendingJob, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT result_id, persona_id, score, client_request_id, submitted_at FROM pending_job WHERE slot = 1")

	var job PendingJob
	var submitted string
	err := row.Scan(&job.ResultID, &job.PersonaID, &job.Score, &job.ClientRequestID, &submitted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pending job: %w", err)
	}
	if job.SubmittedAt, err = time.Parse(time.RFC3339Nano, submitted); err != nil {
		return nil, fmt.Errorf("parse submitted_at: %w", err)
	}
	return &job, nil
}

// ClearPendingJob empties the slot. Clearing an already empty slot is not an
// error.
func (s *Store) ClearPendingJob(ctx context.Context) error {
	return s.execWithRetry(ctx, "DELETE FROM pending_job WHERE slot = 1")
}

// RecordResult appends a completed round to the history and clears the
// pending slot in the same transaction when the result id matches.
func (s *Store) RecordResult(ctx context.Context, result Result) (int64, error) {
	ctx = ensureContext(ctx)
	created := result.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	var attendeeJSON any
	if result.Attendee != nil {
		encoded, err := json.Marshal(result.Attendee)
		if err != nil {
			return 0, fmt.Errorf("marshal attendee: %w", err)
		}
		attendeeJSON = string(encoded)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin result tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO results (result_id, persona_id, score, image_url, attendee_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		nullableString(result.ResultID), result.PersonaID, result.Score,
		nullableString(result.ImageURL), attendeeJSON,
		created.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert result: %w", err)
	}
	if result.ResultID != "" {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM pending_job WHERE slot = 1 AND result_id = ?", result.ResultID); err != nil {
			return 0, fmt.Errorf("clear pending job: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// RecentResults returns the newest completed rounds, most recent first.
func (s *Store) RecentResults(ctx context.Context, limit int) ([]Result, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, result_id, persona_id, score, image_url, attendee_json, created_at
         FROM results ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			result       Result
			resultID     sql.NullString
			imageURL     sql.NullString
			attendeeJSON sql.NullString
			created      string
		)
		if err := rows.Scan(&result.ID, &resultID, &result.PersonaID, &result.Score,
			&imageURL, &attendeeJSON, &created); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		result.ResultID = resultID.String
		result.ImageURL = imageURL.String
		if attendeeJSON.Valid && attendeeJSON.String != "" {
			var attendee Attendee
			if err := json.Unmarshal([]byte(attendeeJSON.String), &attendee); err != nil {
				return nil, fmt.Errorf("unmarshal attendee: %w", err)
			}
			result.Attendee = &attendee
		}
		if result.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// CountResults returns the total number of completed rounds.
func (s *Store) CountResults(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM results").Scan(&count); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return count, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
