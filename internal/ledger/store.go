package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store records chapter progress and stage events in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
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
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset the ledger)",
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

// Record appends ev to the event log and folds it into the chapter state in
// one transaction. A successful stage only ever advances the status; a
// failure keeps the status and records the failing stage.
func (s *Store) Record(ctx context.Context, ev Event) error {
	if ev.StartedAt.IsZero() {
		ev.StartedAt = time.Now()
	}
	if ev.FinishedAt.IsZero() {
		ev.FinishedAt = time.Now()
	}
	return retryOnBusy(ctx, func() error {
		return s.record(ctx, ev)
	})
}

func (s *Store) record(ctx context.Context, ev Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	finished := ev.FinishedAt.UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO stage_events (run_id, work, chapter, stage, outcome, error_kind, error_message, artifact, started_at, finished_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.Work, ev.Chapter, ev.Stage, string(ev.Outcome),
		nullableString(ev.ErrorKind), nullableString(ev.ErrorMessage), nullableString(ev.Artifact),
		ev.StartedAt.UTC().Format(time.RFC3339Nano), finished,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	current, err := loadState(ctx, tx, ev.Work, ev.Chapter)
	if err != nil {
		return err
	}
	next := current
	next.Work, next.Chapter, next.RunID = ev.Work, ev.Chapter, ev.RunID
	if next.Status == "" {
		next.Status = StatusSplit
	}
	switch ev.Outcome {
	case OutcomeFailed:
		next.FailedStage = ev.Stage
		next.ErrorKind = ev.ErrorKind
		next.ErrorMessage = ev.ErrorMessage
	default:
		next.FailedStage, next.ErrorKind, next.ErrorMessage = "", "", ""
		if ev.Reached != "" && ev.Reached.Rank() >= next.Status.Rank() {
			next.Status = ev.Reached
		}
		if ev.Artifact != "" {
			next.Artifact = ev.Artifact
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chapter_state (work, chapter, status, failed_stage, error_kind, error_message, artifact, run_id, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(work, chapter) DO UPDATE SET
            status = excluded.status,
            failed_stage = excluded.failed_stage,
            error_kind = excluded.error_kind,
            error_message = excluded.error_message,
            artifact = excluded.artifact,
            run_id = excluded.run_id,
            updated_at = excluded.updated_at`,
		next.Work, next.Chapter, string(next.Status),
		nullableString(next.FailedStage), nullableString(next.ErrorKind), nullableString(next.ErrorMessage),
		nullableString(next.Artifact), nullableString(next.RunID), finished,
	); err != nil {
		return fmt.Errorf("upsert chapter state: %w", err)
	}
	return tx.Commit()
}

// Rewind lowers a chapter's status to status, used when an upstream artifact
// is regenerated and later stages must run again.
func (s *Store) Rewind(ctx context.Context, work string, chapter int, status Status) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE chapter_state SET status = ?, updated_at = ? WHERE work = ? AND chapter = ?`,
			string(status), time.Now().UTC().Format(time.RFC3339Nano), work, chapter,
		)
		return err
	})
}

const stateColumns = "work, chapter, status, failed_stage, error_kind, error_message, artifact, run_id, updated_at"

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadState(ctx context.Context, q queryer, work string, chapter int) (ChapterState, error) {
	row := q.QueryRowContext(ctx, `SELECT `+stateColumns+` FROM chapter_state WHERE work = ? AND chapter = ?`, work, chapter)
	state, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ChapterState{}, nil
	}
	if err != nil {
		return ChapterState{}, fmt.Errorf("load chapter state: %w", err)
	}
	return state, nil
}

// Chapter returns the state of one chapter; ok is false when it has never
// been recorded.
func (s *Store) Chapter(ctx context.Context, work string, chapter int) (ChapterState, bool, error) {
	state, err := loadState(ctx, s.db, work, chapter)
	if err != nil {
		return ChapterState{}, false, err
	}
	return state, state.Work != "", nil
}

// Chapters lists every recorded chapter of work in ordinal order.
func (s *Store) Chapters(ctx context.Context, work string) ([]ChapterState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stateColumns+` FROM chapter_state WHERE work = ? ORDER BY chapter`, work)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var states []ChapterState
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// Events returns the most recent events of a chapter, newest first.
func (s *Store) Events(ctx context.Context, work string, chapter, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, work, chapter, stage, outcome, error_kind, error_message, artifact, started_at, finished_at
         FROM stage_events WHERE work = ? AND chapter = ? ORDER BY id DESC LIMIT ?`,
		work, chapter, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev                      Event
			outcome                 string
			kind, message, artifact sql.NullString
			startedRaw, finishedRaw string
		)
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Work, &ev.Chapter, &ev.Stage, &outcome, &kind, &message, &artifact, &startedRaw, &finishedRaw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Outcome = Outcome(outcome)
		ev.ErrorKind, ev.ErrorMessage, ev.Artifact = kind.String, message.String, artifact.String
		ev.StartedAt = parseTime(startedRaw)
		ev.FinishedAt = parseTime(finishedRaw)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanState(scanner interface{ Scan(dest ...any) error }) (ChapterState, error) {
	var (
		state                                       ChapterState
		status                                      string
		failedStage, kind, message, artifact, runID sql.NullString
		updatedRaw                                  string
	)
	if err := scanner.Scan(&state.Work, &state.Chapter, &status, &failedStage, &kind, &message, &artifact, &runID, &updatedRaw); err != nil {
		return ChapterState{}, err
	}
	state.Status = Status(status)
	state.FailedStage = failedStage.String
	state.ErrorKind = kind.String
	state.ErrorMessage = message.String
	state.Artifact = artifact.String
	state.RunID = runID.String
	state.UpdatedAt = parseTime(updatedRaw)
	return state, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
