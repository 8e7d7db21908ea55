package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"animesync/internal/config"
)

// Store records run summaries in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	defaultListLimit        = 20
	// timeLayout is fixed width so stored timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrRunNotFound is returned by Get for an unknown run identifier.
var ErrRunNotFound = errors.New("run not found")

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

// Open initializes or connects to the history database under the state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryPath()
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

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Record stores a run summary and its failures atomically.
func (s *Store) Record(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("record run: id required")
	}
	if run.Status == "" {
		return errors.New("record run: status required")
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, started_at, finished_at, status, entries, provider_failures, item_failures, sha, message)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			formatTime(run.StartedAt),
			formatTime(run.FinishedAt),
			string(run.Status),
			run.Entries,
			run.ProviderFailures,
			run.ItemFailures,
			nullableString(run.SHA),
			nullableString(run.Message),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, failure := range run.Failures {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO run_failures (run_id, scope, provider, item, reason) VALUES (?, ?, ?, ?, ?)",
				run.ID,
				string(failure.Scope),
				failure.Provider,
				nullableString(failure.Item),
				failure.Reason,
			); err != nil {
				return fmt.Errorf("insert run failure: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit run: %w", err)
		}
		return nil
	})
}

const runColumns = "id, started_at, finished_at, status, entries, provider_failures, item_failures, sha, message"

// List returns the most recent runs, newest first. A non-positive limit uses
// the default of 20.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var runs []Run
	err := retryOnBusy(ctx, func() error {
		runs = runs[:0]
		rows, err := s.db.QueryContext(ctx,
			"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC, id DESC LIMIT ?", limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			run, err := scanRun(rows)
			if err != nil {
				return err
			}
			runs = append(runs, run)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Get returns one run with its failures.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
		scanned, err := scanRun(row)
		if err != nil {
			return err
		}
		run = scanned
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	err = retryOnBusy(ctx, func() error {
		run.Failures = run.Failures[:0]
		rows, err := s.db.QueryContext(ctx,
			"SELECT scope, provider, item, reason FROM run_failures WHERE run_id = ? ORDER BY id", id)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				failure Failure
				scope   string
				item    sql.NullString
			)
			if err := rows.Scan(&scope, &failure.Provider, &item, &failure.Reason); err != nil {
				return err
			}
			failure.Scope = FailureScope(scope)
			failure.Item = item.String
			run.Failures = append(run.Failures, failure)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("get run failures: %w", err)
	}
	return &run, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run        Run
		startedRaw string
		finishRaw  string
		status     string
		sha        sql.NullString
		message    sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&startedRaw,
		&finishRaw,
		&status,
		&run.Entries,
		&run.ProviderFailures,
		&run.ItemFailures,
		&sha,
		&message,
	); err != nil {
		return Run{}, err
	}
	run.Status = Status(status)
	run.SHA = sha.String
	run.Message = message.String
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finished, err := parseTimeString(finishRaw); err == nil {
		run.FinishedAt = finished
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		value = time.Now()
	}
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
