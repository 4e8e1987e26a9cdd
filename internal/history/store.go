// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a local SQLite record of the submissions the
// backend accepted, so they can be listed and looked up again later. It
// holds client-side receipts only; the backend's own storage is separate.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/beo-intake/pkg/types"
)

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 20

// ErrNotFound is returned for a submission ID with no receipt.
var ErrNotFound = errors.New("no receipt for submission")

// Store manages the history database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens or creates the history database at cfg.Path and creates
// the schema if it does not exist.
func NewStore(cfg types.HistoryConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = types.DefaultHistoryPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			submission_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			event_name TEXT,
			file_name TEXT,
			file_size INTEGER,
			status_url TEXT,
			submitted_at TEXT NOT NULL,
			status TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			download_url TEXT,
			error_message TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_submitted_at ON submissions(submitted_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores a receipt for an accepted upload. Recording the same
// submission again refreshes its metadata but never moves its status
// backwards.
func (s *Store) Record(ctx context.Context, r types.Receipt) error {
	if r.SubmissionID == "" {
		return errors.New("receipt has no submission ID")
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = s.now().UTC()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.SubmittedAt
	}
	if !r.Status.Valid() {
		r.Status = types.StatusPending
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := currentStatus(ctx, tx, r.SubmissionID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	case !current.Supersedes(r.Status):
		r.Status = current
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO submissions (submission_id, name, email, event_name, file_name, file_size,
			status_url, submitted_at, status, updated_at, download_url, error_message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(submission_id) DO UPDATE SET
			name=excluded.name, email=excluded.email, event_name=excluded.event_name,
			file_name=excluded.file_name, file_size=excluded.file_size,
			status_url=excluded.status_url, status=excluded.status, updated_at=excluded.updated_at`,
		r.SubmissionID, r.Name, r.Email, r.EventName, r.FileName, r.FileSize,
		r.StatusURL, formatTime(r.SubmittedAt), string(r.Status), formatTime(r.UpdatedAt),
		r.DownloadURL, r.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", r.SubmissionID, err)
	}
	return tx.Commit()
}

// UpdateStatus applies a status snapshot to its receipt. Snapshots that
// would move the status backwards are ignored. It returns ErrNotFound when
// no receipt exists for st.ID.
func (s *Store) UpdateStatus(ctx context.Context, st types.SubmissionStatus) error {
	if !st.Status.Valid() {
		return fmt.Errorf("updating %s: invalid status %q", st.ID, st.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := currentStatus(ctx, tx, st.ID)
	if err != nil {
		return err
	}
	if !current.Supersedes(st.Status) {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE submissions SET status = ?, updated_at = ?, download_url = ?, error_message = ?
		 WHERE submission_id = ?`,
		string(st.Status), formatTime(s.now().UTC()), st.DownloadURL, st.ErrorMessage, st.ID,
	)
	if err != nil {
		return fmt.Errorf("updating %s: %w", st.ID, err)
	}
	return tx.Commit()
}

func currentStatus(ctx context.Context, tx *sql.Tx, id string) (types.Status, error) {
	var status string
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM submissions WHERE submission_id = ?`, id,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w %s", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("reading status of %s: %w", id, err)
	}
	return types.Status(status), nil
}

const selectColumns = `submission_id, name, email, event_name, file_name, file_size,
	status_url, submitted_at, status, updated_at, download_url, error_message`

// List returns up to limit receipts, newest first. A limit of zero or less
// uses DefaultListLimit.
func (s *Store) List(ctx context.Context, limit int) ([]types.Receipt, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM submissions
		 ORDER BY submitted_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	var receipts []types.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// Get returns the receipt for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*types.Receipt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM submissions WHERE submission_id = ?`, id,
	)
	r, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(sc scanner) (types.Receipt, error) {
	var (
		r                      types.Receipt
		eventName, fileName    sql.NullString
		statusURL, downloadURL sql.NullString
		errorMessage           sql.NullString
		fileSize               sql.NullInt64
		submittedAt, updatedAt string
		status                 string
	)
	err := sc.Scan(&r.SubmissionID, &r.Name, &r.Email, &eventName, &fileName, &fileSize,
		&statusURL, &submittedAt, &status, &updatedAt, &downloadURL, &errorMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scanning receipt: %w", err)
	}
	r.EventName = eventName.String
	r.FileName = fileName.String
	r.FileSize = fileSize.Int64
	r.StatusURL = statusURL.String
	r.Status = types.Status(status)
	r.DownloadURL = downloadURL.String
	r.ErrorMessage = errorMessage.String
	r.SubmittedAt = parseTime(submittedAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// timeLayout has fixed-width fractions so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
