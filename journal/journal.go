// Package journal is the durable record of every compress and rollback
// attempt. It backs audit, rollback lookup, crash detection and the
// throughput history used for ETAs.
package journal

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/riadafridishibly/compactor/runner"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("operation record not found")

type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
	StatusCancelled
	StatusRolledBack
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "InProgress"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusCancelled:
		return "Cancelled"
	case StatusRolledBack:
		return "RolledBack"
	}
	return "Unknown"
}

// Terminal reports whether the record will not change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRolledBack:
		return true
	}
	return false
}

type Record struct {
	ID                  uuid.UUID
	Path                string
	Mode                runner.Mode
	Algorithm           runner.Algorithm
	StartedAt           time.Time
	FinishedAt          *time.Time
	BeforeBytes         int64
	AfterBytes          int64
	Status              Status
	ErrorMessage        string
	IsRollback          bool
	OriginalOperationID *uuid.UUID
}

// Elapsed is zero for unfinished records.
func (r *Record) Elapsed() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Saved is the on-disk delta, negative when the directory grew.
func (r *Record) Saved() int64 {
	return r.BeforeBytes - r.AfterBytes
}

type Journal struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS operations (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL,
    mode INTEGER NOT NULL,
    algorithm INTEGER NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    before_bytes INTEGER NOT NULL,
    after_bytes INTEGER NOT NULL,
    status INTEGER NOT NULL,
    error_message TEXT,
    is_rollback INTEGER NOT NULL,
    original_operation_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_operations_started_at ON operations (started_at);
`

// timestamps are stored as fixed-width UTC text so lexical order is time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const columns = `id, path, mode, algorithm, started_at, finished_at, before_bytes, after_bytes,
    status, error_message, is_rollback, original_operation_id`

// DefaultPath is ~/.cache/compactor/journal.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "compactor", "journal.db"), nil
}

// Open creates the database and schema if needed. Failure here is fatal to
// starting the engine.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create journal directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal %s", path)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	db.Exec(`PRAGMA journal_mode=WAL;`)
	db.Exec(`PRAGMA synchronous=NORMAL;`)
	db.Exec(`PRAGMA busy_timeout=5000;`)
	db.Exec(`PRAGMA temp_store=MEMORY;`)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create journal schema")
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Add appends a new record. The id is generated when zero.
func (j *Journal) Add(ctx context.Context, r *Record) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	return j.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO operations (`+columns+`)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, recordArgs(r)...)
		return errors.Wrapf(err, "add operation %s", r.ID)
	})
}

// Update rewrites every mutable column of an existing record.
func (j *Journal) Update(ctx context.Context, r *Record) error {
	return j.tx(ctx, func(tx *sql.Tx) error {
		args := recordArgs(r)
		// id moves from the first column to the WHERE clause
		args = append(args[1:len(args):len(args)], args[0])
		res, err := tx.ExecContext(ctx, `UPDATE operations SET
            path = ?, mode = ?, algorithm = ?, started_at = ?, finished_at = ?,
            before_bytes = ?, after_bytes = ?, status = ?, error_message = ?,
            is_rollback = ?, original_operation_id = ?
            WHERE id = ?`, args...)
		if err != nil {
			return errors.Wrapf(err, "update operation %s", r.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.Wrapf(ErrNotFound, "update operation %s", r.ID)
		}
		return nil
	})
}

func (j *Journal) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+columns+` FROM operations WHERE id = ?`, id.String())
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "operation %s", id)
	}
	return r, err
}

// Recent returns the newest n records, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]*Record, error) {
	if n <= 0 {
		return nil, nil
	}
	return j.query(ctx, `SELECT `+columns+` FROM operations ORDER BY started_at DESC LIMIT ?`, n)
}

// Stuck lists records left InProgress, which only happens when the process
// died between Add and the terminal Update.
func (j *Journal) Stuck(ctx context.Context) ([]*Record, error) {
	return j.query(ctx, `SELECT `+columns+` FROM operations WHERE status = ? ORDER BY started_at`, int(StatusInProgress))
}

// LastCompleted returns the newest completed compress of path.
func (j *Journal) LastCompleted(ctx context.Context, path string) (*Record, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+columns+` FROM operations
        WHERE path = ? AND status = ? AND is_rollback = 0
        ORDER BY started_at DESC LIMIT 1`, path, int(StatusCompleted))
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "no completed compression of %s", path)
	}
	return r, err
}

func (j *Journal) Delete(ctx context.Context, id uuid.UUID) error {
	return j.tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM operations WHERE id = ?", id.String())
		return err
	})
}

// tx scopes each write to its own short transaction.
func (j *Journal) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin journal transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit journal transaction")
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]*Record, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func recordArgs(r *Record) []any {
	var finished, errMsg, original sql.NullString
	if r.FinishedAt != nil {
		finished = sql.NullString{String: formatTime(*r.FinishedAt), Valid: true}
	}
	if r.ErrorMessage != "" {
		errMsg = sql.NullString{String: r.ErrorMessage, Valid: true}
	}
	if r.OriginalOperationID != nil {
		original = sql.NullString{String: r.OriginalOperationID.String(), Valid: true}
	}
	rollback := 0
	if r.IsRollback {
		rollback = 1
	}
	return []any{
		r.ID.String(), r.Path, int(r.Mode), int(r.Algorithm),
		formatTime(r.StartedAt), finished,
		r.BeforeBytes, r.AfterBytes, int(r.Status), errMsg,
		rollback, original,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		id, path, started            string
		finished, errMsg, original   sql.NullString
		mode, algo, status, rollback int
		before, after                int64
	)
	if err := row.Scan(&id, &path, &mode, &algo, &started, &finished, &before, &after,
		&status, &errMsg, &rollback, &original); err != nil {
		return nil, err
	}

	r := &Record{
		Path:         path,
		Mode:         runner.Mode(mode),
		Algorithm:    runner.Algorithm(algo),
		BeforeBytes:  before,
		AfterBytes:   after,
		Status:       Status(status),
		ErrorMessage: errMsg.String,
		IsRollback:   rollback != 0,
	}
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, errors.Wrapf(err, "corrupt operation id %q", id)
	}
	if r.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if finished.Valid {
		t, err := parseTime(finished.String)
		if err != nil {
			return nil, err
		}
		r.FinishedAt = &t
	}
	if original.Valid && strings.TrimSpace(original.String) != "" {
		o, err := uuid.Parse(original.String)
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt original operation id %q", original.String)
		}
		r.OriginalOperationID = &o
	}
	return r, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "corrupt timestamp %q", s)
	}
	return t, nil
}
