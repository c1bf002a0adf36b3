// Package jobstore keeps a local history of submitted analyses in SQLite so
// that timed-out jobs can be resumed and past results looked up without
// remembering their uuids.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no job with the given uuid is recorded.
var ErrNotFound = errors.New("jobstore: job not found")

// defaultListLimit applies when List is called with a non-positive limit.
const defaultListLimit = 20

const (
	sqlUpsertJob = `INSERT INTO jobs
		(uuid, address, api_url, mode, source, status, submitted_at, updated_at, issue_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
		 status = excluded.status,
		 updated_at = excluded.updated_at,
		 issue_count = excluded.issue_count,
		 error = excluded.error`

	sqlUpdateStatus = `UPDATE jobs SET status = ?, updated_at = ?, issue_count = ?, error = ?
		WHERE uuid = ?`

	sqlSelectJob = `SELECT uuid, address, api_url, mode, source, status,
		submitted_at, updated_at, issue_count, error FROM jobs`

	sqlGetJob = sqlSelectJob + ` WHERE uuid = ?`

	sqlListJobs = sqlSelectJob + ` ORDER BY submitted_at DESC, uuid LIMIT ?`

	sqlListPending = sqlSelectJob + ` WHERE status NOT IN ('Finished', 'Error')
		ORDER BY submitted_at DESC, uuid LIMIT ?`
)

// Job is one recorded submission.
type Job struct {
	UUID        string    `json:"uuid"`
	Address     string    `json:"address"`
	APIURL      string    `json:"api_url"`
	Mode        string    `json:"mode"`
	Source      string    `json:"source,omitempty"` // payload file, empty when submitted programmatically
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IssueCount  *int      `json:"issue_count,omitempty"` // nil until issues have been fetched
	Error       string    `json:"error,omitempty"`
}

// Store is the job history database. It is safe for concurrent use; writes
// are serialized through a single connection.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens (creating if needed) the database at path and applies
// migrations. The database uses WAL mode.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("jobstore: creating directory for %s: %w", path, err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("jobstore: opening %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("job store opened", slog.String("path", path))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts job, or updates the mutable fields (status, issue count,
// error) of an existing job with the same uuid. SubmittedAt defaults to now.
func (s *Store) Record(ctx context.Context, job *Job) error {
	if job.UUID == "" {
		return errors.New("jobstore: job uuid is required")
	}

	now := s.nowFunc()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = now
	}

	job.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, sqlUpsertJob,
		job.UUID, job.Address, job.APIURL, job.Mode, nullString(job.Source), job.Status,
		job.SubmittedAt.UnixNano(), job.UpdatedAt.UnixNano(),
		nullInt(job.IssueCount), nullString(job.Error),
	)
	if err != nil {
		return fmt.Errorf("jobstore: recording job %s: %w", job.UUID, err)
	}

	s.logger.Debug("job recorded", slog.String("uuid", job.UUID), slog.String("status", job.Status))

	return nil
}

// UpdateStatus sets the status of a recorded job. issueCount may be nil.
func (s *Store) UpdateStatus(ctx context.Context, uuid, status string, issueCount *int, errMsg string) error {
	res, err := s.db.ExecContext(ctx, sqlUpdateStatus,
		status, s.nowFunc().UnixNano(), nullInt(issueCount), nullString(errMsg), uuid)
	if err != nil {
		return fmt.Errorf("jobstore: updating job %s: %w", uuid, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("jobstore: updating job %s: %w", uuid, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, uuid)
	}

	return nil
}

// Get returns the job with the given uuid.
func (s *Store) Get(ctx context.Context, uuid string) (*Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, sqlGetJob, uuid))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uuid)
	}

	if err != nil {
		return nil, fmt.Errorf("jobstore: reading job %s: %w", uuid, err)
	}

	return job, nil
}

// List returns up to limit jobs, most recent first. With pendingOnly, jobs in
// a terminal state are skipped.
func (s *Store) List(ctx context.Context, limit int, pendingOnly bool) ([]Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := sqlListJobs
	if pendingOnly {
		query = sqlListPending
	}

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("jobstore: listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("jobstore: scanning job: %w", err)
		}

		jobs = append(jobs, *job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobstore: iterating jobs: %w", err)
	}

	return jobs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		j           Job
		source      sql.NullString
		submittedAt int64
		updatedAt   int64
		issueCount  sql.NullInt64
		errMsg      sql.NullString
	)

	err := row.Scan(&j.UUID, &j.Address, &j.APIURL, &j.Mode, &source, &j.Status,
		&submittedAt, &updatedAt, &issueCount, &errMsg)
	if err != nil {
		return nil, err
	}

	j.Source = source.String
	j.Error = errMsg.String
	j.SubmittedAt = time.Unix(0, submittedAt).UTC()
	j.UpdatedAt = time.Unix(0, updatedAt).UTC()

	if issueCount.Valid {
		n := int(issueCount.Int64)
		j.IssueCount = &n
	}

	return &j, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}

	return sql.NullString{String: s, Valid: true}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: int64(*n), Valid: true}
}
