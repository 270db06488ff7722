package job

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// Store handles persistence of jobs and their parameters.
// All status changes go through a single-row compare-and-swap.
type Store struct {
	db      *sql.DB
	timeNow func() time.Time
}

// NewStore creates a new job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, timeNow: time.Now}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateJob inserts a new submitted job and its parameters.
func (s *Store) CreateJob(ctx context.Context, j *Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin job insert")
	}
	if err := s.CreateJobTx(ctx, tx, j); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit job insert")
	}
	return nil
}

// CreateJobTx inserts a job inside the caller's transaction and sets j.ID.
func (s *Store) CreateJobTx(ctx context.Context, tx *sql.Tx, j *Job) error {
	if j.Type == "" {
		return errors.New("job type cannot be empty")
	}
	if j.Status != StatusSubmitted {
		return errors.Wrapf(ErrInvalidTransition, "new jobs must be %s, got %s", StatusSubmitted, j.Status)
	}
	if j.CreatedDate.IsZero() {
		j.CreatedDate = s.timeNow()
	}
	j.LastUpdatedDate = j.CreatedDate

	res, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (job_type, status, created_date, last_updated_date)
		VALUES (?, ?, ?, ?)`,
		j.Type, j.Status, j.CreatedDate.UTC(), j.LastUpdatedDate.UTC())
	if err != nil {
		return errors.Wrapf(err, "failed to create %s job", j.Type)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read job id")
	}
	j.ID = id

	for name, value := range j.Params {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO job_params (job_id, name, value) VALUES (?, ?, ?)`,
			id, name, value); err != nil {
			return errors.Wrapf(err, "failed to store param %q for job %d", name, id)
		}
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + ` FROM jobs WHERE job_id = ?`

	j, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job %d", id)
	}

	if err := s.loadParams(ctx, []*Job{j}); err != nil {
		return nil, err
	}
	return j, nil
}

// NextSubmitted returns the oldest (lowest id) submitted job, or nil if none.
func (s *Store) NextSubmitted(ctx context.Context) (*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + `
		FROM jobs WHERE status = ? ORDER BY job_id ASC LIMIT 1`

	j, err := scanJob(s.db.QueryRowContext(ctx, query, StatusSubmitted))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to query next submitted job")
	}

	if err := s.loadParams(ctx, []*Job{j}); err != nil {
		return nil, err
	}
	return j, nil
}

// ListByStatus returns every job in the given status, oldest first.
func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + `
		FROM jobs WHERE status = ? ORDER BY job_id ASC`
	return s.queryJobs(ctx, query, status)
}

// ListJobs returns the most recent jobs, optionally filtered by status.
// limit <= 0 means no limit.
func (s *Store) ListJobs(ctx context.Context, status *Status, limit int) ([]*Job, error) {
	query := `SELECT ` + StandardJobSelectColumns() + ` FROM jobs`
	var args []interface{}
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY job_id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryJobs(ctx, query, args...)
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...interface{}) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs")
	}

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, j)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, errors.Wrap(err, "failed to iterate jobs")
	}

	if err := s.loadParams(ctx, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// loadParams fills Params for the given jobs with one query.
// Callers must have closed any open result set first.
func (s *Store) loadParams(ctx context.Context, jobs []*Job) error {
	if len(jobs) == 0 {
		return nil
	}

	byID := make(map[int64]*Job, len(jobs))
	placeholders := make([]string, 0, len(jobs))
	args := make([]interface{}, 0, len(jobs))
	for _, j := range jobs {
		j.Params = make(map[string]string)
		byID[j.ID] = j
		placeholders = append(placeholders, "?")
		args = append(args, j.ID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, name, value FROM job_params WHERE job_id IN (`+strings.Join(placeholders, ",")+`)`,
		args...)
	if err != nil {
		return errors.Wrap(err, "failed to load job params")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name, value string
		if err := rows.Scan(&id, &name, &value); err != nil {
			return errors.Wrap(err, "failed to scan job param")
		}
		if j, ok := byID[id]; ok {
			j.Params[name] = value
		}
	}
	return errors.Wrap(rows.Err(), "failed to iterate job params")
}

// UpdateStatus moves a job to newStatus only if its stored status equals
// expectedPrev. A mismatch leaves the row untouched and returns an error
// wrapping errors.ErrConcurrencyConflict; a transition outside the state
// machine returns ErrInvalidTransition.
//
// The transition is checked before the row is read, so a caller acting on
// a stale status can see either error: completed from a stale submitted
// is ErrInvalidTransition even when the row is processing. Both leave the
// row untouched.
func (s *Store) UpdateStatus(ctx context.Context, id int64, newStatus, expectedPrev Status) error {
	return s.transition(ctx, id, newStatus, expectedPrev, nil)
}

// MarkFailed is UpdateStatus to failed that also records the cause.
func (s *Store) MarkFailed(ctx context.Context, id int64, expectedPrev Status, cause string) error {
	return s.transition(ctx, id, StatusFailed, expectedPrev, &cause)
}

func (s *Store) transition(ctx context.Context, id int64, newStatus, expectedPrev Status, errMsg *string) error {
	if !CanTransition(expectedPrev, newStatus) {
		return errors.Wrapf(ErrInvalidTransition, "job %d: %s -> %s", id, expectedPrev, newStatus)
	}

	now := s.timeNow().UTC()
	query := `UPDATE jobs SET status = ?, last_updated_date = ?`
	args := []interface{}{newStatus, now}

	switch newStatus {
	case StatusProcessing:
		query += `, start_date = ?`
		args = append(args, now)
	case StatusCompleted, StatusFailed:
		query += `, end_date = ?`
		args = append(args, now)
	}
	if errMsg != nil {
		query += `, error_message = ?`
		args = append(args, *errMsg)
	}
	query += ` WHERE job_id = ? AND status = ?`
	args = append(args, id, expectedPrev)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "failed to update job %d to %s", id, newStatus)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to read rows affected for job %d", id)
	}
	if affected == 1 {
		return nil
	}

	var current Status
	err = s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE job_id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.NewNotFoundError("job %d", id)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to read status of job %d", id)
	}

	return errors.WithDetailf(
		errors.NewConcurrencyConflict("job %d: expected %s, found %s", id, expectedPrev, current),
		"requested transition %s -> %s", expectedPrev, newStatus)
}

// CountByStatus returns the number of jobs per status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count jobs")
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "failed to scan job count")
		}
		counts[status] = n
	}
	return counts, errors.Wrap(rows.Err(), "failed to iterate job counts")
}

// PurgeBefore deletes completed and failed jobs last updated before cutoff,
// along with their parameters and allocations.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND last_updated_date < ?`,
		StatusCompleted, StatusFailed, cutoff.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge jobs")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read purged count")
	}
	return n, nil
}
