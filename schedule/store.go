package schedule

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/job"
)

// Store handles persistence of scheduled job definitions
type Store struct {
	db   *sql.DB
	jobs *job.Store
}

// NewStore creates a new schedule store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, jobs: job.NewStore(db)}
}

const definitionColumns = `definition_id, job_type, description, repeat_time_minutes,
	repeat_daily_at, active, last_run_date, created_at, updated_at`

// CreateDefinition inserts a definition and its parameter template.
func (s *Store) CreateDefinition(ctx context.Context, d *Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}

	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin definition insert")
	}
	defer tx.Rollback()

	var repeatMinutes, dailyAt, description interface{}
	if d.RepeatTimeMinutes > 0 {
		repeatMinutes = d.RepeatTimeMinutes
	}
	if d.RepeatDailyAt != "" {
		dailyAt = d.RepeatDailyAt
	}
	if d.Description != "" {
		description = d.Description
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scheduled_jobs (
			job_type, description, repeat_time_minutes, repeat_daily_at,
			active, last_run_date, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.JobType, description, repeatMinutes, dailyAt,
		d.Active, formatTime(d.LastRunDate),
		d.CreatedAt.UTC().Format(time.RFC3339), d.UpdatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return errors.Wrapf(err, "failed to create scheduled %s job", d.JobType)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read definition id")
	}

	for name, value := range d.Params {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scheduled_job_params (definition_id, name, value) VALUES (?, ?, ?)`,
			id, name, value); err != nil {
			return errors.Wrapf(err, "failed to store param %q for scheduled job %d", name, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit definition insert")
	}
	d.ID = id
	return nil
}

// GetDefinition retrieves a definition by ID
func (s *Store) GetDefinition(ctx context.Context, id int64) (*Definition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+definitionColumns+` FROM scheduled_jobs WHERE definition_id = ?`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get scheduled job %d", id)
	}
	defs, err := s.collect(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, errors.NewNotFoundError("scheduled job %d", id)
	}
	return defs[0], nil
}

// ListDefinitions returns definitions ordered by id.
func (s *Store) ListDefinitions(ctx context.Context, activeOnly bool) ([]*Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM scheduled_jobs`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY definition_id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list scheduled jobs")
	}
	return s.collect(ctx, rows)
}

// collect scans and closes rows, then loads parameter templates.
func (s *Store) collect(ctx context.Context, rows *sql.Rows) ([]*Definition, error) {
	var defs []*Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		defs = append(defs, d)
	}
	err := rows.Err()
	rows.Close()
	if err != nil {
		return nil, errors.Wrap(err, "failed to iterate scheduled jobs")
	}

	for _, d := range defs {
		params, err := s.loadParams(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		d.Params = params
	}
	return defs, nil
}

func scanDefinition(rows *sql.Rows) (*Definition, error) {
	var d Definition
	var description, dailyAt, lastRun sql.NullString
	var repeatMinutes sql.NullInt64
	var createdAt, updatedAt string

	if err := rows.Scan(&d.ID, &d.JobType, &description, &repeatMinutes,
		&dailyAt, &d.Active, &lastRun, &createdAt, &updatedAt); err != nil {
		return nil, errors.Wrap(err, "failed to scan scheduled job")
	}

	d.Description = description.String
	d.RepeatTimeMinutes = int(repeatMinutes.Int64)
	d.RepeatDailyAt = dailyAt.String

	var err error
	if lastRun.Valid {
		t, perr := time.Parse(time.RFC3339, lastRun.String)
		if perr != nil {
			return nil, errors.Wrapf(perr, "scheduled job %d: bad last_run_date", d.ID)
		}
		d.LastRunDate = &t
	}
	if d.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, errors.Wrapf(err, "scheduled job %d: bad created_at", d.ID)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, errors.Wrapf(err, "scheduled job %d: bad updated_at", d.ID)
	}
	return &d, nil
}

func (s *Store) loadParams(ctx context.Context, id int64) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value FROM scheduled_job_params WHERE definition_id = ?`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load params for scheduled job %d", id)
	}
	defer rows.Close()

	params := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, errors.Wrap(err, "failed to scan scheduled job param")
		}
		params[name] = value
	}
	return params, errors.Wrap(rows.Err(), "failed to iterate scheduled job params")
}

// SetActive enables or disables a definition.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET active = ?, updated_at = ? WHERE definition_id = ?`,
		active, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return errors.Wrapf(err, "failed to update scheduled job %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("scheduled job %d", id)
	}
	return nil
}

// SubmitJob inserts j and advances the definition's last run to runAt in
// one transaction. The advance only succeeds while the stored last run still
// equals d.LastRunDate, so two evaluators that both judged d overdue submit
// one job between them; the loser gets errors.ErrConcurrencyConflict.
func (s *Store) SubmitJob(ctx context.Context, d *Definition, j *job.Job, runAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin scheduled submission")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE scheduled_jobs SET last_run_date = ?, updated_at = ?
		WHERE definition_id = ? AND last_run_date IS ?`,
		formatTime(&runAt), time.Now().UTC().Format(time.RFC3339),
		d.ID, formatTime(d.LastRunDate))
	if err != nil {
		return errors.Wrapf(err, "failed to advance last run of scheduled job %d", d.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if n == 0 {
		return errors.NewConcurrencyConflict("scheduled job %d: last run changed since evaluation", d.ID)
	}

	if err := s.jobs.CreateJobTx(ctx, tx, j); err != nil {
		return errors.Wrapf(err, "failed to submit job for scheduled job %d", d.ID)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit scheduled submission")
	}

	advanced := runAt
	d.LastRunDate = &advanced
	return nil
}

// formatTime renders a nullable timestamp as RFC3339 UTC text.
func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
