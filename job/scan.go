package job

import (
	"database/sql"
)

// StandardJobSelectColumns returns the column list expected by scanArgs.targets.
func StandardJobSelectColumns() string {
	return `job_id, job_type, status, error_message,
		created_date, start_date, end_date, last_updated_date`
}

// scanArgs holds the nullable columns of a job row.
type scanArgs struct {
	ErrorMsg  sql.NullString
	StartDate sql.NullTime
	EndDate   sql.NullTime
}

// targets returns scan destinations in StandardJobSelectColumns order.
func (a *scanArgs) targets(j *Job) []interface{} {
	return []interface{}{
		&j.ID,
		&j.Type,
		&j.Status,
		&a.ErrorMsg,
		&j.CreatedDate,
		&a.StartDate,
		&a.EndDate,
		&j.LastUpdatedDate,
	}
}

// apply copies the nullable columns onto the job.
func (a *scanArgs) apply(j *Job) {
	if a.ErrorMsg.Valid {
		j.ErrorMessage = a.ErrorMsg.String
	}
	if a.StartDate.Valid {
		t := a.StartDate.Time
		j.StartDate = &t
	}
	if a.EndDate.Valid {
		t := a.EndDate.Time
		j.EndDate = &t
	}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var args scanArgs
	if err := row.Scan(args.targets(&j)...); err != nil {
		return nil, err
	}
	args.apply(&j)
	return &j, nil
}
