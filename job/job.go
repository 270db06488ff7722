// Package job provides the persisted unit of work, its status state machine
// and the type tag → handler registry used by the processor.
package job

import (
	"time"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// Status represents the current state of a job
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// ErrInvalidTransition is returned for status changes outside the state machine.
var ErrInvalidTransition = errors.New("invalid status transition")

// IsValidStatus returns true if the status string is a valid Status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusSubmitted, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether from → to is an edge of the state machine:
// submitted → processing → completed | failed.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusSubmitted:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Job is a persisted unit of work.
// Type selects the Handler that runs it; Params are opaque strings whose
// encoding (ISO dates, ids) is owned by the handler.
type Job struct {
	ID              int64
	Type            string
	Status          Status
	Params          map[string]string
	ErrorMessage    string
	CreatedDate     time.Time
	StartDate       *time.Time
	EndDate         *time.Time
	LastUpdatedDate time.Time
}

// New creates a submitted job of the given type.
func New(jobType string, params map[string]string) (*Job, error) {
	if jobType == "" {
		return nil, errors.New("job type cannot be empty")
	}

	copied := make(map[string]string, len(params))
	for k, v := range params {
		copied[k] = v
	}

	now := time.Now()
	return &Job{
		Type:            jobType,
		Status:          StatusSubmitted,
		Params:          copied,
		CreatedDate:     now,
		LastUpdatedDate: now,
	}, nil
}

// Param returns the named parameter and whether it was present.
func (j *Job) Param(name string) (string, bool) {
	if j.Params == nil {
		return "", false
	}
	v, ok := j.Params[name]
	return v, ok
}

// ParamOr returns the named parameter, or def when it is absent or empty.
func (j *Job) ParamOr(name, def string) string {
	if v, ok := j.Param(name); ok && v != "" {
		return v
	}
	return def
}

// SetParam sets a named parameter.
func (j *Job) SetParam(name, value string) {
	if j.Params == nil {
		j.Params = make(map[string]string)
	}
	j.Params[name] = value
}

// Duration returns how long the job ran, or zero if it has not finished.
func (j *Job) Duration() time.Duration {
	if j.StartDate == nil || j.EndDate == nil {
		return 0
	}
	return j.EndDate.Sub(*j.StartDate)
}
