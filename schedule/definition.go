// Package schedule provides recurring job definitions that submit new jobs
// when overdue.
package schedule

import (
	"fmt"
	"time"

	"github.com/sirstudly/littlehotelier-sub001/errors"
	"github.com/sirstudly/littlehotelier-sub001/job"
)

// Configuration errors. A definition must carry exactly one recurrence rule.
var (
	ErrNoRecurrence        = errors.New("scheduled job has neither repeat_time_minutes nor repeat_daily_at")
	ErrAmbiguousRecurrence = errors.New("scheduled job has both repeat_time_minutes and repeat_daily_at")
)

// dailyAtLayout is the HH:MM format of RepeatDailyAt.
const dailyAtLayout = "15:04"

// Definition is a persisted recurring rule that produces jobs.
type Definition struct {
	ID          int64
	JobType     string
	Description string

	// Exactly one of these is set.
	RepeatTimeMinutes int    // 0 = unset
	RepeatDailyAt     string // "HH:MM", "" = unset

	Active      bool
	LastRunDate *time.Time
	Params      map[string]string // values may contain TODAY / TODAY+N / TODAY-N
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks the recurrence rule and job type.
func (d *Definition) Validate() error {
	if d.JobType == "" {
		return errors.Newf("scheduled job %d has no job type", d.ID)
	}
	if d.RepeatTimeMinutes < 0 {
		return errors.Newf("scheduled job %d: repeat_time_minutes must be > 0, got %d", d.ID, d.RepeatTimeMinutes)
	}
	hasInterval := d.RepeatTimeMinutes > 0
	hasDaily := d.RepeatDailyAt != ""

	switch {
	case !hasInterval && !hasDaily:
		return errors.Wrapf(ErrNoRecurrence, "scheduled job %d", d.ID)
	case hasInterval && hasDaily:
		return errors.Wrapf(ErrAmbiguousRecurrence, "scheduled job %d", d.ID)
	case hasDaily:
		if _, err := time.Parse(dailyAtLayout, d.RepeatDailyAt); err != nil {
			return errors.Wrapf(err, "scheduled job %d: repeat_daily_at %q is not HH:MM", d.ID, d.RepeatDailyAt)
		}
	}
	return nil
}

// IsOverdue reports whether the definition should produce a job at now.
//
// Interval rules are overdue when more than RepeatTimeMinutes have passed
// since the last run, or when they have never run. Daily rules are overdue
// once now reaches today's HH:MM trigger in now's location and the last run
// happened before that trigger, so they fire at most once per calendar day.
func (d *Definition) IsOverdue(now time.Time) (bool, error) {
	if err := d.Validate(); err != nil {
		return false, err
	}

	if d.RepeatTimeMinutes > 0 {
		if d.LastRunDate == nil {
			return true, nil
		}
		interval := time.Duration(d.RepeatTimeMinutes) * time.Minute
		return now.Sub(*d.LastRunDate) > interval, nil
	}

	trigger, err := d.triggerOn(now)
	if err != nil {
		return false, err
	}
	if now.Before(trigger) {
		return false, nil
	}
	return d.LastRunDate == nil || d.LastRunDate.Before(trigger), nil
}

// triggerOn returns the daily trigger instant on now's calendar day.
func (d *Definition) triggerOn(now time.Time) (time.Time, error) {
	at, err := time.Parse(dailyAtLayout, d.RepeatDailyAt)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "repeat_daily_at %q", d.RepeatDailyAt)
	}
	y, m, day := now.Date()
	return time.Date(y, m, day, at.Hour(), at.Minute(), 0, 0, now.Location()), nil
}

// NextRun estimates when the definition next becomes overdue, for listings.
func (d *Definition) NextRun(now time.Time) (time.Time, error) {
	if err := d.Validate(); err != nil {
		return time.Time{}, err
	}

	if d.RepeatTimeMinutes > 0 {
		if d.LastRunDate == nil {
			return now, nil
		}
		return d.LastRunDate.Add(time.Duration(d.RepeatTimeMinutes) * time.Minute), nil
	}

	trigger, err := d.triggerOn(now)
	if err != nil {
		return time.Time{}, err
	}
	if overdue, _ := d.IsOverdue(now); overdue {
		return trigger, nil
	}
	if now.Before(trigger) {
		return trigger, nil
	}
	return trigger.AddDate(0, 0, 1), nil
}

// Rule returns a short human-readable form of the recurrence rule.
func (d *Definition) Rule() string {
	switch {
	case d.RepeatTimeMinutes > 0 && d.RepeatDailyAt == "":
		return fmt.Sprintf("every %dm", d.RepeatTimeMinutes)
	case d.RepeatDailyAt != "" && d.RepeatTimeMinutes == 0:
		return "daily at " + d.RepeatDailyAt
	default:
		return "invalid"
	}
}

// CreateJob instantiates a submitted job of the definition's type with every
// template parameter copied and relative-date tokens resolved against now.
// The caller must advance LastRunDate after the job is submitted.
func (d *Definition) CreateJob(now time.Time) (*job.Job, error) {
	params := make(map[string]string, len(d.Params))
	for name, value := range d.Params {
		params[name] = ResolveToken(value, now)
	}

	j, err := job.New(d.JobType, params)
	if err != nil {
		return nil, errors.Wrapf(err, "scheduled job %d", d.ID)
	}
	j.CreatedDate = now
	j.LastUpdatedDate = now
	return j, nil
}
